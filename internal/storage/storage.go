// Package storage archives uploaded bank statement files.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedType = errors.New("storage: unsupported statement file type")
	ErrNotFound        = errors.New("storage: object not found")
)

type PutInput struct {
	Filename    string
	ContentType string
	Size        int64
	BankID      string
}

type PutResult struct {
	Key string
}

// Archive keeps statement files under opaque keys.
type Archive interface {
	Put(ctx context.Context, r io.Reader, in PutInput) (PutResult, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// statementExt returns the lower-cased extension when it is a statement format.
func statementExt(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".ofx", ".csv", ".txt", ".tsv", ".xls", ".xlsx":
		return ext, nil
	default:
		return "", ErrUnsupportedType
	}
}

// newKey lays keys out as statements/<bank>/<yyyy>/<mm>/<uuid><ext>.
func newKey(in PutInput, now time.Time) (string, error) {
	ext, err := statementExt(in.Filename)
	if err != nil {
		return "", err
	}
	bank := sanitizeSegment(in.BankID)
	if bank == "" {
		bank = "unknown"
	}
	return path.Join("statements", bank, now.Format("2006"), now.Format("01"), uuid.NewString()+ext), nil
}

func sanitizeSegment(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// cleanKey rejects keys that would escape the archive root.
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.TrimSpace(key))[1:]
	if k == "" || k != strings.TrimPrefix(key, "/") {
		return "", ErrNotFound
	}
	return k, nil
}
