package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

type Local struct {
	BaseDir string
	now     func() time.Time
}

func NewLocal(baseDir string) *Local {
	return &Local{BaseDir: baseDir, now: time.Now}
}

func (l *Local) Put(_ context.Context, r io.Reader, in PutInput) (PutResult, error) {
	key, err := newKey(in, l.now())
	if err != nil {
		return PutResult{}, err
	}
	dst := filepath.Join(l.BaseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return PutResult{}, err
	}

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o640)
	if err != nil {
		return PutResult{}, err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(dst)
		return PutResult{}, err
	}
	if err := f.Close(); err != nil {
		return PutResult{}, err
	}
	return PutResult{Key: key}, nil
}

func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(l.BaseDir, filepath.FromSlash(k)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (l *Local) Delete(_ context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(l.BaseDir, filepath.FromSlash(k)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (l *Local) String() string { return fmt.Sprintf("local(%s)", l.BaseDir) }
