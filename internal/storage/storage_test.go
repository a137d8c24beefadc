package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_PutOpenDelete(t *testing.T) {
	l := NewLocal(t.TempDir())
	l.now = func() time.Time { return time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	res, err := l.Put(ctx, strings.NewReader("<OFX>..."), PutInput{Filename: "Extrato Março.OFX", BankID: "Banco do Brasil"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Key, "statements/bancodobrasil/2026/03/"), res.Key)
	assert.True(t, strings.HasSuffix(res.Key, ".ofx"), res.Key)

	rc, err := l.Open(ctx, res.Key)
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "<OFX>...", string(b))

	require.NoError(t, l.Delete(ctx, res.Key))
	_, err = l.Open(ctx, res.Key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocal_RejectsUnsupportedType(t *testing.T) {
	l := NewLocal(t.TempDir())
	_, err := l.Put(context.Background(), strings.NewReader("x"), PutInput{Filename: "malware.exe"})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestCleanKey(t *testing.T) {
	_, err := cleanKey("../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = cleanKey("")
	assert.ErrorIs(t, err, ErrNotFound)

	k, err := cleanKey("statements/bb/2026/03/a.csv")
	require.NoError(t, err)
	assert.Equal(t, "statements/bb/2026/03/a.csv", k)
}

func TestStatementExt(t *testing.T) {
	for _, name := range []string{"a.ofx", "b.CSV", "c.txt", "d.tsv", "e.xls", "f.xlsx"} {
		_, err := statementExt(name)
		assert.NoError(t, err, name)
	}
}
