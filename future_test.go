// +build !integration

package goaio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestFuture(t *testing.T, maxOps int) *Future {
	t.Helper()
	f, err := NewFuture(maxOps)
	if err != nil {
		t.Skipf("kernel AIO unavailable: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func futureTmpFile(t *testing.T, name string) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestFuturePreadPwriteRoundTrip(t *testing.T) {
	io := newTestFuture(t, 10)
	file := futureTmpFile(t, "future")

	wbuf := Bytes(make([]byte, 40))
	for i := range wbuf {
		wbuf[i] = 'x'
	}
	rbuf := Bytes(make([]byte, 100))

	w := io.Pwrite(file, wbuf, 0)
	r := io.Pread(file, rbuf, 0)

	require.NoError(t, io.Flush())

	wo := <-w
	require.NoError(t, wo.Err)
	require.Equal(t, 40, wo.N)

	ro := <-r
	require.NoError(t, ro.Err)
	require.Equal(t, 40, ro.N)
	require.Equal(t, wbuf, Bytes(rbuf[:40]))
}

func TestFutureFsync(t *testing.T) {
	io := newTestFuture(t, 10)
	file := futureTmpFile(t, "future-sync")

	s := io.Fsync(file)
	require.NoError(t, io.Flush())

	so := <-s
	require.NoError(t, so.Err)
}
