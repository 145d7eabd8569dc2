// +build !integration

package goaio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChan[T any](t *testing.T, lowwater, maxOps int) *Chan[T] {
	t.Helper()
	c, err := NewChan[T](ChanConfig{MaxOps: maxOps, LowWater: lowwater, CPUAffinity: -1})
	if err != nil {
		t.Skipf("kernel AIO unavailable: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func chanTmpFile(t *testing.T, name string) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestChanPreadPwriteRoundTrip(t *testing.T) {
	c := newTestChan[string](t, 5, 10)
	file := chanTmpFile(t, "chan")

	wbuf := Bytes(make([]byte, 40))
	for i := range wbuf {
		wbuf[i] = 'x'
	}
	rbuf := Bytes(make([]byte, 100))

	require.NoError(t, c.Pwrite(file, wbuf, 0, "write"))
	require.NoError(t, c.Pread(file, rbuf, 0, "read"))
	require.NoError(t, c.Flush())

	seen := map[string]Result[string]{}
	for i := 0; i < 2; i++ {
		r := <-c.Results()
		seen[r.Token] = r
	}

	require.NoError(t, seen["write"].Err)
	assert.Equal(t, 40, seen["write"].N)
	require.NoError(t, seen["read"].Err)
	assert.Equal(t, 40, seen["read"].N)
}

func TestChanRejectsRequestsAfterClose(t *testing.T) {
	c := newTestChan[int](t, 1, 4)
	c.Close()

	file := chanTmpFile(t, "closed")
	err := c.Fsync(file, 0)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeClosed))
}
