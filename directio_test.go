// +build !integration

package goaio

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectFilePwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "direct")

	f, err := OpenDirect(path, ModeTruncate, AccessReadWrite, 4096)
	if err != nil {
		t.Skipf("O_DIRECT unavailable on this filesystem: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })

	data := make([]byte, 4096)
	for i := range data {
		data[i] = 'x'
	}
	buf, err := NewAlignedBufferFromSlice(data, 4096)
	require.NoError(t, err)

	n, err := f.Pwrite(buf, 0)
	require.NoError(t, err)
	require.Equal(t, 4096, n)
}

func TestDirectFilePreadAfterPwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "direct-rw")

	f, err := OpenDirect(path, ModeTruncate, AccessReadWrite, 512)
	if err != nil {
		t.Skipf("O_DIRECT unavailable on this filesystem: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })

	wdata := make([]byte, 512)
	for i := range wdata {
		wdata[i] = byte(i)
	}
	wbuf, err := NewAlignedBufferFromSlice(wdata, 512)
	require.NoError(t, err)

	_, err = f.Pwrite(wbuf, 0)
	require.NoError(t, err)

	rbuf, err := NewAlignedBuffer(512, 512)
	require.NoError(t, err)

	n, err := f.Pread(rbuf, 0)
	require.NoError(t, err)
	require.Equal(t, 512, n)
	require.Equal(t, wdata, rbuf.Buf)
}
