package goaio

// ReadBuf is implemented by types that can serve as the destination of a
// Pread/Preadv. RdBuf returns storage the kernel may write into; its
// contents are undefined until RdUpdate reports how much of it is valid.
type ReadBuf interface {
	// RdBuf returns a mutable view over the buffer's full storage. The
	// kernel (or a test fake) may write anywhere in the returned slice;
	// none of it need be initialized beforehand.
	RdBuf() []byte

	// RdUpdate reports that bytes [base, base+n) were written by the
	// read. Implementations that track a valid-prefix length (like
	// AlignedBuffer) use this to extend it.
	RdUpdate(base, n int)
}

// WriteBuf is implemented by types that can serve as the source of a
// Pwrite/Pwritev. WrBuf returns exactly the bytes that should be written;
// unlike ReadBuf's storage, every byte returned must already be valid.
type WriteBuf interface {
	WrBuf() []byte
}

// Bytes adapts a plain []byte to ReadBuf and WriteBuf. The entire slice is
// always considered valid: there is no separate valid-prefix tracking, so
// RdUpdate is a no-op.
type Bytes []byte

func (b Bytes) RdBuf() []byte     { return b }
func (b Bytes) RdUpdate(int, int) {}
func (b Bytes) WrBuf() []byte     { return b }

// SliceBuffer wraps a pointer to a []byte whose length tracks how much of
// its capacity is valid, mirroring a growable buffer: RdBuf exposes the
// full capacity as scratch space for a read, and RdUpdate grows the slice's
// length to cover what was actually written.
type SliceBuffer struct {
	Buf *[]byte
}

func (s SliceBuffer) RdBuf() []byte {
	b := *s.Buf
	return b[:cap(b)]
}

func (s SliceBuffer) RdUpdate(base, n int) {
	*s.Buf = (*s.Buf)[:base+n]
}

func (s SliceBuffer) WrBuf() []byte {
	return *s.Buf
}
