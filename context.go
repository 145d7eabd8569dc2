// Package goaio is a safe, typed wrapper around the Linux kernel's
// asynchronous I/O interface (io_setup/io_submit/io_getevents, the
// "libaio" family). IoContext owns a kernel AIO context and a fixed pool of
// in-flight operation slots; it is the building block the channel and
// future front ends are built on.
package goaio

import (
	"os"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/goaio/goaio/internal/abi"
	"github.com/goaio/goaio/internal/logging"
	"github.com/goaio/goaio/internal/pool"
)

// addrOf returns the address of s's first element as a uintptr, for
// placing into a kernel-facing Iocb/Iovec. s must not be empty, and the
// caller is responsible for keeping it reachable until the kernel is done
// with it (see entry.iovecs).
func addrOf[E any](s []E) uintptr {
	if len(s) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&s[0]))
}

// OpKind identifies which operation an in-flight entry represents.
type OpKind int

const (
	OpNoop OpKind = iota
	OpPread
	OpPreadv
	OpPwrite
	OpPwritev
	OpFsync
	OpFdsync
)

func (k OpKind) String() string {
	switch k {
	case OpPread:
		return "pread"
	case OpPreadv:
		return "preadv"
	case OpPwrite:
		return "pwrite"
	case OpPwritev:
		return "pwritev"
	case OpFsync:
		return "fsync"
	case OpFdsync:
		return "fdsync"
	default:
		return "noop"
	}
}

// Result is returned for each completed operation. N is the byte count on
// success; Err is set (and N meaningless) on failure.
type Result[T any] struct {
	Kind  OpKind
	Token T
	N     int
	Err   error
}

// entry is the in-flight state for one queued or submitted operation. Its
// address is stable for as long as it remains allocated in the context's
// pool, which is what lets the kernel hold a reference to entry.iocb across
// the submit/complete round trip.
type entry[T any] struct {
	iocb     abi.Iocb
	iovecs   []abi.Iovec // kept alive for preadv/pwritev; unused otherwise
	kind     OpKind
	token    T
	rbuf     ReadBuf
	rbufs    []ReadBuf
	wbuf     WriteBuf
	wbufs    []WriteBuf
	submitAt time.Time // set in prep, read back in Results for Observer latency
}

// IoContext owns a kernel AIO context supporting up to maxOps outstanding
// operations. Every queued operation carries a caller-supplied token of
// type T, returned alongside its result so the caller can correlate
// completions with requests. IoContext is not safe for concurrent use by
// multiple goroutines without external synchronization; see Chan and
// Future for front ends that provide it.
type IoContext[T any] struct {
	ctxID   abi.ContextID
	maxOps  int
	pool    *pool.Pool[entry[T]]
	pending []*abi.Iocb // iocb pointers queued for the next Submit

	evfd      int // -1 if completion notification via eventfd is disabled
	submitted int

	observer Observer
	logger   *logging.Logger
}

// Options configures optional IoContext (and, transitively, Chan/Future)
// behavior. The zero value disables every optional feature.
type Options struct {
	// Observer, if non-nil, is notified of every completed operation and
	// every harvested batch as Results processes it. Mutually exclusive
	// with Metrics in effect: if both are set, Observer takes precedence.
	Observer Observer

	// Metrics, if set and Observer is nil, wires a MetricsObserver backed
	// by Metrics, so every completion updates Metrics' counters, byte
	// totals, and latency histogram without the caller driving it by hand.
	Metrics *Metrics
}

func (o Options) observer() Observer {
	switch {
	case o.Observer != nil:
		return o.Observer
	case o.Metrics != nil:
		return NewMetricsObserver(o.Metrics)
	default:
		return NoOpObserver{}
	}
}

// New creates an IoContext able to hold maxOps outstanding operations.
// opts is variadic so existing callers are unaffected; at most the first
// element is used.
func New[T any](maxOps int, opts ...Options) (*IoContext[T], error) {
	if maxOps <= 0 {
		return nil, NewError("io_setup", ErrCodeInvalidParameters, "maxOps must be positive")
	}

	ctxID, err := abi.IoSetup(maxOps)
	if err != nil {
		return nil, NewErrnoError("io_setup", err.(syscall.Errno))
	}

	var opt Options
	if len(opts) > 0 {
		opt = opts[0]
	}

	return &IoContext[T]{
		ctxID:    ctxID,
		maxOps:   maxOps,
		pool:     pool.New[entry[T]](maxOps),
		pending:  make([]*abi.Iocb, 0, maxOps),
		evfd:     -1,
		observer: opt.observer(),
		logger:   logging.Default(),
	}, nil
}

// EnableEventfd creates (if not already created) an eventfd that the
// kernel signals on every completion, and returns its file descriptor so
// the caller can poll or select on it. Only operations queued after this
// call carry the eventfd flag; existing queued operations are unaffected.
func (c *IoContext[T]) EnableEventfd() (int, error) {
	if c.evfd != -1 {
		return c.evfd, nil
	}

	fd, err := abi.NewCompletionEventfd()
	if err != nil {
		return 0, NewErrnoError("eventfd", err.(syscall.Errno))
	}
	c.evfd = fd
	return fd, nil
}

// Batched returns the number of operations queued but not yet submitted.
func (c *IoContext[T]) Batched() int { return len(c.pending) }

// Submitted returns the number of operations submitted to the kernel and
// not yet harvested by Results.
func (c *IoContext[T]) Submitted() int { return c.submitted }

// Pending returns Batched()+Submitted(), the total outstanding operations.
func (c *IoContext[T]) Pending() int { return c.Batched() + c.submitted }

// MaxOps returns the capacity passed to New.
func (c *IoContext[T]) MaxOps() int { return c.maxOps }

// Full reports whether Pending() has reached MaxOps(), meaning no further
// operation can be queued until some complete.
func (c *IoContext[T]) Full() bool { return c.Pending() >= c.maxOps }

// Submit hands all batched operations to the kernel in one io_submit call,
// returning how many it accepted. The kernel is only ever required to
// accept a prefix of the batch; any remainder stays batched for the next
// Submit.
func (c *IoContext[T]) Submit() (int, error) {
	if len(c.pending) == 0 {
		return 0, nil
	}

	n, err := abi.IoSubmit(c.ctxID, c.pending)
	if err != nil {
		return 0, NewErrnoError("io_submit", err.(syscall.Errno))
	}

	c.pending = c.pending[n:]
	c.submitted += n
	c.logger.Debug("io_submit", "accepted", n, "submitted", c.submitted)
	return n, nil
}

// Results waits for between min and len-capped completions (at most max),
// up to timeout (nil blocks indefinitely), and returns one Result per
// completed operation. Each harvested entry's pool slot is freed, making
// room for further Submit calls. Every completion is also reported to the
// Observer supplied via Options (a no-op if none was given).
func (c *IoContext[T]) Results(min, max int, timeout *time.Duration) ([]Result[T], error) {
	if max <= 0 {
		return nil, nil
	}

	events := make([]abi.IOEvent, max)

	var ts *abi.Timespec
	if timeout != nil {
		d := *timeout
		if d < 0 {
			d = 0
		}
		ts = &abi.Timespec{Sec: int64(d / time.Second), Nsec: int64(d % time.Second)}
	}

	n, err := abi.IoGetevents(c.ctxID, min, events, ts)
	if err != nil {
		return nil, NewErrnoError("io_getevents", err.(syscall.Errno))
	}

	results := make([]Result[T], 0, n)
	for i := 0; i < n; i++ {
		ev := events[i]
		idx := int(ev.Data)
		e := c.pool.Free(idx)
		c.submitted--

		res := Result[T]{Kind: e.kind, Token: e.token}
		success := ev.Res >= 0
		if !success {
			res.Err = NewErrnoError(e.kind.String(), syscall.Errno(-ev.Res))
		} else {
			res.N = int(ev.Res)
		}

		latencyNs := uint64(time.Since(e.submitAt))
		switch e.kind {
		case OpPread, OpPreadv:
			c.observer.ObserveRead(uint64(res.N), latencyNs, success)
		case OpPwrite, OpPwritev:
			c.observer.ObserveWrite(uint64(res.N), latencyNs, success)
		case OpFsync, OpFdsync:
			c.observer.ObserveSync(latencyNs, success)
		}

		results = append(results, res)
	}

	if n > 0 {
		c.observer.ObservePending(uint32(c.Pending()))
	}

	c.logger.Debug("io_getevents", "completed", n, "submitted", c.submitted)
	return results, nil
}

// Close drains all submitted operations (blocking, discarding their
// results) and destroys the kernel AIO context. It does not flush batched
// but unsubmitted operations; call Submit first if those must complete.
func (c *IoContext[T]) Close() error {
	for c.submitted > 0 {
		if _, err := c.Results(1, c.submitted, nil); err != nil {
			return err
		}
	}

	if err := abi.IoDestroy(c.ctxID); err != nil {
		return NewErrnoError("io_destroy", err.(syscall.Errno))
	}

	if c.evfd != -1 {
		_ = unix.Close(c.evfd)
		c.evfd = -1
	}
	return nil
}

func (c *IoContext[T]) packIocb(opcode uint16, fd uintptr, off int64) abi.Iocb {
	iocb := abi.Iocb{
		Opcode: opcode,
		Fildes: uint32(fd),
		Offset: off,
	}
	if c.evfd != -1 {
		iocb.Flags = abi.IOCB_FLAG_RESFD
		iocb.Resfd = uint32(c.evfd)
	}
	return iocb
}

// prep allocates a pool slot for e, stores its index as the iocb's
// completion cookie, and queues the iocb's address for the next Submit.
func (c *IoContext[T]) prep(e entry[T]) error {
	e.submitAt = time.Now()
	idx, ptr, ok := c.pool.Alloc(e)
	if !ok {
		return NewError(e.kind.String(), ErrCodeQueueFull, "context is full")
	}

	ptr.iocb.Data = uint64(idx)
	c.pending = append(c.pending, &ptr.iocb)
	return nil
}

// Pread queues a read of len(buf.RdBuf()) bytes from file at off into buf.
func (c *IoContext[T]) Pread(file *os.File, buf ReadBuf, off int64, tok T) error {
	if c.Full() {
		return NewError("pread", ErrCodeQueueFull, "context is full")
	}

	b := buf.RdBuf()
	iocb := c.packIocb(abi.IOCB_CMD_PREAD, file.Fd(), off)
	iocb.Buf = uint64(addrOf(b))
	iocb.Nbytes = uint64(len(b))

	return c.prep(entry[T]{iocb: iocb, kind: OpPread, token: tok, rbuf: buf})
}

// Preadv queues a scatter read of file at off into bufs, in order.
func (c *IoContext[T]) Preadv(file *os.File, bufs []ReadBuf, off int64, tok T) error {
	if c.Full() {
		return NewError("preadv", ErrCodeQueueFull, "context is full")
	}

	iov := make([]abi.Iovec, len(bufs))
	for i, b := range bufs {
		bb := b.RdBuf()
		iov[i] = abi.Iovec{Base: uint64(addrOf(bb)), Len: uint64(len(bb))}
	}

	iocb := c.packIocb(abi.IOCB_CMD_PREADV, file.Fd(), off)
	iocb.Buf = uint64(addrOf(iov))
	iocb.Nbytes = uint64(len(iov))

	e := entry[T]{iocb: iocb, iovecs: iov, kind: OpPreadv, token: tok}
	e.rbufs = bufs
	return c.prep(e)
}

// Pwrite queues a write of buf.WrBuf() to file at off.
func (c *IoContext[T]) Pwrite(file *os.File, buf WriteBuf, off int64, tok T) error {
	if c.Full() {
		return NewError("pwrite", ErrCodeQueueFull, "context is full")
	}

	b := buf.WrBuf()
	iocb := c.packIocb(abi.IOCB_CMD_PWRITE, file.Fd(), off)
	iocb.Buf = uint64(addrOf(b))
	iocb.Nbytes = uint64(len(b))

	return c.prep(entry[T]{iocb: iocb, kind: OpPwrite, token: tok, wbuf: buf})
}

// Pwritev queues a gather write of bufs to file at off, in order.
func (c *IoContext[T]) Pwritev(file *os.File, bufs []WriteBuf, off int64, tok T) error {
	if c.Full() {
		return NewError("pwritev", ErrCodeQueueFull, "context is full")
	}

	iov := make([]abi.Iovec, len(bufs))
	for i, b := range bufs {
		bb := b.WrBuf()
		iov[i] = abi.Iovec{Base: uint64(addrOf(bb)), Len: uint64(len(bb))}
	}

	iocb := c.packIocb(abi.IOCB_CMD_PWRITEV, file.Fd(), off)
	iocb.Buf = uint64(addrOf(iov))
	iocb.Nbytes = uint64(len(iov))

	e := entry[T]{iocb: iocb, iovecs: iov, kind: OpPwritev, token: tok}
	e.wbufs = bufs
	return c.prep(e)
}

// Fsync queues a full sync (data and metadata) of file to stable storage.
// Supported only on some filesystems.
func (c *IoContext[T]) Fsync(file *os.File, tok T) error {
	if c.Full() {
		return NewError("fsync", ErrCodeQueueFull, "context is full")
	}
	iocb := c.packIocb(abi.IOCB_CMD_FSYNC, file.Fd(), 0)
	return c.prep(entry[T]{iocb: iocb, kind: OpFsync, token: tok})
}

// Fdsync queues a data-only sync of file to stable storage. Supported only
// on some filesystems.
func (c *IoContext[T]) Fdsync(file *os.File, tok T) error {
	if c.Full() {
		return NewError("fdsync", ErrCodeQueueFull, "context is full")
	}
	iocb := c.packIocb(abi.IOCB_CMD_FDSYNC, file.Fd(), 0)
	return c.prep(entry[T]{iocb: iocb, kind: OpFdsync, token: tok})
}
