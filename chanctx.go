package goaio

import (
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/goaio/goaio/internal/abi"
	"github.com/goaio/goaio/internal/logging"
)

// ChanConfig configures a Chan front end.
type ChanConfig struct {
	// MaxOps is the maximum number of batched+submitted operations in the
	// underlying IoContext, and also the capacity of the internal request
	// channel: once that many requests are waiting in the channel, further
	// calls to Pread/Pwrite/etc. block until the worker takes one.
	MaxOps int

	// LowWater triggers an eager Submit once more than this many
	// operations are batched, rather than waiting for the worker to
	// otherwise become idle. Must be > 0 and < MaxOps.
	LowWater int

	// CPUAffinity, if >= 0, pins the worker goroutine's OS thread to
	// that CPU for the life of the Chan.
	CPUAffinity int

	// Options is forwarded to the underlying IoContext, wiring an
	// Observer (or Metrics) into every completion the worker harvests.
	Options Options

	logger *logging.Logger
}

// chanRequest is a unit of work handed to the worker goroutine: it may be a
// queueing call (pread, pwrite, ...) or a flush request.
type chanRequest[T any] func(ctx *IoContext[T], out chan<- Result[T])

// Chan is a channel-based front end over IoContext: a single goroutine owns
// the IoContext and processes requests sent via Pread/Pwrite/etc, emitting
// completions on Results(). Safe for concurrent use by multiple goroutines
// enqueueing requests; only one goroutine (the worker) ever touches the
// underlying IoContext.
type Chan[T any] struct {
	ops     chan chanRequest[T]
	results chan Result[T]

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// NewChan creates a Chan and starts its worker goroutine.
func NewChan[T any](cfg ChanConfig) (*Chan[T], error) {
	if cfg.MaxOps <= 0 {
		return nil, NewError("NewChan", ErrCodeInvalidParameters, "MaxOps must be positive")
	}
	if cfg.LowWater <= 0 || cfg.LowWater >= cfg.MaxOps {
		return nil, NewError("NewChan", ErrCodeInvalidParameters, "LowWater must be in (0, MaxOps)")
	}

	ctx, err := New[T](cfg.MaxOps, cfg.Options)
	if err != nil {
		return nil, err
	}

	evfd, err := ctx.EnableEventfd()
	if err != nil {
		_ = ctx.Close()
		return nil, err
	}

	if cfg.logger == nil {
		cfg.logger = logging.Default()
	}

	c := &Chan[T]{
		ops:     make(chan chanRequest[T], cfg.MaxOps),
		results: make(chan Result[T], cfg.MaxOps),
		done:    make(chan struct{}),
	}

	go c.worker(ctx, evfd, cfg)
	return c, nil
}

// Results returns the channel completions are delivered on. It is closed
// once the worker has drained all outstanding operations after Close.
func (c *Chan[T]) Results() <-chan Result[T] { return c.results }

// Flush requests that all currently batched operations be submitted to the
// kernel immediately, rather than waiting for LowWater or idle.
func (c *Chan[T]) Flush() error {
	return c.send(func(ctx *IoContext[T], _ chan<- Result[T]) {
		_, _ = ctx.Submit()
	})
}

func (c *Chan[T]) send(req chanRequest[T]) error {
	if c.closed.Load() {
		return NewError("chan", ErrCodeClosed, "context is closed")
	}
	c.ops <- req
	return nil
}

// Pread enqueues a read request. The result arrives on Results().
func (c *Chan[T]) Pread(file *os.File, buf ReadBuf, off int64, tok T) error {
	return c.send(func(ctx *IoContext[T], out chan<- Result[T]) {
		if err := ctx.Pread(file, buf, off, tok); err != nil {
			out <- Result[T]{Kind: OpPread, Token: tok, Err: err}
		}
	})
}

// Preadv enqueues a scatter-read request.
func (c *Chan[T]) Preadv(file *os.File, bufs []ReadBuf, off int64, tok T) error {
	return c.send(func(ctx *IoContext[T], out chan<- Result[T]) {
		if err := ctx.Preadv(file, bufs, off, tok); err != nil {
			out <- Result[T]{Kind: OpPreadv, Token: tok, Err: err}
		}
	})
}

// Pwrite enqueues a write request.
func (c *Chan[T]) Pwrite(file *os.File, buf WriteBuf, off int64, tok T) error {
	return c.send(func(ctx *IoContext[T], out chan<- Result[T]) {
		if err := ctx.Pwrite(file, buf, off, tok); err != nil {
			out <- Result[T]{Kind: OpPwrite, Token: tok, Err: err}
		}
	})
}

// Pwritev enqueues a gather-write request.
func (c *Chan[T]) Pwritev(file *os.File, bufs []WriteBuf, off int64, tok T) error {
	return c.send(func(ctx *IoContext[T], out chan<- Result[T]) {
		if err := ctx.Pwritev(file, bufs, off, tok); err != nil {
			out <- Result[T]{Kind: OpPwritev, Token: tok, Err: err}
		}
	})
}

// Fsync enqueues a full sync request.
func (c *Chan[T]) Fsync(file *os.File, tok T) error {
	return c.send(func(ctx *IoContext[T], out chan<- Result[T]) {
		if err := ctx.Fsync(file, tok); err != nil {
			out <- Result[T]{Kind: OpFsync, Token: tok, Err: err}
		}
	})
}

// Fdsync enqueues a data-sync request.
func (c *Chan[T]) Fdsync(file *os.File, tok T) error {
	return c.send(func(ctx *IoContext[T], out chan<- Result[T]) {
		if err := ctx.Fdsync(file, tok); err != nil {
			out <- Result[T]{Kind: OpFdsync, Token: tok, Err: err}
		}
	})
}

// Close stops accepting new requests and blocks until the worker has
// flushed and drained every outstanding operation, then releases the
// kernel AIO context. Safe to call more than once.
func (c *Chan[T]) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.ops)
	})
	<-c.done
}

func (c *Chan[T]) worker(ctx *IoContext[T], evfd int, cfg ChanConfig) {
	defer close(c.results)
	defer close(c.done)
	defer func() { _ = ctx.Close() }()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if cfg.CPUAffinity >= 0 {
		var mask unix.CPUSet
		mask.Set(cfg.CPUAffinity)
		if err := unix.SchedSetaffinity(0, &mask); err != nil {
			cfg.logger.Warn("failed to set CPU affinity", "cpu", cfg.CPUAffinity, "err", err)
		} else {
			cfg.logger.Debug("worker pinned", "cpu", cfg.CPUAffinity)
		}
	}

	completions := make(chan struct{})
	go watchEventfd(evfd, completions)

	submit := func() {
		if _, err := ctx.Submit(); err != nil {
			cfg.logger.Error("submit failed", "err", err)
		}
	}

	closed := false
	for !closed || ctx.Pending() != 0 {
		if ctx.Batched() > cfg.LowWater {
			submit()
		}

		if closed || ctx.Full() {
			if _, ok := <-completions; !ok {
				return
			}
			c.processResults(ctx)
			continue
		}

		select {
		case op, ok := <-c.ops:
			if !ok {
				closed = true
				submit()
				continue
			}
			op(ctx, c.results)

		case _, ok := <-completions:
			if !ok {
				return
			}
			c.processResults(ctx)
		}
	}
}

func (c *Chan[T]) processResults(ctx *IoContext[T]) {
	if ctx.Pending() == 0 {
		return
	}

	results, err := ctx.Results(1, ctx.MaxOps(), nil)
	if err != nil {
		panic("goaio: io_getevents failed: " + err.Error())
	}
	for _, r := range results {
		c.results <- r
	}
}

// watchEventfd blocks reading evfd's counter in a loop, signalling done
// once per readable wakeup so the worker's select treats completions
// uniformly alongside incoming requests. Closes done if the read fails.
func watchEventfd(evfd int, done chan<- struct{}) {
	defer close(done)
	for {
		if _, err := abi.ReadEventfdCounter(evfd); err != nil {
			return
		}
		done <- struct{}{}
	}
}
