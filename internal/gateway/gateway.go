// Package gateway serializes access to the remote node behind a
// bounded-concurrency, minimum-inter-start-delay queue. Every upstream
// call in the repository goes through one Gateway instance, which is
// what keeps the node from rate-limiting us under bursty load.
package gateway

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Default pacing values, tuned for public node endpoints.
const (
	DefaultMaxConcurrent = 3
	DefaultMinDelay      = 150 * time.Millisecond

	// queueCapacity bounds how many tasks may wait; Execute blocks the
	// caller once the queue is full rather than growing without bound.
	queueCapacity = 1024
)

// ErrClosed is returned for tasks that were still queued when the
// gateway shut down, and for Execute calls after Close.
var ErrClosed = errors.New("gateway closed")

// Operation is one remote call. The gateway passes through the
// caller's context so timeouts and cancellation reach the transport.
type Operation func(ctx context.Context) (any, error)

type taskResult struct {
	value any
	err   error
}

type task struct {
	ctx    context.Context
	op     Operation
	result chan taskResult
}

// Gateway is a FIFO task queue with two global invariants: at most
// MaxConcurrent operations run at any instant, and no operation starts
// sooner than MinDelay after the previous operation started.
// It is not a retry mechanism; retries are the caller's concern.
type Gateway struct {
	minDelay time.Duration
	queue    chan *task
	slots    chan struct{}
	limiter  *rate.Limiter
	logger   *log.Logger

	inflight atomic.Int64
	started  atomic.Int64

	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup

	// pacerCtx unblocks a dispatcher stuck in limiter.Wait at shutdown.
	pacerCtx    context.Context
	pacerCancel context.CancelFunc
}

// New creates a gateway and starts its dispatcher. Non-positive
// arguments fall back to the defaults.
func New(maxConcurrent int, minDelay time.Duration, logger *log.Logger) *Gateway {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if minDelay <= 0 {
		minDelay = DefaultMinDelay
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	pacerCtx, pacerCancel := context.WithCancel(context.Background())
	g := &Gateway{
		minDelay:    minDelay,
		queue:       make(chan *task, queueCapacity),
		slots:       make(chan struct{}, maxConcurrent),
		limiter:     rate.NewLimiter(rate.Every(minDelay), 1),
		logger:      logger,
		done:        make(chan struct{}),
		pacerCtx:    pacerCtx,
		pacerCancel: pacerCancel,
	}

	g.wg.Add(1)
	go g.dispatch()

	return g
}

// Execute enqueues op and waits for its result. If ctx is cancelled
// while the task is still queued, the task is abandoned without
// running; once the operation has started it is not interrupted by the
// gateway (the operation itself still sees ctx).
func (g *Gateway) Execute(ctx context.Context, op Operation) (any, error) {
	if g.closed.Load() {
		return nil, ErrClosed
	}

	t := &task{
		ctx:    ctx,
		op:     op,
		result: make(chan taskResult, 1),
	}

	select {
	case g.queue <- t:
	case <-g.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-t.result:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do is a typed convenience wrapper around Execute.
func Do[T any](g *Gateway, ctx context.Context, op func(ctx context.Context) (T, error)) (T, error) {
	v, err := g.Execute(ctx, func(ctx context.Context) (any, error) {
		return op(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	result, _ := v.(T)
	return result, nil
}

// dispatch drains the queue in FIFO order. For each task: acquire a
// concurrency slot, wait out the pacing limiter, then run the task in
// its own goroutine. The slot is released when the task settles, so a
// failing operation cannot starve the queue.
func (g *Gateway) dispatch() {
	defer g.wg.Done()

	for {
		select {
		case <-g.done:
			g.failPending()
			return
		case t := <-g.queue:
			// Abandoned while queued: skip without consuming a start.
			if t.ctx.Err() != nil {
				t.result <- taskResult{err: t.ctx.Err()}
				continue
			}

			select {
			case g.slots <- struct{}{}:
			case <-g.done:
				t.result <- taskResult{err: ErrClosed}
				g.failPending()
				return
			}

			if err := g.limiter.Wait(g.pacerCtx); err != nil {
				<-g.slots
				t.result <- taskResult{err: ErrClosed}
				g.failPending()
				return
			}

			g.started.Add(1)
			g.inflight.Add(1)
			g.wg.Add(1)
			go g.run(t)
		}
	}
}

func (g *Gateway) run(t *task) {
	defer func() {
		g.inflight.Add(-1)
		<-g.slots
		g.wg.Done()
	}()

	v, err := t.op(t.ctx)
	t.result <- taskResult{value: v, err: err}
}

// failPending rejects every task still queued at shutdown.
func (g *Gateway) failPending() {
	for {
		select {
		case t := <-g.queue:
			t.result <- taskResult{err: ErrClosed}
		default:
			return
		}
	}
}

// Inflight returns the number of operations currently running.
func (g *Gateway) Inflight() int64 {
	return g.inflight.Load()
}

// QueueDepth returns the number of tasks waiting to start.
func (g *Gateway) QueueDepth() int {
	return len(g.queue)
}

// Started returns the total number of operations that entered Running.
func (g *Gateway) Started() int64 {
	return g.started.Load()
}

// Close stops intake, fails queued tasks with ErrClosed and waits for
// in-flight operations to settle.
func (g *Gateway) Close() {
	if g.closed.Swap(true) {
		return
	}
	close(g.done)
	g.pacerCancel()
	g.wg.Wait()
}
