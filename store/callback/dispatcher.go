package callback

import (
	"context"
	"errors"
	"sync"
)

// Dispatcher decides where a completion callback runs. Dispatch returns an
// error when fn will never run.
type Dispatcher interface {
	Dispatch(fn func()) error
}

type DispatcherFunc func(fn func()) error

func (f DispatcherFunc) Dispatch(fn func()) error { return f(fn) }

// Inline runs callbacks on the goroutine that completed the operation.
var Inline Dispatcher = DispatcherFunc(func(fn func()) error {
	fn()
	return nil
})

var ErrLoopClosed = errors.New("callback loop closed")

// Loop queues callbacks until the owner drains them with Run, so completions
// are delivered on the owner's goroutine.
type Loop struct {
	mux    sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
}

func NewLoop() *Loop {
	l := &Loop{}
	l.cond = sync.NewCond(&l.mux)
	return l
}

// Dispatch enqueues fn. After Close it refuses fn with ErrLoopClosed.
func (l *Loop) Dispatch(fn func()) error {
	l.mux.Lock()
	defer l.mux.Unlock()

	if l.closed {
		return ErrLoopClosed
	}

	l.queue = append(l.queue, fn)
	l.cond.Signal()
	return nil
}

// Run executes queued callbacks in order until ctx is done or Close is
// called. Callbacks queued before Close still run.
func (l *Loop) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		l.mux.Lock()
		l.cond.Broadcast()
		l.mux.Unlock()
	})
	defer stop()

	for {
		l.mux.Lock()
		for len(l.queue) == 0 && !l.closed && ctx.Err() == nil {
			l.cond.Wait()
		}

		if err := ctx.Err(); err != nil {
			l.mux.Unlock()
			return err
		}

		if len(l.queue) == 0 && l.closed {
			l.mux.Unlock()
			return ErrLoopClosed
		}

		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mux.Unlock()

		fn()
	}
}

// Drain runs the callbacks queued so far without blocking and reports how
// many ran.
func (l *Loop) Drain() int {
	l.mux.Lock()
	queue := l.queue
	l.queue = nil
	l.mux.Unlock()

	for _, fn := range queue {
		fn()
	}

	return len(queue)
}

func (l *Loop) Close() {
	l.mux.Lock()
	defer l.mux.Unlock()

	l.closed = true
	l.cond.Broadcast()
}

type dispatcherKey struct{}

// WithDispatcher returns a context whose callbacks are delivered through d.
// It takes precedence over the adapter's default dispatcher.
func WithDispatcher(ctx context.Context, d Dispatcher) context.Context {
	return context.WithValue(ctx, dispatcherKey{}, d)
}

func DispatcherFromContext(ctx context.Context) (Dispatcher, bool) {
	d, ok := ctx.Value(dispatcherKey{}).(Dispatcher)
	return d, ok
}
