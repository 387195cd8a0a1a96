// Package callback exposes a core.PayloadStore through completion callbacks.
//
// Each call starts the operation in the background and captures the caller's
// context together with a Dispatcher. When the operation finishes the
// callback is handed to that dispatcher and receives the captured context, so
// values carried by the context and the goroutine that owns the dispatcher
// (for example a Loop drained by a UI thread) are preserved across the
// asynchronous boundary. Errors are passed to the callback untouched.
package callback

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pandodao/anchor-store/core"
)

type Option func(*Adapter)

// WithDefaultDispatcher sets the dispatcher used when the call context does
// not carry one. Inline is used otherwise.
func WithDefaultDispatcher(d Dispatcher) Option {
	return func(a *Adapter) {
		a.dispatcher = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger.With("store", "callback")
	}
}

type Adapter struct {
	payloads   core.PayloadStore
	dispatcher Dispatcher
	logger     *slog.Logger
}

var _ core.CallbackPayloadStore = (*Adapter)(nil)

func New(payloads core.PayloadStore, opts ...Option) *Adapter {
	a := &Adapter{
		payloads:   payloads,
		dispatcher: Inline,
		logger:     slog.Default().With("store", "callback"),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func (a *Adapter) Persist(ctx context.Context, payloads []*core.Payload, done core.DoneFunc) {
	d := a.capture(ctx)
	go func() {
		err := a.payloads.Persist(ctx, payloads)
		a.debug(ctx, "persist done", err)
		a.deliver(ctx, d, err, func(err error) { done(ctx, err) })
	}()
}

func (a *Adapter) Restore(ctx context.Context, done core.RestoreFunc) {
	d := a.capture(ctx)
	go func() {
		blobs, err := a.payloads.Restore(ctx)
		a.debug(ctx, "restore done", err)
		a.deliver(ctx, d, err, func(err error) { done(ctx, blobs, err) })
	}()
}

func (a *Adapter) Clear(ctx context.Context, done core.DoneFunc) {
	d := a.capture(ctx)
	go func() {
		err := a.payloads.Clear(ctx)
		a.debug(ctx, "clear done", err)
		a.deliver(ctx, d, err, func(err error) { done(ctx, err) })
	}()
}

func (a *Adapter) capture(ctx context.Context) Dispatcher {
	if d, ok := DispatcherFromContext(ctx); ok && d != nil {
		return d
	}

	return a.dispatcher
}

// deliver hands the callback to d. When d refuses it, the callback runs
// inline with the refusal joined to err.
func (a *Adapter) deliver(ctx context.Context, d Dispatcher, err error, fn func(error)) {
	derr := d.Dispatch(func() { fn(err) })
	if derr == nil {
		return
	}

	a.logger.ErrorContext(ctx, "callback.Dispatch", "err", derr)
	fn(errors.Join(err, derr))
}

func (a *Adapter) debug(ctx context.Context, msg string, err error) {
	a.logger.DebugContext(ctx, msg, "err", err)
}
