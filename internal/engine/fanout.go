package engine

import (
	"context"
	"log/slog"

	"github.com/Priya8975/leadsync/internal/domain"
)

// Listener observes a run. Implementations must not block for long; they are
// called synchronously between iterations.
type Listener interface {
	OnBatch(ctx context.Context, p domain.BatchProgress)
	OnFinish(ctx context.Context, report domain.RunReport)
}

// FanOut distributes run notifications to every registered listener. A
// panicking listener is logged and skipped.
type FanOut struct {
	listeners []Listener
	logger    *slog.Logger
}

func NewFanOut(logger *slog.Logger, listeners ...Listener) *FanOut {
	return &FanOut{listeners: listeners, logger: logger}
}

// Add registers more listeners.
func (f *FanOut) Add(listeners ...Listener) {
	for _, l := range listeners {
		if l != nil {
			f.listeners = append(f.listeners, l)
		}
	}
}

// Len returns the number of registered listeners.
func (f *FanOut) Len() int {
	return len(f.listeners)
}

func (f *FanOut) Batch(ctx context.Context, p domain.BatchProgress) {
	for _, l := range f.listeners {
		f.call(func() { l.OnBatch(ctx, p) })
	}
}

func (f *FanOut) Finish(ctx context.Context, report domain.RunReport) {
	for _, l := range f.listeners {
		f.call(func() { l.OnFinish(ctx, report) })
	}
}

func (f *FanOut) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("run listener panicked", "panic", r)
		}
	}()
	fn()
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Batch  func(ctx context.Context, p domain.BatchProgress)
	Finish func(ctx context.Context, report domain.RunReport)
}

func (l ListenerFuncs) OnBatch(ctx context.Context, p domain.BatchProgress) {
	if l.Batch != nil {
		l.Batch(ctx, p)
	}
}

func (l ListenerFuncs) OnFinish(ctx context.Context, report domain.RunReport) {
	if l.Finish != nil {
		l.Finish(ctx, report)
	}
}
