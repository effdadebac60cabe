package apiclient

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

const maxLoggedPayload = 2048

// NopReporter discards reports.
type NopReporter struct{}

func (NopReporter) Report(context.Context, *Error) {}

// LogReporter writes each rejection as a structured log line.
type LogReporter struct {
	logger zerolog.Logger
}

func NewLogReporter(l zerolog.Logger) *LogReporter {
	return &LogReporter{logger: l}
}

func (r *LogReporter) Report(_ context.Context, err *Error) {
	ev := r.logger.Warn()
	if err.Kind == KindStatus && err.Status >= 500 {
		ev = r.logger.Error()
	}
	ev = ev.Str("kind", string(err.Kind)).
		Str("method", err.Method).
		Str("path", err.Path).
		Int("status", err.Status).
		Str("request_id", err.RequestID).
		Err(err.Err)
	if len(err.Payload) > 0 {
		if json.Valid(err.Payload) && len(err.Payload) <= maxLoggedPayload {
			ev = ev.RawJSON("payload", err.Payload)
		} else {
			ev = ev.Str("payload", truncate(err.Payload, maxLoggedPayload))
		}
	}
	ev.Msg("api request rejected")
}

// MultiReporter fans a report out to several reporters in order.
type MultiReporter []Reporter

func (m MultiReporter) Report(ctx context.Context, err *Error) {
	for _, r := range m {
		if r != nil {
			r.Report(ctx, err)
		}
	}
}

// AsyncReporter hands reports to a background worker through a bounded queue.
// Reports are dropped when the queue is full so callers never wait.
type AsyncReporter struct {
	next    Reporter
	queue   chan asyncReport
	dropped func(*Error)

	closeOnce sync.Once
	done      chan struct{}
}

type asyncReport struct {
	ctx context.Context
	err *Error
}

type AsyncOption func(*AsyncReporter)

// WithDropHandler is called, on the reporting goroutine, for every dropped report.
func WithDropHandler(f func(*Error)) AsyncOption {
	return func(a *AsyncReporter) {
		a.dropped = f
	}
}

func NewAsyncReporter(next Reporter, queueSize int, opts ...AsyncOption) *AsyncReporter {
	if queueSize <= 0 {
		queueSize = 64
	}
	a := &AsyncReporter{
		next:  next,
		queue: make(chan asyncReport, queueSize),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	go a.run()
	return a
}

func (a *AsyncReporter) run() {
	defer close(a.done)
	for r := range a.queue {
		a.next.Report(r.ctx, r.err)
	}
}

func (a *AsyncReporter) Report(ctx context.Context, err *Error) {
	select {
	case a.queue <- asyncReport{ctx: context.WithoutCancel(ctx), err: err}:
	default:
		if a.dropped != nil {
			a.dropped(err)
		}
	}
}

// Close stops accepting reports and waits until queued ones have been delivered
// or ctx is done. Report must not be called after Close.
func (a *AsyncReporter) Close(ctx context.Context) error {
	a.closeOnce.Do(func() { close(a.queue) })
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
