package apiclient

import (
	"context"
	"encoding/json"

	"github.com/getsentry/sentry-go"
)

// SentryReporter captures rejections as Sentry exceptions. The Sentry transport
// buffers events and sends them from its own goroutine.
type SentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter reports through hub, or the current hub when nil.
func NewSentryReporter(hub *sentry.Hub) *SentryReporter {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &SentryReporter{hub: hub}
}

func (r *SentryReporter) Report(_ context.Context, err *Error) {
	hub := r.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("api.kind", string(err.Kind))
		scope.SetTag("api.method", err.Method)
		scope.SetTag("api.path", err.Path)
		scope.SetContext("api_request", sentry.Context{
			"method":     err.Method,
			"url":        err.Path,
			"status":     err.Status,
			"request_id": err.RequestID,
			"data":       payloadForReport(err.Payload),
		})
		hub.CaptureException(err)
	})
}

func payloadForReport(payload []byte) any {
	if len(payload) == 0 {
		return nil
	}
	var v any
	if json.Unmarshal(payload, &v) == nil {
		return v
	}
	return truncate(payload, maxLoggedPayload)
}
