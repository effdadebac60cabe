package apiclient_test

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jrsteele09/zhancare-client/apiclient"
	"github.com/jrsteele09/zhancare-client/apiclient/mocks"
)

func sampleError() *apiclient.Error {
	return &apiclient.Error{
		Kind:      apiclient.KindStatus,
		Method:    "POST",
		Path:      "/consultations/",
		Status:    400,
		Payload:   []byte(`{"symptoms":["This field is required."]}`),
		RequestID: "req-1",
	}
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	r := apiclient.NewLogReporter(zerolog.New(&buf))

	r.Report(context.Background(), sampleError())

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "status", line["kind"])
	assert.Equal(t, "POST", line["method"])
	assert.Equal(t, "/consultations/", line["path"])
	assert.EqualValues(t, 400, line["status"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, map[string]any{"symptoms": []any{"This field is required."}}, line["payload"])

	t.Run("non JSON payload is logged as a string", func(t *testing.T) {
		buf.Reset()
		e := sampleError()
		e.Status = 502
		e.Payload = []byte("<html>Bad Gateway</html>")
		r.Report(context.Background(), e)

		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "error", line["level"])
		assert.Equal(t, "<html>Bad Gateway</html>", line["payload"])
	})
}

func TestMultiReporter(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := mocks.NewMockReporter(ctrl)
	second := mocks.NewMockReporter(ctrl)
	e := sampleError()

	gomock.InOrder(
		first.EXPECT().Report(gomock.Any(), e),
		second.EXPECT().Report(gomock.Any(), e),
	)

	apiclient.MultiReporter{first, nil, second}.Report(context.Background(), e)
}

type blockingReporter struct {
	release chan struct{}
	mu      sync.Mutex
	got     []*apiclient.Error
}

func (b *blockingReporter) Report(_ context.Context, err *apiclient.Error) {
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, err)
}

func (b *blockingReporter) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.got)
}

func TestAsyncReporter(t *testing.T) {
	t.Run("delivers queued reports before Close returns", func(t *testing.T) {
		next := &blockingReporter{release: make(chan struct{})}
		close(next.release)
		r := apiclient.NewAsyncReporter(next, 8)

		for i := 0; i < 5; i++ {
			r.Report(context.Background(), sampleError())
		}
		require.NoError(t, r.Close(context.Background()))
		assert.Equal(t, 5, next.count())
	})

	t.Run("drops when the queue is full", func(t *testing.T) {
		next := &blockingReporter{release: make(chan struct{})}
		var dropped int
		r := apiclient.NewAsyncReporter(next, 1, apiclient.WithDropHandler(func(*apiclient.Error) { dropped++ }))

		// At most one report is held by the worker and one by the queue.
		for i := 0; i < 3; i++ {
			r.Report(context.Background(), sampleError())
		}
		assert.GreaterOrEqual(t, dropped, 1)

		close(next.release)
		require.NoError(t, r.Close(context.Background()))
		assert.Equal(t, 3-dropped, next.count())
	})

	t.Run("close honours the context", func(t *testing.T) {
		next := &blockingReporter{release: make(chan struct{})}
		r := apiclient.NewAsyncReporter(next, 4)
		r.Report(context.Background(), sampleError())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, r.Close(ctx), context.DeadlineExceeded)
		close(next.release)
	})

	t.Run("a cancelled request context still reaches the reporter", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		next := mocks.NewMockReporter(ctrl)
		next.EXPECT().Report(gomock.Any(), gomock.Any()).Do(func(ctx context.Context, _ *apiclient.Error) {
			assert.NoError(t, ctx.Err())
		})
		r := apiclient.NewAsyncReporter(next, 1)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r.Report(ctx, sampleError())
		require.NoError(t, r.Close(context.Background()))
	})
}

func TestSentryReporter(t *testing.T) {
	var (
		mu     sync.Mutex
		events []*sentry.Event
	)
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn: "https://public@sentry.example.com/1",
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, event)
			return nil
		},
	})
	require.NoError(t, err)
	hub := sentry.NewHub(client, sentry.NewScope())

	apiclient.NewSentryReporter(hub).Report(context.Background(), sampleError())

	captured := func() []*sentry.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]*sentry.Event(nil), events...)
	}

	require.Len(t, captured(), 1)
	ev := captured()[0]
	assert.Equal(t, "status", ev.Tags["api.kind"])
	assert.Equal(t, "POST", ev.Tags["api.method"])
	assert.Equal(t, "/consultations/", ev.Tags["api.path"])
	require.Contains(t, ev.Contexts, "api_request")
	assert.Equal(t, 400, ev.Contexts["api_request"]["status"])
	assert.Equal(t, "req-1", ev.Contexts["api_request"]["request_id"])
	assert.NotEmpty(t, ev.Exception)

	// The scope used for the report does not leak into the hub.
	hub.CaptureMessage("after")
	require.Len(t, captured(), 2)
	assert.NotContains(t, captured()[1].Tags, "api.kind")
}
