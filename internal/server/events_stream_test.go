package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HomeCherwe/wallet-engine/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamRecorder is a flushable ResponseWriter safe for reading after the
// handler goroutine returns. Each Flush signals the test via the flushed
// channel so it can sequence emits against writes.
type streamRecorder struct {
	mu      sync.Mutex
	header  http.Header
	body    bytes.Buffer
	status  int
	flushed chan struct{}
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{
		header:  make(http.Header),
		status:  http.StatusOK,
		flushed: make(chan struct{}, 16),
	}
}

func (r *streamRecorder) Header() http.Header { return r.header }

func (r *streamRecorder) WriteHeader(status int) { r.status = status }

func (r *streamRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.Write(p)
}

func (r *streamRecorder) Flush() {
	select {
	case r.flushed <- struct{}{}:
	default:
	}
}

func (r *streamRecorder) waitFlush(t *testing.T) {
	t.Helper()
	select {
	case <-r.flushed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream flush")
	}
}

func (r *streamRecorder) bodyString() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.String()
}

// sseMessages decodes every "data: {...}" line in the recorded body.
func (r *streamRecorder) sseMessages(t *testing.T) []map[string]interface{} {
	t.Helper()

	var messages []map[string]interface{}
	for _, line := range strings.Split(r.bodyString(), "\n") {
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(payload), &msg))
		messages = append(messages, msg)
	}
	return messages
}

func serveStream(t *testing.T, h *EventsStreamHandler, target string) (*streamRecorder, context.CancelFunc, chan struct{}) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, target, nil).WithContext(ctx)
	rec := newStreamRecorder()

	done := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, req)
		close(done)
	}()

	// First flush is the connection message.
	rec.waitFlush(t)
	return rec, cancel, done
}

func TestEventsStream_HeadersAndConnectedMessage(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	h := NewEventsStreamHandler(bus, zerolog.Nop())

	rec, cancel, done := serveStream(t, h, "/api/events/stream")
	cancel()
	<-done

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))

	messages := rec.sseMessages(t)
	require.NotEmpty(t, messages)
	assert.Equal(t, "connected", messages[0]["type"])
}

func TestEventsStream_DeliversBusEvents(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	h := NewEventsStreamHandler(bus, zerolog.Nop())

	rec, cancel, done := serveStream(t, h, "/api/events/stream")

	bus.Emit(events.RatesUpdated, "currency", &events.RatesUpdatedData{
		Pairs:     3,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	rec.waitFlush(t)

	cancel()
	<-done

	messages := rec.sseMessages(t)
	require.Len(t, messages, 2)
	assert.Equal(t, string(events.RatesUpdated), messages[1]["type"])
	assert.Equal(t, "currency", messages[1]["module"])

	data, ok := messages[1]["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), data["pairs"])
}

func TestEventsStream_TypesFilter(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	h := NewEventsStreamHandler(bus, zerolog.Nop())

	rec, cancel, done := serveStream(t, h, "/api/events/stream?types=RATES_UPDATED")

	// Not in the filter, so never subscribed and never written.
	bus.Emit(events.SettingsChanged, "settings", &events.SettingsChangedData{Key: "lang", Value: "uk"})

	bus.Emit(events.RatesUpdated, "currency", &events.RatesUpdatedData{
		Pairs:     1,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	rec.waitFlush(t)

	cancel()
	<-done

	messages := rec.sseMessages(t)
	require.Len(t, messages, 2)
	assert.Equal(t, string(events.RatesUpdated), messages[1]["type"])
	assert.NotContains(t, rec.bodyString(), string(events.SettingsChanged))
}

func TestEventsStream_RequiresFlusher(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	h := NewEventsStreamHandler(bus, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/events/stream", nil)
	rec := &nonFlushingWriter{header: make(http.Header)}
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.status)
}

type nonFlushingWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func (w *nonFlushingWriter) Header() http.Header         { return w.header }
func (w *nonFlushingWriter) WriteHeader(status int)      { w.status = status }
func (w *nonFlushingWriter) Write(p []byte) (int, error) { return w.body.Write(p) }
