package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/HomeCherwe/wallet-engine/internal/events"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(bus *events.Bus) chi.Router {
	mgr := events.NewManager(bus, zerolog.Nop())
	r := chi.NewRouter()
	NewHandler(mgr, zerolog.Nop()).RegisterRoutes(r)
	return r
}

func TestHandleBalanceDelta(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	router := newTestRouter(bus)

	var received []*events.BalanceDeltaData
	bus.Subscribe(events.BalanceDelta, func(event *events.Event) {
		data, ok := event.Data.(*events.BalanceDeltaData)
		require.True(t, ok)
		received = append(received, data)
	})

	body := `{"type":"UPDATE","card_id":"card-1","delta":-150.5}`
	req := httptest.NewRequest("POST", "/events/balance-delta", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, received, 1)
	assert.Equal(t, events.MutationUpdate, received[0].Kind)
	require.NotNil(t, received[0].CardID)
	assert.Equal(t, "card-1", *received[0].CardID)
	assert.Equal(t, -150.5, received[0].Delta)
}

func TestHandleBalanceDelta_CashAndUnknownKind(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	router := newTestRouter(bus)

	var received []*events.BalanceDeltaData
	bus.Subscribe(events.BalanceDelta, func(event *events.Event) {
		received = append(received, event.Data.(*events.BalanceDeltaData))
	})

	// No card id and no mutation kind: a cash adjustment from a caller that
	// only knows the amount.
	body := `{"card_id":null,"delta":200}`
	req := httptest.NewRequest("POST", "/events/balance-delta", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, received, 1)
	assert.Equal(t, events.MutationKind(""), received[0].Kind)
	assert.Nil(t, received[0].CardID)
	assert.Equal(t, 200.0, received[0].Delta)
}

func TestHandleBalanceDelta_Invalid(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	router := newTestRouter(bus)

	emitted := 0
	bus.Subscribe(events.BalanceDelta, func(event *events.Event) { emitted++ })

	cases := []struct {
		name string
		body string
	}{
		{"missing delta", `{"type":"INSERT","card_id":"card-1"}`},
		{"bad kind", `{"type":"UPSERT","delta":10}`},
		{"malformed json", `{delta:`},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/events/balance-delta", strings.NewReader(c.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Zero(t, emitted)
}
