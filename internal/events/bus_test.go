package events

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBus() *Bus {
	return NewBus(zerolog.New(nil).Level(zerolog.Disabled))
}

func TestEmitDeliversInRegistrationOrder(t *testing.T) {
	bus := testBus()

	var order []int
	bus.Subscribe(BalanceDelta, func(e *Event) { order = append(order, 1) })
	bus.Subscribe(BalanceDelta, func(e *Event) { order = append(order, 2) })
	bus.Subscribe(BalanceDelta, func(e *Event) { order = append(order, 3) })

	bus.Emit(BalanceDelta, "test", &BalanceDeltaData{Delta: -10})

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestEmitOnlyMatchingType(t *testing.T) {
	bus := testBus()

	calls := 0
	bus.Subscribe(SettingsChanged, func(e *Event) { calls++ })

	bus.Emit(BalanceDelta, "test", &BalanceDeltaData{Delta: 5})
	assert.Equal(t, 0, calls)

	bus.Emit(SettingsChanged, "test", &SettingsChangedData{Key: "theme"})
	assert.Equal(t, 1, calls)
}

func TestPanickingHandlerDoesNotStopDelivery(t *testing.T) {
	bus := testBus()

	var reached bool
	bus.Subscribe(BalanceDelta, func(e *Event) { panic("boom") })
	bus.Subscribe(BalanceDelta, func(e *Event) { reached = true })

	assert.NotPanics(t, func() {
		bus.Emit(BalanceDelta, "test", &BalanceDeltaData{Delta: 1})
	})
	assert.True(t, reached)
}

func TestUnsubscribe(t *testing.T) {
	bus := testBus()

	calls := 0
	unsub := bus.Subscribe(BalanceDelta, func(e *Event) { calls++ })

	bus.Emit(BalanceDelta, "test", &BalanceDeltaData{})
	unsub()
	unsub() // second call is a no-op
	bus.Emit(BalanceDelta, "test", &BalanceDeltaData{})

	assert.Equal(t, 1, calls)
}

func TestSubscribeAllSeesEveryType(t *testing.T) {
	bus := testBus()

	var seen []EventType
	bus.SubscribeAll(func(e *Event) { seen = append(seen, e.Type) })

	bus.Emit(BalanceDelta, "test", &BalanceDeltaData{})
	bus.Emit(RatesUpdated, "test", &RatesUpdatedData{Pairs: 3})

	assert.Equal(t, []EventType{BalanceDelta, RatesUpdated}, seen)
}

func TestEmitAfterClose(t *testing.T) {
	bus := testBus()

	calls := 0
	bus.Subscribe(BalanceDelta, func(e *Event) { calls++ })
	bus.Close()
	bus.Emit(BalanceDelta, "test", &BalanceDeltaData{})

	assert.Equal(t, 0, calls)
}

func TestEventJSONRoundTrip(t *testing.T) {
	cardID := "card-1"
	var captured *Event
	bus := testBus()
	bus.Subscribe(BalanceDelta, func(e *Event) { captured = e })
	bus.Emit(BalanceDelta, "transactions", &BalanceDeltaData{
		Kind:   MutationInsert,
		CardID: &cardID,
		Delta:  -150.25,
	})
	require.NotNil(t, captured)

	raw, err := json.Marshal(captured)
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(raw, &decoded))

	data, ok := decoded.Data.(*BalanceDeltaData)
	require.True(t, ok)
	assert.Equal(t, MutationInsert, data.Kind)
	require.NotNil(t, data.CardID)
	assert.Equal(t, "card-1", *data.CardID)
	assert.Equal(t, -150.25, data.Delta)
}
