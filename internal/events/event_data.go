// Package events provides the in-process event bus used for optimistic
// cross-component updates. Events are ephemeral: emitted once, no persistence,
// no replay for late subscribers.
package events

import (
	"encoding/json"
	"time"
)

// EventType represents different event types
type EventType string

const (
	// BalanceDelta is broadcast after any transaction mutation so components
	// holding cached totals can apply an incremental adjustment instead of
	// refetching.
	BalanceDelta EventType = "BALANCE_DELTA"

	// SettingsChanged is emitted on every user preference update.
	SettingsChanged EventType = "SETTINGS_CHANGED"

	// RatesUpdated is emitted after a rate sync replaces the rate table.
	RatesUpdated EventType = "RATES_UPDATED"

	// CacheInvalidated is emitted when a resource cache is explicitly cleared.
	CacheInvalidated EventType = "CACHE_INVALIDATED"

	// ErrorOccurred carries non-fatal background errors for observability.
	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// MutationKind mirrors the change type behind a BalanceDelta event.
type MutationKind string

const (
	MutationInsert MutationKind = "INSERT"
	MutationUpdate MutationKind = "UPDATE"
	MutationDelete MutationKind = "DELETE"
)

// EventData is the interface that all event data types must implement.
// This allows for type-safe event data while maintaining flexibility.
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// BalanceDeltaData contains data for BalanceDelta events.
// Delta is the signed adjustment to apply to cached totals for the card
// (nil CardID = cash). Kind may be empty when the mutation type is unknown;
// consumers that need more than an incremental update do a full refresh on
// MutationInsert.
type BalanceDeltaData struct {
	Kind   MutationKind `json:"type,omitempty"`
	CardID *string      `json:"card_id"`
	Delta  float64      `json:"delta"`
}

// EventType returns the event type for BalanceDeltaData
func (d *BalanceDeltaData) EventType() EventType { return BalanceDelta }

// SettingsChangedData contains data for SettingsChanged events
type SettingsChangedData struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// EventType returns the event type for SettingsChangedData
func (d *SettingsChangedData) EventType() EventType { return SettingsChanged }

// RatesUpdatedData contains data for RatesUpdated events
type RatesUpdatedData struct {
	Pairs     int    `json:"pairs"`
	Source    string `json:"source,omitempty"`
	Timestamp string `json:"timestamp"`
}

// EventType returns the event type for RatesUpdatedData
func (d *RatesUpdatedData) EventType() EventType { return RatesUpdated }

// CacheInvalidatedData contains data for CacheInvalidated events
type CacheInvalidatedData struct {
	Resource string `json:"resource"`
}

// EventType returns the event type for CacheInvalidatedData
func (d *CacheInvalidatedData) EventType() EventType { return CacheInvalidated }

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType { return ErrorOccurred }

// Event represents a single emitted event with its typed payload.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// MarshalJSON customizes JSON serialization for Event
func (e *Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}

	return json.Marshal(aux)
}

// UnmarshalJSON customizes JSON deserialization for Event
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if len(aux.Data) > 0 {
		var eventData EventData
		switch aux.Type {
		case BalanceDelta:
			eventData = &BalanceDeltaData{}
		case SettingsChanged:
			eventData = &SettingsChangedData{}
		case RatesUpdated:
			eventData = &RatesUpdatedData{}
		case CacheInvalidated:
			eventData = &CacheInvalidatedData{}
		case ErrorOccurred:
			eventData = &ErrorEventData{}
		default:
			var rawData map[string]interface{}
			if err := json.Unmarshal(aux.Data, &rawData); err != nil {
				return err
			}
			e.Data = &GenericEventData{Type: aux.Type, Data: rawData}
			return nil
		}

		if err := json.Unmarshal(aux.Data, eventData); err != nil {
			return err
		}
		e.Data = eventData
	}

	return nil
}

// GenericEventData is a fallback for events that don't have a specific type
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

// EventType returns the event type for GenericEventData
func (d *GenericEventData) EventType() EventType { return d.Type }

// MarshalJSON customizes JSON serialization for GenericEventData
func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

// UnmarshalJSON customizes JSON deserialization for GenericEventData
func (d *GenericEventData) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Data)
}
