package registry

import (
	"time"

	"github.com/arcadia-launcher/arcadia/backend/internal/shared/types"
)

// EventType discriminates registry events
type EventType string

const (
	EventStateChanged   EventType = "state_changed"
	EventHookDispatched EventType = "hook_dispatched"
)

// Event describes an observable registry transition, published to the
// event sink (the WebSocket broadcaster in the running server)
type Event struct {
	Type        EventType            `json:"type"`
	ExtensionID string               `json:"extension_id,omitempty"`
	State       types.LifecycleState `json:"state,omitempty"`
	Hook        string               `json:"hook,omitempty"`
	Reason      string               `json:"reason,omitempty"`
	Time        time.Time            `json:"time"`
}

// EventSink receives registry events. Publish must not block.
type EventSink interface {
	Publish(Event)
}

type nopSink struct{}

func (nopSink) Publish(Event) {}
