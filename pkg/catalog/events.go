// ABOUTME: Change events published after catalog mutations commit
// ABOUTME: Backed by a typed go-events bus; emitting waits for every subscriber to return

package catalog

import (
	"context"
	"time"

	"github.com/asaidimu/go-events"
)

// EventType names a kind of catalog change
type EventType string

const (
	EventCollectionCreate EventType = "collection:create"
	EventCollectionDrop   EventType = "collection:drop"
	EventAttributeCreate  EventType = "attribute:create"
	EventAttributeRemove  EventType = "attribute:remove"
	EventAttributeRename  EventType = "attribute:rename"
	EventAttributeType    EventType = "attribute:type"
	EventConstraintAdd    EventType = "constraint:add"
	EventConstraintDrop   EventType = "constraint:drop"
	EventAccessUpdate     EventType = "access:update"
	EventMetadataUpdate   EventType = "metadata:update"
)

// Event describes one committed change
type Event struct {
	Type         EventType      `json:"type"`
	Collection   string         `json:"collection"`
	InternalName string         `json:"internalName"`
	User         string         `json:"user"`
	Attribute    string         `json:"attribute,omitempty"`
	Detail       map[string]any `json:"detail,omitempty"`
	Version      int64          `json:"version"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Handler receives events
type Handler func(ctx context.Context, e Event) error

// busConfig delivers events synchronously without retries so a failing
// subscriber never stalls the caller; bus diagnostics go to the catalog log
func (c *Catalog) busConfig() *events.EventBusConfig {
	cfg := events.DefaultConfig()
	cfg.MaxRetries = 0
	cfg.EnableExponentialBackoff = false
	cfg.Logger = c.log.Slog("events")
	cfg.ErrorHandler = func(err *events.EventError) {
		c.log.Error("event bus error").Str("event", err.EventName).Err(err.Err).Send()
	}
	cfg.DeadLetterHandler = func(_ context.Context, e events.Event, err error) {
		ev, _ := e.Payload.(Event)
		c.log.CatalogLogger(ev.InternalName).Debug("event dropped after subscriber failure").
			Str("event", e.Name).
			Err(err).
			Send()
	}
	cfg.TypeAssertionErrorHandler = func(name string, _, got any) {
		c.log.Warn("unexpected event payload").Str("event", name).Type("payload", got).Send()
	}
	return cfg
}

// Subscribe registers h for events of type t and returns the unsubscribe function
func (c *Catalog) Subscribe(t EventType, h Handler) func() {
	return c.bus.Subscribe(string(t), func(ctx context.Context, e Event) error {
		return h(ctx, e)
	})
}

func (c *Catalog) emit(events []Event) {
	for _, e := range events {
		c.bus.Emit(string(e.Type), e)
	}
}

func change(t EventType, attribute string, detail map[string]any) Event {
	return Event{Type: t, Attribute: attribute, Detail: detail}
}
