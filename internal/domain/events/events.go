// Package events describes domain events written to the transactional
// outbox and relayed by the worker.
package events

import (
	"context"

	"setflow/internal/core/id"
)

const (
	AssetCreated       = "asset.created"
	AssetUpdated       = "asset.updated"
	AssetDeleted       = "asset.deleted"
	AssetStatusChanged = "asset.status_changed"

	MaintenanceCreated   = "maintenance.created"
	MaintenanceStarted   = "maintenance.started"
	MaintenanceCompleted = "maintenance.completed"
	MaintenanceCancelled = "maintenance.cancelled"

	AssetAssigned = "assignment.created"
	AssetReturned = "assignment.returned"

	TemplateSaved = "category.template_saved"
)

type Event struct {
	AggregateType string
	AggregateID   id.ID
	Type          string
	Payload       any
}

// Publisher must be called inside the transaction that made the change.
type Publisher interface {
	Publish(ctx context.Context, evs ...Event) error
}

// Discard drops events.
type Discard struct{}

func (Discard) Publish(context.Context, ...Event) error { return nil }

// Collector keeps published events in memory. Tests use it.
type Collector struct {
	Events []Event
}

func (c *Collector) Publish(_ context.Context, evs ...Event) error {
	c.Events = append(c.Events, evs...)
	return nil
}

// Types returns the event types in publish order.
func (c *Collector) Types() []string {
	out := make([]string, len(c.Events))
	for i, e := range c.Events {
		out[i] = e.Type
	}
	return out
}
