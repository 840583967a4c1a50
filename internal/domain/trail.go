package domain

import (
	"context"
	"encoding/json"
	"fmt"

	"setflow/internal/core/apperror"
	"setflow/internal/core/id"
	"setflow/internal/core/tenant"
	"setflow/internal/core/tx"
	"setflow/internal/domain/audit"
	"setflow/internal/domain/events"
)

// InTx runs fn in m, or in the tenant's transaction manager from ctx when m
// is nil.
func InTx(ctx context.Context, m tx.Manager, fn func(ctx context.Context) error) error {
	if m == nil {
		var err error
		if m, err = tenant.GetTxManager(ctx); err != nil {
			return apperror.NewInternal(err).WithDetail("missing", "tx_manager")
		}
	}
	return m.RunInTransaction(ctx, fn)
}

// Trail writes audit entries and outbox events for one entity type.
// Nil collaborators are skipped.
type Trail struct {
	Audit  audit.Recorder
	Events events.Publisher
	Entity string
}

// Write records one change. before or after may be nil; an empty eventType
// skips the event.
func (t Trail) Write(ctx context.Context, entityID id.ID, action audit.Action, before, after any, eventType string) error {
	if t.Audit != nil {
		changes, err := changeSet(action, before, after)
		if err != nil {
			return err
		}
		if err := t.Audit.Record(ctx, audit.Entry{
			EntityType: t.Entity,
			EntityID:   entityID,
			Action:     action,
			Changes:    changes,
		}); err != nil {
			return fmt.Errorf("audit %s: %w", t.Entity, err)
		}
	}
	if eventType == "" || t.Events == nil {
		return nil
	}
	payload := after
	if payload == nil {
		payload = map[string]any{"id": entityID}
	}
	return t.Events.Publish(ctx, events.Event{
		AggregateType: t.Entity,
		AggregateID:   entityID,
		Type:          eventType,
		Payload:       payload,
	})
}

func changeSet(action audit.Action, before, after any) (json.RawMessage, error) {
	switch action {
	case audit.ActionCreate:
		return json.Marshal(after)
	case audit.ActionDelete:
		return json.Marshal(before)
	}
	b, err := Snapshot(before)
	if err != nil {
		return nil, err
	}
	a, err := Snapshot(after)
	if err != nil {
		return nil, err
	}
	return json.Marshal(audit.Diff(b, a))
}

// Snapshot renders v as a generic JSON map.
func Snapshot(v any) (map[string]any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return out, nil
}
