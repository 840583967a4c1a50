// Package audit records who changed what. Services call Recorder inside
// their transaction; the postgres store persists entries to sys_audit.
package audit

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	"setflow/internal/core/id"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionStatus Action = "status"
)

// Entry is one audit line. Changes holds a Diff or a full snapshot.
type Entry struct {
	ID         id.ID           `db:"id" json:"id"`
	EntityType string          `db:"entity_type" json:"entityType"`
	EntityID   id.ID           `db:"entity_id" json:"entityId"`
	Action     Action          `db:"action" json:"action"`
	UserID     string          `db:"user_id" json:"userId,omitempty"`
	Changes    json.RawMessage `db:"changes" json:"changes,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}

type Recorder interface {
	Record(ctx context.Context, e Entry) error
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]Entry, error)
}

// Change pairs the previous and the new value of one key.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Diff returns the keys whose values differ between before and after.
func Diff(before, after map[string]any) map[string]Change {
	out := make(map[string]Change)
	for k, nv := range after {
		ov, ok := before[k]
		if !ok || !reflect.DeepEqual(ov, nv) {
			out[k] = Change{Old: ov, New: nv}
		}
	}
	for k, ov := range before {
		if _, ok := after[k]; !ok {
			out[k] = Change{Old: ov}
		}
	}
	return out
}

// Nop discards entries. Used where no tenant database is attached.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

func (Nop) History(context.Context, string, id.ID, int) ([]Entry, error) { return nil, nil }
