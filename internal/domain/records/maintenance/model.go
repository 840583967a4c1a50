package maintenance

import (
	"context"
	"strings"
	"time"

	"setflow/internal/core/apperror"
	"setflow/internal/core/entity"
	"setflow/internal/core/id"
	"setflow/internal/core/types"
)

type Type string

const (
	TypeRepair     Type = "repair"
	TypeInspection Type = "inspection"
	TypeUpgrade    Type = "upgrade"
	TypeCleaning   Type = "cleaning"
	TypeOther      Type = "other"
)

func (t Type) Valid() bool {
	switch t {
	case TypeRepair, TypeInspection, TypeUpgrade, TypeCleaning, TypeOther:
		return true
	}
	return false
}

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusScheduled:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func (s Status) CanMoveTo(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Open reports whether the job still needs work.
func (s Status) Open() bool {
	return s == StatusScheduled || s == StatusInProgress
}

// Maintenance is one service job on an asset.
type Maintenance struct {
	entity.Record

	AssetID     string      `db:"asset_id" json:"assetId"`
	Type        Type        `db:"type" json:"type"`
	Description string      `db:"description" json:"description"`
	Vendor      string      `db:"vendor" json:"vendor,omitempty"`
	Cost        types.Money `db:"cost" json:"cost"`
	Status      Status      `db:"status" json:"status"`
	StartedAt   *time.Time  `db:"started_at" json:"startedAt,omitempty"`
	CompletedAt *time.Time  `db:"completed_at" json:"completedAt,omitempty"`
}

func New(assetID string, t Type, date time.Time) *Maintenance {
	return &Maintenance{
		Record:  entity.NewRecord(date),
		AssetID: assetID,
		Type:    t,
		Status:  StatusScheduled,
	}
}

func (m *Maintenance) Validate(ctx context.Context) error {
	if err := m.Record.Validate(ctx); err != nil {
		return err
	}
	if _, err := id.Parse(m.AssetID); err != nil {
		return apperror.NewValidation("asset is required").WithDetail("field", "assetId")
	}
	if !m.Type.Valid() {
		return apperror.NewValidation("unknown maintenance type").WithDetail("field", "type")
	}
	if strings.TrimSpace(m.Description) == "" {
		return apperror.NewValidation("description is required").WithDetail("field", "description")
	}
	if m.Cost.IsNegative() {
		return apperror.NewValidation("cost cannot be negative").WithDetail("field", "cost")
	}
	return nil
}

// Overdue reports a scheduled job whose date is before asOf's day.
func (m *Maintenance) Overdue(asOf time.Time) bool {
	if m.Status != StatusScheduled {
		return false
	}
	y, mo, d := asOf.Date()
	return m.Date.Before(time.Date(y, mo, d, 0, 0, 0, 0, asOf.Location()))
}
