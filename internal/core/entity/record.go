package entity

import (
	"context"
	"time"

	"setflow/internal/core/apperror"
)

// Record is a dated, numbered business event such as a maintenance job or
// an asset hand-out.
type Record struct {
	BaseEntity
	Authored

	Number string    `db:"number" json:"number"`
	Date   time.Time `db:"date" json:"date"`
	Notes  string    `db:"notes" json:"notes,omitempty"`
}

func NewRecord(date time.Time) Record {
	if date.IsZero() {
		date = time.Now().UTC()
	}
	return Record{BaseEntity: NewBaseEntity(), Date: date}
}

func (r *Record) Validate(ctx context.Context) error {
	if r.Date.IsZero() {
		return apperror.NewValidation("date is required").WithDetail("field", "date")
	}
	return nil
}
