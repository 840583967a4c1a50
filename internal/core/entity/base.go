// Package entity holds the building blocks shared by every persisted type.
package entity

import (
	"context"
	"time"

	"setflow/internal/core/id"
)

// Validatable checks in-memory invariants. It never touches the database.
type Validatable interface {
	Validate(ctx context.Context) error
}

// BaseEntity is embedded by every row type.
type BaseEntity struct {
	ID           id.ID     `db:"id" json:"id"`
	DeletionMark bool      `db:"deletion_mark" json:"deletionMark"`
	Version      int       `db:"version" json:"version"` // optimistic lock
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

func NewBaseEntity() BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{
		ID:        id.New(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (b *BaseEntity) MarkDeleted() { b.DeletionMark = true }

// Touch bumps UpdatedAt. The repository owns Version.
func (b *BaseEntity) Touch() {
	b.UpdatedAt = time.Now().UTC()
}

// Authored adds who created and last changed a row.
type Authored struct {
	CreatedBy string `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy string `db:"updated_by" json:"updatedBy,omitempty"`
}

func (b *BaseEntity) GetID() id.ID { return b.ID }

func (b *BaseEntity) GetVersion() int { return b.Version }

// Stamp records the version and update time the database assigned.
func (b *BaseEntity) Stamp(version int, updatedAt time.Time) {
	b.Version = version
	b.UpdatedAt = updatedAt
}
