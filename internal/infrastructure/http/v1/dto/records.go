package dto

import (
	"time"

	"setflow/internal/core/types"
)

type CompleteMaintenanceRequest struct {
	Cost  *types.Money `json:"cost"`
	Notes string       `json:"notes"`
}

type ReturnAssignmentRequest struct {
	ReturnedAt *time.Time `json:"returnedAt"`
	Notes      string     `json:"notes"`
}
