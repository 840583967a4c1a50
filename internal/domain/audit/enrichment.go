package audit

import (
	"context"

	appctx "setflow/internal/core/context"
	"setflow/internal/core/entity"
)

// StampCreated fills both authorship fields from the current user.
// Anonymous contexts leave a untouched.
func StampCreated(ctx context.Context, a *entity.Authored) {
	if uid := appctx.GetUserID(ctx); uid != "" && a != nil {
		a.CreatedBy = uid
		a.UpdatedBy = uid
	}
}

func StampUpdated(ctx context.Context, a *entity.Authored) {
	if uid := appctx.GetUserID(ctx); uid != "" && a != nil {
		a.UpdatedBy = uid
	}
}
