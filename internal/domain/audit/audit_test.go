package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	appctx "setflow/internal/core/context"
	"setflow/internal/core/entity"
)

func TestDiff(t *testing.T) {
	before := map[string]any{"name": "X1", "status": "available", "notes": "old"}
	after := map[string]any{"name": "X1", "status": "assigned", "vendor": "Dell"}

	d := Diff(before, after)

	assert.Len(t, d, 3)
	assert.Equal(t, Change{Old: "available", New: "assigned"}, d["status"])
	assert.Equal(t, Change{New: "Dell"}, d["vendor"])
	assert.Equal(t, Change{Old: "old"}, d["notes"])
	assert.NotContains(t, d, "name")
}

func TestDiff_NestedMaps(t *testing.T) {
	before := map[string]any{"specs": map[string]any{"cpu": "i7"}}
	after := map[string]any{"specs": map[string]any{"cpu": "i7"}}
	assert.Empty(t, Diff(before, after))
}

func TestStamp(t *testing.T) {
	var a entity.Authored
	StampCreated(context.Background(), &a)
	assert.Empty(t, a.CreatedBy)

	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u1"})
	StampCreated(ctx, &a)
	assert.Equal(t, "u1", a.CreatedBy)
	assert.Equal(t, "u1", a.UpdatedBy)

	ctx = appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u2"})
	StampUpdated(ctx, &a)
	assert.Equal(t, "u1", a.CreatedBy)
	assert.Equal(t, "u2", a.UpdatedBy)
}
