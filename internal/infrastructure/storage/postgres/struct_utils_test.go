package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"setflow/internal/core/entity"
	"setflow/internal/core/id"
)

type probeCatalog struct {
	entity.Catalog
	Description string        `db:"description"`
	Specs       entity.Values `db:"specifications"`
	Ignored     string        `db:"-"`
	Untagged    string
}

func TestExtractDBColumns_FollowsEmbedding(t *testing.T) {
	cols := ExtractDBColumns[probeCatalog]()

	assert.Equal(t, []string{
		"id", "deletion_mark", "version", "created_at", "updated_at",
		"code", "name", "parent_id", "is_folder",
		"description", "specifications",
	}, cols)
}

func TestStructToMap(t *testing.T) {
	parent := id.New().String()
	p := probeCatalog{
		Catalog: entity.Catalog{
			BaseEntity: entity.BaseEntity{ID: id.New(), Version: 3, CreatedAt: time.Now()},
			Code:       "LAPTOP",
			Name:       "Laptop",
			ParentID:   &parent,
		},
		Description: "portable computers",
		Specs:       entity.Values{"cpu": "i7"},
		Ignored:     "x",
	}

	m := StructToMap(&p)
	require.NotNil(t, m)

	assert.Equal(t, p.ID, m["id"])
	assert.Equal(t, 3, m["version"])
	assert.Equal(t, "LAPTOP", m["code"])
	assert.Equal(t, &parent, m["parent_id"])
	assert.Equal(t, "portable computers", m["description"])
	assert.Equal(t, entity.Values{"cpu": "i7"}, m["specifications"])
	assert.NotContains(t, m, "Ignored")
	assert.NotContains(t, m, "Untagged")
	assert.Len(t, m, 11)
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
	assert.Nil(t, StructToMap((*probeCatalog)(nil)))
}
