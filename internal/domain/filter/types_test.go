package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemValidate(t *testing.T) {
	tests := []struct {
		name    string
		item    Item
		wantErr bool
	}{
		{"eq", Item{Field: "status", Operator: Equal, Value: "available"}, false},
		{"null needs no value", Item{Field: "assigned_to", Operator: IsNull}, false},
		{"in list", Item{Field: "status", Operator: InList, Value: "available,assigned"}, false},
		{"empty in", Item{Field: "status", Operator: InList, Value: []any{}}, true},
		{"unknown operator", Item{Field: "status", Operator: "like", Value: "x"}, true},
		{"missing field", Item{Operator: Equal, Value: "x"}, true},
		{"missing value", Item{Field: "name", Operator: Contains}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValues(t *testing.T) {
	assert.Equal(t, []any{"a", "b"}, Values(" a, b ,"))
	assert.Equal(t, []any{"x"}, Values([]string{"x"}))
	assert.Equal(t, []any{42}, Values(42))
	assert.Nil(t, Values(""))
}
