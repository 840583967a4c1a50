package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValues_ScanKeepsNumbersExact(t *testing.T) {
	var v Values
	require.NoError(t, v.Scan([]byte(`{"ram": 16, "cpu": "i7", "ssd": true, "price": 1234.50}`)))

	assert.Equal(t, json.Number("16"), v["ram"])
	assert.Equal(t, "16", v.String("ram"))
	assert.Equal(t, "i7", v.String("cpu"))
	assert.Equal(t, "true", v.String("ssd"))
	assert.Equal(t, "1234.50", v.String("price"))
	assert.Equal(t, "", v.String("missing"))
}

func TestValues_NilRoundTrip(t *testing.T) {
	var v Values
	raw, err := v.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), raw)

	require.NoError(t, v.Scan(nil))
	assert.Nil(t, v)
}

func TestValues_CloneIsIndependent(t *testing.T) {
	v := Values{"cpu": "i7"}
	c := v.Clone()
	c["cpu"] = "i9"

	assert.Equal(t, "i7", v["cpu"])
	assert.Equal(t, []string{"cpu"}, c.Keys())
}

func TestFiles_RoundTrip(t *testing.T) {
	in := Files{{Name: "invoice.pdf", URL: "http://x/uploads/a.pdf", Size: 2048, Type: "application/pdf"}}
	raw, err := in.Value()
	require.NoError(t, err)

	var out Files
	require.NoError(t, out.Scan(raw))
	assert.Equal(t, in, out)
}
