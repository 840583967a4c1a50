package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSlug(t *testing.T) {
	s, err := NormalizeSlug("  Acme_IT ")
	require.NoError(t, err)
	assert.Equal(t, "acme_it", s)
	assert.Equal(t, "sf_acme_it", DBNameFor(s))

	for _, bad := range []string{"", "1acme", "acme-corp", "a"} {
		_, err := NormalizeSlug(bad)
		assert.Error(t, err, bad)
	}
}

func TestPlanAssetLimit(t *testing.T) {
	assert.Equal(t, int64(250), PlanStarter.AssetLimit())
	assert.Equal(t, int64(5000), PlanStandard.AssetLimit())
	assert.Equal(t, int64(0), PlanEnterprise.AssetLimit())
	assert.False(t, Plan("gold").Valid())
}

func TestTenantDSN(t *testing.T) {
	tn := &Tenant{DBHost: "db", DBPort: 5433, DBName: "sf_acme"}
	assert.Equal(t, "postgres://u:p@db:5433/sf_acme?sslmode=disable", tn.DSN("u", "p"))
}
