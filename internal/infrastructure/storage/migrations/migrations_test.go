package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource_PairsUpAndDown(t *testing.T) {
	for _, target := range []Target{Meta, Tenant} {
		sub, err := Source(target)
		require.NoError(t, err)

		ups, err := fs.Glob(sub, "*.up.sql")
		require.NoError(t, err)
		downs, err := fs.Glob(sub, "*.down.sql")
		require.NoError(t, err)

		assert.NotEmpty(t, ups, target)
		assert.Len(t, downs, len(ups), target)
	}
}

func TestSource_Unknown(t *testing.T) {
	_, err := Source("archive")
	assert.Error(t, err)
}

func TestDriverURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/pl_acme?sslmode=disable", driverURL("postgres://u:p@db:5432/pl_acme?sslmode=disable"))
	assert.Equal(t, "pgx5://u@db/x", driverURL("postgresql://u@db/x"))
	assert.Equal(t, "pgx5://already", driverURL("pgx5://already"))
}
