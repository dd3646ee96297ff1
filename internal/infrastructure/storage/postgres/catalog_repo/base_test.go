package catalog_repo

import (
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"produceledger/internal/core/apperror"
)

func newTestRepo() *BaseCatalogRepo[any] {
	return NewBaseCatalogRepo[any]("cat_test", "test", []string{"id", "name", "area"}, func() any { return nil })
}

func TestParseOrderBy(t *testing.T) {
	repo := newTestRepo()

	tests := []struct {
		in   string
		want string
	}{
		{"", "name ASC"},
		{"area", "area ASC"},
		{"-name", "name DESC"},
	}
	for _, tt := range tests {
		got, err := repo.parseOrderBy(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := repo.parseOrderBy("name; DROP TABLE cat_test")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestBaseSelect(t *testing.T) {
	repo := newTestRepo()

	sql, args, err := repo.baseSelect().Where(squirrel.Eq{"id": 7}).ToSql()

	require.NoError(t, err)
	assert.Equal(t, "SELECT id, name, area FROM cat_test WHERE id = $1", sql)
	assert.Equal(t, []any{7}, args)
}

func TestDated_DefaultOrder(t *testing.T) {
	repo := NewBaseCatalogRepo[any]("expenses", "expense", []string{"id", "date", "paid_to", "created_at"}, func() any { return nil }).
		Dated("date", "paid_to")

	got, err := repo.parseOrderBy("")

	require.NoError(t, err)
	assert.Equal(t, "date DESC, created_at DESC", got)
	assert.Equal(t, []string{"paid_to"}, repo.searchCols)
}
