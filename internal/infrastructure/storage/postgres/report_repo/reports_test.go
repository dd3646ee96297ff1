package report_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"produceledger/internal/domain/reports"
)

func TestInRange(t *testing.T) {
	r := NewReportRepo()
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	sql, args, err := inRange(r.builder.Select("SUM(amount)").From("expenses"), "date", reports.Range{From: &from, To: &to}).ToSql()

	require.NoError(t, err)
	assert.Equal(t, "SELECT SUM(amount) FROM expenses WHERE date >= $1 AND date <= $2", sql)
	assert.Equal(t, []any{from, to}, args)
}

func TestInRange_Open(t *testing.T) {
	r := NewReportRepo()

	sql, args, err := inRange(r.builder.Select("1").From("damages"), "date", reports.Range{}).ToSql()

	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 FROM damages", sql)
	assert.Empty(t, args)
}
