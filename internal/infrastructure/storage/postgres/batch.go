package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// ExecBatch sends all queued statements in one round trip on the current
// transaction (or pool) and returns the total number of affected rows.
func ExecBatch(ctx context.Context, b *pgx.Batch) (int64, error) {
	if b.Len() == 0 {
		return 0, nil
	}
	q, err := QuerierFromContext(ctx)
	if err != nil {
		return 0, err
	}
	sender, ok := q.(batchSender)
	if !ok {
		return 0, fmt.Errorf("querier %T does not support batches", q)
	}

	results := sender.SendBatch(ctx, b)
	defer results.Close()

	var affected int64
	for i := 0; i < b.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			return affected, fmt.Errorf("batch statement %d: %w", i, err)
		}
		affected += tag.RowsAffected()
	}
	return affected, nil
}
