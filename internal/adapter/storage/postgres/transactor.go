package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// purchaseTxOptions is used for every unit of work. Pair serialization comes
// from the advisory lock and row locks, not from the isolation level.
var purchaseTxOptions = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// Transactor hands out database transactions to the services.
type Transactor struct {
	pool Pool
}

func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin opens a READ COMMITTED transaction. Locks taken inside it are
// released on Commit or Rollback.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.BeginTx(ctx, purchaseTxOptions)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}
