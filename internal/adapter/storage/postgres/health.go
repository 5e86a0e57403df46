package postgres

import (
	"context"
	"errors"
	"time"
)

const healthTimeout = 2 * time.Second

var errSchemaMissing = errors.New("transactions table missing, run `lexpay migrate up`")

// HealthCheck reports PostgreSQL as healthy once it answers and the schema is in place.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	var migrated bool
	if err := h.pool.QueryRow(ctx, `SELECT to_regclass('public.transactions') IS NOT NULL`).Scan(&migrated); err != nil {
		return err
	}
	if !migrated {
		return errSchemaMissing
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgres"
}
