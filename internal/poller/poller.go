// Package poller implements the client side of the status reconciliation
// contract: read the transaction status on a fixed interval until it is
// terminal or the attempt budget runs out.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lexpay/internal/core/domain"
	"lexpay/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultInterval    = 10 * time.Second
	DefaultMaxAttempts = 30
)

var (
	// ErrPollTimeout is returned when the status is still open after MaxAttempts reads.
	ErrPollTimeout = errors.New("poller: transaction still open after max attempts")
	// ErrNotFound is returned when the server does not know the transaction.
	ErrNotFound = errors.New("poller: transaction not found")

	errStillOpen = errors.New("transaction still open")
)

// Snapshot is the part of a status read the poller cares about.
type Snapshot struct {
	ID            uuid.UUID
	Status        domain.TransactionStatus
	PaymentURL    string
	DialCode      string
	FailureReason string
	CancelReason  string
}

// StatusFetcher reads one status snapshot.
type StatusFetcher interface {
	Fetch(ctx context.Context, id uuid.UUID) (*Snapshot, error)
}

// Poller waits for a transaction to reach a terminal status.
type Poller struct {
	Fetcher     StatusFetcher
	Interval    time.Duration
	MaxAttempts int
	Log         zerolog.Logger

	// OnUpdate, if set, is called after every successful read.
	OnUpdate func(attempt int, snap *Snapshot)
}

// New creates a Poller, substituting defaults for non-positive settings.
func New(fetcher StatusFetcher, interval time.Duration, maxAttempts int, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Poller{
		Fetcher:     fetcher,
		Interval:    interval,
		MaxAttempts: maxAttempts,
		Log:         logger.Component(log, "poller"),
	}
}

// Wait polls until the transaction is completed, failed or cancelled. The
// last snapshot read is returned alongside ErrPollTimeout. Fetch errors
// count against the attempt budget; ErrNotFound stops immediately.
func (p *Poller) Wait(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	if p.MaxAttempts <= 0 {
		return nil, fmt.Errorf("poller: max attempts must be positive, got %d", p.MaxAttempts)
	}

	var last *Snapshot
	attempt := 0
	op := func() error {
		attempt++
		snap, err := p.Fetcher.Fetch(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			p.Log.Warn().Err(err).Int("attempt", attempt).Str("tx_id", id.String()).Msg("status read failed")
			return err
		}
		last = snap
		if p.OnUpdate != nil {
			p.OnUpdate(attempt, snap)
		}
		if snap.Status.IsTerminal() {
			return nil
		}
		return errStillOpen
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Interval), uint64(p.MaxAttempts-1)),
		ctx,
	)
	err := backoff.Retry(op, policy)
	switch {
	case err == nil:
		p.Log.Info().
			Str("tx_id", id.String()).
			Str("status", string(last.Status)).
			Int("attempts", attempt).
			Msg("transaction settled")
		return last, nil
	case ctx.Err() != nil:
		return last, ctx.Err()
	case errors.Is(err, errStillOpen):
		return last, ErrPollTimeout
	default:
		if attempt >= p.MaxAttempts && !errors.Is(err, ErrNotFound) {
			return last, fmt.Errorf("%w: last error: %v", ErrPollTimeout, err)
		}
		return last, err
	}
}
