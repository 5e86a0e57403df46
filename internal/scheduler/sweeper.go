// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"lexpay/internal/core/ports"
	"lexpay/pkg/logger"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

const sweepTimeout = time.Minute

// GrantSweeper periodically revokes access grants whose expiry has passed.
type GrantSweeper struct {
	sched  gocron.Scheduler
	access ports.AccessService
	log    zerolog.Logger
}

// NewGrantSweeper registers the sweep job. Runs never overlap: a run that
// is still going when the next one is due pushes it back.
func NewGrantSweeper(access ports.AccessService, interval time.Duration, log zerolog.Logger, opts ...gocron.SchedulerOption) (*GrantSweeper, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("grant sweep interval must be positive, got %s", interval)
	}
	sched, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	s := &GrantSweeper{
		sched:  sched,
		access: access,
		log:    logger.Component(log, "grant_sweeper"),
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.runScheduled),
		gocron.WithName("revoke-expired-grants"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("registering sweep job: %w", err)
	}
	return s, nil
}

// Start begins running the job in the background.
func (s *GrantSweeper) Start() {
	s.sched.Start()
	s.log.Info().Int("jobs", len(s.sched.Jobs())).Msg("grant sweeper started")
}

// Shutdown stops the scheduler and waits for a running sweep to finish.
func (s *GrantSweeper) Shutdown() error {
	return s.sched.Shutdown()
}

// RunOnce performs a single sweep.
func (s *GrantSweeper) RunOnce(ctx context.Context) (int64, error) {
	return s.access.RevokeExpired(ctx)
}

func (s *GrantSweeper) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	n, err := s.RunOnce(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("grant sweep failed")
		return
	}
	s.log.Debug().Int64("revoked", n).Msg("grant sweep finished")
}
