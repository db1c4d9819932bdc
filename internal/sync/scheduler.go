package sync

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/nhle/mailledger/internal/logger"
	"github.com/nhle/mailledger/internal/model"
)

// Syncer runs a sync pass for one account classification.
type Syncer interface {
	Sync(ctx context.Context, t model.AccountType, delta bool) (Result, error)
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// Scheduler runs delta syncs of every classification on a cron
// schedule. Accounts never synced get a full window.
type Scheduler struct {
	cron     *cron.Cron
	syncer   Syncer
	schedule string
	log      zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewScheduler creates a scheduler for the given cron spec, e.g.
// "@every 24h" or "0 6 * * *".
func NewScheduler(syncer Syncer, schedule string, log zerolog.Logger) *Scheduler {
	log = logger.Component(log, "scheduler")
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{log: log})))
	return &Scheduler{
		cron:     c,
		syncer:   syncer,
		schedule: schedule,
		log:      log,
	}
}

// Start registers the sync job and starts the cron scheduler. When
// runNow is set a pass starts immediately in the background.
func (s *Scheduler) Start(ctx context.Context, runNow bool) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if _, err := s.cron.AddFunc(s.schedule, s.RunOnce); err != nil {
		s.cancel()
		return fmt.Errorf("scheduling sync %q: %w", s.schedule, err)
	}
	s.log.Info().Str("schedule", s.schedule).Msg("scheduled account sync")

	s.cron.Start()
	if runNow {
		go s.RunOnce()
	}
	return nil
}

// RunOnce syncs every classification in turn.
func (s *Scheduler) RunOnce() {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, t := range model.SyncableAccountTypes {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.syncer.Sync(ctx, t, true); err != nil {
			s.log.Error().Err(err).Str("type", string(t)).Msg("scheduled sync failed")
		}
	}
}

// Stop stops the scheduler and cancels running passes. The returned
// context is done once running jobs have returned.
func (s *Scheduler) Stop() context.Context {
	if s.cancel != nil {
		s.cancel()
	}
	return s.cron.Stop()
}
