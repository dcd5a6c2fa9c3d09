// Package jobs runs the periodic housekeeping tasks. Neither job touches
// swap requests or item status.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/iliyamo/rewear/internal/config"
	"github.com/iliyamo/rewear/internal/repository"
	"github.com/iliyamo/rewear/internal/service"
)

const jobTimeout = time.Minute

// Reporter produces the activity report logged once a day.
type Reporter interface {
	Reports(ctx context.Context, periodDays int) (service.Report, error)
}

// Scheduler owns the cron instance and the job dependencies.
type Scheduler struct {
	cron    *cron.Cron
	tokens  repository.TokenRepository
	reports Reporter
	log     *zap.Logger
	now     func() time.Time
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.s.Errorw(msg, append(kv, "error", err)...)
}

// New registers both jobs on their configured schedules. A malformed
// schedule is an error.
func New(cfg config.CronConfig, tokens repository.TokenRepository, reports Reporter, log *zap.Logger) (*Scheduler, error) {
	cl := cronLogger{s: log.Sugar()}
	s := &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		tokens:  tokens,
		reports: reports,
		log:     log,
		now:     time.Now,
	}
	if _, err := s.cron.AddFunc(cfg.TokenPurge, func() { s.PurgeTokens(context.Background()) }); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(cfg.DailyReport, func() { s.DailyReport(context.Background()) }); err != nil {
		return nil, err
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("cron jobs still running at shutdown")
	}
}

// PurgeTokens deletes expired and revoked refresh tokens.
func (s *Scheduler) PurgeTokens(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	n, err := s.tokens.PurgeExpired(ctx, s.now().UTC())
	if err != nil {
		s.log.Error("token purge failed", zap.Error(err))
		return
	}
	s.log.Info("token purge finished", zap.Int64("deleted", n))
}

// DailyReport logs the last day's activity counters.
func (s *Scheduler) DailyReport(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	r, err := s.reports.Reports(ctx, 1)
	if err != nil {
		s.log.Error("daily report failed", zap.Error(err))
		return
	}
	s.log.Info("daily report",
		zap.Time("since", r.Since),
		zap.Int("new_users", r.NewUsers),
		zap.Int("new_items", r.NewItems),
		zap.Int("new_swaps", r.NewSwaps),
		zap.Int("accepted_swaps", r.AcceptedSwaps),
		zap.Int("categories", len(r.CategoryDistribution)))
}
