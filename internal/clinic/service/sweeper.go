package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/clinic/internal/clinic/metrics"
	"github.com/robfig/cron/v3"
)

const DefaultSweepSchedule = "@every 15m"

// SweeperService periodically moves appointments whose end time has passed
// from scheduled to completed.
type SweeperService struct {
	Ledger   *LedgerService
	Logger   *slog.Logger
	Schedule string

	cron *cron.Cron
	wg   sync.WaitGroup
}

// NewSweeperService parses schedule (standard cron syntax or descriptors
// such as "@every 15m"). An empty schedule uses DefaultSweepSchedule.
func NewSweeperService(ledger *LedgerService, logger *slog.Logger, schedule string) (*SweeperService, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	s := &SweeperService{
		Ledger:   ledger,
		Logger:   logger,
		Schedule: schedule,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	if _, err := s.cron.AddFunc(schedule, func() { _, _ = s.Sweep(context.Background()) }); err != nil {
		return nil, err
	}
	return s, nil
}

// Start runs one sweep immediately and then follows the schedule. It does
// not block.
func (s *SweeperService) Start() {
	s.wg.Go(func() { _, _ = s.Sweep(context.Background()) })
	s.cron.Start()
	s.Logger.Info("sweeper started", "schedule", s.Schedule)
}

// Stop waits for a running sweep to finish.
func (s *SweeperService) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.Logger.Info("sweeper stopped")
}

// Sweep runs one completion pass.
func (s *SweeperService) Sweep(ctx context.Context) (int, error) {
	start := time.Now()

	n, err := s.Ledger.CompletePast(ctx)
	if err != nil {
		metrics.ObserveSweep("error", 0, time.Since(start))
		s.Logger.Error("sweep failed", "error", err)
		return 0, err
	}

	metrics.ObserveSweep("ok", n, time.Since(start))
	if n > 0 {
		s.Logger.Info("appointments completed", "count", n)
	} else {
		s.Logger.Debug("sweep found nothing to complete")
	}
	return n, nil
}
