package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hivewatch/hivewatch/internal/config"
	"github.com/hivewatch/hivewatch/internal/insight"
)

// Scheduler drives the periodic background work: fast health sweeps,
// full metric refreshes, and the raw event retention purge.
type Scheduler struct {
	refresh *insight.RefreshService
	retain  *insight.RetentionService
	cfg     config.SchedulerConfig
	logger  *zap.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(refresh *insight.RefreshService, retain *insight.RetentionService, cfg config.SchedulerConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		refresh: refresh,
		retain:  retain,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start launches the background loops. It returns immediately; call
// Stop to wait for them to drain.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.spawn(ctx, "health_sweep", s.cfg.HealthInterval, func(ctx context.Context) {
		checked, err := s.refresh.RunHealthChecks(ctx)
		if err != nil {
			s.logger.Error("health sweep failed", zap.Error(err))
			return
		}
		s.logger.Debug("health sweep complete", zap.Int("checked", checked))
	})
	s.spawn(ctx, "refresh_all", s.cfg.RefreshInterval, func(ctx context.Context) {
		report, err := s.refresh.RefreshAll(ctx)
		if err != nil {
			s.logger.Error("scheduled refresh failed", zap.Error(err))
			return
		}
		s.logger.Info("scheduled refresh complete",
			zap.Int("total", report.Total),
			zap.Int("succeeded", report.Succeeded),
			zap.Int("failed", report.Failed),
		)
	})
	s.spawn(ctx, "retention_purge", s.cfg.PurgeInterval, func(ctx context.Context) {
		purged, err := s.retain.Sweep(ctx)
		if err != nil {
			s.logger.Error("retention sweep failed", zap.Error(err))
			return
		}
		s.logger.Info("retention sweep complete", zap.Int64("purged", purged))
	})
}

// Stop cancels the loops and blocks until in-flight runs finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) spawn(ctx context.Context, name string, interval time.Duration, run func(context.Context)) {
	if interval <= 0 {
		s.logger.Info("scheduler loop disabled", zap.String("loop", name))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.logger.Info("scheduler loop started",
			zap.String("loop", name),
			zap.Duration("interval", interval),
		)
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("scheduler loop stopped", zap.String("loop", name))
				return
			case <-ticker.C:
				run(ctx)
			}
		}
	}()
}
