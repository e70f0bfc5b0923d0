package insight

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hivewatch/hivewatch/internal/metrics"
	"github.com/hivewatch/hivewatch/internal/storage"
)

// RetentionService removes traffic events past the keep window in
// bounded batches. Each batch is an independent deletion, so a sweep can
// be interrupted and re-invoked without partial-batch corruption.
type RetentionService struct {
	store     storage.TrafficEventStore
	keepDays  int
	batchSize int
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewRetentionService constructs a RetentionService.
func NewRetentionService(store storage.TrafficEventStore, keepDays, batchSize int, m *metrics.Metrics, logger *zap.Logger) *RetentionService {
	if keepDays <= 0 {
		keepDays = 30
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &RetentionService{
		store:     store,
		keepDays:  keepDays,
		batchSize: batchSize,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Sweep purges batches until a short batch signals nothing older remains.
func (s *RetentionService) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().AddDate(0, 0, -s.keepDays)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		deleted, err := s.store.PurgeTrafficBefore(ctx, cutoff, s.batchSize)
		if err != nil {
			return total, err
		}
		total += deleted
		if s.metrics != nil {
			s.metrics.EventsPurged.Add(float64(deleted))
		}
		if deleted < int64(s.batchSize) {
			break
		}
	}

	if total > 0 {
		s.logger.Info("retention sweep completed",
			zap.Int64("deleted", total),
			zap.Time("cutoff", cutoff),
		)
	}
	return total, nil
}
