package service

import (
	"context"
	"fmt"
	"time"

	"github.com/oliveiraadan/equibid/internal/observability"
	"github.com/oliveiraadan/equibid/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultReclaimInterval = time.Minute
	defaultClaimLease      = 5 * time.Minute
	defaultReclaimLimit    = 100
)

// ReclaimerService periodically returns jobs stuck in the SENDING sub-state
// to PENDING. A job only gets stuck there when a worker dies between the
// committed claim and the outcome commit; the lease bounds how long such a
// job stays invisible.
type ReclaimerService struct {
	jobs     repository.JobRepository
	logger   *zap.Logger
	metrics  *observability.Metrics
	interval time.Duration
	lease    time.Duration
	limit    int
}

func NewReclaimerService(
	jobs repository.JobRepository,
	interval time.Duration,
	lease time.Duration,
	limit int,
	logger *zap.Logger,
) (*ReclaimerService, error) {
	if jobs == nil {
		return nil, fmt.Errorf("job repository is required")
	}
	if interval <= 0 {
		interval = defaultReclaimInterval
	}
	if lease <= 0 {
		lease = defaultClaimLease
	}
	if limit <= 0 {
		limit = defaultReclaimLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReclaimerService{
		jobs:     jobs,
		logger:   logger,
		interval: interval,
		lease:    lease,
		limit:    limit,
	}, nil
}

func (s *ReclaimerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *ReclaimerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run once at startup so jobs orphaned by a previous crash do not wait
	// for the first ticker edge.
	if err := s.reclaim(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("initial stale claim scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.reclaim(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("stale claim scan failed", zap.Error(err))
			}
		}
	}
}

func (s *ReclaimerService) reclaim(ctx context.Context) error {
	reclaimed, err := s.jobs.ReclaimStale(ctx, s.lease, s.limit)
	if err != nil {
		return fmt.Errorf("failed to reclaim stale jobs: %w", err)
	}

	if reclaimed > 0 {
		s.logger.Warn("reclaimed stale job claims", zap.Int("count", reclaimed))
		if s.metrics != nil {
			s.metrics.AddReclaimed(reclaimed)
		}
	}

	return nil
}
