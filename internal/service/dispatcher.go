package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oliveiraadan/equibid/internal/domain"
	"github.com/oliveiraadan/equibid/internal/observability"
	"github.com/oliveiraadan/equibid/internal/provider"
	"github.com/oliveiraadan/equibid/internal/ratelimit"
	"github.com/oliveiraadan/equibid/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minWorkerCount      = 1
	defaultPollInterval = 30 * time.Second
)

// errNoJob signals an empty queue inside a cycle; the loop sleeps on it.
var errNoJob = errors.New("no pending job")

// DispatcherService runs the worker loop: claim one pending job, render the
// match notification, send it through the job's channel provider, commit the
// outcome. Multiple instances may run against the same store; correctness
// rests entirely on the repository's claim semantics.
type DispatcherService struct {
	jobs         repository.JobRepository
	attempts     repository.AttemptRepository
	contexts     repository.ContextRepository
	registry     *provider.Registry
	rateLimiter  ratelimit.RateLimiter
	logger       *zap.Logger
	metrics      *observability.Metrics
	workerCount  int
	pollInterval time.Duration
	now          func() time.Time
}

func NewDispatcherService(
	jobs repository.JobRepository,
	attempts repository.AttemptRepository,
	contexts repository.ContextRepository,
	registry *provider.Registry,
	rateLimiter ratelimit.RateLimiter,
	workerCount int,
	pollInterval time.Duration,
	logger *zap.Logger,
) (*DispatcherService, error) {
	if jobs == nil {
		return nil, fmt.Errorf("job repository is required")
	}
	if contexts == nil {
		return nil, fmt.Errorf("context repository is required")
	}
	if registry == nil || registry.Len() == 0 {
		return nil, fmt.Errorf("at least one channel provider is required")
	}
	if workerCount < minWorkerCount {
		workerCount = minWorkerCount
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatcherService{
		jobs:         jobs,
		attempts:     attempts,
		contexts:     contexts,
		registry:     registry,
		rateLimiter:  rateLimiter,
		logger:       logger,
		workerCount:  workerCount,
		pollInterval: pollInterval,
		now:          time.Now,
	}, nil
}

func (s *DispatcherService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start runs the worker loops until the context is cancelled. Cancellation
// is observed between cycles only, so an in-flight cycle always finishes
// and commits before its worker exits.
func (s *DispatcherService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.workerCount; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("dispatcher worker started",
				zap.Int("workerId", workerID),
				zap.Strings("channels", channelNames(s.registry.Channels())),
			)

			for {
				select {
				case <-groupCtx.Done():
					s.logger.Info("dispatcher worker stopped", zap.Int("workerId", workerID))
					return nil
				default:
				}

				err := s.runCycle(groupCtx)
				switch {
				case err == nil:
					continue
				case errors.Is(err, errNoJob):
					if sleepErr := sleepWithContext(groupCtx, s.pollInterval); sleepErr != nil {
						s.logger.Info("dispatcher worker stopped", zap.Int("workerId", workerID))
						return nil
					}
				case groupCtx.Err() != nil:
					s.logger.Info("dispatcher worker stopped", zap.Int("workerId", workerID))
					return nil
				default:
					// Storage unavailable or similar; abort the cycle and
					// retry on the next tick.
					s.logger.Error("dispatcher cycle failed",
						zap.Int("workerId", workerID),
						zap.Error(err),
					)
					if sleepErr := sleepWithContext(groupCtx, s.pollInterval); sleepErr != nil {
						return nil
					}
				}
			}
		})
	}

	return g.Wait()
}

// runCycle claims and processes at most one job.
func (s *DispatcherService) runCycle(ctx context.Context) error {
	job, err := s.jobs.ClaimNextPending(ctx, s.registry.Channels())
	if err != nil {
		return fmt.Errorf("failed to claim pending job: %w", err)
	}
	if job == nil {
		return errNoJob
	}

	logger := s.logger.With(
		zap.String("jobId", job.ID),
		zap.String("correlationId", job.CorrelationID),
		zap.String("channel", job.Channel.String()),
	)
	ctx = observability.WithCorrelationID(ctx, job.CorrelationID)

	channelName := strings.ToLower(job.Channel.String())
	if s.metrics != nil {
		s.metrics.IncClaim(channelName)
		s.metrics.IncWorkerInFlight(channelName)
		defer s.metrics.DecWorkerInFlight(channelName)
	}

	channelProvider, ok := s.registry.Get(job.Channel)
	if !ok {
		// The claim filter should make this unreachable; release so a
		// worker that carries the channel can pick the job up.
		logger.Warn("claimed job for unregistered channel, releasing")
		return s.jobs.Release(ctx, job.ID)
	}

	bc, err := s.contexts.LookupContext(ctx, job.CorrelationID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("business context missing, failing job")
		return s.jobs.MarkFailed(ctx, job.ID, "business context not found")
	}
	if err != nil {
		// Store trouble: put the job back rather than burning the attempt.
		if releaseErr := s.jobs.Release(ctx, job.ID); releaseErr != nil {
			logger.Error("failed to release job after context lookup error", zap.Error(releaseErr))
		}
		return fmt.Errorf("failed to look up business context: %w", err)
	}

	if s.rateLimiter != nil {
		if err := s.rateLimiter.Wait(ctx, channelName); err != nil {
			if releaseErr := s.jobs.Release(ctx, job.ID); releaseErr != nil {
				logger.Error("failed to release job after rate limiter error", zap.Error(releaseErr))
			}
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	msg := RenderMatchFound(*bc, job.CorrelationID)

	sendStart := s.now()
	receipt, sendErr := channelProvider.SendInteractive(ctx, job.Recipient, msg.Text, msg.Actions)
	if s.metrics != nil {
		s.metrics.ObserveSendDuration(channelName, s.now().Sub(sendStart))
	}

	if err := s.recordAttempt(ctx, job.ID, job.AttemptCount, receipt, sendErr); err != nil {
		logger.Error("failed to record delivery attempt", zap.Error(err))
	}

	if sendErr == nil {
		providerMessageID := ""
		if receipt != nil {
			providerMessageID = strings.TrimSpace(receipt.ProviderMessageID)
		}
		if err := s.jobs.MarkSent(ctx, job.ID, providerMessageID); err != nil {
			return fmt.Errorf("failed to mark job as sent: %w", err)
		}
		if s.metrics != nil {
			s.metrics.IncJobSent(channelName)
		}
		logger.Info("notification sent", zap.String("providerMessageId", providerMessageID))
		return nil
	}

	isTransient := provider.IsTransient(sendErr)

	if isTransient && !job.AttemptsExhausted() {
		if err := s.jobs.Release(ctx, job.ID); err != nil {
			return fmt.Errorf("failed to release job for retry: %w", err)
		}
		logger.Warn("transient send failure, job released for reclaim",
			zap.Int("attemptCount", job.AttemptCount),
			zap.Error(sendErr),
		)
		return nil
	}

	reason := "permanent_error"
	if isTransient {
		reason = "attempts_exhausted"
	}
	if err := s.jobs.MarkFailed(ctx, job.ID, sendErr.Error()); err != nil {
		return fmt.Errorf("failed to mark job as failed: %w", err)
	}
	if s.metrics != nil {
		s.metrics.IncJobFailed(channelName, reason)
	}
	logger.Error("notification failed",
		zap.String("reason", reason),
		zap.Error(sendErr),
	)
	return nil
}

func (s *DispatcherService) recordAttempt(
	ctx context.Context,
	jobID string,
	attemptNumber int,
	receipt *provider.Receipt,
	sendErr error,
) error {
	if s.attempts == nil {
		return nil
	}

	var statusCode *int
	var responseBody *string
	var attemptErr *string

	if receipt != nil {
		if receipt.StatusCode > 0 {
			value := receipt.StatusCode
			statusCode = &value
		}
		if body := strings.TrimSpace(receipt.Body); body != "" {
			value := receipt.Body
			responseBody = &value
		}
	}

	if sendErr != nil {
		value := sendErr.Error()
		attemptErr = &value

		var providerErr *provider.ProviderError
		if errors.As(sendErr, &providerErr) && providerErr.StatusCode > 0 && statusCode == nil {
			value := providerErr.StatusCode
			statusCode = &value
		}
	}

	attempt := &domain.DeliveryAttempt{
		ID:            uuid.NewString(),
		JobID:         jobID,
		AttemptNumber: attemptNumber,
		StatusCode:    statusCode,
		ResponseBody:  responseBody,
		Error:         attemptErr,
		CreatedAt:     s.now().UTC(),
	}

	return s.attempts.Create(ctx, attempt)
}

func channelNames(channels []domain.Channel) []string {
	names := make([]string, 0, len(channels))
	for _, channel := range channels {
		names = append(names, strings.ToLower(channel.String()))
	}
	return names
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
