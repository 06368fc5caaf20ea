package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/oliveiraadan/equibid/internal/domain"
	"github.com/oliveiraadan/equibid/internal/repository"
	"go.uber.org/zap"
)

// JobService is the producer-facing surface: it mints jobs into the queue
// and answers read queries. Dispatch itself belongs to DispatcherService.
type JobService struct {
	jobs               repository.JobRepository
	attempts           repository.AttemptRepository
	logger             *zap.Logger
	defaultMaxAttempts int
}

func NewJobService(
	jobs repository.JobRepository,
	attempts repository.AttemptRepository,
	logger *zap.Logger,
) (*JobService, error) {
	if jobs == nil {
		return nil, fmt.Errorf("job repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &JobService{
		jobs:               jobs,
		attempts:           attempts,
		logger:             logger,
		defaultMaxAttempts: domain.DefaultMaxAttempts,
	}, nil
}

// SetDefaultMaxAttempts overrides the attempt budget applied to jobs that
// do not carry their own.
func (s *JobService) SetDefaultMaxAttempts(n int) {
	if s == nil || n <= 0 {
		return
	}
	s.defaultMaxAttempts = n
}

// Create validates and persists a new PENDING job, minting its identity and
// correlation id. The correlation id is immutable from here on; it is the
// only key a messaging platform ever hands back.
func (s *JobService) Create(ctx context.Context, job *domain.NotificationJob) (*domain.NotificationJob, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if job == nil {
		return nil, fmt.Errorf("%w: job is required", domain.ErrValidation)
	}

	job.Recipient = strings.TrimSpace(job.Recipient)
	if err := job.Validate(); err != nil {
		return nil, err
	}

	job.ID = uuid.NewString()
	job.CorrelationID = uuid.NewString()
	job.Status = domain.StatusPending
	job.AttemptCount = 0
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = s.defaultMaxAttempts
	}
	job.ProviderMessageID = nil
	job.Responded = false
	job.ResponseValue = nil
	job.RespondedAt = nil
	job.FailureReason = nil
	job.ClaimedAt = nil
	job.SentAt = nil

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("notification job created",
		zap.String("jobId", job.ID),
		zap.String("correlationId", job.CorrelationID),
		zap.String("channel", job.Channel.String()),
	)

	return job, nil
}

func (s *JobService) GetByID(ctx context.Context, id string) (*domain.NotificationJob, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: job id is required", domain.ErrValidation)
	}
	return s.jobs.GetByID(ctx, id)
}

func (s *JobService) List(ctx context.Context, params repository.ListParams) ([]domain.NotificationJob, int64, error) {
	return s.jobs.List(ctx, params)
}

// Attempts returns the delivery audit trail for a job.
func (s *JobService) Attempts(ctx context.Context, jobID string) ([]domain.DeliveryAttempt, error) {
	if s.attempts == nil {
		return nil, nil
	}
	if _, err := s.jobs.GetByID(ctx, jobID); err != nil {
		return nil, err
	}
	return s.attempts.GetByJobID(ctx, jobID)
}
