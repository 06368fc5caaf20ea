package repository

import (
	"context"
	"errors"
	"time"

	"github.com/oliveiraadan/equibid/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ListParams struct {
	Status   *domain.Status
	Channel  *domain.Channel
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

type JobRepository interface {
	Create(ctx context.Context, j *domain.NotificationJob) error
	GetByID(ctx context.Context, id string) (*domain.NotificationJob, error)
	GetByCorrelationID(ctx context.Context, correlationID string) (*domain.NotificationJob, error)
	List(ctx context.Context, params ListParams) ([]domain.NotificationJob, int64, error)
	ClaimNextPending(ctx context.Context, channels []domain.Channel) (*domain.NotificationJob, error)
	MarkSent(ctx context.Context, id string, providerMessageID string) error
	MarkFailed(ctx context.Context, id string, reason string) error
	Release(ctx context.Context, id string) error
	RecordResponse(ctx context.Context, correlationID string, responseValue string) (bool, error)
	ReclaimStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type GormJobRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormJobRepo(db *gorm.DB) *GormJobRepo {
	return &GormJobRepo{db: db, now: time.Now}
}

func (r *GormJobRepo) Create(ctx context.Context, j *domain.NotificationJob) error {
	model := jobModelFromDomain(j)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if j != nil {
		*j = *jobModelToDomain(model)
	}
	return nil
}

func (r *GormJobRepo) GetByID(ctx context.Context, id string) (*domain.NotificationJob, error) {
	var model NotificationJobModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return jobModelToDomain(&model), nil
}

func (r *GormJobRepo) GetByCorrelationID(ctx context.Context, correlationID string) (*domain.NotificationJob, error) {
	var model NotificationJobModel
	err := r.db.WithContext(ctx).
		Where("correlation_id = ?", correlationID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return jobModelToDomain(&model), nil
}

func (r *GormJobRepo) List(ctx context.Context, params ListParams) ([]domain.NotificationJob, int64, error) {
	query := r.db.WithContext(ctx).Model(&NotificationJobModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Channel != nil {
		query = query.Where("channel = ?", *params.Channel)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []NotificationJobModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	jobs := make([]domain.NotificationJob, 0, len(models))
	for i := range models {
		jobs = append(jobs, *jobModelToDomain(&models[i]))
	}

	return jobs, total, nil
}

// ClaimNextPending atomically claims the oldest pending job on one of the
// given channels. The SKIP LOCKED select guarantees N concurrent callers
// claim N distinct rows without blocking on each other. The claim commits
// immediately as the SENDING sub-state, so the subsequent provider call
// never holds a row lock open.
func (r *GormJobRepo) ClaimNextPending(ctx context.Context, channels []domain.Channel) (*domain.NotificationJob, error) {
	var claimed *domain.NotificationJob

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model NotificationJobModel

		query := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", domain.StatusPending)
		if len(channels) > 0 {
			query = query.Where("channel IN ?", channels)
		}

		err := query.Order("created_at ASC").First(&model).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		now := r.now().UTC()
		err = tx.Model(&NotificationJobModel{}).
			Where("id = ?", model.ID).
			Updates(map[string]any{
				"status":        domain.StatusSending,
				"claimed_at":    now,
				"attempt_count": gorm.Expr("attempt_count + 1"),
			}).Error
		if err != nil {
			return err
		}

		model.Status = domain.StatusSending
		model.ClaimedAt = &now
		model.AttemptCount++
		claimed = jobModelToDomain(&model)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return claimed, nil
}

// MarkSent moves a claimed job to SENT. Only a SENDING row may transition;
// anything else reports a conflict so a late worker cannot double-commit.
func (r *GormJobRepo) MarkSent(ctx context.Context, id string, providerMessageID string) error {
	updates := map[string]any{
		"status":  domain.StatusSent,
		"sent_at": r.now().UTC(),
	}
	if providerMessageID != "" {
		updates["provider_message_id"] = providerMessageID
	}

	result := r.db.WithContext(ctx).
		Model(&NotificationJobModel{}).
		Where("id = ? AND status = ?", id, domain.StatusSending).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&NotificationJobModel{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	return nil
}

// MarkFailed is idempotent: a job already failed stays failed.
func (r *GormJobRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationJobModel{}).
		Where("id = ? AND status IN ?", id, []domain.Status{domain.StatusPending, domain.StatusSending, domain.StatusFailed}).
		Updates(map[string]any{
			"status":         domain.StatusFailed,
			"failure_reason": reason,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&NotificationJobModel{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	return nil
}

// Release returns a claimed job to PENDING after a transient send failure,
// making it claimable again on a future cycle.
func (r *GormJobRepo) Release(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationJobModel{}).
		Where("id = ? AND status = ?", id, domain.StatusSending).
		Updates(map[string]any{
			"status":     domain.StatusPending,
			"claimed_at": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// RecordResponse sets the response fields exactly once. The conditional
// update is the idempotency barrier: a redelivered webhook finds responded
// already true and gets applied=false without mutating anything.
func (r *GormJobRepo) RecordResponse(ctx context.Context, correlationID string, responseValue string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&NotificationJobModel{}).
		Where("correlation_id = ? AND status = ? AND responded = ?", correlationID, domain.StatusSent, false).
		Updates(map[string]any{
			"responded":      true,
			"response_value": responseValue,
			"responded_at":   r.now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&NotificationJobModel{}).
		Where("correlation_id = ?", correlationID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, domain.ErrNotFound
	}
	return false, nil
}

// ReclaimStale returns SENDING rows whose claim lease expired (worker crash
// between claim and commit) to PENDING.
func (r *GormJobRepo) ReclaimStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	if limit < 1 {
		limit = 100
	}
	cutoff := r.now().UTC().Add(-olderThan)

	result := r.db.WithContext(ctx).
		Model(&NotificationJobModel{}).
		Where("id IN (?)", r.db.
			Model(&NotificationJobModel{}).
			Select("id").
			Where("status = ? AND claimed_at < ?", domain.StatusSending, cutoff).
			Limit(limit),
		).
		Updates(map[string]any{
			"status":     domain.StatusPending,
			"claimed_at": nil,
		})
	if result.Error != nil {
		return 0, result.Error
	}

	return int(result.RowsAffected), nil
}
