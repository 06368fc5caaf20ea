package repository

import (
	"time"

	"github.com/oliveiraadan/equibid/internal/domain"
)

// NotificationJobModel is the persistence model for notification_jobs.
type NotificationJobModel struct {
	ID                string         `gorm:"type:uuid;primaryKey"`
	CorrelationID     string         `gorm:"type:uuid;not null"`
	Channel           domain.Channel `gorm:"type:varchar(10);not null"`
	Recipient         string         `gorm:"type:varchar(255);not null"`
	Status            domain.Status  `gorm:"type:varchar(10);not null"`
	SearchID          string         `gorm:"type:uuid;not null"`
	LotID             string         `gorm:"type:uuid;not null"`
	ProviderMessageID *string        `gorm:"type:varchar(255)"`
	Responded         bool           `gorm:"not null;default:false"`
	ResponseValue     *string        `gorm:"type:varchar(64)"`
	RespondedAt       *time.Time
	AttemptCount      int     `gorm:"not null;default:0"`
	MaxAttempts       int     `gorm:"not null;default:5"`
	FailureReason     *string `gorm:"type:text"`
	ClaimedAt         *time.Time
	SentAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (NotificationJobModel) TableName() string {
	return "notification_jobs"
}

// DeliveryAttemptModel is the persistence model for delivery_attempts.
type DeliveryAttemptModel struct {
	ID            string  `gorm:"type:uuid;primaryKey"`
	JobID         string  `gorm:"type:uuid;not null"`
	AttemptNumber int     `gorm:"not null"`
	StatusCode    *int    `gorm:"type:int"`
	ResponseBody  *string `gorm:"type:text"`
	Error         *string `gorm:"type:text"`
	CreatedAt     time.Time
}

func (DeliveryAttemptModel) TableName() string {
	return "delivery_attempts"
}

// SavedSearchModel is the persistence model for saved_searches. The table is
// read-only for this engine.
type SavedSearchModel struct {
	ID       string `gorm:"type:uuid;primaryKey"`
	UserName string `gorm:"type:varchar(255);not null"`
	Summary  string `gorm:"type:text;not null"`
}

func (SavedSearchModel) TableName() string {
	return "saved_searches"
}

// LotModel is the persistence model for lots. Read-only for this engine.
type LotModel struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	Name       string `gorm:"type:varchar(255);not null"`
	Auction    string `gorm:"type:varchar(255);not null"`
	Auctioneer string `gorm:"type:varchar(255);not null"`
	Breed      string `gorm:"type:varchar(100)"`
	Sex        string `gorm:"type:varchar(20)"`
	Sire       string `gorm:"type:varchar(255)"`
	Dam        string `gorm:"type:varchar(255)"`
	BornAt     *time.Time
	PageURL    string `gorm:"type:varchar(512);not null"`
}

func (LotModel) TableName() string {
	return "lots"
}

func jobModelFromDomain(j *domain.NotificationJob) *NotificationJobModel {
	if j == nil {
		return nil
	}

	return &NotificationJobModel{
		ID:                j.ID,
		CorrelationID:     j.CorrelationID,
		Channel:           j.Channel,
		Recipient:         j.Recipient,
		Status:            j.Status,
		SearchID:          j.SearchID,
		LotID:             j.LotID,
		ProviderMessageID: j.ProviderMessageID,
		Responded:         j.Responded,
		ResponseValue:     j.ResponseValue,
		RespondedAt:       j.RespondedAt,
		AttemptCount:      j.AttemptCount,
		MaxAttempts:       j.MaxAttempts,
		FailureReason:     j.FailureReason,
		ClaimedAt:         j.ClaimedAt,
		SentAt:            j.SentAt,
		CreatedAt:         j.CreatedAt,
		UpdatedAt:         j.UpdatedAt,
	}
}

func jobModelToDomain(m *NotificationJobModel) *domain.NotificationJob {
	if m == nil {
		return nil
	}

	return &domain.NotificationJob{
		ID:                m.ID,
		CorrelationID:     m.CorrelationID,
		Channel:           m.Channel,
		Recipient:         m.Recipient,
		Status:            m.Status,
		SearchID:          m.SearchID,
		LotID:             m.LotID,
		ProviderMessageID: m.ProviderMessageID,
		Responded:         m.Responded,
		ResponseValue:     m.ResponseValue,
		RespondedAt:       m.RespondedAt,
		AttemptCount:      m.AttemptCount,
		MaxAttempts:       m.MaxAttempts,
		FailureReason:     m.FailureReason,
		ClaimedAt:         m.ClaimedAt,
		SentAt:            m.SentAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *DeliveryAttemptModel {
	if a == nil {
		return nil
	}

	return &DeliveryAttemptModel{
		ID:            a.ID,
		JobID:         a.JobID,
		AttemptNumber: a.AttemptNumber,
		StatusCode:    a.StatusCode,
		ResponseBody:  a.ResponseBody,
		Error:         a.Error,
		CreatedAt:     a.CreatedAt,
	}
}

func attemptModelToDomain(m *DeliveryAttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}

	return &domain.DeliveryAttempt{
		ID:            m.ID,
		JobID:         m.JobID,
		AttemptNumber: m.AttemptNumber,
		StatusCode:    m.StatusCode,
		ResponseBody:  m.ResponseBody,
		Error:         m.Error,
		CreatedAt:     m.CreatedAt,
	}
}
