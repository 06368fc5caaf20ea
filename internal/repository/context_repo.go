package repository

import (
	"context"
	"errors"

	"github.com/oliveiraadan/equibid/internal/domain"
	"gorm.io/gorm"
)

// ContextRepository resolves the business context a notification is about.
// Data is fetched fresh at lookup time, never from a snapshot taken when the
// job was created.
type ContextRepository interface {
	LookupContext(ctx context.Context, correlationID string) (*domain.BusinessContext, error)
}

type GormContextRepo struct {
	db *gorm.DB
}

func NewGormContextRepo(db *gorm.DB) *GormContextRepo {
	return &GormContextRepo{db: db}
}

func (r *GormContextRepo) LookupContext(ctx context.Context, correlationID string) (*domain.BusinessContext, error) {
	var job NotificationJobModel
	err := r.db.WithContext(ctx).
		Where("correlation_id = ?", correlationID).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var search SavedSearchModel
	err = r.db.WithContext(ctx).First(&search, "id = ?", job.SearchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var lot LotModel
	err = r.db.WithContext(ctx).First(&lot, "id = ?", job.LotID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &domain.BusinessContext{
		UserName:      search.UserName,
		SearchSummary: search.Summary,
		Lot: domain.Lot{
			ID:         lot.ID,
			Name:       lot.Name,
			Auction:    lot.Auction,
			Auctioneer: lot.Auctioneer,
			Breed:      lot.Breed,
			Sex:        lot.Sex,
			Sire:       lot.Sire,
			Dam:        lot.Dam,
			BornAt:     lot.BornAt,
			PageURL:    lot.PageURL,
		},
	}, nil
}
