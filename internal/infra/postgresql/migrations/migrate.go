package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/oliveiraadan/equibid/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_notification_jobs",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.NotificationJobModel{}); err != nil {
					return err
				}
				indexes := []string{
					// correlation_id is the webhook lookup key and must be unique.
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_correlation_id ON notification_jobs (correlation_id)`,
					`CREATE INDEX IF NOT EXISTS idx_jobs_status_channel_created ON notification_jobs (status, channel, created_at)`,
					// Reclaim scans only look at in-flight rows.
					`CREATE INDEX IF NOT EXISTS idx_jobs_claimed_at ON notification_jobs (claimed_at) WHERE status = 'SENDING'`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.NotificationJobModel{})
			},
		},
		{
			ID: "000002_create_delivery_attempts",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.DeliveryAttemptModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_attempts_job_id ON delivery_attempts (job_id)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.DeliveryAttemptModel{})
			},
		},
		{
			ID: "000003_create_catalog_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.SavedSearchModel{}, &repository.LotModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.LotModel{}, &repository.SavedSearchModel{})
			},
		},
	})

	return m.Migrate()
}
