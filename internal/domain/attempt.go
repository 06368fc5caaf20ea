package domain

import "time"

// DeliveryAttempt records a single provider call for a notification job.
type DeliveryAttempt struct {
	ID            string  `gorm:"type:uuid;primaryKey"`
	JobID         string  `gorm:"type:uuid;not null"`
	AttemptNumber int     `gorm:"not null"`
	StatusCode    *int    `gorm:"type:int"`
	ResponseBody  *string `gorm:"type:text"`
	Error         *string `gorm:"type:text"`
	CreatedAt     time.Time
}
