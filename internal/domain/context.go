package domain

import "time"

// SavedSearch is the buyer search that produced a lot match. Read-only for
// this engine; maintained by the matching pipeline.
type SavedSearch struct {
	ID       string `gorm:"type:uuid;primaryKey"`
	UserName string `gorm:"type:varchar(255);not null"`
	Summary  string `gorm:"type:text;not null"`
}

// Lot is the auction lot a notification is about. Referenced by id from the
// job rather than embedded, so responses always see current lot data.
type Lot struct {
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

// BusinessContext is the denormalized view a callback response is rendered
// from, fetched fresh at response time.
type BusinessContext struct {
	UserName      string
	SearchSummary string
	Lot           Lot
}
