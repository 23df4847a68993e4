package models

import (
	"time"
)

// RawAuction is one commodity listing keyed by its upstream auction ID.
// Re-scans overwrite the same ID, so the table always reflects the most
// recent observation of each live auction.
type RawAuction struct {
	AuctionID int64     `gorm:"primaryKey"`
	ItemID    int32     `gorm:"not null;index"`
	Quantity  int32     `gorm:"not null"`
	UnitPrice int64     `gorm:"not null"`
	TimeLeft  string    `gorm:"type:text;not null"`
	ScannedAt time.Time `gorm:"type:timestamptz;not null"`
}

func (RawAuction) TableName() string {
	return "raw_auctions"
}
