package models

import (
	"time"
)

// AuctionHistory is one aggregated price fact per (scan_hour, material, rank).
// Prices are stored in copper (1g = 10,000c). Rank 0 means the material has a
// single tracked rank; the API renders it as null.
type AuctionHistory struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	ScanTimestamp time.Time `gorm:"type:timestamptz;not null"`
	ScanDate      string    `gorm:"type:date;not null;index"`
	ScanHour      time.Time `gorm:"type:timestamptz;not null;uniqueIndex:idx_scan_hour_material_rank,priority:1"`
	Material      string    `gorm:"type:text;not null;uniqueIndex:idx_scan_hour_material_rank,priority:2"`
	Rank          int16     `gorm:"not null;default:0;uniqueIndex:idx_scan_hour_material_rank,priority:3"`
	Listings      int       `gorm:"not null"`
	TotalQuantity int64     `gorm:"not null"`
	AveragePrice  int64     `gorm:"not null"`
	RobustAvg     int64     `gorm:"not null"`
	CurrentAvg    int64     `gorm:"not null"`
}

func (AuctionHistory) TableName() string {
	return "auction_history"
}
