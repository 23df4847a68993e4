package models

import (
	"time"

	"gorm.io/datatypes"
)

// ItemCatalog is denormalized static metadata for one item ID, backfilled by
// the enrichment worker from the per-item API. Rows are created once and only
// updated if the item is re-fetched.
type ItemCatalog struct {
	ItemID        int32          `gorm:"primaryKey"`
	Name          string         `gorm:"type:text;not null"`
	Quality       string         `gorm:"type:text;not null"`
	Level         int32          `gorm:"not null"`
	ItemClass     string         `gorm:"type:text;not null"`
	ItemSubclass  string         `gorm:"type:text;not null"`
	PurchasePrice int64          `gorm:"not null"`
	SellPrice     int64          `gorm:"not null"`
	Stackable     bool           `gorm:"not null;default:false"`
	IconURL       *string        `gorm:"type:text"`
	RawJSON       datatypes.JSON `gorm:"type:jsonb;not null"`
	FirstSeenAt   time.Time      `gorm:"type:timestamptz;not null"`
	LastSeenAt    time.Time      `gorm:"type:timestamptz;not null"`
}

func (ItemCatalog) TableName() string {
	return "item_catalog"
}
