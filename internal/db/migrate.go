package db

import (
	"ahtracker/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.ScanState{},
		&models.AuctionHistory{},
		&models.RawAuction{},
		&models.ItemCatalog{},
	)
}
