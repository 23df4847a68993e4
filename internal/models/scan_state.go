package models

import (
	"time"

	"gorm.io/datatypes"
)

// ScanState holds the last upstream cursor processed per scan scope. The
// commodities feed publishes a Last-Modified header; a scan whose header
// matches the stored cursor is a no-op.
type ScanState struct {
	Scope         string         `gorm:"primaryKey;type:text"`
	Cursor        *string        `gorm:"type:text"`
	LastAttemptAt *time.Time     `gorm:"type:timestamptz"`
	LastSuccessAt *time.Time     `gorm:"type:timestamptz"`
	LastError     *string        `gorm:"type:text"`
	StatsJSON     datatypes.JSON `gorm:"type:jsonb"`
}

func (ScanState) TableName() string {
	return "scan_state"
}
