package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"ahtracker/internal/models"
)

// Repository is the durable-store surface the scan pipeline writes to and
// the query handlers read from.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Aggregated sink, conflict key (scan_hour, material, rank).
	UpsertAuctionHistory(ctx context.Context, rows []models.AuctionHistory) error
	ListAuctionHistory(ctx context.Context, params ListAuctionHistoryParams) ([]models.AuctionHistory, error)
	CountAuctionHistory(ctx context.Context, params ListAuctionHistoryParams) (int64, error)

	// Raw sink, conflict key auction_id.
	UpsertRawAuctions(ctx context.Context, rows []models.RawAuction) error

	// Scan cursor.
	GetScanState(ctx context.Context, scope string) (*models.ScanState, error)
	SaveScanStateTx(ctx context.Context, tx *gorm.DB, state *models.ScanState) error
	ListScanStates(ctx context.Context) ([]models.ScanState, error)

	// Item catalog.
	ListExistingCatalogIDs(ctx context.Context, ids []int32) ([]int32, error)
	UpsertItemCatalog(ctx context.Context, item *models.ItemCatalog) error
	ListItemCatalogByIDs(ctx context.Context, ids []int32) ([]models.ItemCatalog, error)
}

type ListAuctionHistoryParams struct {
	Material *string
	Rank     *int16
	Since    *time.Time
	OrderBy  string
	Asc      *bool
	Limit    int
	Offset   int
}
