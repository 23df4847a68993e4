package gormrepository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ahtracker/internal/models"
	"ahtracker/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *Store) UpsertAuctionHistory(ctx context.Context, rows []models.AuctionHistory) error {
	if s == nil || s.db == nil || len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scan_hour"}, {Name: "material"}, {Name: "rank"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"scan_timestamp",
			"scan_date",
			"listings",
			"total_quantity",
			"average_price",
			"robust_avg",
			"current_avg",
		}),
	}).Create(&rows).Error
}

func (s *Store) ListAuctionHistory(ctx context.Context, params repository.ListAuctionHistoryParams) ([]models.AuctionHistory, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.applyHistoryFilters(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "scan_hour")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var rows []models.AuctionHistory
	if err := query.Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) CountAuctionHistory(ctx context.Context, params repository.ListAuctionHistoryParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	if err := s.applyHistoryFilters(ctx, params).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) applyHistoryFilters(ctx context.Context, params repository.ListAuctionHistoryParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.AuctionHistory{})
	if params.Material != nil && strings.TrimSpace(*params.Material) != "" {
		query = query.Where("material = ?", strings.TrimSpace(*params.Material))
	}
	if params.Rank != nil {
		query = query.Where("rank = ?", *params.Rank)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("scan_hour >= ?", *params.Since)
	}
	return query
}

func (s *Store) UpsertRawAuctions(ctx context.Context, rows []models.RawAuction) error {
	if s == nil || s.db == nil || len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "auction_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"item_id",
			"quantity",
			"unit_price",
			"time_left",
			"scanned_at",
		}),
	}).Create(&rows).Error
}

func (s *Store) GetScanState(ctx context.Context, scope string) (*models.ScanState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var state models.ScanState
	err := s.db.WithContext(ctx).First(&state, "scope = ?", scope).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Store) SaveScanStateTx(ctx context.Context, tx *gorm.DB, state *models.ScanState) error {
	if state == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scope"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"cursor",
			"last_success_at",
			"last_attempt_at",
			"last_error",
			"stats_json",
		}),
	}).Create(state).Error
}

func (s *Store) ListScanStates(ctx context.Context) ([]models.ScanState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var states []models.ScanState
	if err := s.db.WithContext(ctx).Order("scope asc").Find(&states).Error; err != nil {
		return nil, err
	}
	return states, nil
}

func (s *Store) ListExistingCatalogIDs(ctx context.Context, ids []int32) ([]int32, error) {
	if s == nil || s.db == nil || len(ids) == 0 {
		return nil, nil
	}
	var existing []int32
	if err := s.db.WithContext(ctx).
		Model(&models.ItemCatalog{}).
		Where("item_id IN ?", ids).
		Pluck("item_id", &existing).Error; err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *Store) UpsertItemCatalog(ctx context.Context, item *models.ItemCatalog) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"quality",
			"level",
			"item_class",
			"item_subclass",
			"purchase_price",
			"sell_price",
			"stackable",
			"icon_url",
			"raw_json",
			"last_seen_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListItemCatalogByIDs(ctx context.Context, ids []int32) ([]models.ItemCatalog, error) {
	if s == nil || s.db == nil || len(ids) == 0 {
		return nil, nil
	}
	var items []models.ItemCatalog
	if err := s.db.WithContext(ctx).
		Where("item_id IN ?", ids).
		Order("item_id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
