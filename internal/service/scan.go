package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ahtracker/internal/client/blizzard"
	"ahtracker/internal/config"
	"ahtracker/internal/models"
	"ahtracker/internal/pricing"
	"ahtracker/internal/repository"
)

const ScanScope = "commodities"

// ErrScanInProgress is returned when a run is requested while another one
// holds the guard. Overlapping runs would converge anyway (every write is an
// idempotent upsert) but would double the upstream calls.
var ErrScanInProgress = errors.New("scan already in progress")

type ScanStatus string

const (
	StatusNoop ScanStatus = "noop"
	StatusOK   ScanStatus = "ok"
)

// SnapshotSource is the upstream market-data provider.
type SnapshotSource interface {
	Token(ctx context.Context) (string, error)
	Commodities(ctx context.Context, token string) ([]blizzard.Auction, string, error)
}

type ScanResult struct {
	Status   ScanStatus   `json:"status"`
	Cursor   string       `json:"cursor,omitempty"`
	Listings int          `json:"listings"`
	Rows     int          `json:"rows"`
	RawRows  int          `json:"raw_rows"`
	Enrich   EnrichResult `json:"enrich"`
}

// ScanService runs one poll of the commodities feed end to end: fetch,
// change-detect, price, persist, commit cursor, enrich.
type ScanService struct {
	Repo     repository.Repository
	Source   SnapshotSource
	Engine   *pricing.Engine
	Writer   *Writer
	Enricher *Enricher
	Logger   *zap.Logger
	Scan     config.ScanConfig
	Enrich   config.EnrichConfig

	runGuard sync.Mutex
}

func (s *ScanService) Run(ctx context.Context) (ScanResult, error) {
	if !s.runGuard.TryLock() {
		return ScanResult{}, ErrScanInProgress
	}
	defer s.runGuard.Unlock()

	token, err := s.Source.Token(ctx)
	if err != nil {
		return ScanResult{}, err
	}

	auctions, cursor, err := s.Source.Commodities(ctx, token)
	if err != nil {
		return ScanResult{}, err
	}

	state, err := s.Repo.GetScanState(ctx, ScanScope)
	if err != nil {
		return ScanResult{}, err
	}
	if !hasChanged(cursor, state) {
		if s.Logger != nil {
			s.Logger.Info("snapshot unchanged, skipping", zap.String("cursor", cursor))
		}
		return ScanResult{Status: StatusNoop, Cursor: cursor, Listings: len(auctions)}, nil
	}

	now := s.Engine.Clock.Now().UTC()
	result := ScanResult{Status: StatusOK, Cursor: cursor, Listings: len(auctions)}
	stats := map[string]int{"listings": len(auctions)}

	if s.Scan.AggregateSink {
		rows := s.aggregate(auctions, now)
		if err := s.Writer.WriteAggregated(ctx, rows); err != nil {
			s.writeScanError(ctx, state, err)
			return ScanResult{}, err
		}
		result.Rows = len(rows)
		stats["rows"] = len(rows)
	}

	if s.Scan.RawSink {
		rows := rawRows(auctions, now)
		if err := s.Writer.WriteRaw(ctx, rows); err != nil {
			s.writeScanError(ctx, state, err)
			return ScanResult{}, err
		}
		result.RawRows = len(rows)
		stats["raw_rows"] = len(rows)
	}

	if err := s.Writer.CommitCursor(ctx, ScanScope, cursor, stats); err != nil {
		return ScanResult{}, err
	}

	if s.Enrich.Enabled && s.Enricher != nil {
		// Data and cursor are already durable; a catalog failure here only
		// delays metadata until the next run's diff phase.
		enrich, err := s.Enricher.EnrichMissing(ctx, token, observedItemIDs(auctions))
		result.Enrich = enrich
		if err != nil && s.Logger != nil {
			s.Logger.Warn("catalog enrichment failed", zap.Error(err))
		}
	}

	if s.Logger != nil {
		s.Logger.Info("scan complete",
			zap.String("cursor", cursor),
			zap.Int("listings", result.Listings),
			zap.Int("rows", result.Rows),
			zap.Int("raw_rows", result.RawRows),
			zap.Int("enriched", result.Enrich.Enriched),
		)
	}
	return result, nil
}

// hasChanged compares the fetched cursor to the stored one byte for byte.
// Absent state always counts as changed.
func hasChanged(cursor string, state *models.ScanState) bool {
	if state == nil || state.Cursor == nil {
		return true
	}
	return *state.Cursor != cursor
}

func (s *ScanService) aggregate(auctions []blizzard.Auction, now time.Time) []models.AuctionHistory {
	listings := make([]pricing.Listing, 0, len(auctions))
	for _, a := range auctions {
		listings = append(listings, pricing.Listing{
			ItemID:    a.Item.ID,
			Quantity:  a.Quantity,
			UnitPrice: a.UnitPrice,
		})
	}
	summaries := s.Engine.Summarize(listings)

	scanHour := now.Truncate(time.Hour)
	scanDate := now.Format("2006-01-02")
	rows := make([]models.AuctionHistory, 0, len(summaries))
	for _, sum := range summaries {
		rows = append(rows, models.AuctionHistory{
			ScanTimestamp: now,
			ScanDate:      scanDate,
			ScanHour:      scanHour,
			Material:      sum.Material,
			Rank:          sum.StoredRank(),
			Listings:      sum.Listings,
			TotalQuantity: sum.TotalQuantity,
			AveragePrice:  sum.BlendedAvg,
			RobustAvg:     sum.RobustAvg,
			CurrentAvg:    sum.CurrentAvg,
		})
	}
	return rows
}

func rawRows(auctions []blizzard.Auction, now time.Time) []models.RawAuction {
	rows := make([]models.RawAuction, 0, len(auctions))
	for _, a := range auctions {
		rows = append(rows, models.RawAuction{
			AuctionID: a.ID,
			ItemID:    a.Item.ID,
			Quantity:  a.Quantity,
			UnitPrice: a.UnitPrice,
			TimeLeft:  a.TimeLeft,
			ScannedAt: now,
		})
	}
	return rows
}

func observedItemIDs(auctions []blizzard.Auction) []int32 {
	ids := make([]int32, 0, len(auctions))
	for _, a := range auctions {
		ids = append(ids, a.Item.ID)
	}
	return ids
}

// writeScanError records the failed attempt without touching the stored
// cursor, so the next run still sees the snapshot as changed.
func (s *ScanService) writeScanError(ctx context.Context, prior *models.ScanState, runErr error) {
	if s.Logger != nil {
		s.Logger.Warn("scan failed", zap.Error(runErr))
	}
	now := time.Now().UTC()
	msg := runErr.Error()
	state := &models.ScanState{
		Scope:         ScanScope,
		LastAttemptAt: &now,
		LastError:     &msg,
	}
	if prior != nil {
		state.Cursor = prior.Cursor
		state.LastSuccessAt = prior.LastSuccessAt
		state.StatsJSON = prior.StatsJSON
	}
	_ = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return s.Repo.SaveScanStateTx(ctx, tx, state)
	})
}
