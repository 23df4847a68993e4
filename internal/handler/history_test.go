package handler

import (
	"testing"
	"time"

	"ahtracker/internal/models"
)

func TestHistoryRowRankRendering(t *testing.T) {
	base := models.AuctionHistory{
		ScanHour:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Material:     "Crystalline Powder",
		AveragePrice: 101,
		CurrentAvg:   100,
	}

	row := historyRowFromModel(base)
	if row.Rank != nil {
		t.Fatalf("single-rank material must render null rank, got %v", *row.Rank)
	}

	base.Material = "Bismuth"
	base.Rank = 2
	row = historyRowFromModel(base)
	if row.Rank == nil || *row.Rank != 2 {
		t.Fatalf("rank = %v, want 2", row.Rank)
	}
}

func TestHistoryRowGoldConversion(t *testing.T) {
	row := historyRowFromModel(models.AuctionHistory{
		AveragePrice: 49125,
		CurrentAvg:   10000,
	})
	if got := row.AverageGold.String(); got != "4.9125" {
		t.Fatalf("average gold = %s, want 4.9125", got)
	}
	if got := row.CurrentGold.String(); got != "1" {
		t.Fatalf("current gold = %s, want 1", got)
	}
}
