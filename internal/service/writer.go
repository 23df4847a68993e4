package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ahtracker/internal/models"
	"ahtracker/internal/repository"
)

const defaultBatchSize = 2000

// PersistenceError is a failed batch write. Batches before Batch are already
// committed; a re-run re-upserts them under the same conflict keys.
type PersistenceError struct {
	Batch int
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist batch %d: %v", e.Batch, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Writer upserts rows in bounded batches with pacing between batches to stay
// under store-side rate limits. The pacing is throttling, not correctness; a
// zero delay skips it.
type Writer struct {
	Repo            repository.Repository
	Logger          *zap.Logger
	BatchSize       int
	InterBatchDelay time.Duration
}

func (w *Writer) WriteAggregated(ctx context.Context, rows []models.AuctionHistory) error {
	return writeBatched(ctx, w, rows, w.Repo.UpsertAuctionHistory)
}

func (w *Writer) WriteRaw(ctx context.Context, rows []models.RawAuction) error {
	return writeBatched(ctx, w, rows, w.Repo.UpsertRawAuctions)
}

// CommitCursor records the processed upstream cursor. It runs strictly after
// the data writes: a crash in between makes the next run reprocess the same
// snapshot, which every sink absorbs idempotently.
func (w *Writer) CommitCursor(ctx context.Context, scope, cursor string, stats map[string]int) error {
	now := time.Now().UTC()
	state := &models.ScanState{
		Scope:         scope,
		Cursor:        &cursor,
		LastAttemptAt: &now,
		LastSuccessAt: &now,
		LastError:     nil,
		StatsJSON:     statsJSON(stats),
	}
	return w.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return w.Repo.SaveScanStateTx(ctx, tx, state)
	})
}

func writeBatched[T any](ctx context.Context, w *Writer, rows []T, upsert func(context.Context, []T) error) error {
	if len(rows) == 0 {
		return nil
	}
	size := w.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	batch := 0
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		if err := upsert(ctx, rows[start:end]); err != nil {
			return &PersistenceError{Batch: batch, Err: err}
		}
		batch++
		if w.InterBatchDelay > 0 && end < len(rows) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.InterBatchDelay):
			}
		}
	}
	if w.Logger != nil {
		w.Logger.Debug("batched write complete", zap.Int("rows", len(rows)), zap.Int("batches", batch))
	}
	return nil
}

func statsJSON(stats map[string]int) datatypes.JSON {
	if len(stats) == 0 {
		return datatypes.JSON([]byte("null"))
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		return datatypes.JSON([]byte("null"))
	}
	return datatypes.JSON(payload)
}
