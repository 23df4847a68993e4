package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"ahtracker/internal/client/blizzard"
	"ahtracker/internal/models"
	"ahtracker/internal/repository"
)

const (
	defaultChunkSize    = 500
	defaultPerItemDelay = 200 * time.Millisecond
)

// ItemFetcher is the per-item metadata source.
type ItemFetcher interface {
	Item(ctx context.Context, token string, id int32) (*blizzard.ItemDetail, error)
}

// Enricher backfills the item catalog for item IDs observed in a snapshot
// that the catalog does not know yet. Fetches are sequential and paced: the
// per-item endpoint is the scarcer resource and backfill is not
// latency-sensitive.
type Enricher struct {
	Repo         repository.Repository
	Items        ItemFetcher
	Logger       *zap.Logger
	ChunkSize    int
	PerItemDelay time.Duration
	MaxPerRun    int
}

type EnrichResult struct {
	Candidates int `json:"candidates"`
	Missing    int `json:"missing"`
	Enriched   int `json:"enriched"`
	Skipped    int `json:"skipped"`
}

// EnrichMissing diffs the candidate IDs against the catalog in chunks, then
// fetches and upserts metadata for the missing ones. A single item's failure
// is logged and skipped; the item stays missing and is retried by a future
// run's diff phase.
func (e *Enricher) EnrichMissing(ctx context.Context, token string, ids []int32) (EnrichResult, error) {
	result := EnrichResult{Candidates: len(ids)}
	if e == nil || e.Repo == nil || e.Items == nil || len(ids) == 0 {
		return result, nil
	}

	missing, err := e.diffMissing(ctx, ids)
	if err != nil {
		return result, err
	}
	result.Missing = len(missing)

	if e.MaxPerRun > 0 && len(missing) > e.MaxPerRun {
		missing = missing[:e.MaxPerRun]
	}

	delay := e.PerItemDelay
	if delay < 0 {
		delay = defaultPerItemDelay
	}
	for i, id := range missing {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(delay):
			}
		}
		detail, err := e.Items.Item(ctx, token, id)
		if err != nil {
			result.Skipped++
			if e.Logger != nil {
				e.Logger.Warn("item fetch failed, skipping", zap.Int32("item_id", id), zap.Error(err))
			}
			continue
		}
		entry := catalogEntryFromDetail(detail, time.Now().UTC())
		if err := e.Repo.UpsertItemCatalog(ctx, entry); err != nil {
			result.Skipped++
			if e.Logger != nil {
				e.Logger.Warn("item upsert failed, skipping", zap.Int32("item_id", id), zap.Error(err))
			}
			continue
		}
		result.Enriched++
	}
	return result, nil
}

func (e *Enricher) diffMissing(ctx context.Context, ids []int32) ([]int32, error) {
	candidates := uniqueSortedIDs(ids)
	chunk := e.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}

	known := make(map[int32]struct{})
	for start := 0; start < len(candidates); start += chunk {
		end := start + chunk
		if end > len(candidates) {
			end = len(candidates)
		}
		existing, err := e.Repo.ListExistingCatalogIDs(ctx, candidates[start:end])
		if err != nil {
			return nil, err
		}
		for _, id := range existing {
			known[id] = struct{}{}
		}
	}

	missing := make([]int32, 0)
	for _, id := range candidates {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func uniqueSortedIDs(ids []int32) []int32 {
	seen := make(map[int32]struct{}, len(ids))
	out := make([]int32, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func catalogEntryFromDetail(detail *blizzard.ItemDetail, now time.Time) *models.ItemCatalog {
	quality := detail.Quality.Name
	if quality == "" {
		quality = detail.Quality.Type
	}
	var icon *string
	if href := detail.Media.Key.Href; href != "" {
		icon = &href
	}
	raw := detail.Raw()
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	return &models.ItemCatalog{
		ItemID:        detail.ID,
		Name:          detail.Name,
		Quality:       quality,
		Level:         detail.Level,
		ItemClass:     detail.ItemClass.Name,
		ItemSubclass:  detail.ItemSubclass.Name,
		PurchasePrice: detail.PurchasePrice,
		SellPrice:     detail.SellPrice,
		Stackable:     detail.IsStackable,
		IconURL:       icon,
		RawJSON:       datatypes.JSON(raw),
		FirstSeenAt:   now,
		LastSeenAt:    now,
	}
}
