package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"ahtracker/internal/client/blizzard"
	"ahtracker/internal/config"
	"ahtracker/internal/models"
	"ahtracker/internal/pricing"
	"ahtracker/internal/repository"
)

// fakeRepo implements repository.Repository in memory for the service tests.
type fakeRepo struct {
	state        *models.ScanState
	historyCalls [][]models.AuctionHistory
	rawCalls     [][]models.RawAuction
	catalog      map[int32]*models.ItemCatalog

	historyErr    error
	rawErr        error
	failHistoryAt int // batch index to fail on, -1 disables

	diffCalls [][]int32
	diffErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{catalog: make(map[int32]*models.ItemCatalog), failHistoryAt: -1}
}

func (r *fakeRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (r *fakeRepo) UpsertAuctionHistory(ctx context.Context, rows []models.AuctionHistory) error {
	if r.historyErr != nil {
		return r.historyErr
	}
	if r.failHistoryAt >= 0 && len(r.historyCalls) == r.failHistoryAt {
		return errors.New("injected write failure")
	}
	batch := make([]models.AuctionHistory, len(rows))
	copy(batch, rows)
	r.historyCalls = append(r.historyCalls, batch)
	return nil
}

func (r *fakeRepo) ListAuctionHistory(ctx context.Context, params repository.ListAuctionHistoryParams) ([]models.AuctionHistory, error) {
	return nil, nil
}

func (r *fakeRepo) CountAuctionHistory(ctx context.Context, params repository.ListAuctionHistoryParams) (int64, error) {
	return 0, nil
}

func (r *fakeRepo) UpsertRawAuctions(ctx context.Context, rows []models.RawAuction) error {
	if r.rawErr != nil {
		return r.rawErr
	}
	batch := make([]models.RawAuction, len(rows))
	copy(batch, rows)
	r.rawCalls = append(r.rawCalls, batch)
	return nil
}

func (r *fakeRepo) GetScanState(ctx context.Context, scope string) (*models.ScanState, error) {
	return r.state, nil
}

func (r *fakeRepo) SaveScanStateTx(ctx context.Context, tx *gorm.DB, state *models.ScanState) error {
	r.state = state
	return nil
}

func (r *fakeRepo) ListScanStates(ctx context.Context) ([]models.ScanState, error) {
	if r.state == nil {
		return nil, nil
	}
	return []models.ScanState{*r.state}, nil
}

func (r *fakeRepo) ListExistingCatalogIDs(ctx context.Context, ids []int32) ([]int32, error) {
	if r.diffErr != nil {
		return nil, r.diffErr
	}
	chunk := make([]int32, len(ids))
	copy(chunk, ids)
	r.diffCalls = append(r.diffCalls, chunk)
	existing := make([]int32, 0)
	for _, id := range ids {
		if _, ok := r.catalog[id]; ok {
			existing = append(existing, id)
		}
	}
	return existing, nil
}

func (r *fakeRepo) UpsertItemCatalog(ctx context.Context, item *models.ItemCatalog) error {
	r.catalog[item.ItemID] = item
	return nil
}

func (r *fakeRepo) ListItemCatalogByIDs(ctx context.Context, ids []int32) ([]models.ItemCatalog, error) {
	out := make([]models.ItemCatalog, 0)
	for _, id := range ids {
		if item, ok := r.catalog[id]; ok {
			out = append(out, *item)
		}
	}
	return out, nil
}

type fakeSource struct {
	auctions []blizzard.Auction
	cursor   string
	tokenErr error
	fetchErr error
}

func (s *fakeSource) Token(ctx context.Context) (string, error) {
	if s.tokenErr != nil {
		return "", s.tokenErr
	}
	return "test-token", nil
}

func (s *fakeSource) Commodities(ctx context.Context, token string) ([]blizzard.Auction, string, error) {
	if s.fetchErr != nil {
		return nil, "", s.fetchErr
	}
	return s.auctions, s.cursor, nil
}

type fakeItems struct {
	fetched []int32
	failIDs map[int32]bool
}

func (f *fakeItems) Item(ctx context.Context, token string, id int32) (*blizzard.ItemDetail, error) {
	if f.failIDs[id] {
		return nil, errors.New("upstream 500")
	}
	f.fetched = append(f.fetched, id)
	return &blizzard.ItemDetail{ID: id, Name: "Item"}, nil
}

func strPtr(s string) *string { return &s }

func testFixedTime() time.Time {
	return time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
}

func auction(id int64, itemID, quantity int32, price int64) blizzard.Auction {
	return blizzard.Auction{
		ID:        id,
		Item:      blizzard.AuctionItem{ID: itemID},
		Quantity:  quantity,
		UnitPrice: price,
		TimeLeft:  "VERY_LONG",
	}
}

func newScanService(repo *fakeRepo, source *fakeSource) *ScanService {
	clock := pricing.FixedClock{T: time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)}
	return &ScanService{
		Repo:   repo,
		Source: source,
		Engine: pricing.NewEngine(clock),
		Writer: &Writer{Repo: repo, BatchSize: 100},
		Scan:   config.ScanConfig{AggregateSink: true},
	}
}

func trackedBuckets() int {
	n := 0
	for _, m := range pricing.TrackedItems() {
		n += len(m.Ranks)
	}
	return n
}

func TestRunSkipsUnchangedSnapshot(t *testing.T) {
	repo := newFakeRepo()
	repo.state = &models.ScanState{Scope: ScanScope, Cursor: strPtr("Mon, 02 Mar 2026 12:00:00 GMT")}
	source := &fakeSource{
		auctions: []blizzard.Auction{auction(1, 212495, 10, 100)},
		cursor:   "Mon, 02 Mar 2026 12:00:00 GMT",
	}
	svc := newScanService(repo, source)

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusNoop {
		t.Fatalf("status = %q, want %q", result.Status, StatusNoop)
	}
	if len(repo.historyCalls) != 0 {
		t.Fatalf("unchanged snapshot must not write history, got %d batches", len(repo.historyCalls))
	}
	if repo.state.LastSuccessAt != nil {
		t.Fatalf("unchanged snapshot must not touch scan state")
	}
}

func TestRunChangedSnapshotWritesAndCommitsCursor(t *testing.T) {
	repo := newFakeRepo()
	repo.state = &models.ScanState{Scope: ScanScope, Cursor: strPtr("Mon, 02 Mar 2026 11:00:00 GMT")}
	source := &fakeSource{
		auctions: []blizzard.Auction{
			auction(1, 212495, 50, 100),
			auction(2, 212495, 60, 110),
			auction(3, 999999, 5, 42), // untracked
		},
		cursor: "Mon, 02 Mar 2026 12:00:00 GMT",
	}
	svc := newScanService(repo, source)

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusOK {
		t.Fatalf("status = %q, want %q", result.Status, StatusOK)
	}
	if result.Rows != trackedBuckets() {
		t.Fatalf("rows = %d, want one per tracked bucket %d", result.Rows, trackedBuckets())
	}
	total := 0
	for _, batch := range repo.historyCalls {
		total += len(batch)
	}
	if total != trackedBuckets() {
		t.Fatalf("persisted rows = %d, want %d", total, trackedBuckets())
	}
	if repo.state == nil || repo.state.Cursor == nil || *repo.state.Cursor != source.cursor {
		t.Fatalf("cursor not committed, state = %+v", repo.state)
	}
	if repo.state.LastSuccessAt == nil {
		t.Fatalf("last_success_at not set on committed state")
	}
}

func TestRunMissingStateCountsAsChanged(t *testing.T) {
	repo := newFakeRepo()
	source := &fakeSource{cursor: "Mon, 02 Mar 2026 12:00:00 GMT"}
	svc := newScanService(repo, source)

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusOK {
		t.Fatalf("first run status = %q, want %q", result.Status, StatusOK)
	}
}

func TestRunWriteFailurePreservesCursor(t *testing.T) {
	repo := newFakeRepo()
	repo.state = &models.ScanState{Scope: ScanScope, Cursor: strPtr("Mon, 02 Mar 2026 11:00:00 GMT")}
	repo.historyErr = errors.New("db down")
	source := &fakeSource{
		auctions: []blizzard.Auction{auction(1, 212495, 50, 100)},
		cursor:   "Mon, 02 Mar 2026 12:00:00 GMT",
	}
	svc := newScanService(repo, source)

	_, err := svc.Run(context.Background())
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *PersistenceError", err)
	}
	if repo.state == nil || repo.state.Cursor == nil || *repo.state.Cursor != "Mon, 02 Mar 2026 11:00:00 GMT" {
		t.Fatalf("failed run must keep the prior cursor, state = %+v", repo.state)
	}
	if repo.state.LastError == nil {
		t.Fatalf("failed run must record last_error")
	}
}

func TestRunRawSink(t *testing.T) {
	repo := newFakeRepo()
	source := &fakeSource{
		auctions: []blizzard.Auction{auction(7, 210930, 5, 90), auction(8, 210931, 3, 95)},
		cursor:   "Mon, 02 Mar 2026 12:00:00 GMT",
	}
	svc := newScanService(repo, source)
	svc.Scan = config.ScanConfig{AggregateSink: false, RawSink: true}

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Rows != 0 {
		t.Fatalf("aggregate sink disabled, rows = %d", result.Rows)
	}
	if result.RawRows != 2 {
		t.Fatalf("raw rows = %d, want 2", result.RawRows)
	}
	if len(repo.rawCalls) != 1 || len(repo.rawCalls[0]) != 2 {
		t.Fatalf("raw batches = %+v", repo.rawCalls)
	}
	if repo.rawCalls[0][0].AuctionID != 7 {
		t.Fatalf("raw row auction id = %d, want 7", repo.rawCalls[0][0].AuctionID)
	}
}

func TestRunEnrichesMissingItems(t *testing.T) {
	repo := newFakeRepo()
	repo.catalog[210930] = &models.ItemCatalog{ItemID: 210930}
	items := &fakeItems{}
	source := &fakeSource{
		auctions: []blizzard.Auction{
			auction(1, 210930, 5, 90),
			auction(2, 210931, 3, 95),
			auction(3, 210931, 2, 96),
		},
		cursor: "Mon, 02 Mar 2026 12:00:00 GMT",
	}
	svc := newScanService(repo, source)
	svc.Enricher = &Enricher{Repo: repo, Items: items}
	svc.Enrich = config.EnrichConfig{Enabled: true}

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Enrich.Missing != 1 || result.Enrich.Enriched != 1 {
		t.Fatalf("enrich result = %+v, want exactly 210931 enriched", result.Enrich)
	}
	if len(items.fetched) != 1 || items.fetched[0] != 210931 {
		t.Fatalf("fetched = %v, want [210931]", items.fetched)
	}
	if _, ok := repo.catalog[210931]; !ok {
		t.Fatalf("enriched item missing from catalog")
	}
}

func TestHasChanged(t *testing.T) {
	cursor := "Mon, 02 Mar 2026 12:00:00 GMT"
	cases := []struct {
		name  string
		state *models.ScanState
		want  bool
	}{
		{"nil state", nil, true},
		{"nil cursor", &models.ScanState{Scope: ScanScope}, true},
		{"same cursor", &models.ScanState{Scope: ScanScope, Cursor: strPtr(cursor)}, false},
		{"different cursor", &models.ScanState{Scope: ScanScope, Cursor: strPtr("Mon, 02 Mar 2026 11:00:00 GMT")}, true},
	}
	for _, tc := range cases {
		if got := hasChanged(cursor, tc.state); got != tc.want {
			t.Fatalf("%s: hasChanged = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRunGuardRejectsConcurrentRun(t *testing.T) {
	svc := newScanService(newFakeRepo(), &fakeSource{cursor: "x"})
	svc.runGuard.Lock()
	defer svc.runGuard.Unlock()

	_, err := svc.Run(context.Background())
	if !errors.Is(err, ErrScanInProgress) {
		t.Fatalf("error = %v, want ErrScanInProgress", err)
	}
}
