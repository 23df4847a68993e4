package gormrepository

import "testing"

func TestNormalizeLimit(t *testing.T) {
	cases := []struct {
		limit, fallback, want int
	}{
		{0, 200, 200},
		{-5, 200, 200},
		{10, 200, 10},
		{500, 200, 500},
		{9999, 200, 500},
	}
	for _, tc := range cases {
		if got := normalizeLimit(tc.limit, tc.fallback); got != tc.want {
			t.Fatalf("normalizeLimit(%d, %d) = %d, want %d", tc.limit, tc.fallback, got, tc.want)
		}
	}
}

func TestNormalizeOffset(t *testing.T) {
	if got := normalizeOffset(-1); got != 0 {
		t.Fatalf("normalizeOffset(-1) = %d, want 0", got)
	}
	if got := normalizeOffset(40); got != 40 {
		t.Fatalf("normalizeOffset(40) = %d, want 40", got)
	}
}

func TestNilStoreIsInert(t *testing.T) {
	var s *Store
	if err := s.UpsertAuctionHistory(nil, nil); err != nil {
		t.Fatalf("nil store upsert: %v", err)
	}
	state, err := s.GetScanState(nil, "commodities")
	if err != nil || state != nil {
		t.Fatalf("nil store get state = %v, %v", state, err)
	}
}
