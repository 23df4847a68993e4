package pricing

import (
	"math"
	"sort"
	"time"
)

const (
	// decayConstant gives recent listings roughly a two-hour half-life.
	decayConstant = 7200000 * time.Millisecond
	// trimFraction of cumulative weight is discarded at each end of the
	// price-sorted entries before the robust mean.
	trimFraction = 0.10
	// cheapFraction of the lowest-priced entries feeds the current-price
	// estimate.
	cheapFraction = 0.10
	// minMarketDepth is the total quantity below which the robust estimate
	// is distrusted entirely.
	minMarketDepth = 100
	// staleSkewFactor caps how far the robust estimate may sit above the
	// current ask before it is treated as stale-listing skew.
	staleSkewFactor = 1.2
	// robustShare is the robust estimate's weight in the blend.
	robustShare = 0.25
)

// Listing is one observed commodity listing.
type Listing struct {
	ItemID     int32
	Quantity   int32
	UnitPrice  int64
	ObservedAt time.Time
}

// Entry is a priced observation inside a bucket.
type Entry struct {
	Quantity  int32
	UnitPrice int64
	Timestamp time.Time
}

// RankSummary accumulates one (material, rank) bucket for a single scan and
// carries the derived estimates once Finalize has run. Prices are copper.
type RankSummary struct {
	Material  string
	Rank      int
	RankCount int

	Listings      int
	TotalQuantity int64
	Entries       []Entry

	RobustAvg  int64
	CurrentAvg int64
	BlendedAvg int64
}

// StoredRank is the value persisted in the conflict key: 1-based for
// multi-rank materials, 0 for single-rank ones (rendered as null outward).
func (s *RankSummary) StoredRank() int16 {
	if s.RankCount > 1 {
		return int16(s.Rank + 1)
	}
	return 0
}

// Engine classifies listings into tracked buckets and prices each bucket.
type Engine struct {
	Clock     Clock
	Materials []Material
}

func NewEngine(clock Clock) *Engine {
	if clock == nil {
		clock = RealClock{}
	}
	return &Engine{Clock: clock, Materials: TrackedItems()}
}

// Summarize buckets the listings and finalizes every bucket, including empty
// ones, so each tracked (material, rank) emits exactly one summary per scan.
func (e *Engine) Summarize(listings []Listing) []*RankSummary {
	summaries := make([]*RankSummary, 0)
	byBucket := make(map[bucketRef]*RankSummary)
	for mi, mat := range e.Materials {
		for ri := range mat.Ranks {
			s := &RankSummary{
				Material:  mat.Name,
				Rank:      ri,
				RankCount: len(mat.Ranks),
			}
			byBucket[bucketRef{material: mi, rank: ri}] = s
			summaries = append(summaries, s)
		}
	}

	index := buildIndex(e.Materials)
	now := e.Clock.Now()
	for _, l := range listings {
		ref, ok := index[l.ItemID]
		if !ok {
			continue
		}
		s := byBucket[ref]
		s.Listings++
		s.TotalQuantity += int64(l.Quantity)
		if l.UnitPrice > 0 {
			ts := l.ObservedAt
			if ts.IsZero() {
				ts = now
			}
			s.Entries = append(s.Entries, Entry{Quantity: l.Quantity, UnitPrice: l.UnitPrice, Timestamp: ts})
		}
	}

	for _, s := range summaries {
		e.finalize(s, now)
	}
	return summaries
}

func (e *Engine) finalize(s *RankSummary, now time.Time) {
	robust := timeWeightedTrimmedMean(s.Entries, now)
	current := currentAverage(s.Entries)

	blended := robust*robustShare + current*(1-robustShare)
	if s.TotalQuantity < minMarketDepth || robust > current*staleSkewFactor {
		blended = current
	}

	s.RobustAvg = int64(math.Round(robust))
	s.CurrentAvg = int64(math.Round(current))
	s.BlendedAvg = int64(math.Round(blended))
}

// currentAverage is the quantity-weighted mean unit price over the cheapest
// 10% of entries (at least one): what it costs to buy right now.
func currentAverage(entries []Entry) float64 {
	if len(entries) == 0 {
		return 0
	}
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UnitPrice < sorted[j].UnitPrice })

	limit := int(float64(len(sorted)) * cheapFraction)
	if limit < 1 {
		limit = 1
	}
	var totalPrice, totalQuantity float64
	for _, e := range sorted[:limit] {
		totalPrice += float64(e.UnitPrice) * float64(e.Quantity)
		totalQuantity += float64(e.Quantity)
	}
	if totalQuantity == 0 {
		return 0
	}
	return totalPrice / totalQuantity
}

type weightedEntry struct {
	unitPrice       int64
	effectiveWeight float64
}

// timeWeightedTrimmedMean discards the bottom and top 10% of cumulative
// effective weight (quantity decayed by listing age) and averages the
// remainder. An entry straddling a trim boundary contributes only the
// portion of its weight inside the retained band.
func timeWeightedTrimmedMean(entries []Entry, now time.Time) float64 {
	if len(entries) == 0 {
		return 0
	}
	weighted := make([]weightedEntry, 0, len(entries))
	for _, e := range entries {
		age := now.Sub(e.Timestamp)
		recency := math.Exp(-float64(age) / float64(decayConstant))
		weighted = append(weighted, weightedEntry{
			unitPrice:       e.UnitPrice,
			effectiveWeight: float64(e.Quantity) * recency,
		})
	}
	sort.Slice(weighted, func(i, j int) bool { return weighted[i].unitPrice < weighted[j].unitPrice })

	var totalWeight float64
	for _, w := range weighted {
		totalWeight += w.effectiveWeight
	}
	if totalWeight == 0 {
		return 0
	}
	low := totalWeight * trimFraction
	high := totalWeight * (1 - trimFraction)

	var cum, weightedSum, used float64
	for _, w := range weighted {
		prev := cum
		cum += w.effectiveWeight
		portion := math.Min(cum, high) - math.Max(prev, low)
		if portion > 0 {
			weightedSum += float64(w.unitPrice) * portion
			used += portion
		}
	}
	if used == 0 {
		return 0
	}
	return weightedSum / used
}
