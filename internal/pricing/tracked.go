package pricing

// Material is one tracked commodity with its rank item IDs in rank order.
// Rank indexes are 0-based internally; rows and API responses surface them
// 1-based, and only for materials with more than one rank.
type Material struct {
	Name  string
	Ranks []int32
}

// TrackedItems returns the blacksmithing materials the scanner prices.
func TrackedItems() []Material {
	return []Material{
		{Name: "Bismuth", Ranks: []int32{210930, 210931, 210932}},
		{Name: "Ironclaw Ore", Ranks: []int32{210933, 210934, 210935}},
		{Name: "Aqirite", Ranks: []int32{210936, 210937, 210938}},
		{Name: "Crystalline Powder", Ranks: []int32{212495}},
	}
}

type bucketRef struct {
	material int
	rank     int
}

// buildIndex maps each tracked item ID to its (material, rank) bucket.
// Tracked IDs are distinct across buckets, so a listing matches at most one.
func buildIndex(materials []Material) map[int32]bucketRef {
	index := make(map[int32]bucketRef)
	for mi, mat := range materials {
		for ri, id := range mat.Ranks {
			index[id] = bucketRef{material: mi, rank: ri}
		}
	}
	return index
}
