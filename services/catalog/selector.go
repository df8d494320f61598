package catalog

import (
	"math/rand"
	"sort"
)

// Band is the inclusive price-sum range a daily batch should land in.
type Band struct {
	Low  float64
	High float64
}

func (b Band) Contains(sum float64) bool {
	return sum >= b.Low && sum <= b.High
}

// Selection is the outcome of a banded pick. BandViolated is set when the
// final sum falls outside the band; callers record it for monitoring.
type Selection struct {
	Products     []*Product
	TotalPrice   float64
	BandViolated bool
}

// SelectRandom draws count distinct products uniformly at random. A pool
// smaller than count yields the whole pool; the caller decides whether that
// is an error.
func SelectRandom(pool []*Product, count int) []*Product {
	if count <= 0 || len(pool) == 0 {
		return nil
	}

	shuffled := make([]*Product, len(pool))
	copy(shuffled, pool)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	if count > len(shuffled) {
		count = len(shuffled)
	}
	return shuffled[:count]
}

// SelectBanded picks count products whose price sum lands inside band,
// best effort. Three stages over the price-ascending pool: a greedy pass
// accumulating while the running sum stays within band.High, a retry pass
// under the same rule when the first pass came up short or under band.Low,
// and a top-up pass filling remaining slots with the cheapest products not
// yet selected, ignoring the band. Exactly count products are returned
// whenever the pool holds at least count.
func SelectBanded(pool []*Product, count int, band Band) Selection {
	if count <= 0 || len(pool) == 0 {
		return Selection{}
	}

	sorted := make([]*Product, len(pool))
	copy(sorted, pool)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Price < sorted[j].Price
	})

	selected, total, picked := greedyPass(sorted, count, band.High)

	if len(selected) != count || total < band.Low {
		// Best-effort retry under the same rule before falling back.
		selected, total, picked = greedyPass(sorted, count, band.High)
	}

	if len(selected) < count {
		for _, p := range sorted {
			if len(selected) == count {
				break
			}
			if picked[p.ID] {
				continue
			}
			selected = append(selected, p)
			total += p.Price
			picked[p.ID] = true
		}
	}

	return Selection{
		Products:     selected,
		TotalPrice:   total,
		BandViolated: !band.Contains(total),
	}
}

func greedyPass(sorted []*Product, count int, high float64) ([]*Product, float64, map[string]bool) {
	selected := make([]*Product, 0, count)
	picked := make(map[string]bool, count)
	var total float64

	for _, p := range sorted {
		if len(selected) == count {
			break
		}
		if total+p.Price <= high {
			selected = append(selected, p)
			total += p.Price
			picked[p.ID] = true
		}
	}

	return selected, total, picked
}
