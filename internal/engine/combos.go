package engine

import "sort"

// Combination is a candidate multi-package load for one vehicle.
type Combination struct {
	PackageIDs  []string `json:"packageIds"`
	TotalWeight float64  `json:"totalWeight"`
}

// Subset sizes are capped to keep the power-set search bounded.
const (
	minComboSize = 2
	maxComboSize = 5
)

// GenerateCombinations enumerates every subset of size minSize..maxSize whose
// summed weight does not exceed maxLoad. Output order is deterministic for a
// given package list: sizes ascending, members in input order within a size.
func GenerateCombinations(packages []Package, minSize, maxSize int, maxLoad float64) []Combination {
	n := len(packages)
	if maxSize > n {
		maxSize = n
	}
	if minSize < 1 {
		minSize = 1
	}
	var out []Combination
	idx := make([]int, 0, maxSize)
	var walk func(start, size int, weight float64)
	walk = func(start, size int, weight float64) {
		if len(idx) == size {
			ids := make([]string, size)
			for i, j := range idx {
				ids[i] = packages[j].ID
			}
			out = append(out, Combination{PackageIDs: ids, TotalWeight: weight})
			return
		}
		for i := start; i < n; i++ {
			w := weight + packages[i].Weight
			if w > maxLoad {
				continue
			}
			idx = append(idx, i)
			walk(i+1, size, w)
			idx = idx[:len(idx)-1]
		}
	}
	for size := minSize; size <= maxSize; size++ {
		walk(0, size, 0)
	}
	return out
}

// bestCombinations returns combinations for the standard size range sorted by
// total weight descending. The contract callers rely on is "heaviest valid
// combination first"; ties keep generation order.
func bestCombinations(packages []Package, maxLoad float64) []Combination {
	combos := GenerateCombinations(packages, minComboSize, maxComboSize, maxLoad)
	sort.SliceStable(combos, func(i, j int) bool {
		return combos[i].TotalWeight > combos[j].TotalWeight
	})
	return combos
}
