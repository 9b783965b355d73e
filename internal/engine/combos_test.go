package engine

import "testing"

func comboPackages() []Package {
	return []Package{
		{ID: "PKG1", Weight: 50, Distance: 30},
		{ID: "PKG2", Weight: 75, Distance: 125},
		{ID: "PKG3", Weight: 175, Distance: 100},
		{ID: "PKG4", Weight: 110, Distance: 60},
		{ID: "PKG5", Weight: 155, Distance: 95},
	}
}

func TestGenerateCombinationsWeightCutoff(t *testing.T) {
	combos := GenerateCombinations(comboPackages(), 2, 5, 200)
	// Only three pairs fit under 200 kg; no triple can.
	want := map[string]float64{
		"PKG1+PKG2": 125,
		"PKG1+PKG4": 160,
		"PKG2+PKG4": 185,
	}
	if len(combos) != len(want) {
		t.Fatalf("expected %d combinations, got %d: %+v", len(want), len(combos), combos)
	}
	for _, c := range combos {
		key := c.PackageIDs[0] + "+" + c.PackageIDs[1]
		w, ok := want[key]
		if !ok {
			t.Fatalf("unexpected combination %v", c.PackageIDs)
		}
		if !almost(c.TotalWeight, w) {
			t.Fatalf("%s: want weight %v, got %v", key, w, c.TotalWeight)
		}
	}
}

func TestGenerateCombinationsDeterministic(t *testing.T) {
	a := GenerateCombinations(comboPackages(), 2, 5, 200)
	b := GenerateCombinations(comboPackages(), 2, 5, 200)
	if len(a) != len(b) {
		t.Fatalf("non-deterministic count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].TotalWeight != b[i].TotalWeight || a[i].PackageIDs[0] != b[i].PackageIDs[0] {
			t.Fatalf("order differs at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestGenerateCombinationsSizeCap(t *testing.T) {
	// Ten 1 kg packages under a huge load cap: subsets stop at size 5.
	var pkgs []Package
	for i := 0; i < 10; i++ {
		pkgs = append(pkgs, Package{ID: string(rune('A' + i)), Weight: 1, Distance: 10})
	}
	for _, c := range GenerateCombinations(pkgs, 2, 5, 1000) {
		if len(c.PackageIDs) > 5 {
			t.Fatalf("combination exceeds size cap: %v", c.PackageIDs)
		}
	}
}

func TestBestCombinationsHeaviestFirst(t *testing.T) {
	combos := bestCombinations(comboPackages(), 200)
	if len(combos) == 0 {
		t.Fatal("no combinations generated")
	}
	if !almost(combos[0].TotalWeight, 185) {
		t.Fatalf("heaviest combination must come first, got %+v", combos[0])
	}
	for i := 1; i < len(combos); i++ {
		if combos[i].TotalWeight > combos[i-1].TotalWeight {
			t.Fatalf("combinations not sorted descending at %d", i)
		}
	}
}

func TestGenerateCombinationsEmptyAndSmall(t *testing.T) {
	if got := GenerateCombinations(nil, 2, 5, 200); len(got) != 0 {
		t.Fatalf("empty input: got %+v", got)
	}
	one := []Package{{ID: "PKG1", Weight: 10, Distance: 10}}
	if got := GenerateCombinations(one, 2, 5, 200); len(got) != 0 {
		t.Fatalf("single package cannot form a pair: got %+v", got)
	}
}
