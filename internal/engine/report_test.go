package engine

import (
	"strings"
	"testing"
)

func TestMergeDeliveryTimes(t *testing.T) {
	results := []CostResult{{ID: "A"}, {ID: "B"}, {ID: "C"}}
	MergeDeliveryTimes(results, map[string]float64{"A": 1.5, "C": 3.25})
	if results[0].EstimatedDeliveryTime != 1.5 || results[2].EstimatedDeliveryTime != 3.25 {
		t.Fatalf("merge failed: %+v", results)
	}
	if results[1].EstimatedDeliveryTime != 0 {
		t.Fatalf("unshipped package must keep zero estimate: %+v", results[1])
	}
}

func TestBuildReportAggregates(t *testing.T) {
	pkgs := comboPackages()
	vehicles := twoVehicles()
	res, err := Run(pkgs, vehicles, 100, DefaultCatalog())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	rep := BuildReport(res, pkgs, vehicles)
	sum := rep.Summary

	if sum.TotalPackages != 5 || sum.UnassignedPackages != 0 {
		t.Fatalf("package counts wrong: %+v", sum)
	}
	if !almost(sum.TotalWeight, 50+75+175+110+155) {
		t.Fatalf("total weight: got %v", sum.TotalWeight)
	}
	if sum.HeaviestPackageID != "PKG3" || sum.LightestPackageID != "PKG1" {
		t.Fatalf("extremes wrong: %+v", sum)
	}
	if sum.VehiclesUsed != 2 {
		t.Fatalf("vehicles used: got %d", sum.VehiclesUsed)
	}
	// Vehicle 1 carries PKG3+PKG5 (330 kg), vehicle 2 carries PKG2+PKG4+PKG1
	// (235 kg) over the whole run; both against a 200 kg capacity per trip.
	if sum.MostUtilizedID != 1 || sum.LeastUtilizedID != 2 {
		t.Fatalf("utilization ranking wrong: %+v", sum.UtilizationPercent)
	}
	wantCost := 0.0
	for _, c := range res.Results {
		wantCost += c.TotalCost
	}
	if !almost(sum.TotalCost, wantCost) {
		t.Fatalf("total cost mismatch: %v vs %v", sum.TotalCost, wantCost)
	}
}

func TestBuildReportNarrative(t *testing.T) {
	pkgs := comboPackages()
	vehicles := twoVehicles()
	res, err := Run(pkgs, vehicles, 100, DefaultCatalog())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	rep := BuildReport(res, pkgs, vehicles)
	lines := strings.Split(strings.TrimRight(rep.Narrative, "\n"), "\n")
	if len(lines) != len(res.Steps) {
		t.Fatalf("narrative must carry one line per step: %d vs %d", len(lines), len(res.Steps))
	}
	for i, line := range lines {
		if line != res.Steps[i].Description {
			t.Fatalf("narrative line %d diverges from step description", i)
		}
	}
}
