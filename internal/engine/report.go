package engine

import (
	"fmt"
	"strings"
)

// Summary aggregates a finished schedule for display. No decision logic;
// pure folding over final data.
type Summary struct {
	TotalPackages      int             `json:"totalPackages"`
	TotalWeight        float64         `json:"totalWeight"`
	TotalCost          float64         `json:"totalCost"`
	TotalDiscount      float64         `json:"totalDiscount"`
	VehiclesUsed       int             `json:"vehiclesUsed"`
	Shipments          int             `json:"shipments"`
	HeaviestPackageID  string          `json:"heaviestPackageId,omitempty"`
	LightestPackageID  string          `json:"lightestPackageId,omitempty"`
	MostUtilizedID     int             `json:"mostUtilizedVehicleId"`
	LeastUtilizedID    int             `json:"leastUtilizedVehicleId"`
	UtilizationPercent map[int]float64 `json:"utilizationPercent"`
	UnassignedPackages int             `json:"unassignedPackages"`
}

// Report is the reporter's combined output.
type Report struct {
	Summary   Summary `json:"summary"`
	Narrative string  `json:"narrative"`
}

// MergeDeliveryTimes back-fills EstimatedDeliveryTime into cost results by
// package id. Results are modified in place; packages the schedule never
// shipped keep a zero estimate.
func MergeDeliveryTimes(results []CostResult, deliveredAt map[string]float64) {
	for i := range results {
		if t, ok := deliveredAt[results[i].ID]; ok {
			results[i].EstimatedDeliveryTime = t
		}
	}
}

// BuildReport folds the finished run into aggregate statistics and the
// flattened step narrative.
func BuildReport(r Result, packages []Package, vehicles []Vehicle) Report {
	sum := Summary{
		TotalPackages:      len(packages),
		UtilizationPercent: map[int]float64{},
		UnassignedPackages: len(r.Unassigned),
		Shipments:          len(r.Shipments),
		MostUtilizedID:     -1,
		LeastUtilizedID:    -1,
	}
	for _, c := range r.Results {
		sum.TotalCost += c.TotalCost
		sum.TotalDiscount += c.Discount
	}
	var heaviest, lightest *Package
	for i := range packages {
		p := &packages[i]
		sum.TotalWeight += p.Weight
		if heaviest == nil || p.Weight > heaviest.Weight {
			heaviest = p
		}
		if lightest == nil || p.Weight < lightest.Weight {
			lightest = p
		}
	}
	if heaviest != nil {
		sum.HeaviestPackageID = heaviest.ID
		sum.LightestPackageID = lightest.ID
	}

	carried := map[int]float64{}
	for _, sh := range r.Shipments {
		for _, p := range sh.Packages {
			carried[sh.VehicleID] += p.Weight
		}
	}
	sum.VehiclesUsed = len(carried)
	for _, v := range vehicles {
		util := 0.0
		if v.MaxCarriableWeight > 0 {
			util = carried[v.ID] / v.MaxCarriableWeight * 100
		}
		sum.UtilizationPercent[v.ID] = util
		if sum.MostUtilizedID < 0 || util > sum.UtilizationPercent[sum.MostUtilizedID] {
			sum.MostUtilizedID = v.ID
		}
		if sum.LeastUtilizedID < 0 || util < sum.UtilizationPercent[sum.LeastUtilizedID] {
			sum.LeastUtilizedID = v.ID
		}
	}

	var b strings.Builder
	for _, st := range r.Steps {
		b.WriteString(st.Description)
		b.WriteString("\n")
	}
	return Report{Summary: sum, Narrative: b.String()}
}

// Run is the engine entry point: validates input, quotes every package,
// runs the round scheduler to completion and folds delivery times back into
// the quotes. The results slice preserves input package order.
func Run(packages []Package, vehicles []Vehicle, baseCost float64, catalog Catalog) (Result, error) {
	if baseCost <= 0 {
		return Result{}, fmt.Errorf("baseDeliveryCost must be > 0, got %v", baseCost)
	}
	seen := make(map[string]bool, len(packages))
	for _, p := range packages {
		if err := ValidatePackage(p); err != nil {
			return Result{}, err
		}
		if seen[p.ID] {
			return Result{}, fmt.Errorf("duplicate package id %s", p.ID)
		}
		seen[p.ID] = true
	}
	for _, v := range vehicles {
		if err := ValidateVehicle(v); err != nil {
			return Result{}, err
		}
	}

	results := make([]CostResult, len(packages))
	for i, p := range packages {
		cb := CalculateCost(p, baseCost, catalog)
		results[i] = CostResult{
			ID:           p.ID,
			Discount:     cb.Discount,
			TotalCost:    cb.TotalCost,
			OriginalCost: cb.OriginalCost,
		}
	}

	out := Schedule(packages, vehicles)
	MergeDeliveryTimes(results, out.DeliveredAt)

	return Result{
		Results:    results,
		Steps:      out.Steps,
		Shipments:  out.Shipments,
		Vehicles:   out.Vehicles,
		Unassigned: out.Unassigned,
		Warnings:   out.Warnings,
	}, nil
}
