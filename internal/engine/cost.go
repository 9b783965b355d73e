package engine

import "fmt"

// Fixed linear tariff. Policy constants, not configurable per call.
const (
	weightRate   = 10.0
	distanceRate = 5.0
)

// CostBreakdown is the output of a single cost calculation.
type CostBreakdown struct {
	OriginalCost float64 `json:"originalCost"`
	Discount     float64 `json:"discount"`
	TotalCost    float64 `json:"totalCost"`
}

// CalculateCost quotes one package against the base delivery cost. Pure
// function of its inputs and the catalog; an offer code that does not resolve
// or whose ranges reject the package yields a zero discount, not an error.
func CalculateCost(p Package, baseCost float64, catalog Catalog) CostBreakdown {
	original := baseCost + p.Weight*weightRate + p.Distance*distanceRate
	discount := 0.0
	if offer, ok := catalog.Lookup(p.OfferCode); ok && offer.Applies(p) {
		discount = original * offer.DiscountPercent / 100
	}
	return CostBreakdown{
		OriginalCost: original,
		Discount:     discount,
		TotalCost:    original - discount,
	}
}

// ValidatePackage rejects packages the scheduler must never see.
func ValidatePackage(p Package) error {
	if p.ID == "" {
		return fmt.Errorf("package id is required")
	}
	if p.Weight <= 0 {
		return fmt.Errorf("package %s: weight must be > 0, got %v", p.ID, p.Weight)
	}
	if p.Distance <= 0 {
		return fmt.Errorf("package %s: distance must be > 0, got %v", p.ID, p.Distance)
	}
	return nil
}

// ValidateVehicle rejects vehicles the scheduler must never see.
func ValidateVehicle(v Vehicle) error {
	if v.MaxSpeed <= 0 {
		return fmt.Errorf("vehicle %d: maxSpeed must be > 0, got %v", v.ID, v.MaxSpeed)
	}
	if v.MaxCarriableWeight <= 0 {
		return fmt.Errorf("vehicle %d: maxCarriableWeight must be > 0, got %v", v.ID, v.MaxCarriableWeight)
	}
	if v.AvailableTime < 0 {
		return fmt.Errorf("vehicle %d: availableTime must be >= 0, got %v", v.ID, v.AvailableTime)
	}
	return nil
}
