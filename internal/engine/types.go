package engine

// Core scheduling types. One Run works on its own copies of everything;
// nothing here outlives a single call.

// Package is a single delivery unit. Immutable once submitted.
type Package struct {
	ID        string  `json:"id"`
	Weight    float64 `json:"weight"`
	Distance  float64 `json:"distance"`
	OfferCode string  `json:"offerCode,omitempty"`
}

// Vehicle carries packages. AvailableTime is the logical hour at which the
// vehicle is next free to depart; it only ever increases during a run.
type Vehicle struct {
	ID                 int     `json:"id"`
	Name               string  `json:"name,omitempty"`
	MaxSpeed           float64 `json:"maxSpeed"`
	MaxCarriableWeight float64 `json:"maxCarriableWeight"`
	AvailableTime      float64 `json:"availableTime"`
}

// Assignment binds a package subset to one vehicle for one round.
type Assignment struct {
	VehicleID      int       `json:"vehicleId"`
	Packages       []Package `json:"packages"`
	TotalWeight    float64   `json:"totalWeight"`
	MaxDistance    float64   `json:"maxDistance"`
	DeliveryTime   float64   `json:"deliveryTime"`
	ReturnTime     float64   `json:"returnTime"`
	AvailableAfter float64   `json:"availableAfter"`
}

// Shipment is the final output unit: one vehicle-round assignment that
// actually carried packages.
type Shipment struct {
	Packages     []Package `json:"packages"`
	VehicleID    int       `json:"vehicleId"`
	DeliveryTime float64   `json:"deliveryTime"`
	ReturnTime   float64   `json:"returnTime"`
}

// Step is an append-only trace record, one per round. It holds copies of the
// assignment data at the time it was produced; later vehicle mutation cannot
// change an already-emitted step.
type Step struct {
	Step               int        `json:"step"`
	Kind               RoundKind  `json:"kind"`
	Description        string     `json:"description"`
	PackagesRemaining  int        `json:"packagesRemaining"`
	VehiclesAvailable  int        `json:"vehiclesAvailable"`
	CurrentTime        float64    `json:"currentTime"`
	VehicleAssignments []Assignment `json:"vehicleAssignments"`
	UnassignedPackages []Package  `json:"unassignedPackages"`
	AssignedPackages   []Package  `json:"assignedPackages"`
	Warnings           []string   `json:"warnings,omitempty"`
}

// CostResult is the per-package quote. EstimatedDeliveryTime is back-filled
// by the reporter once the schedule is final.
type CostResult struct {
	ID                    string  `json:"id"`
	Discount              float64 `json:"discount"`
	TotalCost             float64 `json:"totalCost"`
	OriginalCost          float64 `json:"originalCost"`
	EstimatedDeliveryTime float64 `json:"estimatedDeliveryTime"`
}

// Result is everything one scheduling run produces.
type Result struct {
	Results    []CostResult `json:"results"`
	Steps      []Step       `json:"optimizationSteps"`
	Shipments  []Shipment   `json:"shipments"`
	Vehicles   []Vehicle    `json:"vehicles"`
	Unassigned []Package    `json:"unassignedPackages"`
	Warnings   []string     `json:"warnings,omitempty"`
}

func copyPackages(in []Package) []Package {
	out := make([]Package, len(in))
	copy(out, in)
	return out
}

func copyAssignments(in []Assignment) []Assignment {
	out := make([]Assignment, len(in))
	for i, a := range in {
		a.Packages = copyPackages(a.Packages)
		out[i] = a
	}
	return out
}
