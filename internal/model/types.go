package model

import "courierd/internal/engine"

// Wire types for the courier scheduling API.

type PackageIn struct {
	ID        string  `json:"id"`
	Weight    float64 `json:"weight"`
	Distance  float64 `json:"distance"`
	OfferCode string  `json:"offerCode,omitempty"`
}

type PackageOut struct {
	ID        string  `json:"id"`
	Weight    float64 `json:"weight"`
	Distance  float64 `json:"distance"`
	OfferCode string  `json:"offerCode,omitempty"`
	CreatedAt string  `json:"createdAt,omitempty"`
}

type VehicleIn struct {
	ID                 int     `json:"id"`
	Name               string  `json:"name,omitempty"`
	MaxSpeed           float64 `json:"maxSpeed"`
	MaxCarriableWeight float64 `json:"maxCarriableWeight"`
	AvailableTime      float64 `json:"availableTime,omitempty"`
}

type VehicleOut struct {
	ID                 int     `json:"id"`
	Name               string  `json:"name,omitempty"`
	MaxSpeed           float64 `json:"maxSpeed"`
	MaxCarriableWeight float64 `json:"maxCarriableWeight"`
	AvailableTime      float64 `json:"availableTime"`
	CreatedAt          string  `json:"createdAt,omitempty"`
}

// QuoteRequest asks for per-package costs only; no scheduling happens.
type QuoteRequest struct {
	BaseDeliveryCost float64     `json:"baseDeliveryCost"`
	Packages         []PackageIn `json:"packages"`
}

type QuoteResponse struct {
	Results []engine.CostResult `json:"results"`
}

// PlanRequest runs the full cost + scheduling engine. When Packages or
// Vehicles are omitted the stored backlog/fleet is used instead.
type PlanRequest struct {
	BaseDeliveryCost float64     `json:"baseDeliveryCost"`
	Packages         []PackageIn `json:"packages,omitempty"`
	Vehicles         []VehicleIn `json:"vehicles,omitempty"`
}

type PlanResponse struct {
	PlanID             string              `json:"planId,omitempty"`
	Results            []engine.CostResult `json:"results"`
	OptimizationSteps  []engine.Step       `json:"optimizationSteps"`
	Shipments          []engine.Shipment   `json:"shipments"`
	Vehicles           []engine.Vehicle    `json:"vehicles"`
	UnassignedPackages []engine.Package    `json:"unassignedPackages"`
	Warnings           []string            `json:"warnings,omitempty"`
	Summary            engine.Summary      `json:"summary"`
	Narrative          string              `json:"narrative"`
}

// Plan is the persisted record of one scheduling run.
type Plan struct {
	ID               string              `json:"id"`
	CreatedAt        string              `json:"createdAt"`
	BaseDeliveryCost float64             `json:"baseDeliveryCost"`
	Results          []engine.CostResult `json:"results"`
	Steps            []engine.Step       `json:"optimizationSteps"`
	Shipments        []engine.Shipment   `json:"shipments"`
	Vehicles         []engine.Vehicle    `json:"vehicles"`
	Unassigned       []engine.Package    `json:"unassignedPackages"`
	Warnings         []string            `json:"warnings,omitempty"`
	Summary          engine.Summary      `json:"summary"`
	Narrative        string              `json:"narrative"`
}

// PlanListItem is the compact listing view of a saved plan.
type PlanListItem struct {
	ID            string  `json:"id"`
	CreatedAt     string  `json:"createdAt"`
	TotalPackages int     `json:"totalPackages"`
	Unassigned    int     `json:"unassignedPackages"`
	TotalCost     float64 `json:"totalCost"`
	VehiclesUsed  int     `json:"vehiclesUsed"`
}

// Webhook subscription models.
type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}
