package api

import (
	"fmt"

	"courierd/internal/engine"
	"courierd/internal/model"
)

func validateQuoteRequest(req *model.QuoteRequest) error {
	if req.BaseDeliveryCost <= 0 {
		return fmt.Errorf("baseDeliveryCost must be > 0")
	}
	if len(req.Packages) == 0 {
		return fmt.Errorf("packages must not be empty")
	}
	for i, p := range req.Packages {
		if err := engine.ValidatePackage(toEnginePackage(p)); err != nil {
			return fmt.Errorf("packages[%d]: %w", i, err)
		}
	}
	return nil
}

func validatePlanRequest(req *model.PlanRequest) error {
	if req.BaseDeliveryCost <= 0 {
		return fmt.Errorf("baseDeliveryCost must be > 0")
	}
	for i, p := range req.Packages {
		if err := engine.ValidatePackage(toEnginePackage(p)); err != nil {
			return fmt.Errorf("packages[%d]: %w", i, err)
		}
	}
	for i, v := range req.Vehicles {
		if err := engine.ValidateVehicle(toEngineVehicle(v)); err != nil {
			return fmt.Errorf("vehicles[%d]: %w", i, err)
		}
	}
	return nil
}

func toEnginePackage(p model.PackageIn) engine.Package {
	return engine.Package{ID: p.ID, Weight: p.Weight, Distance: p.Distance, OfferCode: p.OfferCode}
}

func toEngineVehicle(v model.VehicleIn) engine.Vehicle {
	return engine.Vehicle{ID: v.ID, Name: v.Name, MaxSpeed: v.MaxSpeed, MaxCarriableWeight: v.MaxCarriableWeight, AvailableTime: v.AvailableTime}
}
