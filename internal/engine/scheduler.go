package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// RoundKind tags one phase of the scheduling state machine.
type RoundKind int

const (
	RoundComboSeed RoundKind = iota
	RoundHeaviestSingle
	RoundReturnSurvey
	RoundFillToCapacity
	RoundAvailabilitySurvey
	RoundDrain
	RoundSummary
)

// Steps marshal the kind by name so traces stay readable.
func (k RoundKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *RoundKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for kind := RoundComboSeed; kind <= RoundSummary; kind++ {
		if kind.String() == s {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown round kind %q", s)
}

func (k RoundKind) String() string {
	switch k {
	case RoundComboSeed:
		return "combination seeding"
	case RoundHeaviestSingle:
		return "heaviest single package"
	case RoundReturnSurvey:
		return "return-time survey"
	case RoundFillToCapacity:
		return "fill to capacity"
	case RoundAvailabilitySurvey:
		return "availability survey"
	case RoundDrain:
		return "drain"
	case RoundSummary:
		return "final summary"
	}
	return "unknown"
}

const (
	// When this many vehicles are simultaneously eligible in a round, every
	// delivery time computed in that round drops by a flat minute. Business
	// rule, reproduced as-is.
	concurrencyThreshold = 3
	concurrencyReduction = 1.0 / 60.0

	timeEps = 1e-9
)

// ScheduleOutput is what one run of the round state machine produces.
type ScheduleOutput struct {
	Shipments   []Shipment
	Steps       []Step
	Vehicles    []Vehicle
	Unassigned  []Package
	Warnings    []string
	DeliveredAt map[string]float64 // package id -> absolute delivery hour
}

type scheduler struct {
	vehicles    []Vehicle // scheduler-owned copies, the only mutable state
	remaining   []Package // unassigned pool, input order preserved
	stranded    []Package // structurally unassignable, decided during drain
	now         float64   // logical clock, hours
	used        map[int]bool
	assignments []Assignment
	shipments   []Shipment
	steps       []Step
	warnings    []string
	deliveredAt map[string]float64
}

// Schedule runs the multi-round assignment state machine over copies of the
// given packages and vehicles. It never fails: structural infeasibility is
// reported through Unassigned and Warnings, not an error.
func Schedule(packages []Package, vehicles []Vehicle) ScheduleOutput {
	s := &scheduler{
		remaining:   copyPackages(packages),
		used:        map[int]bool{},
		deliveredAt: map[string]float64{},
	}
	s.vehicles = make([]Vehicle, len(vehicles))
	copy(s.vehicles, vehicles)

	s.runRound(RoundComboSeed, s.comboSeed)
	s.runRound(RoundHeaviestSingle, s.heaviestSingle)
	s.runRound(RoundReturnSurvey, s.returnSurvey)
	s.runRound(RoundFillToCapacity, s.fillToCapacity)
	s.runRound(RoundAvailabilitySurvey, s.availabilitySurvey)
	s.runRound(RoundDrain, s.drain)
	s.summary()

	return ScheduleOutput{
		Shipments:   s.shipments,
		Steps:       s.steps,
		Vehicles:    s.vehicles,
		Unassigned:  copyPackages(s.stranded),
		Warnings:    s.warnings,
		DeliveredAt: s.deliveredAt,
	}
}

type roundFn func() (made []Assignment, desc string)

func (s *scheduler) runRound(kind RoundKind, fn roundFn) {
	made, desc := fn()
	s.emitStep(kind, made, desc)
}

// comboSeed assigns the best feasible multi-package combination to every
// vehicle beyond the first. Claimed packages leave the pool before the next
// vehicle generates its combinations, so the first claim always wins.
func (s *scheduler) comboSeed() ([]Assignment, string) {
	order := s.byAvailability()
	reduce := s.eligibleCount() >= concurrencyThreshold
	var made []Assignment
	for i, vi := range order {
		if i == 0 {
			continue // first vehicle is left for the single-package round
		}
		v := s.vehicles[vi]
		if v.AvailableTime > s.now+timeEps {
			continue
		}
		combos := bestCombinations(s.remaining, v.MaxCarriableWeight)
		if len(combos) == 0 {
			continue
		}
		pick := combos[0]
		pkgs := s.takeByID(pick.PackageIDs)
		made = append(made, s.assign(vi, pkgs, reduce))
	}
	if len(made) == 0 {
		return made, "no multi-package combination fits any secondary vehicle"
	}
	return made, "seeded combined loads: " + describeAssignments(made)
}

// heaviestSingle hands the heaviest remaining package to each idle vehicle
// that has not carried anything yet, one package per vehicle.
func (s *scheduler) heaviestSingle() ([]Assignment, string) {
	reduce := s.eligibleCount() >= concurrencyThreshold
	var made []Assignment
	for _, vi := range s.byAvailability() {
		v := s.vehicles[vi]
		if v.AvailableTime > s.now+timeEps || s.used[v.ID] {
			continue
		}
		pi := s.heaviestFit(v.MaxCarriableWeight)
		if pi < 0 {
			continue
		}
		pkg := s.remaining[pi]
		s.removeAt(pi)
		made = append(made, s.assign(vi, []Package{pkg}, reduce))
	}
	if len(made) == 0 {
		return made, "no idle vehicle could take a single package"
	}
	return made, "assigned heaviest singles: " + describeAssignments(made)
}

// returnSurvey advances the logical clock to the earliest return among
// vehicles already carrying a load. No new assignment.
func (s *scheduler) returnSurvey() ([]Assignment, string) {
	next := math.Inf(1)
	nextID := -1
	for _, v := range s.vehicles {
		if !s.used[v.ID] {
			continue
		}
		if v.AvailableTime > s.now+timeEps && v.AvailableTime < next {
			next = v.AvailableTime
			nextID = v.ID
		}
	}
	if nextID < 0 {
		return nil, "no vehicle in transit; clock unchanged"
	}
	s.now = next
	return nil, fmt.Sprintf("vehicle %02d returns first; clock advanced to %.2f hr", nextID, s.now)
}

// fillToCapacity gives one more package to each vehicle that becomes
// available exactly at the advanced clock.
func (s *scheduler) fillToCapacity() ([]Assignment, string) {
	reduce := s.eligibleCount() >= concurrencyThreshold
	var made []Assignment
	for _, vi := range s.byAvailability() {
		v := s.vehicles[vi]
		if !s.used[v.ID] || math.Abs(v.AvailableTime-s.now) > timeEps {
			continue
		}
		pi := s.heaviestFit(v.MaxCarriableWeight)
		if pi < 0 {
			continue
		}
		pkg := s.remaining[pi]
		s.removeAt(pi)
		made = append(made, s.assign(vi, []Package{pkg}, reduce))
	}
	if len(made) == 0 {
		return made, "no vehicle freed up at the current hour"
	}
	return made, "refilled returning vehicles: " + describeAssignments(made)
}

// availabilitySurvey republishes which vehicles are free at the current
// clock. No assignment; the drain round consumes this view.
func (s *scheduler) availabilitySurvey() ([]Assignment, string) {
	var free []string
	for _, vi := range s.byAvailability() {
		v := s.vehicles[vi]
		if v.AvailableTime <= s.now+timeEps {
			free = append(free, fmt.Sprintf("%02d", v.ID))
		}
	}
	if len(free) == 0 {
		return nil, "no vehicle available at the current hour"
	}
	return nil, fmt.Sprintf("vehicles available at %.2f hr: %s (vehicle %s departs next)",
		s.now, strings.Join(free, ", "), free[0])
}

// drain repeatedly hands the heaviest unassigned package to the first
// available vehicle until the pool is empty. Every iteration removes one
// package from the pool (shipped or declared stranded), and the pass is
// additionally bounded by the initial pool size so a degenerate input can
// never loop forever.
func (s *scheduler) drain() ([]Assignment, string) {
	reduce := s.eligibleCount() >= concurrencyThreshold
	var made []Assignment
	for guard := len(s.remaining); len(s.remaining) > 0 && guard > 0; guard-- {
		pi := s.heaviestFit(math.Inf(1))
		pkg := s.remaining[pi]
		s.removeAt(pi)

		assigned := false
		for _, vi := range s.byAvailability() {
			v := &s.vehicles[vi]
			if pkg.Weight > v.MaxCarriableWeight {
				continue
			}
			if v.AvailableTime > s.now+timeEps {
				s.now = v.AvailableTime // wait for the first returning vehicle
			}
			made = append(made, s.assign(vi, []Package{pkg}, reduce))
			assigned = true
			break
		}
		if !assigned {
			s.stranded = append(s.stranded, pkg)
			s.warnings = append(s.warnings,
				fmt.Sprintf("package %s (%.2f kg) exceeds every vehicle capacity; left unassigned", pkg.ID, pkg.Weight))
		}
	}
	if len(s.remaining) > 0 {
		// Unreachable as long as each iteration shrinks the pool, but a
		// stalled drain must terminate with a soft result, not spin.
		s.stranded = append(s.stranded, s.remaining...)
		s.remaining = nil
		s.warnings = append(s.warnings, "drain round made no progress; remaining packages reported unassigned")
	}
	if len(made) == 0 {
		return made, "nothing left to drain"
	}
	return made, "drained remaining packages: " + describeAssignments(made)
}

func (s *scheduler) summary() {
	totalWeight := 0.0
	count := 0
	for _, sh := range s.shipments {
		for _, p := range sh.Packages {
			totalWeight += p.Weight
			count++
		}
	}
	desc := fmt.Sprintf("schedule complete: %d packages (%.2f kg) across %d vehicles in %d shipments",
		count, totalWeight, len(s.used), len(s.shipments))
	if len(s.stranded) > 0 {
		desc += fmt.Sprintf("; %d packages could not be assigned", len(s.stranded))
	}
	s.emitStep(RoundSummary, nil, desc)
}

// emitStep records the trace entry for a finished round and runs the
// duplicate-assignment validator over everything assigned so far. A detected
// duplicate is a warning, never an abort.
func (s *scheduler) emitStep(kind RoundKind, made []Assignment, desc string) {
	var warns []string
	if val := ValidateAssignments(s.assignments); !val.IsValid {
		w := "duplicate package assignment detected: " + strings.Join(val.DuplicatePackageIDs, ", ")
		warns = append(warns, w)
		if len(s.warnings) == 0 || s.warnings[len(s.warnings)-1] != w {
			s.warnings = append(s.warnings, w)
		}
	}
	var assigned []Package
	for _, a := range s.assignments {
		assigned = append(assigned, a.Packages...)
	}
	unassigned := copyPackages(s.remaining)
	unassigned = append(unassigned, copyPackages(s.stranded)...)
	s.steps = append(s.steps, Step{
		Step:               len(s.steps) + 1,
		Kind:               kind,
		Description:        fmt.Sprintf("Step %d (%s): %s", len(s.steps)+1, kind, desc),
		PackagesRemaining:  len(s.remaining),
		VehiclesAvailable:  s.eligibleCount(),
		CurrentTime:        s.now,
		VehicleAssignments: copyAssignments(made),
		UnassignedPackages: unassigned,
		AssignedPackages:   copyPackages(assigned),
		Warnings:           warns,
	})
}

// assign books pkgs on vehicle index vi departing at the current clock and
// pushes the vehicle's availability forward by the round trip.
func (s *scheduler) assign(vi int, pkgs []Package, reduce bool) Assignment {
	v := &s.vehicles[vi]
	total, maxDist := 0.0, 0.0
	for _, p := range pkgs {
		total += p.Weight
		if p.Distance > maxDist {
			maxDist = p.Distance
		}
		s.deliveredAt[p.ID] = s.now + tripTime(p.Distance, v.MaxSpeed, reduce)
	}
	dt := tripTime(maxDist, v.MaxSpeed, reduce)
	a := Assignment{
		VehicleID:      v.ID,
		Packages:       copyPackages(pkgs),
		TotalWeight:    total,
		MaxDistance:    maxDist,
		DeliveryTime:   dt,
		ReturnTime:     2 * dt,
		AvailableAfter: s.now + 2*dt,
	}
	v.AvailableTime = a.AvailableAfter
	s.used[v.ID] = true
	s.assignments = append(s.assignments, a)
	s.shipments = append(s.shipments, Shipment{
		Packages:     copyPackages(pkgs),
		VehicleID:    v.ID,
		DeliveryTime: dt,
		ReturnTime:   2 * dt,
	})
	return a
}

// tripTime is the one-way trip duration, optionally shaved by the flat
// concurrency reduction, floored at zero.
func tripTime(distance, speed float64, reduce bool) float64 {
	t := distance / speed
	if reduce {
		t -= concurrencyReduction
		if t < 0 {
			t = 0
		}
	}
	return t
}

// byAvailability returns vehicle indices ordered by smallest availableTime,
// ties broken by vehicle id ascending.
func (s *scheduler) byAvailability() []int {
	order := make([]int, len(s.vehicles))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		va, vb := s.vehicles[order[a]], s.vehicles[order[b]]
		if va.AvailableTime != vb.AvailableTime {
			return va.AvailableTime < vb.AvailableTime
		}
		return va.ID < vb.ID
	})
	return order
}

func (s *scheduler) eligibleCount() int {
	n := 0
	for _, v := range s.vehicles {
		if v.AvailableTime <= s.now+timeEps {
			n++
		}
	}
	return n
}

// heaviestFit picks the strictly heaviest remaining package not exceeding
// maxLoad; weight ties keep the earlier input position. Returns -1 if none.
func (s *scheduler) heaviestFit(maxLoad float64) int {
	best := -1
	for i, p := range s.remaining {
		if p.Weight > maxLoad {
			continue
		}
		if best < 0 || p.Weight > s.remaining[best].Weight {
			best = i
		}
	}
	return best
}

func (s *scheduler) removeAt(i int) {
	s.remaining = append(s.remaining[:i], s.remaining[i+1:]...)
}

// takeByID removes the named packages from the pool and returns them in the
// pool's order.
func (s *scheduler) takeByID(ids []string) []Package {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var taken []Package
	kept := s.remaining[:0]
	for _, p := range s.remaining {
		if want[p.ID] {
			taken = append(taken, p)
		} else {
			kept = append(kept, p)
		}
	}
	s.remaining = kept
	return taken
}

func describeAssignments(as []Assignment) string {
	parts := make([]string, len(as))
	for i, a := range as {
		ids := make([]string, len(a.Packages))
		for j, p := range a.Packages {
			ids[j] = p.ID
		}
		parts[i] = fmt.Sprintf("vehicle %02d takes %s (%.2f kg, delivery %.2f hr, back at %.2f hr)",
			a.VehicleID, strings.Join(ids, "+"), a.TotalWeight, a.DeliveryTime, a.AvailableAfter)
	}
	return strings.Join(parts, "; ")
}
