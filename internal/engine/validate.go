package engine

import "sort"

// Validation is the outcome of a duplicate-assignment check.
type Validation struct {
	IsValid             bool     `json:"isValid"`
	DuplicatePackageIDs []string `json:"duplicatePackageIds,omitempty"`
}

// ValidateAssignments checks that no package id appears in more than one
// vehicle's assignment set. Pure function; used after every round as a
// diagnostic, never as a hard gate.
func ValidateAssignments(assignments []Assignment) Validation {
	seen := map[string]map[int]struct{}{}
	for _, a := range assignments {
		for _, p := range a.Packages {
			if seen[p.ID] == nil {
				seen[p.ID] = map[int]struct{}{}
			}
			seen[p.ID][a.VehicleID] = struct{}{}
		}
	}
	var dups []string
	for id, vehicles := range seen {
		if len(vehicles) > 1 {
			dups = append(dups, id)
		}
	}
	sort.Strings(dups)
	return Validation{IsValid: len(dups) == 0, DuplicatePackageIDs: dups}
}
