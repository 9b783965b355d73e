package engine

import "testing"

func TestValidateAssignmentsClean(t *testing.T) {
	as := []Assignment{
		{VehicleID: 1, Packages: []Package{{ID: "A"}, {ID: "B"}}},
		{VehicleID: 2, Packages: []Package{{ID: "C"}}},
	}
	v := ValidateAssignments(as)
	if !v.IsValid || len(v.DuplicatePackageIDs) != 0 {
		t.Fatalf("clean assignments flagged: %+v", v)
	}
}

func TestValidateAssignmentsDuplicate(t *testing.T) {
	as := []Assignment{
		{VehicleID: 1, Packages: []Package{{ID: "A"}, {ID: "B"}}},
		{VehicleID: 2, Packages: []Package{{ID: "B"}, {ID: "C"}}},
		{VehicleID: 3, Packages: []Package{{ID: "C"}}},
	}
	v := ValidateAssignments(as)
	if v.IsValid {
		t.Fatal("duplicates not detected")
	}
	if len(v.DuplicatePackageIDs) != 2 || v.DuplicatePackageIDs[0] != "B" || v.DuplicatePackageIDs[1] != "C" {
		t.Fatalf("want sorted [B C], got %v", v.DuplicatePackageIDs)
	}
}

func TestValidateAssignmentsSameVehicleTwice(t *testing.T) {
	// The same package on the same vehicle across rounds is not a
	// cross-vehicle duplicate.
	as := []Assignment{
		{VehicleID: 1, Packages: []Package{{ID: "A"}}},
		{VehicleID: 1, Packages: []Package{{ID: "A"}}},
	}
	if v := ValidateAssignments(as); !v.IsValid {
		t.Fatalf("same-vehicle repeat flagged as duplicate: %+v", v)
	}
}

func TestValidateAssignmentsEmpty(t *testing.T) {
	if v := ValidateAssignments(nil); !v.IsValid {
		t.Fatalf("empty set must be valid: %+v", v)
	}
}
