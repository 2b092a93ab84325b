package safety

import "fmt"

// ViolationKind names the check that had to correct a proposed action.
type ViolationKind int

const (
	NonFinite     ViolationKind = iota // a NaN or infinite value was replaced with zero
	Shape                              // the action had the wrong number of storage set points
	PowerRating                        // a storage set point exceeded the unit's charge or discharge rating
	SoCFloor                           // discharge was zeroed because the unit is at or below its SoC floor
	SoCCeiling                         // charge was zeroed because the unit is at or above its SoC ceiling
	Thermal                            // power was derated because the unit is outside its temperature band
	EVCapacity                         // EV charging exceeded the site rating or what the fleet can take
	Curtailment                        // the curtailment fraction was outside [0, 1]
	GridCapacity                       // the proposed grid exchange exceeded the interconnection rating
	PowerBalance                       // the grid alone could not balance the site, so other set points were changed
)

var violationNames = map[ViolationKind]string{
	NonFinite:    "non_finite",
	Shape:        "shape",
	PowerRating:  "power_rating",
	SoCFloor:     "soc_floor",
	SoCCeiling:   "soc_ceiling",
	Thermal:      "thermal",
	EVCapacity:   "ev_capacity",
	Curtailment:  "curtailment",
	GridCapacity: "grid_capacity",
	PowerBalance: "power_balance",
}

func (k ViolationKind) String() string {
	name, ok := violationNames[k]
	if !ok {
		return fmt.Sprintf("violation(%d)", int(k))
	}
	return name
}

// Violation records one correction. Index is the storage unit concerned, or -1 for site-level checks.
type Violation struct {
	Kind  ViolationKind
	Index int
}

// Result describes what the supervisor had to do to make an action safe.
type Result struct {
	Violations  []Violation
	UnmetKW     float64 // demand that could not be served within the import limit
	CurtailedKW float64 // renewable generation withheld
}

func (r *Result) add(kind ViolationKind, index int) {
	r.Violations = append(r.Violations, Violation{Kind: kind, Index: index})
}

// Count returns the number of violations of the given kind.
func (r Result) Count(kind ViolationKind) int {
	n := 0
	for _, v := range r.Violations {
		if v.Kind == kind {
			n++
		}
	}
	return n
}

// Has returns true if at least one violation of the given kind was recorded.
func (r Result) Has(kind ViolationKind) bool {
	return r.Count(kind) > 0
}
