package models

import (
	"fmt"
	"strconv"
	"strings"
)

// RadType selects which decay radiation records are requested from a provider.
type RadType int

const (
	Alpha RadType = iota
	BetaPlus
	BetaMinus
	Gamma
	XRay
	Electron
)

var radTypeNames = map[RadType]string{
	Alpha:     "alpha",
	BetaPlus:  "beta-plus",
	BetaMinus: "beta-minus",
	Gamma:     "gamma",
	XRay:      "xray",
	Electron:  "electron",
}

// AllRadTypes lists every radiation type in a stable order.
var AllRadTypes = []RadType{Alpha, BetaPlus, BetaMinus, Gamma, XRay, Electron}

// ParseRadType accepts the command line spelling of a radiation type.
func ParseRadType(s string) (RadType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch key {
	case "x-ray":
		key = "xray"
	case "betaplus", "beta_plus":
		key = "beta-plus"
	case "betaminus", "beta_minus":
		key = "beta-minus"
	}
	for r, name := range radTypeNames {
		if name == key {
			return r, nil
		}
	}
	return Gamma, fmt.Errorf("unknown radiation type %q", s)
}

// String returns the command line spelling.
func (r RadType) String() string {
	if name, ok := radTypeNames[r]; ok {
		return name
	}
	return "unknown"
}

// SortProperty orders the records of a source.
type SortProperty int

const (
	// SortEnergy orders by ascending emission energy.
	SortEnergy SortProperty = iota
	// SortIntensity orders by descending emission intensity.
	SortIntensity
)

// ParseSortProperty accepts "e", "energy", "i" or "intensity".
func ParseSortProperty(s string) (SortProperty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "e", "energy":
		return SortEnergy, nil
	case "i", "intensity":
		return SortIntensity, nil
	default:
		return SortEnergy, fmt.Errorf("unknown sort property %q", s)
	}
}

func (p SortProperty) String() string {
	if p == SortIntensity {
		return "intensity"
	}
	return "energy"
}

// DecayRecord is a single emission line published by a decay-data provider.
// Optional quantities are nil when the provider left them blank or unobserved.
type DecayRecord struct {
	Parent       string   `json:"parent"`                  // Parent nuclide name, e.g. "Co60"
	ParentEnergy *float64 `json:"parent_energy,omitempty"` // Parent excitation energy in keV
	Daughter     string   `json:"daughter"`                // Daughter nuclide name
	DecayMode    string   `json:"decay_mode,omitempty"`    // e.g. "B-", "EC", "IT"
	Branching    *float64 `json:"branching,omitempty"`     // Branching ratio in %
	Energy       *float64 `json:"energy,omitempty"`        // Emission energy in keV
	Intensity    *float64 `json:"intensity,omitempty"`     // Emission intensity in % per decay
	HalfLife     *float64 `json:"half_life,omitempty"`     // Parent half-life in seconds
}

// Observed reports whether both the emission energy and intensity are defined.
func (r DecayRecord) Observed() bool {
	return r.Energy != nil && r.Intensity != nil
}

// Float returns a pointer to v, for populating optional record fields.
func Float(v float64) *float64 {
	return &v
}

// Display renders an optional value for log messages.
func Display(v *float64) string {
	if v == nil {
		return "None"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
