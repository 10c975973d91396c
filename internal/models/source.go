package models

import (
	"fmt"
	"sort"
)

// InventoryEntry is an unstable nuclide as reported by the inventory reader.
type InventoryEntry struct {
	Name     string
	Activity float64 // Bq
}

// Source is one resolved nuclide within one inventory interval.
//
// Equality only considers InventoryName and Nuclide; Activity and Records do
// not take part, so two entries for the same nuclide collapse into one.
type Source struct {
	InventoryName string        `json:"inventory_name"` // Name as written in the inventory
	Activity      float64       `json:"activity"`       // Activity in Bq
	Nuclide       Nuclide       `json:"nuclide"`
	Records       []DecayRecord `json:"records"`
}

// NewSource resolves an inventory entry into a Source with no records.
func NewSource(name string, activity float64) (Source, error) {
	nuclide, err := ParseNuclide(name)
	if err != nil {
		return Source{}, err
	}
	return Source{InventoryName: name, Activity: activity, Nuclide: nuclide}, nil
}

// Equal reports whether two sources describe the same inventory nuclide.
func (s Source) Equal(other Source) bool {
	return s.InventoryName == other.InventoryName && s.Nuclide == other.Nuclide
}

// Norm is the summed intensity of all records divided by 100, i.e. the
// number of emitted particles per decay. Undefined intensities count as 0.
func (s Source) Norm() float64 {
	total := 0.0
	for _, r := range s.Records {
		if r.Intensity != nil {
			total += *r.Intensity
		}
	}
	return total / 100.0
}

// WithRecords returns a copy of s holding a private copy of records.
func (s Source) WithRecords(records []DecayRecord) Source {
	out := s
	out.Records = append([]DecayRecord(nil), records...)
	return out
}

// WithoutUnobserved returns a copy of s without records lacking an emission
// energy or intensity, along with the records that were removed.
func (s Source) WithoutUnobserved() (Source, []DecayRecord) {
	kept := make([]DecayRecord, 0, len(s.Records))
	var removed []DecayRecord
	for _, r := range s.Records {
		if r.Observed() {
			kept = append(kept, r)
		} else {
			removed = append(removed, r)
		}
	}
	out := s
	out.Records = kept
	return out, removed
}

// SortedBy returns a copy of s with records ordered by property. The sort is
// stable so ties keep provider order.
//
// It panics if a record is missing the sort key; callers remove unobserved
// records first.
func (s Source) SortedBy(property SortProperty) Source {
	out := s.WithRecords(s.Records)
	for _, r := range out.Records {
		if !r.Observed() {
			panic(fmt.Sprintf("sort %s records of %s: unobserved record present", property, s.InventoryName))
		}
	}

	switch property {
	case SortIntensity:
		sort.SliceStable(out.Records, func(i, j int) bool {
			return *out.Records[i].Intensity > *out.Records[j].Intensity
		})
	default:
		sort.SliceStable(out.Records, func(i, j int) bool {
			return *out.Records[i].Energy < *out.Records[j].Energy
		})
	}
	return out
}
