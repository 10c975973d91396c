// Package resolver selects, among the decay records a provider returns for a
// nuclide, the subset belonging to the nuclide's specific excitation level.
//
// Providers flatten every level of a nuclide into one list and only tag each
// record with an optional parent excitation energy. Levels are therefore
// identified by their position in the sorted list of distinct parent energies:
//
//	levels[0] == 0   ground state present, state k maps to levels[k]
//	levels[0] != 0   ground state omitted, state k >= 1 maps to levels[k-1]
//
// Records with no parent energy are always kept.
package resolver

import (
	"context"
	"sort"

	"github.com/rewired-gh/fisdef/internal/logger"
	"github.com/rewired-gh/fisdef/internal/models"
)

// Provider returns every decay record of a ground-state nuclide for a
// radiation type. A nil slice with a nil error means the provider has no data.
type Provider interface {
	Lookup(ctx context.Context, nuclide models.Nuclide, rad models.RadType, live bool) ([]models.DecayRecord, error)
}

// Resolver fills sources with the records of their excitation level.
type Resolver struct {
	provider Provider
	rad      models.RadType
	live     bool
}

// New creates a Resolver querying provider for rad records. live is passed
// through to the provider untouched.
func New(provider Provider, rad models.RadType, live bool) *Resolver {
	return &Resolver{provider: provider, rad: rad, live: live}
}

// Resolve returns a copy of src holding the records of its excitation level.
// Provider failures are logged and yield a source with no records.
func (r *Resolver) Resolve(ctx context.Context, src models.Source) models.Source {
	records, err := r.provider.Lookup(ctx, src.Nuclide.Ground(), r.rad, r.live)
	if err != nil {
		logger.Warn("Failed to look up %s decay records for %s: %v", r.rad, src.InventoryName, err)
		return src.WithRecords(nil)
	}
	if len(records) == 0 {
		logger.Trace("%s decay records for %s: 0", r.rad, src.InventoryName)
		return src.WithRecords(nil)
	}

	selected := SelectLevel(records, src.Nuclide)
	logger.Trace("%s decay records for %s: %d", r.rad, src.InventoryName, len(selected))
	return src.WithRecords(selected)
}

// Levels returns the distinct parent excitation energies present in records,
// sorted ascending.
func Levels(records []models.DecayRecord) []float64 {
	var levels []float64
	for _, r := range records {
		if r.ParentEnergy != nil {
			levels = append(levels, *r.ParentEnergy)
		}
	}
	sort.Float64s(levels)

	var unique []float64
	for _, e := range levels {
		if len(unique) == 0 || unique[len(unique)-1] != e {
			unique = append(unique, e)
		}
	}
	return unique
}

// TargetEnergy maps an excited-state index onto the parent energy of that
// level. ok is false when levels holds no data for state.
func TargetEnergy(levels []float64, state int) (energy float64, ok bool) {
	m := len(levels)
	if m == 0 || state < 0 {
		return 0, false
	}

	if levels[0] == 0.0 {
		if state >= m {
			return 0, false
		}
		return levels[state], true
	}

	// no ground-state group, the lowest level is assumed to be the first excited state
	if state == 0 || state > m {
		return 0, false
	}
	return levels[state-1], true
}

// SelectLevel keeps the records whose parent energy matches the level of
// nuclide, plus every record with an undefined parent energy.
func SelectLevel(records []models.DecayRecord, nuclide models.Nuclide) []models.DecayRecord {
	levels := Levels(records)

	var target float64
	if len(levels) > 0 {
		var ok bool
		target, ok = TargetEnergy(levels, nuclide.State)
		if !ok {
			if levels[0] != 0.0 && nuclide.State == 0 {
				logger.Trace("No records for the ground state of %s", nuclide.NameWithState())
			} else {
				logger.Trace("No records for excited state of %s", nuclide.NameWithState())
			}
			return nil
		}
		if levels[0] != 0.0 {
			logger.Trace("Assuming %g keV is the first excited state of %s", levels[0], nuclide.Name())
		}
	}

	var selected []models.DecayRecord
	for _, r := range records {
		switch {
		case r.ParentEnergy == nil:
			logger.Trace("Unknown parent energy for %s", r.Parent)
			selected = append(selected, r)
		case len(levels) > 0 && *r.ParentEnergy == target:
			selected = append(selected, r)
		}
	}
	return selected
}
