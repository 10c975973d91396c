// Package builder turns the unstable nuclides of one inventory interval into
// the ordered list of sources handed to the emitters.
//
// Stages, in order:
//
//	map       parse inventory names, dropping unresolvable ones
//	dedup     sort by inventory name and drop repeated (name, nuclide) pairs
//	resolve   fetch the records of each nuclide's excitation level
//	filter    remove records without emission energy or intensity
//	sort      order records by energy or intensity
//	drop      remove sources with no records left
//	final     sort sources by inventory name
package builder

import (
	"context"
	"errors"
	"sort"

	"github.com/rewired-gh/fisdef/internal/logger"
	"github.com/rewired-gh/fisdef/internal/metrics"
	"github.com/rewired-gh/fisdef/internal/models"
)

// Resolver fills a source with its level's decay records.
type Resolver interface {
	Resolve(ctx context.Context, src models.Source) models.Source
}

// Builder runs the source pipeline for one interval at a time.
type Builder struct {
	resolver Resolver
	sort     models.SortProperty
	metrics  *metrics.Metrics
}

// New creates a Builder. m may be nil.
func New(r Resolver, property models.SortProperty, m *metrics.Metrics) *Builder {
	return &Builder{resolver: r, sort: property, metrics: m}
}

// Build returns the sources of an interval. It returns nil when no entry maps
// to a nuclide or no nuclide has usable decay data.
func (b *Builder) Build(ctx context.Context, entries []models.InventoryEntry) []models.Source {
	sources := b.Map(entries)
	if len(sources) == 0 {
		return nil
	}
	sources = Dedup(sources)

	logger.Debug("Inventory to nuclide map:")
	for _, s := range sources {
		logger.Debug("   %-6s -> %s", s.InventoryName, s.Nuclide.NameWithState())
	}

	resolved := make([]models.Source, 0, len(sources))
	for _, s := range sources {
		s = b.resolver.Resolve(ctx, s)
		s = b.removeUnobserved(s)
		s = s.SortedBy(b.sort)
		resolved = append(resolved, s)
	}

	resolved = b.DropEmpty(resolved)
	if len(resolved) == 0 {
		return nil
	}

	SortByName(resolved)
	return resolved
}

// Map parses every entry into a Source. Unresolvable names are logged and dropped.
func (b *Builder) Map(entries []models.InventoryEntry) []models.Source {
	sources := make([]models.Source, 0, len(entries))
	for _, e := range entries {
		s, err := models.NewSource(e.Name, e.Activity)
		if err != nil {
			if errors.Is(err, models.ErrUnresolvableNuclide) {
				logger.Debug("Could not convert %q to nuclide, skipping: %v", e.Name, err)
			} else {
				logger.Warn("Unexpected error mapping %q: %v", e.Name, err)
			}
			b.metrics.UnresolvedNuclide()
			continue
		}
		sources = append(sources, s)
	}
	return sources
}

// Dedup sorts sources by inventory name and removes consecutive duplicates.
func Dedup(sources []models.Source) []models.Source {
	sorted := append([]models.Source(nil), sources...)
	SortByName(sorted)

	out := make([]models.Source, 0, len(sorted))
	for _, s := range sorted {
		if len(out) > 0 && out[len(out)-1].Equal(s) {
			logger.Trace("Removing duplicate %s", s.InventoryName)
			continue
		}
		out = append(out, s)
	}
	return out
}

func (b *Builder) removeUnobserved(s models.Source) models.Source {
	filtered, removed := s.WithoutUnobserved()
	for _, r := range removed {
		logger.Trace("Skipping bad %s record: %q keV, %q %%", s.InventoryName, models.Display(r.Energy), models.Display(r.Intensity))
	}
	if len(removed) > 0 {
		logger.Debug("Records with unobserved emissions removed from %s", s.InventoryName)
		b.metrics.UnobservedRecords(len(removed))
	}
	return filtered
}

// DropEmpty removes sources that have no records.
func (b *Builder) DropEmpty(sources []models.Source) []models.Source {
	out := make([]models.Source, 0, len(sources))
	for _, s := range sources {
		if len(s.Records) == 0 {
			logger.Trace("No usable decay data for %s", s.InventoryName)
			b.metrics.EmptySource()
			continue
		}
		out = append(out, s)
	}
	return out
}

// SortByName orders sources by inventory name, keeping the order of equal names.
func SortByName(sources []models.Source) {
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].InventoryName < sources[j].InventoryName
	})
}
