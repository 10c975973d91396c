package builder

import (
	"context"
	"testing"

	"github.com/rewired-gh/fisdef/internal/models"
)

// stubResolver returns canned records per ground-state nuclide name.
type stubResolver struct {
	records map[string][]models.DecayRecord
	calls   int
}

func (s *stubResolver) Resolve(_ context.Context, src models.Source) models.Source {
	s.calls++
	return src.WithRecords(s.records[src.Nuclide.NameWithState()])
}

func line(energy, intensity float64) models.DecayRecord {
	return models.DecayRecord{Parent: "P", Energy: models.Float(energy), Intensity: models.Float(intensity)}
}

func TestBuildPipeline(t *testing.T) {
	r := &stubResolver{records: map[string][]models.DecayRecord{
		"Co60": {line(1332.5, 99.98), line(1173.2, 99.85)},
		"Fe55": {{Parent: "Fe55", Energy: models.Float(5.9)}}, // unobserved only
		"Mn54": {line(834.8, 99.98), {Parent: "Mn54", Intensity: models.Float(1)}},
	}}
	b := New(r, models.SortEnergy, nil)

	entries := []models.InventoryEntry{
		{Name: "Mn54", Activity: 2.0},
		{Name: "Co60", Activity: 1.0e10},
		{Name: "Zz99", Activity: 3.0}, // unresolvable
		{Name: "Fe55", Activity: 4.0},
		{Name: "Co60", Activity: 7.0}, // duplicate
	}

	got := b.Build(context.Background(), entries)
	if len(got) != 2 {
		t.Fatalf("expected 2 sources, got %d: %+v", len(got), got)
	}
	if got[0].InventoryName != "Co60" || got[1].InventoryName != "Mn54" {
		t.Errorf("unexpected order: %s, %s", got[0].InventoryName, got[1].InventoryName)
	}
	if *got[0].Records[0].Energy != 1173.2 || *got[0].Records[1].Energy != 1332.5 {
		t.Errorf("Co60 records not sorted by energy: %v, %v", *got[0].Records[0].Energy, *got[0].Records[1].Energy)
	}
	if len(got[1].Records) != 1 {
		t.Errorf("expected unobserved Mn54 record removed, got %d records", len(got[1].Records))
	}
	if r.calls != 3 {
		t.Errorf("expected 3 resolutions after dedup, got %d", r.calls)
	}
}

func TestBuildIntensitySort(t *testing.T) {
	r := &stubResolver{records: map[string][]models.DecayRecord{
		"Eu152": {line(121.8, 28.5), line(344.3, 26.6), line(1408.0, 20.9), line(964.1, 14.5)},
	}}
	got := New(r, models.SortIntensity, nil).Build(context.Background(), []models.InventoryEntry{{Name: "Eu152", Activity: 1}})
	if len(got) != 1 {
		t.Fatalf("expected 1 source, got %d", len(got))
	}
	recs := got[0].Records
	for i := 0; i+1 < len(recs); i++ {
		if *recs[i].Intensity < *recs[i+1].Intensity {
			t.Errorf("intensity not descending at %d", i)
		}
	}
}

func TestBuildEmpty(t *testing.T) {
	r := &stubResolver{records: map[string][]models.DecayRecord{}}
	b := New(r, models.SortEnergy, nil)

	if got := b.Build(context.Background(), []models.InventoryEntry{{Name: "not-a-nuclide"}}); got != nil {
		t.Errorf("expected nil for unresolvable interval, got %+v", got)
	}
	if r.calls != 0 {
		t.Errorf("resolver should not run when mapping leaves nothing, got %d calls", r.calls)
	}
	if got := b.Build(context.Background(), []models.InventoryEntry{{Name: "Co60"}, {Name: "H3"}}); got != nil {
		t.Errorf("expected nil when no nuclide has data, got %+v", got)
	}
}

func TestDedupKeepsFirstAfterSort(t *testing.T) {
	a, _ := models.NewSource("Co60", 1.0)
	b, _ := models.NewSource("Co60", 2.0)
	c, _ := models.NewSource("Ag110m", 3.0)
	d, _ := models.NewSource("Ag110m", 3.0)

	got := Dedup([]models.Source{a, c, b, d})
	if len(got) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(got))
	}
	if got[0].InventoryName != "Ag110m" || got[1].InventoryName != "Co60" {
		t.Errorf("unexpected order: %s, %s", got[0].InventoryName, got[1].InventoryName)
	}
	if got[1].Activity != 1.0 {
		t.Errorf("expected first Co60 entry to survive, got activity %v", got[1].Activity)
	}
}
