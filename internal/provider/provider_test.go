package provider

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rewired-gh/fisdef/internal/metrics"
	"github.com/rewired-gh/fisdef/internal/models"
	"github.com/rewired-gh/fisdef/internal/storage"
)

type fakeFetcher struct {
	mu      sync.Mutex
	records map[string][]models.DecayRecord
	err     error
	calls   int
}

func (f *fakeFetcher) Fetch(_ context.Context, n models.Nuclide, _ models.RadType) ([]models.DecayRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records[n.Name()], nil
}

type fakeStore struct {
	records map[string][]models.DecayRecord
	putErr  error
	puts    int
}

func (s *fakeStore) Get(_ context.Context, n models.Nuclide, _ models.RadType) ([]models.DecayRecord, bool, error) {
	recs, ok := s.records[n.Name()]
	return recs, ok, nil
}

func (s *fakeStore) Put(_ context.Context, n models.Nuclide, _ models.RadType, recs []models.DecayRecord) (storage.Fetch, error) {
	s.puts++
	if s.putErr != nil {
		return storage.Fetch{}, s.putErr
	}
	s.records[n.Name()] = recs
	return storage.Fetch{Nuclide: n.Name(), RecordCount: len(recs)}, nil
}

func gammaLine(e float64) models.DecayRecord {
	return models.DecayRecord{Parent: "Co60", Energy: models.Float(e), Intensity: models.Float(50)}
}

func TestLookupOffline(t *testing.T) {
	store := &fakeStore{records: map[string][]models.DecayRecord{"Co60": {gammaLine(1173.2)}}}
	m := metrics.New()
	p := New(nil, store, m)
	ctx := context.Background()
	co60m, _ := models.ParseNuclide("Co60m")

	records, err := p.Lookup(ctx, co60m, models.Gamma, false)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected ground state records, got %d", len(records))
	}

	h3, _ := models.ParseNuclide("H3")
	records, err = p.Lookup(ctx, h3, models.Gamma, false)
	if err != nil || records != nil {
		t.Errorf("Expected no data for unknown nuclide, got %v, %v", records, err)
	}

	expected := `
# HELP fisdef_provider_lookups_total Decay record provider lookups by mode and result.
# TYPE fisdef_provider_lookups_total counter
fisdef_provider_lookups_total{mode="offline",result="hit"} 1
fisdef_provider_lookups_total{mode="offline",result="miss"} 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "fisdef_provider_lookups_total"); err != nil {
		t.Errorf("unexpected lookup metrics: %v", err)
	}
}

func TestLookupLiveWritesThrough(t *testing.T) {
	fetcher := &fakeFetcher{records: map[string][]models.DecayRecord{"Co60": {gammaLine(1332.5), gammaLine(1173.2)}}}
	store := &fakeStore{records: map[string][]models.DecayRecord{}}
	p := New(fetcher, store, nil)
	ctx := context.Background()
	co60, _ := models.ParseNuclide("Co60")

	records, err := p.Lookup(ctx, co60, models.Gamma, true)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if len(records) != 2 || *records[0].Energy != 1332.5 {
		t.Errorf("Expected provider order, got %+v", records)
	}
	if store.puts != 1 || len(store.records["Co60"]) != 2 {
		t.Errorf("Expected live records to be saved, got %d puts", store.puts)
	}

	// later offline runs reuse the saved records
	offline, err := p.Lookup(ctx, co60, models.Gamma, false)
	if err != nil || len(offline) != 2 {
		t.Errorf("Expected saved records offline, got %d (%v)", len(offline), err)
	}
}

func TestLookupMemoises(t *testing.T) {
	fetcher := &fakeFetcher{records: map[string][]models.DecayRecord{"Co60": {gammaLine(1173.2)}}}
	p := New(fetcher, nil, nil)
	ctx := context.Background()
	co60, _ := models.ParseNuclide("Co60")
	co60m, _ := models.ParseNuclide("Co60m")

	first, _ := p.Lookup(ctx, co60, models.Gamma, true)
	first[0].Parent = "mutated"

	second, err := p.Lookup(ctx, co60m, models.Gamma, true)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("Expected a single fetch, got %d", fetcher.calls)
	}
	if second[0].Parent != "Co60" {
		t.Errorf("Cached records were mutated through a returned slice: %q", second[0].Parent)
	}

	if _, err := p.Lookup(ctx, co60, models.XRay, true); err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if fetcher.calls != 2 {
		t.Errorf("Expected a fetch per radiation type, got %d", fetcher.calls)
	}
}

func TestLookupErrors(t *testing.T) {
	ctx := context.Background()
	co60, _ := models.ParseNuclide("Co60")

	if _, err := New(nil, nil, nil).Lookup(ctx, co60, models.Gamma, true); !errors.Is(err, ErrNoLiveSource) {
		t.Errorf("Expected ErrNoLiveSource, got %v", err)
	}

	boom := errors.New("connection refused")
	fetcher := &fakeFetcher{err: boom}
	p := New(fetcher, nil, nil)
	if _, err := p.Lookup(ctx, co60, models.Gamma, true); !errors.Is(err, boom) {
		t.Errorf("Expected fetch error, got %v", err)
	}
	// failures are retried on the next lookup
	fetcher.err = nil
	if _, err := p.Lookup(ctx, co60, models.Gamma, true); err != nil {
		t.Errorf("Expected second lookup to succeed, got %v", err)
	}
	if fetcher.calls != 2 {
		t.Errorf("Expected 2 fetches, got %d", fetcher.calls)
	}
}

func TestLookupSaveFailureIsNotFatal(t *testing.T) {
	fetcher := &fakeFetcher{records: map[string][]models.DecayRecord{"Co60": {gammaLine(1173.2)}}}
	store := &fakeStore{records: map[string][]models.DecayRecord{}, putErr: errors.New("disk full")}
	co60, _ := models.ParseNuclide("Co60")

	records, err := New(fetcher, store, nil).Lookup(context.Background(), co60, models.Gamma, true)
	if err != nil || len(records) != 1 {
		t.Errorf("Expected records despite save failure, got %d (%v)", len(records), err)
	}
}

func TestLookupConcurrent(t *testing.T) {
	fetcher := &fakeFetcher{records: map[string][]models.DecayRecord{"Co60": {gammaLine(1173.2)}}}
	p := New(fetcher, nil, nil)
	co60, _ := models.ParseNuclide("Co60")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if recs, err := p.Lookup(context.Background(), co60, models.Gamma, true); err != nil || len(recs) != 1 {
				t.Errorf("concurrent lookup: %d records, %v", len(recs), err)
			}
		}()
	}
	wg.Wait()
}

func TestLookupWithDataset(t *testing.T) {
	ds, err := storage.Open(filepath.Join(t.TempDir(), "decay.db"), 0755)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ds.Close()

	fetcher := &fakeFetcher{records: map[string][]models.DecayRecord{"Co60": {gammaLine(1173.2)}}}
	co60, _ := models.ParseNuclide("Co60")
	if _, err := New(fetcher, ds, nil).Lookup(context.Background(), co60, models.Gamma, true); err != nil {
		t.Fatalf("live Lookup failed: %v", err)
	}

	// a fresh provider has an empty memo and must read the file
	records, err := New(nil, ds, nil).Lookup(context.Background(), co60, models.Gamma, false)
	if err != nil || len(records) != 1 {
		t.Errorf("Expected 1 record from dataset, got %d (%v)", len(records), err)
	}
}
