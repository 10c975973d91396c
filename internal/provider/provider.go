// Package provider answers decay record lookups from the offline dataset or,
// for live lookups, from the IAEA API with write-through to the dataset.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rewired-gh/fisdef/internal/logger"
	"github.com/rewired-gh/fisdef/internal/metrics"
	"github.com/rewired-gh/fisdef/internal/models"
	"github.com/rewired-gh/fisdef/internal/storage"
)

// ErrNoLiveSource is returned for live lookups when no fetcher is configured.
var ErrNoLiveSource = errors.New("live lookups are not configured")

// Fetcher queries a remote decay data service.
type Fetcher interface {
	Fetch(ctx context.Context, nuclide models.Nuclide, rad models.RadType) ([]models.DecayRecord, error)
}

// Store is the offline dataset.
type Store interface {
	Get(ctx context.Context, nuclide models.Nuclide, rad models.RadType) ([]models.DecayRecord, bool, error)
	Put(ctx context.Context, nuclide models.Nuclide, rad models.RadType, records []models.DecayRecord) (storage.Fetch, error)
}

type key struct {
	nuclide string
	rad     models.RadType
	live    bool
}

// Provider memoises lookups per (nuclide, radiation type, mode) and is safe for
// concurrent use.
type Provider struct {
	fetcher Fetcher
	store   Store
	metrics *metrics.Metrics

	mu   sync.Mutex
	memo map[key][]models.DecayRecord
}

// New creates a Provider. fetcher may be nil for offline-only use; store may be
// nil when no dataset is available, in which case offline lookups find
// nothing and live results are not persisted. m may be nil.
func New(fetcher Fetcher, store Store, m *metrics.Metrics) *Provider {
	return &Provider{
		fetcher: fetcher,
		store:   store,
		metrics: m,
		memo:    make(map[key][]models.DecayRecord),
	}
}

// Lookup returns every decay record of nuclide for rad. Absence of data is
// reported as a nil slice and a nil error. Failed lookups are not memoised.
func (p *Provider) Lookup(ctx context.Context, nuclide models.Nuclide, rad models.RadType, live bool) ([]models.DecayRecord, error) {
	k := key{nuclide: nuclide.Ground().Name(), rad: rad, live: live}

	p.mu.Lock()
	cached, ok := p.memo[k]
	p.mu.Unlock()
	if ok {
		return copyRecords(cached), nil
	}

	var (
		records []models.DecayRecord
		err     error
	)
	if live {
		records, err = p.fetchLive(ctx, nuclide, rad)
	} else {
		records, err = p.readOffline(ctx, nuclide, rad)
	}
	if err != nil {
		p.metrics.Lookup(live, "error")
		return nil, err
	}

	if len(records) == 0 {
		p.metrics.Lookup(live, "miss")
	} else {
		p.metrics.Lookup(live, "hit")
	}

	p.mu.Lock()
	p.memo[k] = records
	p.mu.Unlock()
	return copyRecords(records), nil
}

func (p *Provider) readOffline(ctx context.Context, nuclide models.Nuclide, rad models.RadType) ([]models.DecayRecord, error) {
	if p.store == nil {
		return nil, nil
	}
	records, found, err := p.store.Get(ctx, nuclide, rad)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	if !found {
		logger.Debug("No %s data for %s in the offline dataset, try --fetch", rad, nuclide.Name())
	}
	return records, nil
}

func (p *Provider) fetchLive(ctx context.Context, nuclide models.Nuclide, rad models.RadType) ([]models.DecayRecord, error) {
	if p.fetcher == nil {
		return nil, ErrNoLiveSource
	}
	records, err := p.fetcher.Fetch(ctx, nuclide, rad)
	if err != nil {
		return nil, err
	}

	if p.store != nil {
		if _, err := p.store.Put(ctx, nuclide, rad, records); err != nil {
			// the lookup itself succeeded
			logger.Warn("Failed to save %s records for %s: %v", rad, nuclide.Name(), err)
		}
	}
	return records, nil
}

func copyRecords(records []models.DecayRecord) []models.DecayRecord {
	if records == nil {
		return nil
	}
	return append([]models.DecayRecord(nil), records...)
}
