// Package storage provides the offline decay dataset: decay records per
// nuclide and radiation type kept in a single SQLite file, plus a ledger of
// the fetches that populated it.
//
// A nuclide counts as known once a fetch has been recorded for it, even when
// that fetch returned no records, so offline lookups can tell "no data" apart
// from "never fetched".
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/fisdef/internal/models"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS decay_records (
	nuclide       TEXT    NOT NULL,
	rad_type      TEXT    NOT NULL,
	seq           INTEGER NOT NULL,
	parent        TEXT    NOT NULL,
	parent_energy REAL,
	daughter      TEXT    NOT NULL,
	decay_mode    TEXT    NOT NULL,
	branching     REAL,
	energy        REAL,
	intensity     REAL,
	half_life     REAL,
	PRIMARY KEY (nuclide, rad_type, seq)
);
CREATE TABLE IF NOT EXISTS fetches (
	id           TEXT    PRIMARY KEY,
	nuclide      TEXT    NOT NULL,
	rad_type     TEXT    NOT NULL,
	fetched_at   TEXT    NOT NULL,
	record_count INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS fetches_key ON fetches (nuclide, rad_type);
`

// Fetch is one ledger entry.
type Fetch struct {
	ID          uuid.UUID `json:"id"`
	Nuclide     string    `json:"nuclide"`
	RadType     string    `json:"rad_type"`
	FetchedAt   time.Time `json:"fetched_at"`
	RecordCount int       `json:"record_count"`
}

// Dataset is the SQLite-backed offline decay dataset. It is safe for
// concurrent use.
type Dataset struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// DefaultPath returns the dataset location used when none is configured.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), "fisdef", "decay.db")
}

// Open opens or creates the dataset at path, creating parent directories
// with dirPermissions.
func Open(path string, dirPermissions os.FileMode) (*Dataset, error) {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("failed to create dataset directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	// a single connection serialises writers on the file
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create dataset schema: %w", err)
	}
	return &Dataset{db: db, path: path}, nil
}

// Close releases the database handle.
func (d *Dataset) Close() error {
	return d.db.Close()
}

// Path returns the dataset file path.
func (d *Dataset) Path() string { return d.path }

// Get returns the stored records of nuclide for rad in provider order. found
// is false when the pair was never fetched.
func (d *Dataset) Get(ctx context.Context, nuclide models.Nuclide, rad models.RadType) (records []models.DecayRecord, found bool, err error) {
	key := nuclide.Ground().Name()

	var n int
	if err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fetches WHERE nuclide = ? AND rad_type = ?`, key, rad.String()).Scan(&n); err != nil {
		return nil, false, fmt.Errorf("failed to query fetches: %w", err)
	}
	if n == 0 {
		return nil, false, nil
	}

	rows, err := d.db.QueryContext(ctx, `SELECT parent, parent_energy, daughter, decay_mode, branching, energy, intensity, half_life
		FROM decay_records WHERE nuclide = ? AND rad_type = ? ORDER BY seq`, key, rad.String())
	if err != nil {
		return nil, true, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			r                                                   models.DecayRecord
			parentEnergy, branching, energy, intensity, halfLife sql.NullFloat64
		)
		if err := rows.Scan(&r.Parent, &parentEnergy, &r.Daughter, &r.DecayMode, &branching, &energy, &intensity, &halfLife); err != nil {
			return nil, true, fmt.Errorf("failed to scan record: %w", err)
		}
		r.ParentEnergy = fromNull(parentEnergy)
		r.Branching = fromNull(branching)
		r.Energy = fromNull(energy)
		r.Intensity = fromNull(intensity)
		r.HalfLife = fromNull(halfLife)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, true, fmt.Errorf("failed to read records: %w", err)
	}
	return records, true, nil
}

// Put replaces the stored records of nuclide for rad and appends a ledger
// entry.
func (d *Dataset) Put(ctx context.Context, nuclide models.Nuclide, rad models.RadType, records []models.DecayRecord) (fetch Fetch, retErr error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fetch = Fetch{
		ID:          uuid.New(),
		Nuclide:     nuclide.Ground().Name(),
		RadType:     rad.String(),
		FetchedAt:   time.Now().UTC(),
		RecordCount: len(records),
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return Fetch{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM decay_records WHERE nuclide = ? AND rad_type = ?`, fetch.Nuclide, fetch.RadType); err != nil {
		return Fetch{}, fmt.Errorf("failed to clear records: %w", err)
	}
	for i, r := range records {
		if _, err := tx.ExecContext(ctx, `INSERT INTO decay_records
			(nuclide, rad_type, seq, parent, parent_energy, daughter, decay_mode, branching, energy, intensity, half_life)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			fetch.Nuclide, fetch.RadType, i, r.Parent, toNull(r.ParentEnergy), r.Daughter, r.DecayMode,
			toNull(r.Branching), toNull(r.Energy), toNull(r.Intensity), toNull(r.HalfLife)); err != nil {
			return Fetch{}, fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO fetches (id, nuclide, rad_type, fetched_at, record_count) VALUES (?, ?, ?, ?, ?)`,
		fetch.ID.String(), fetch.Nuclide, fetch.RadType, fetch.FetchedAt.Format(time.RFC3339Nano), fetch.RecordCount); err != nil {
		return Fetch{}, fmt.Errorf("failed to record fetch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Fetch{}, fmt.Errorf("failed to commit records: %w", err)
	}
	return fetch, nil
}

// Fetches returns the ledger, oldest first.
func (d *Dataset) Fetches(ctx context.Context) ([]Fetch, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, nuclide, rad_type, fetched_at, record_count FROM fetches ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var fetches []Fetch
	for rows.Next() {
		var (
			f         Fetch
			id, stamp string
		)
		if err := rows.Scan(&id, &f.Nuclide, &f.RadType, &stamp, &f.RecordCount); err != nil {
			return nil, fmt.Errorf("failed to scan fetch: %w", err)
		}
		if f.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid fetch id %q: %w", id, err)
		}
		if f.FetchedAt, err = time.Parse(time.RFC3339Nano, stamp); err != nil {
			return nil, fmt.Errorf("invalid fetch time %q: %w", stamp, err)
		}
		fetches = append(fetches, f)
	}
	return fetches, rows.Err()
}

// ExportFile is the file structure written by Export.
type ExportFile struct {
	Version string                          `json:"version"`
	SavedAt time.Time                       `json:"saved_at"`
	Fetches []Fetch                         `json:"fetches"`
	Records map[string][]models.DecayRecord `json:"records"` // keyed by "<nuclide>/<rad type>"
}

// Export writes the whole dataset as JSON to path using an atomic write.
func (d *Dataset) Export(ctx context.Context, path string, filePermissions, dirPermissions os.FileMode) error {
	fetches, err := d.Fetches(ctx)
	if err != nil {
		return err
	}

	out := ExportFile{
		Version: "1",
		SavedAt: time.Now().UTC(),
		Fetches: fetches,
		Records: make(map[string][]models.DecayRecord),
	}
	for _, f := range fetches {
		nuclide, err := models.ParseNuclide(f.Nuclide)
		if err != nil {
			return fmt.Errorf("invalid nuclide in ledger: %w", err)
		}
		rad, err := models.ParseRadType(f.RadType)
		if err != nil {
			return fmt.Errorf("invalid radiation type in ledger: %w", err)
		}
		records, _, err := d.Get(ctx, nuclide, rad)
		if err != nil {
			return err
		}
		if records == nil {
			records = []models.DecayRecord{}
		}
		out.Records[f.Nuclide+"/"+f.RadType] = records
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	jsonData, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal dataset: %w", err)
	}

	// Write to temp file first, then rename so readers never see a partial file
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, jsonData, filePermissions); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func toNull(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return models.Float(v.Float64)
}
