package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rewired-gh/fisdef/internal/models"
)

func openTestDataset(t *testing.T) *Dataset {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "nested", "decay.db"), 0755)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func co60Records() []models.DecayRecord {
	return []models.DecayRecord{
		{Parent: "Co60", ParentEnergy: models.Float(0), Daughter: "Ni60", DecayMode: "B-", Branching: models.Float(100),
			Energy: models.Float(1332.5), Intensity: models.Float(99.98), HalfLife: models.Float(1.6634e8)},
		{Parent: "Co60", ParentEnergy: models.Float(0), Daughter: "Ni60", DecayMode: "B-", Branching: models.Float(100),
			Energy: models.Float(1173.2), Intensity: models.Float(99.85), HalfLife: models.Float(1.6634e8)},
		{Parent: "Co60", Daughter: "Ni60", Energy: models.Float(7.47)},
	}
}

func TestDataset_PutAndGet(t *testing.T) {
	d := openTestDataset(t)
	ctx := context.Background()
	co60, _ := models.ParseNuclide("Co60")

	if _, found, err := d.Get(ctx, co60, models.Gamma); err != nil || found {
		t.Fatalf("Expected unknown nuclide before Put, got found=%v err=%v", found, err)
	}

	fetch, err := d.Put(ctx, co60, models.Gamma, co60Records())
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if fetch.ID == uuid.Nil || fetch.RecordCount != 3 || fetch.Nuclide != "Co60" || fetch.RadType != "gamma" {
		t.Errorf("Unexpected fetch entry: %+v", fetch)
	}

	records, found, err := d.Get(ctx, co60, models.Gamma)
	if err != nil || !found {
		t.Fatalf("Get failed: found=%v err=%v", found, err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	// provider order is preserved
	if *records[0].Energy != 1332.5 || *records[1].Energy != 1173.2 {
		t.Errorf("Record order changed: %v, %v", *records[0].Energy, *records[1].Energy)
	}
	if records[0].DecayMode != "B-" || *records[0].HalfLife != 1.6634e8 || *records[0].Branching != 100 {
		t.Errorf("Unexpected record: %+v", records[0])
	}
	if records[2].Intensity != nil || records[2].ParentEnergy != nil || records[2].HalfLife != nil {
		t.Errorf("Expected undefined values to stay undefined: %+v", records[2])
	}

	if _, found, _ := d.Get(ctx, co60, models.Alpha); found {
		t.Error("Expected other radiation types to stay unknown")
	}
}

func TestDataset_ExcitedStateSharesGroundRecords(t *testing.T) {
	d := openTestDataset(t)
	ctx := context.Background()
	nb93, _ := models.ParseNuclide("Nb93")
	nb93m, _ := models.ParseNuclide("Nb93m")

	if _, err := d.Put(ctx, nb93m, models.Gamma, []models.DecayRecord{{Parent: "Nb93", Energy: models.Float(30.77)}}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	records, found, err := d.Get(ctx, nb93, models.Gamma)
	if err != nil || !found || len(records) != 1 {
		t.Errorf("Expected ground state key to be shared, got %d records found=%v err=%v", len(records), found, err)
	}
}

func TestDataset_PutReplaces(t *testing.T) {
	d := openTestDataset(t)
	ctx := context.Background()
	co60, _ := models.ParseNuclide("Co60")

	if _, err := d.Put(ctx, co60, models.Gamma, co60Records()); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := d.Put(ctx, co60, models.Gamma, nil); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	records, found, err := d.Get(ctx, co60, models.Gamma)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found || len(records) != 0 {
		t.Errorf("Expected known nuclide with no records, got found=%v len=%d", found, len(records))
	}

	fetches, err := d.Fetches(ctx)
	if err != nil {
		t.Fatalf("Fetches failed: %v", err)
	}
	if len(fetches) != 2 {
		t.Fatalf("Expected 2 ledger entries, got %d", len(fetches))
	}
	if fetches[0].RecordCount != 3 || fetches[1].RecordCount != 0 {
		t.Errorf("Unexpected ledger counts: %d, %d", fetches[0].RecordCount, fetches[1].RecordCount)
	}
	if fetches[0].ID == fetches[1].ID {
		t.Error("Expected distinct fetch ids")
	}
}

func TestDataset_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decay.db")
	ctx := context.Background()
	co60, _ := models.ParseNuclide("Co60")

	d, err := Open(path, 0755)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := d.Put(ctx, co60, models.Gamma, co60Records()); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(path, 0755)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	records, found, err := reopened.Get(ctx, co60, models.Gamma)
	if err != nil || !found || len(records) != 3 {
		t.Errorf("Expected 3 persisted records, got %d found=%v err=%v", len(records), found, err)
	}
	if reopened.Path() != path {
		t.Errorf("Expected path %s, got %s", path, reopened.Path())
	}
}

func TestDataset_Export(t *testing.T) {
	d := openTestDataset(t)
	ctx := context.Background()
	co60, _ := models.ParseNuclide("Co60")
	h3, _ := models.ParseNuclide("H3")

	if _, err := d.Put(ctx, co60, models.Gamma, co60Records()); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := d.Put(ctx, h3, models.Gamma, nil); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "export", "dataset.json")
	if err := d.Export(ctx, path, 0644, 0755); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Expected temp file to be renamed away")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var out ExportFile
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(out.Fetches) != 2 {
		t.Errorf("Expected 2 fetches, got %d", len(out.Fetches))
	}
	if len(out.Records["Co60/gamma"]) != 3 {
		t.Errorf("Expected 3 Co60 records, got %d", len(out.Records["Co60/gamma"]))
	}
	if recs, ok := out.Records["H3/gamma"]; !ok || len(recs) != 0 {
		t.Errorf("Expected empty H3 entry, got %v (present=%v)", recs, ok)
	}
}
