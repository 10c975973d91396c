package iaea

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rewired-gh/fisdef/internal/models"
)

const co60Gamma = `energy,unc_en,intensity,unc_i,start_level_energy,end_level_energy,multipolarity,mixing_ratio,unc_mr,conversion_coeff,unc_cc,p_z,p_n,p_symbol,p_energy,p_energy_shift,p_half_life,unc_hl,unit_hl,half_life_sec,unc_hls,decay,decay_%,unc_d,q,unc_q,d_z,d_n,d_symbol
1173.228,0.003,99.85,0.03,2505.753,1332.514,E2(+M3),,,1.68E-4,,27,33,Co,0,,5.2714,0.0005,y,166344192,15768,B-,100,,2822.81,0.21,28,32,Ni
1332.492,0.004,99.9826,0.0006,1332.514,0,E2,,,1.28E-4,,27,33,Co,0,,5.2714,0.0005,y,166344192,15768,B-,100,,2822.81,0.21,28,32,Ni
`

const co60XRay = `energy,unc_en,intensity,unc_i,type,p_z,p_n,p_symbol,p_energy,half_life_sec,decay,decay_%,d_z,d_n,d_symbol
7.478,,0.0052,,Ka2,27,33,Co,0,166344192,B-,100,28,32,Ni
`

func TestFetchGammaQueriesPhotonCodes(t *testing.T) {
	var codes []string
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data" {
			t.Errorf("Expected path /data, got %s", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("fields") != "decay_rads" {
			t.Errorf("Expected fields=decay_rads, got %s", query.Get("fields"))
		}
		if query.Get("nuclides") != "60co" {
			t.Errorf("Expected nuclides=60co, got %s", query.Get("nuclides"))
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("Expected a user agent")
		}

		code := query.Get("rad_types")
		codes = append(codes, code)
		w.Header().Set("Content-Type", "text/csv")
		switch code {
		case "g":
			w.Write([]byte(co60Gamma))
		case "x":
			w.Write([]byte(co60XRay))
		}
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, 5*time.Second, 1, time.Millisecond)
	nuclide, _ := models.ParseNuclide("Co60")

	records, err := client.Fetch(context.Background(), nuclide, models.Gamma)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if strings.Join(codes, ",") != "g,x" {
		t.Errorf("Expected g and x requests, got %v", codes)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}

	r := records[0]
	if r.Parent != "Co60" || r.Daughter != "Ni60" || r.DecayMode != "B-" {
		t.Errorf("Unexpected names: %+v", r)
	}
	if *r.Energy != 1173.228 || *r.Intensity != 99.85 || *r.ParentEnergy != 0 {
		t.Errorf("Unexpected values: %s keV %s %%", models.Display(r.Energy), models.Display(r.Intensity))
	}
	if *r.Branching != 100 || *r.HalfLife != 166344192 {
		t.Errorf("Unexpected branching/half-life: %s %s", models.Display(r.Branching), models.Display(r.HalfLife))
	}
	if *records[2].Energy != 7.478 {
		t.Errorf("Expected X-ray line last, got %s", models.Display(records[2].Energy))
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(co60XRay))
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, 5*time.Second, 3, time.Millisecond)
	nuclide, _ := models.ParseNuclide("Co60")

	records, err := client.Fetch(context.Background(), nuclide, models.XRay)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected 1 record, got %d", len(records))
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls.Load())
	}
}

func TestFetchGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, 5*time.Second, 2, time.Millisecond)
	nuclide, _ := models.ParseNuclide("Co60")

	if _, err := client.Fetch(context.Background(), nuclide, models.Alpha); err == nil {
		t.Fatal("Expected error after retries")
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 attempts, got %d", calls.Load())
	}
}

func TestFetchClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, 5*time.Second, 3, time.Millisecond)
	nuclide, _ := models.ParseNuclide("Co60")

	if _, err := client.Fetch(context.Background(), nuclide, models.Electron); err == nil {
		t.Fatal("Expected error for 400 response")
	}
	if calls.Load() != 1 {
		t.Errorf("Expected a single attempt, got %d", calls.Load())
	}
}

func TestFetchCancelled(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, 5*time.Second, 5, time.Hour)
	nuclide, _ := models.ParseNuclide("Co60")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := client.Fetch(ctx, nuclide, models.BetaMinus); err == nil {
		t.Fatal("Expected error for cancelled context")
	}
	if time.Since(start) > 10*time.Second {
		t.Error("Fetch did not stop waiting on cancellation")
	}
}

func TestParseRecords(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		count int
	}{
		{"empty body", "", 0},
		{"unknown nuclide", "0\n", 0},
		{"header only", "energy,intensity,p_symbol\n", 0},
		{"beta mean energy", "mean_energy,intensity,p_z,p_n,p_symbol\n95.77,99.88,27,33,Co\n", 1},
		{"blank lines", co60Gamma + "\n\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ParseRecords(strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("ParseRecords failed: %v", err)
			}
			if len(records) != tt.count {
				t.Errorf("Expected %d records, got %d", tt.count, len(records))
			}
		})
	}
}

func TestParseRecordsUndefinedValues(t *testing.T) {
	body := "energy,intensity,p_energy,p_z,p_n,p_symbol,half_life_sec,decay_%\n" +
		"30.77,,30.77,41,52,Nb,?,\n"
	records, err := ParseRecords(strings.NewReader(body))
	if err != nil {
		t.Fatalf("ParseRecords failed: %v", err)
	}
	r := records[0]
	if r.Intensity != nil || r.HalfLife != nil || r.Branching != nil {
		t.Errorf("Expected undefined values, got %+v", r)
	}
	if r.Parent != "Nb93" || *r.ParentEnergy != 30.77 {
		t.Errorf("Unexpected parent %s at %s keV", r.Parent, models.Display(r.ParentEnergy))
	}
	if r.Daughter != "" {
		t.Errorf("Expected empty daughter, got %q", r.Daughter)
	}
}
