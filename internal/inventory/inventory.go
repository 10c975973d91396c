// Package inventory reads FISPACT-II inventory output. JSON files follow the
// FISPACT-II JSON schema; files ending in .yaml or .yml carry the same fields
// in YAML.
package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rewired-gh/fisdef/internal/models"
)

// Inventory is the time-stepped nuclide inventory of one calculation.
type Inventory struct {
	Intervals []Interval `json:"inventory_data" yaml:"inventory_data"`
}

// Interval is one irradiation or cooling step.
type Interval struct {
	IrradiationTime float64   `json:"irradiation_time" yaml:"irradiation_time"` // s
	CoolingTime     float64   `json:"cooling_time" yaml:"cooling_time"`         // s
	Mass            float64   `json:"total_mass" yaml:"total_mass"`             // g
	Activity        float64   `json:"total_activity" yaml:"total_activity"`     // Bq
	DoseRate        DoseRate  `json:"dose_rate" yaml:"dose_rate"`
	Nuclides        []Nuclide `json:"nuclides" yaml:"nuclides"`
}

// DoseRate is the contact or point source dose rate of an interval.
type DoseRate struct {
	Type     string  `json:"type" yaml:"type"`
	Distance float64 `json:"distance" yaml:"distance"`
	Dose     float64 `json:"dose" yaml:"dose"` // Sv/h
}

// Nuclide is an inventory entry.
type Nuclide struct {
	Element  string  `json:"element" yaml:"element"`
	Isotope  int     `json:"isotope" yaml:"isotope"`
	State    string  `json:"state" yaml:"state"`
	HalfLife float64 `json:"half_life" yaml:"half_life"` // s, 0 for stable nuclides
	Activity float64 `json:"activity" yaml:"activity"`   // Bq
}

// Name returns the FISPACT name, e.g. "Co60" or "Nb93m".
func (n Nuclide) Name() string {
	return fmt.Sprintf("%s%d%s", strings.TrimSpace(n.Element), n.Isotope, strings.TrimSpace(n.State))
}

// TotalTime is the elapsed time at the end of the interval.
func (i Interval) TotalTime() float64 {
	return i.IrradiationTime + i.CoolingTime
}

// UnstableNuclides returns the nuclides with a positive half-life as source
// pipeline entries, in inventory order.
func (i Interval) UnstableNuclides() []models.InventoryEntry {
	var entries []models.InventoryEntry
	for _, n := range i.Nuclides {
		if n.HalfLife > 0 {
			entries = append(entries, models.InventoryEntry{Name: n.Name(), Activity: n.Activity})
		}
	}
	return entries
}

// ReadFile loads an inventory, choosing the codec from the file extension.
func ReadFile(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(bytes.NewReader(data))
	default:
		return DecodeJSON(bytes.NewReader(data))
	}
}

// DecodeJSON decodes a FISPACT-II JSON inventory.
func DecodeJSON(r io.Reader) (*Inventory, error) {
	var inv Inventory
	if err := json.NewDecoder(r).Decode(&inv); err != nil {
		return nil, fmt.Errorf("failed to parse inventory JSON: %w", err)
	}
	return &inv, nil
}

// DecodeYAML decodes an inventory written in YAML.
func DecodeYAML(r io.Reader) (*Inventory, error) {
	var inv Inventory
	if err := yaml.NewDecoder(r).Decode(&inv); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse inventory YAML: %w", err)
	}
	return &inv, nil
}
