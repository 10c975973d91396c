package emit

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rewired-gh/fisdef/internal/models"
)

// JSONSource is the serialised form of a source. Energy and Intensity are
// parallel arrays in record order; entries are null when undefined.
type JSONSource struct {
	NameFispact string     `json:"name_fispact"`
	NameIAEA    string     `json:"name_iaea"`
	Activity    float64    `json:"activity"`
	Energy      []*float64 `json:"energy"`
	Intensity   []*float64 `json:"intensity"`
}

// JSON emits the list of sources as an indented JSON array.
type JSON struct{}

func (JSON) Format() string    { return "json" }
func (JSON) Extension() string { return "json" }

func (JSON) DefaultName(index int) string {
	return fmt.Sprintf("step_%d.json", index)
}

// Emit writes sources to w.
func (JSON) Emit(w io.Writer, sources []models.Source) error {
	doc := make([]JSONSource, 0, len(sources))
	for _, s := range sources {
		doc = append(doc, ToJSONSource(s))
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ToJSONSource converts a source into its serialised form.
func ToJSONSource(s models.Source) JSONSource {
	js := JSONSource{
		NameFispact: s.InventoryName,
		NameIAEA:    s.Nuclide.NameWithState(),
		Activity:    s.Activity,
		Energy:      make([]*float64, 0, len(s.Records)),
		Intensity:   make([]*float64, 0, len(s.Records)),
	}
	for _, r := range s.Records {
		js.Energy = append(js.Energy, r.Energy)
		js.Intensity = append(js.Intensity, r.Intensity)
	}
	return js
}

// ParseJSON decodes a document written by JSON.Emit.
func ParseJSON(r io.Reader) ([]JSONSource, error) {
	var doc []JSONSource
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return doc, nil
}
