// Package emit renders the sources of one interval into the output formats:
// a JSON document, a fixed-width text table and an MCNP source distribution
// deck. Emitters hold no state besides their options and may be used
// concurrently.
package emit

import (
	"io"

	"github.com/rewired-gh/fisdef/internal/models"
)

// Emitter renders sources into one output format.
type Emitter interface {
	// Format returns the output kind identifier ("json", "text" or "mcnp").
	Format() string
	// Extension returns the file extension without a dot.
	Extension() string
	// DefaultName is the file written when the configured path cannot be created.
	DefaultName(index int) string
	// Emit writes the rendered sources to w.
	Emit(w io.Writer, sources []models.Source) error
}

// Kinds lists the output kinds in the order they are written.
var Kinds = []string{"json", "mcnp", "text"}

// ForKinds returns the emitters for the requested output kinds, in Kinds order.
// mcnpID is the first distribution number used by the MCNP deck.
func ForKinds(requested map[string]bool, mcnpID int) []Emitter {
	var emitters []Emitter
	for _, k := range Kinds {
		if !requested[k] {
			continue
		}
		switch k {
		case "json":
			emitters = append(emitters, JSON{})
		case "mcnp":
			emitters = append(emitters, MCNP{StartID: mcnpID})
		case "text":
			emitters = append(emitters, Table{})
		}
	}
	return emitters
}
