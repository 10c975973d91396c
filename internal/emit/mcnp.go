package emit

import (
	"fmt"
	"io"
	"strings"

	"github.com/rewired-gh/fisdef/internal/models"
)

const keVToMeV = 1.0e-3

// DefaultMCNPID is the distribution number of the overall activity distribution
// when none is configured.
const DefaultMCNPID = 100

// MCNP emits source distribution cards: one overall distribution sampling
// nuclides by weighted activity, followed by one line-energy distribution per
// nuclide numbered sequentially after StartID.
type MCNP struct {
	StartID int
}

func (MCNP) Format() string    { return "mcnp" }
func (MCNP) Extension() string { return "i" }

func (MCNP) DefaultName(index int) string {
	return fmt.Sprintf("step_%d.i", index)
}

// Emit writes the deck to w.
func (m MCNP) Emit(w io.Writer, sources []models.Source) error {
	if _, err := io.WriteString(w, RenderMCNP(sources, m.StartID)+"\n"); err != nil {
		return fmt.Errorf("failed to write MCNP cards: %w", err)
	}
	return nil
}

// RenderMCNP returns the cards for sources, starting at distribution id.
func RenderMCNP(sources []models.Source, id int) string {
	blocks := make([]string, 0, len(sources)+1)
	blocks = append(blocks, activityDistribution(sources, id))
	for i, s := range sources {
		blocks = append(blocks, nuclideDistribution(s, id+i+1))
	}
	return strings.Join(blocks, "\n")
}

func activityDistribution(sources []models.Source, id int) string {
	comment := fmt.Sprintf("sc%-5d Main source distribution (%s counts/src particle)", id, sci(TotalNorm(sources), 5, 2))

	dists := make([]string, 0, len(sources))
	for i := range sources {
		dists = append(dists, fmt.Sprintf("%d", id+i+1))
	}
	si := wrapCard(fmt.Sprintf("si%-6s", fmt.Sprintf("%d S ", id)), dists, cardWidth, cardIndent)

	// each weight carries a trailing $ comment, so it needs a line to itself
	sp := fmt.Sprintf("sp%-6d", id)
	for i, s := range sources {
		norm := s.Norm()
		entry := fmt.Sprintf("%s    $ %-6s = %s Bq * %s particles/decay",
			sci(s.Activity*norm, 5, 2), s.InventoryName, sci(s.Activity, 5, 2), sci(norm, 5, 2))
		if i == 0 {
			sp += entry
		} else {
			sp += "\n" + cardIndent + entry
		}
	}

	return strings.Join([]string{comment, si, sp, "c"}, "\n")
}

func nuclideDistribution(s models.Source, id int) string {
	comment := fmt.Sprintf("sc%-5d %s decay data, norm = %s particles/decay", id, s.InventoryName, sci(s.Norm(), 5, 2))

	energies := make([]string, 0, len(s.Records))
	intensities := make([]string, 0, len(s.Records))
	for _, r := range s.Records {
		if !r.Observed() {
			continue
		}
		energies = append(energies, sci(*r.Energy*keVToMeV, 5, 2))
		intensities = append(intensities, sci(*r.Intensity*1e-2, 5, 2))
	}

	si := wrapCard(fmt.Sprintf("si%d L ", id), energies, cardWidth, cardIndent)
	sp := wrapCard(fmt.Sprintf("sp%-6d", id), intensities, cardWidth, cardIndent)
	return strings.Join([]string{comment, si, sp, "c"}, "\n")
}

// TotalNorm is the activity weighted mean of the source norms, i.e. the number
// of particles emitted per sampled source decay.
func TotalNorm(sources []models.Source) float64 {
	totalActivity := 0.0
	for _, s := range sources {
		totalActivity += s.Activity
	}
	if totalActivity == 0 {
		return 0
	}

	norm := 0.0
	for _, s := range sources {
		norm += s.Activity / totalActivity * s.Norm()
	}
	return norm
}
