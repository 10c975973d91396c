package emit

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rewired-gh/fisdef/internal/logger"
	"github.com/rewired-gh/fisdef/internal/models"
)

const tableRule = 58

const (
	secondsInMinute = 60.0
	secondsInHour   = 60 * secondsInMinute
	secondsInDay    = 24 * secondsInHour
	secondsInYear   = 365 * secondsInDay
)

// Table emits a fixed-width text table grouped by parent excitation level.
type Table struct{}

func (Table) Format() string    { return "text" }
func (Table) Extension() string { return "txt" }

func (Table) DefaultName(int) string { return "table.txt" }

// Emit writes the table header followed by the records of every source.
func (Table) Emit(w io.Writer, sources []models.Source) error {
	if _, err := io.WriteString(w, RenderTable(sources)); err != nil {
		return fmt.Errorf("failed to write table: %w", err)
	}
	return nil
}

// RenderTable returns the full table as a string.
func RenderTable(sources []models.Source) string {
	var b strings.Builder
	rule := strings.Repeat("-", tableRule)
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "  %s   %s  %s   BR    Energy [keV]  Intensity [%%]\n",
		center("P", 5), center("Mode", 5), center("D", 5))
	b.WriteString(rule + "\n")

	for _, s := range sources {
		writeSource(&b, s)
	}
	return b.String()
}

func writeSource(b *strings.Builder, s models.Source) {
	level := -1.0
	warned := false

	for _, r := range s.Records {
		pe := 0.0
		if r.ParentEnergy != nil {
			pe = *r.ParentEnergy
		} else if !warned {
			logger.Warn("Assuming ground state for incomplete %s records", s.InventoryName)
			warned = true
		}

		if pe > level {
			level = pe
			fmt.Fprintf(b, "\n %s [E = %s keV, t1/2 = %s]\n",
				s.InventoryName, strconv.FormatFloat(pe, 'f', -1, 64), formatHalfLife(r.HalfLife))
		}

		mode := r.DecayMode
		if mode == "" {
			mode = "-"
		}
		fmt.Fprintf(b, "  %-5s > %s > %-5s %-6s     %-7s     %-7s\n",
			r.Parent,
			center(mode, 5),
			r.Daughter,
			formatBranching(r.Branching),
			formatValue(r.Energy),
			formatValue(r.Intensity),
		)
	}
}

// center pads s with spaces to width, putting the odd space on the right.
func center(s string, width int) string {
	pad := width - len(s)
	if pad <= 0 {
		return s
	}
	left := pad / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}

func formatBranching(br *float64) string {
	switch {
	case br == nil:
		return "None"
	case *br >= 100:
		return ""
	case *br >= 1:
		return fmt.Sprintf("(%.0f%%)", *br)
	default:
		return "(< 1%)"
	}
}

// formatValue renders an energy or intensity with a precision that depends on
// its magnitude.
func formatValue(v *float64) string {
	switch {
	case v == nil:
		return "  -"
	case *v >= 10:
		return fmt.Sprintf("%.2f", *v)
	case *v >= 0.001 || *v == 0:
		return fmt.Sprintf("%.3f", *v)
	default:
		return sci(*v, 2, 1)
	}
}

func formatHalfLife(seconds *float64) string {
	if seconds == nil {
		return "-"
	}
	s := *seconds
	switch {
	case s >= 100*secondsInYear:
		return sci(s/secondsInYear, 2, 2) + " years"
	case s >= secondsInYear:
		return fmt.Sprintf("%.2f years", s/secondsInYear)
	case s >= secondsInDay:
		return fmt.Sprintf("%.2f days", s/secondsInDay)
	case s >= secondsInHour:
		return fmt.Sprintf("%.2f hours", s/secondsInHour)
	case s >= secondsInMinute:
		return fmt.Sprintf("%.2f minutes", s/secondsInMinute)
	case s >= 1:
		return fmt.Sprintf("%.2f s", s)
	case s >= 1e-3:
		return fmt.Sprintf("%.2f ms", s/1e-3)
	case s >= 1e-6:
		return fmt.Sprintf("%.2f us", s/1e-6)
	default:
		return fmt.Sprintf("%.2f ns", s/1e-9)
	}
}
