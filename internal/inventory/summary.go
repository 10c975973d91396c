package inventory

import (
	"fmt"
	"io"
	"strings"
)

const summaryRule = 71

// Summary prints one line per interval: times, mass, dose rate in uSv/h and
// activity.
func Summary(w io.Writer, inv *Inventory) {
	rule := strings.Repeat("-", summaryRule)
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintln(w, "           Interval Time [s]                  Interval totals")
	fmt.Fprintln(w, "Index   Irrad     Cool    Total      Mass [g]  Dose [uSv/hr]   Act [Bq]")
	fmt.Fprintln(w, rule)

	for i, interval := range inv.Intervals {
		fmt.Fprintf(w, " %-3d   %.2e %.2e %.2e    %.2e     %.2e     %.2e\n",
			i,
			interval.IrradiationTime,
			interval.CoolingTime,
			interval.TotalTime(),
			interval.Mass,
			interval.DoseRate.Dose*1e6,
			interval.Activity,
		)
	}
	fmt.Fprintln(w)
}
