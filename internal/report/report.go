// Package report formats calculation results for the console.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/martinpickett/Plex-Tools/pkg/hrd"
)

// Buffer prints the peak occupancy at rate, or explains that the schedule
// cannot be streamed at that rate and delay.
func Buffer(w io.Writer, r hrd.Result, rate, delay float64) {
	bits, ok := r.Bits()
	if !ok {
		fmt.Fprintf(w, "Result: Not possible to stream video at rate %.0fkb/s with delay %.2fs\n",
			hrd.BitsToKilobits(rate), delay)
		fmt.Fprintln(w, "        Try increasing rate or delay.")
		return
	}
	fmt.Fprintf(w, "Result: Maximum Buffer Size (b): %d\n", bits)
	fmt.Fprintf(w, "Result: Maximum Buffer Size (MB): %.2f\n", hrd.BitsToMegabytes(bits))
}

// Rate prints a minimum rate in b/s and kb/s.
func Rate(w io.Writer, rate float64) {
	fmt.Fprintf(w, "Result: Minimum Rate (b/s): %.3f\n", rate)
	fmt.Fprintf(w, "Result: Minimum Rate (kb/s): %.3f\n", hrd.BitsToKilobits(rate))
}

// PlexTable prints the required bitrate for each Plex buffer size as a
// two-row, right-aligned table. Rates are in b/s and shown rounded up to
// whole kb/s.
func PlexTable(w io.Writer, sizesMB []int, rates []float64) error {
	if len(sizesMB) != len(rates) {
		return fmt.Errorf("report: %d buffer sizes but %d rates", len(sizesMB), len(rates))
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "Plex Buffer (MB):\t")
	for _, mb := range sizesMB {
		fmt.Fprintf(tw, "%d\t", mb)
	}
	fmt.Fprint(tw, "\nRequired Bitrate (kb/s):\t")
	for _, rate := range rates {
		fmt.Fprintf(tw, "%d\t", hrd.CeilKbps(rate))
	}
	fmt.Fprintln(tw)
	return tw.Flush()
}

// Trace prints a diagnostic summary of one simulation.
func Trace(w io.Writer, s *hrd.Schedule, rate float64, tr hrd.Trace) {
	fmt.Fprintf(w, "Trace: frames %d, duration %.3fs, average rate %.0fb/s, peak frame rate %.0fb/s\n",
		s.Len(), s.Duration(), s.AverageRate(), s.PeakRate())
	fmt.Fprintf(w, "Trace: channel rate %.0fb/s, effective delay %.3fs\n", rate, tr.EffectiveDelay)
	if len(tr.Windows) > 0 {
		first := tr.Windows[0]
		last := tr.Windows[len(tr.Windows)-1]
		fmt.Fprintf(w, "Trace: arrival from %.3fs to %.3fs\n", first.Start, last.End)
	}
	if !tr.Result.Feasible() {
		fmt.Fprintln(w, "Trace: frame 0 cannot arrive before its removal time")
		return
	}
	fmt.Fprintf(w, "Trace: %d buffer events, peak %s\n", len(tr.Timeline), tr.Result)
}
