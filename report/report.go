// Package report renders run summaries for terminal consumption:
// outcome counts, throughput, and latency per run, side by side.
package report

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/erichare/parallel/parmap"
)

var (
	bold  = color.New(color.Bold)
	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed)
)

// RunStats summarizes one finished run.
type RunStats struct {
	Label      string
	Workers    int
	Items      int
	Failed     int
	Unfinished int
	Elapsed    time.Duration
}

// Collect derives RunStats from a run's outcomes.
func Collect[R any](label string, workers int, outcomes []parmap.Outcome[R], runErr error, elapsed time.Duration) RunStats {
	s := RunStats{
		Label:   label,
		Workers: workers,
		Items:   len(outcomes),
		Elapsed: elapsed,
	}

	var abort *parmap.AbortError
	if errors.As(runErr, &abort) {
		s.Unfinished = len(abort.Unfinished)
	}

	// Unfinished slots carry no error, so counting failures by Ok()
	// never double-counts them.
	for _, o := range outcomes {
		if !o.Ok() {
			s.Failed++
		}
	}
	return s
}

// Throughput returns completed items per second.
func (s RunStats) Throughput() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Items-s.Unfinished) / s.Elapsed.Seconds()
}

// Render writes a comparison table of the given runs to w.
func Render(w io.Writer, stats []RunStats) error {
	if len(stats) == 0 {
		return nil
	}

	_, _ = bold.Fprintln(w, "RUN SUMMARY")

	table := tablewriter.NewWriter(w)
	table.Header("Run", "Workers", "Items", "OK", "Failed", "Unfinished", "Time", "Items/sec")

	for _, s := range stats {
		ok := s.Items - s.Failed - s.Unfinished
		if err := table.Append(
			s.Label,
			fmt.Sprintf("%d", s.Workers),
			fmt.Sprintf("%d", s.Items),
			green.Sprintf("%d", ok),
			failedCell(s.Failed),
			fmt.Sprintf("%d", s.Unfinished),
			s.Elapsed.Round(time.Millisecond).String(),
			fmt.Sprintf("%.0f", s.Throughput()),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func failedCell(failed int) string {
	if failed == 0 {
		return "0"
	}
	return red.Sprintf("%d", failed)
}
