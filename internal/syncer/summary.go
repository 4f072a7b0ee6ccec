package syncer

import (
	"fmt"
	"time"

	"github.com/roach88/labelsync/internal/telemetry"
)

// Summary is the outcome of one source scan.
type Summary struct {
	URI      string             `json:"uri"`
	DryRun   bool               `json:"dry_run"`
	Counters telemetry.Counters `json:"counters"`
	Elapsed  time.Duration      `json:"elapsed_ns"`
}

// Lines renders the summary for the console: the totals, then the
// restored share when anything was restored.
func (s Summary) Lines() []string {
	c := s.Counters
	lines := []string{fmt.Sprintf("Scanned %d, added %d, updated %d, deleted %d messages from %s.",
		c.Scanned, c.Added, c.Updated, c.Deleted, s.URI)}
	if c.Restored > 0 {
		lines = append(lines, fmt.Sprintf("Restored state on %d (%.1f%%) messages.", c.Restored, c.RestoredPercent()))
	}
	return lines
}

// Totals sums the counters of every summary.
func Totals(summaries []Summary) telemetry.Counters {
	var total telemetry.Counters
	for _, s := range summaries {
		total = total.Add(s.Counters)
	}
	return total
}
