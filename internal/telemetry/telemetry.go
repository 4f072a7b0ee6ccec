// Package telemetry tracks scan counters and periodic throughput/ETA
// reporting for one source scan.
//
// Telemetry is purely observational: nothing here influences reconciliation,
// and no input (zero progress, zero elapsed time) may make it fail.
package telemetry

import (
	"fmt"
	"math"
	"time"
)

// DefaultInterval is the minimum gap between two progress reports.
const DefaultInterval = 15 * time.Second

// Counters is the per-source aggregate of a scan. Every field only grows.
type Counters struct {
	Scanned  int `json:"scanned"`
	Added    int `json:"added"`
	Updated  int `json:"updated"`
	Deleted  int `json:"deleted"`
	Restored int `json:"restored"`
}

// Add returns the field-wise sum of c and o.
func (c Counters) Add(o Counters) Counters {
	return Counters{
		Scanned:  c.Scanned + o.Scanned,
		Added:    c.Added + o.Added,
		Updated:  c.Updated + o.Updated,
		Deleted:  c.Deleted + o.Deleted,
		Restored: c.Restored + o.Restored,
	}
}

// RestoredPercent returns Restored as a percentage of Scanned, or 0 when
// nothing was scanned.
func (c Counters) RestoredPercent() float64 {
	if c.Scanned == 0 {
		return 0
	}
	return 100 * float64(c.Restored) / float64(c.Scanned)
}

// Telemetry owns the counters of one source scan.
// It is not safe for concurrent use; a scan is single-threaded.
type Telemetry struct {
	counters   Counters
	start      time.Time
	lastReport time.Time
	interval   time.Duration
}

// New starts telemetry at start. A non-positive interval selects
// DefaultInterval.
func New(start time.Time, interval time.Duration) *Telemetry {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Telemetry{start: start, lastReport: start, interval: interval}
}

// OnScanned, OnAdded, OnUpdated, OnDeleted and OnRestored each count one
// occurrence of their event.
func (t *Telemetry) OnScanned()  { t.counters.Scanned++ }
func (t *Telemetry) OnAdded()    { t.counters.Added++ }
func (t *Telemetry) OnUpdated()  { t.counters.Updated++ }
func (t *Telemetry) OnDeleted()  { t.counters.Deleted++ }
func (t *Telemetry) OnRestored() { t.counters.Restored++ }

// Counters returns a snapshot of the counters.
func (t *Telemetry) Counters() Counters { return t.counters }

// Start returns the time the scan began.
func (t *Telemetry) Start() time.Time { return t.start }

// Report is one progress observation.
type Report struct {
	Scanned  int
	Progress float64
	Elapsed  time.Duration

	// Remaining is the estimated time left. Valid only when RemainingKnown.
	Remaining      time.Duration
	RemainingKnown bool

	// Rate is messages scanned per second of elapsed time.
	Rate float64
}

// MaybeReport returns a report when more than the interval has passed since
// the previous one (or since the start). progress is the fraction of the
// source consumed, in [0,1]; out-of-range values are clamped.
func (t *Telemetry) MaybeReport(now time.Time, progress float64) (Report, bool) {
	if now.Sub(t.lastReport) <= t.interval {
		return Report{}, false
	}
	t.lastReport = now
	return t.Snapshot(now, progress), true
}

// Snapshot computes a report at now regardless of the interval.
func (t *Telemetry) Snapshot(now time.Time, progress float64) Report {
	if math.IsNaN(progress) || progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	elapsed := now.Sub(t.start)
	if elapsed < 0 {
		elapsed = 0
	}

	r := Report{
		Scanned:  t.counters.Scanned,
		Progress: progress,
		Elapsed:  elapsed,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		r.Rate = float64(r.Scanned) / secs
	}
	if progress > 0 {
		remaining := (1 - progress) * float64(elapsed) / progress
		if !math.IsInf(remaining, 0) && !math.IsNaN(remaining) && remaining < math.MaxInt64 {
			r.Remaining = time.Duration(math.Round(remaining))
			r.RemainingKnown = true
		}
	}
	return r
}

// String renders the report as a progress line:
//
//	## 120 (40.0%) read; 0:00:30 elapsed; 0:00:45 remaining (4.0/s)
func (r Report) String() string {
	remaining := "unknown"
	if r.RemainingKnown {
		remaining = FormatDuration(r.Remaining)
	}
	return fmt.Sprintf("## %d (%.1f%%) read; %s elapsed; %s remaining (%.1f/s)",
		r.Scanned, 100*r.Progress, FormatDuration(r.Elapsed), remaining, r.Rate)
}

// FormatDuration renders d as H:MM:SS, truncating sub-second precision.
// Negative durations render as 0:00:00.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
