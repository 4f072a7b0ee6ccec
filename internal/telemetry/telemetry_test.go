package telemetry

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestCounters(t *testing.T) {
	tel := New(t0, 0)
	tel.OnScanned()
	tel.OnScanned()
	tel.OnScanned()
	tel.OnScanned()
	tel.OnAdded()
	tel.OnUpdated()
	tel.OnDeleted()
	tel.OnRestored()

	assert.Equal(t, Counters{Scanned: 4, Added: 1, Updated: 1, Deleted: 1, Restored: 1}, tel.Counters())
	assert.InDelta(t, 25.0, tel.Counters().RestoredPercent(), 1e-9)
}

func TestCounters_AddAndZeroPercent(t *testing.T) {
	a := Counters{Scanned: 1, Added: 1}
	b := Counters{Scanned: 2, Deleted: 2, Restored: 1}
	assert.Equal(t, Counters{Scanned: 3, Added: 1, Deleted: 2, Restored: 1}, a.Add(b))
	assert.Equal(t, 0.0, Counters{}.RestoredPercent())
}

func TestMaybeReport_Interval(t *testing.T) {
	tel := New(t0, 15*time.Second)

	_, ok := tel.MaybeReport(t0.Add(10*time.Second), 0.1)
	assert.False(t, ok)

	_, ok = tel.MaybeReport(t0.Add(15*time.Second), 0.1)
	assert.False(t, ok, "exactly the interval is not enough")

	_, ok = tel.MaybeReport(t0.Add(16*time.Second), 0.1)
	assert.True(t, ok)

	_, ok = tel.MaybeReport(t0.Add(20*time.Second), 0.2)
	assert.False(t, ok, "interval restarts at the previous report")

	_, ok = tel.MaybeReport(t0.Add(32*time.Second), 0.3)
	assert.True(t, ok)
}

func TestSnapshot_ETA(t *testing.T) {
	tel := New(t0, 0)
	for i := 0; i < 120; i++ {
		tel.OnScanned()
	}

	r := tel.Snapshot(t0.Add(30*time.Second), 0.4)
	require.True(t, r.RemainingKnown)
	assert.Equal(t, 45*time.Second, r.Remaining)
	assert.Equal(t, 30*time.Second, r.Elapsed)
	assert.InDelta(t, 4.0, r.Rate, 1e-9)
	assert.Equal(t, "## 120 (40.0%) read; 0:00:30 elapsed; 0:00:45 remaining (4.0/s)", r.String())
}

func TestSnapshot_ZeroProgressIsUnknown(t *testing.T) {
	tel := New(t0, 0)
	tel.OnScanned()

	r := tel.Snapshot(t0.Add(time.Minute), 0)
	assert.False(t, r.RemainingKnown)
	assert.Contains(t, r.String(), "unknown remaining")
}

func TestSnapshot_DegenerateInputs(t *testing.T) {
	tel := New(t0, 0)

	tests := []struct {
		name     string
		now      time.Time
		progress float64
	}{
		{"zero elapsed zero progress", t0, 0},
		{"zero elapsed full progress", t0, 1},
		{"clock went backwards", t0.Add(-time.Hour), 0.5},
		{"NaN progress", t0.Add(time.Second), math.NaN()},
		{"negative progress", t0.Add(time.Second), -3},
		{"progress above one", t0.Add(time.Second), 7},
		{"tiny progress", t0.Add(time.Hour), 1e-300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tel.Snapshot(tt.now, tt.progress)
			assert.GreaterOrEqual(t, r.Remaining, time.Duration(0))
			assert.GreaterOrEqual(t, r.Elapsed, time.Duration(0))
			assert.GreaterOrEqual(t, r.Progress, 0.0)
			assert.LessOrEqual(t, r.Progress, 1.0)
			assert.NotPanics(t, func() { _ = r.String() })
		})
	}
}

func TestSnapshot_FullProgressHasNoRemaining(t *testing.T) {
	tel := New(t0, 0)
	r := tel.Snapshot(t0.Add(time.Minute), 1)
	require.True(t, r.RemainingKnown)
	assert.Equal(t, time.Duration(0), r.Remaining)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00:00"},
		{59 * time.Second, "0:00:59"},
		{61 * time.Second, "0:01:01"},
		{time.Hour + 2*time.Minute + 3*time.Second + 900*time.Millisecond, "1:02:03"},
		{27 * time.Hour, "27:00:00"},
		{-5 * time.Second, "0:00:00"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.d))
	}
}
