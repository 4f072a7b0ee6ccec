package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/labelsync/internal/labels"
	"github.com/roach88/labelsync/internal/message"
	"github.com/roach88/labelsync/internal/telemetry"
)

// checkExpectations evaluates every expectation of s against result.
func checkExpectations(s *Scenario, result *Result) {
	for i, scan := range s.Scans {
		got := result.Scans[i]

		switch {
		case scan.Error != "":
			if err := checkError(scan.Error, got.Err); err != nil {
				result.AddError(fmt.Sprintf("scan %d: %v", i+1, err))
			}
		case got.Err != "":
			result.AddError(fmt.Sprintf("scan %d: unexpected error: %s", i+1, got.Err))
		}

		if scan.Expect != nil {
			if err := checkCounters(*scan.Expect, got.Summary.Counters); err != nil {
				result.AddError(fmt.Sprintf("scan %d: %v", i+1, err))
			}
		}
	}

	if s.FinalIndex != nil {
		for _, err := range checkFinalIndex(s.FinalIndex, result.Final) {
			result.AddError(fmt.Sprintf("final index: %v", err))
		}
	}
}

func checkError(want, got string) error {
	if got == "" {
		return fmt.Errorf("expected error containing %q, got none", want)
	}
	if !strings.Contains(got, want) {
		return fmt.Errorf("expected error containing %q, got %q", want, got)
	}
	return nil
}

func checkCounters(want CountersSpec, got telemetry.Counters) error {
	w := telemetry.Counters{
		Scanned:  want.Scanned,
		Added:    want.Added,
		Updated:  want.Updated,
		Deleted:  want.Deleted,
		Restored: want.Restored,
	}
	if w != got {
		return fmt.Errorf("counters = %+v, expected %+v", got, w)
	}
	return nil
}

// checkFinalIndex compares the whole index, by id, against want.
func checkFinalIndex(want []RecordSpec, got []message.Record) []error {
	var errs []error
	byID := make(map[string]message.Record, len(got))
	for _, r := range got {
		byID[r.ID] = r
	}

	for _, w := range want {
		r, ok := byID[w.ID]
		if !ok {
			errs = append(errs, fmt.Errorf("missing record %q", w.ID))
			continue
		}
		delete(byID, w.ID)

		if r.SourceInfo != w.Info {
			errs = append(errs, fmt.Errorf("record %q: info = %q, expected %q", w.ID, r.SourceInfo, w.Info))
		}
		if wl := labels.New(w.Labels...); !wl.Equal(r.Labels) {
			errs = append(errs, fmt.Errorf("record %q: labels = (%s), expected (%s)", w.ID, r.Labels, wl))
		}
	}

	for _, r := range got {
		if _, extra := byID[r.ID]; extra {
			errs = append(errs, fmt.Errorf("unexpected record %q", r.ID))
		}
	}
	return errs
}
