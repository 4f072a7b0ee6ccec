package harness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/labelsync/internal/dump"
	"github.com/roach88/labelsync/internal/engine"
	"github.com/roach88/labelsync/internal/labels"
	"github.com/roach88/labelsync/internal/message"
	"github.com/roach88/labelsync/internal/policy"
	"github.com/roach88/labelsync/internal/source"
	"github.com/roach88/labelsync/internal/syncer"
	"github.com/roach88/labelsync/internal/testutil"
)

// scanStep is how far the fake clock moves per time sample during a scan.
const scanStep = time.Second

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Seed a fresh MemoryIndex from the scenario's index
//  2. For each scan, enumerate its messages through source.Poll and the
//     orchestrator, recording the summary or error
//  3. Evaluate expectations
//
// The returned error reports a scenario that could not be set up; failed
// expectations are reported through Result.Pass and Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	mode, err := resolveMode(scenario)
	if err != nil {
		return nil, err
	}

	def := source.Definition{
		URI:    scenario.Source.URI,
		Labels: labels.New(scenario.Source.Labels...),
	}

	seed := make([]message.Record, 0, len(scenario.Index))
	for _, r := range scenario.Index {
		seed = append(seed, message.Record{
			ID:         r.ID,
			SourceURI:  def.URI,
			SourceInfo: r.Info,
			Labels:     labels.New(r.Labels...),
		})
	}
	idx := testutil.NewMemoryIndex(seed...)

	clock := testutil.NewFakeClock(testutil.Epoch, scanStep)
	opts := syncer.Options{
		Mode: mode,
		Policy: policy.Options{
			StripInbox:  scenario.Archive,
			StripUnread: scenario.Read,
			Extra:       labels.New(scenario.ExtraLabels...),
		},
		DryRun: scenario.DryRun,
		Now:    clock.Now,
	}

	ctx := context.Background()
	result := NewResult()
	for _, scan := range scenario.Scans {
		// Each scan is a separate run, so a dry run's overlay starts empty.
		orch := syncer.New(idx, opts)
		enum := &testutil.Enumerator{SourceURI: def.URI, Observations: observations(def, scan.Messages)}
		sum, err := orch.Run(ctx, def.URI, source.Poll(ctx, enum, orch.Lookup()))

		sr := ScanResult{Summary: sum}
		if err != nil {
			sr.Err = err.Error()
		}
		result.Scans = append(result.Scans, sr)
	}
	result.Final = idx.Records()

	checkExpectations(scenario, result)
	return result, nil
}

func resolveMode(s *Scenario) (engine.Mode, error) {
	switch s.mode() {
	case ModeDiscard:
		return engine.Discard(), nil
	case ModeRestore:
		snap, err := dump.Parse(strings.NewReader(s.Restore))
		if err != nil {
			return engine.Mode{}, fmt.Errorf("scenario %s: restore: %w", s.Name, err)
		}
		return engine.Restore(snap), nil
	default:
		return engine.AsIs(), nil
	}
}

func observations(def source.Definition, msgs []RecordSpec) []source.Observation {
	out := make([]source.Observation, 0, len(msgs))
	for i, m := range msgs {
		candidate := labels.New(m.Labels...).Union(def.Labels)
		out = append(out, source.Observation{
			Message: message.Message{
				ID:         m.ID,
				SourceURI:  def.URI,
				SourceInfo: m.Info,
				Labels:     candidate,
			},
			Progress: float64(i+1) / float64(len(msgs)),
		})
	}
	return out
}
