package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/labelsync/internal/engine"
	"github.com/roach88/labelsync/internal/logging"
	"github.com/roach88/labelsync/internal/message"
	"github.com/roach88/labelsync/internal/policy"
	"github.com/roach88/labelsync/internal/source"
	"github.com/roach88/labelsync/internal/telemetry"
)

// Index is the index the orchestrator reads priors from and materializes
// decisions into.
type Index interface {
	source.Lookup
	Upsert(ctx context.Context, rec message.Record) error
	Delete(ctx context.Context, id string) error
}

// Opener returns the event stream of one source scan. The stream must read
// priors through lookup.
type Opener func(ctx context.Context, def source.Definition, lookup source.Lookup) (source.Stream, error)

// Options configures a run. Mode is resolved once, before any source is
// scanned.
type Options struct {
	Mode   engine.Mode
	Policy policy.Options
	DryRun bool

	// ReportInterval is the minimum gap between progress reports; zero
	// selects telemetry.DefaultInterval.
	ReportInterval time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// OnReport, when set, receives every periodic progress report.
	OnReport func(uri string, r telemetry.Report)

	Logger *slog.Logger
}

// Orchestrator runs sources against an index. A dry run writes to an
// in-memory overlay of the index instead, so its decisions and counters
// match those of a real run.
type Orchestrator struct {
	index  Index
	opts   Options
	logger *slog.Logger
}

// New returns an orchestrator writing to idx.
func New(idx Index, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := logging.Default(opts.Logger)
	if opts.DryRun {
		idx = newOverlay(idx)
	}
	return &Orchestrator{
		index:  idx,
		opts:   opts,
		logger: logger.With("component", "syncer"),
	}
}

// Lookup returns the view of the index that streams must read priors
// through. In a dry run it includes the run's unwritten changes.
func (o *Orchestrator) Lookup() source.Lookup {
	return o.index
}

// RunAll scans defs in order, opening each with open. It stops at the first
// failure; the summaries returned then end with the partial summary of the
// failed source, if it got as far as scanning.
func (o *Orchestrator) RunAll(ctx context.Context, defs []source.Definition, open Opener) ([]Summary, error) {
	summaries := make([]Summary, 0, len(defs))
	for _, def := range defs {
		if err := ctx.Err(); err != nil {
			return summaries, err
		}
		stream, err := open(ctx, def, o.index)
		if err != nil {
			return summaries, fmt.Errorf("open source %s: %w", def.URI, err)
		}
		sum, err := o.Run(ctx, def.URI, stream)
		summaries = append(summaries, sum)
		if err != nil {
			return summaries, err
		}
	}
	return summaries, nil
}

// Run consumes one source's event stream to the end.
//
// Every event counts as scanned. Delete events remove the record and count
// as deleted; add events pass through the override policy and the engine,
// and the decision's upsert is applied. The stream is
// abandoned as soon as the context is cancelled, a write fails, or an event
// of unknown kind arrives.
func (o *Orchestrator) Run(ctx context.Context, uri string, stream source.Stream) (Summary, error) {
	tel := telemetry.New(o.opts.Now(), o.opts.ReportInterval)
	logger := o.logger.With("source", uri)
	logger.Info("scan started", "mode", o.opts.Mode.String(), "dry_run", o.opts.DryRun)
	if p := o.opts.Policy; !p.IsZero() {
		logger.Info("label overrides", "archive", p.StripInbox, "read", p.StripUnread, "extra", p.Extra.String())
	}

	summarize := func() Summary {
		return Summary{
			URI:      uri,
			DryRun:   o.opts.DryRun,
			Counters: tel.Counters(),
			Elapsed:  o.opts.Now().Sub(tel.Start()),
		}
	}

	for ev, err := range stream {
		if err != nil {
			return summarize(), err
		}
		if err := ctx.Err(); err != nil {
			return summarize(), err
		}

		if err := o.apply(ctx, uri, ev, tel, logger); err != nil {
			return summarize(), err
		}
		tel.OnScanned()

		if r, ok := tel.MaybeReport(o.opts.Now(), ev.Progress); ok {
			logger.Info("progress", "report", r.String())
			if o.opts.OnReport != nil {
				o.opts.OnReport(uri, r)
			}
		}
	}

	sum := summarize()
	logger.Info("scan finished",
		"scanned", sum.Counters.Scanned,
		"added", sum.Counters.Added,
		"updated", sum.Counters.Updated,
		"deleted", sum.Counters.Deleted,
		"restored", sum.Counters.Restored,
		"elapsed", sum.Elapsed)
	return sum, nil
}

func (o *Orchestrator) apply(ctx context.Context, uri string, ev source.Event, tel *telemetry.Telemetry, logger *slog.Logger) error {
	switch ev.Kind {
	case source.KindDelete:
		logger.Debug("delete", "id", ev.Message.ID)
		if err := o.index.Delete(ctx, ev.Message.ID); err != nil {
			return err
		}
		tel.OnDeleted()
		return nil

	case source.KindAdd:
		candidate := policy.Apply(ev.Message.Labels, o.opts.Policy)
		d := engine.Decide(o.opts.Mode, engine.Input{
			ID:         ev.Message.ID,
			Candidate:  candidate,
			SourceInfo: ev.Message.SourceInfo,
			Prior:      ev.Prior,
		})
		logger.Debug("decision", "id", ev.Message.ID, "action", d.Action.String(), "labels", d.Labels.String(), "restored", d.Restored)

		if d.Action.Upserts() {
			rec := ev.Message.Record(d.Labels)
			rec.SourceURI = uri
			if err := o.index.Upsert(ctx, rec); err != nil {
				return err
			}
		}

		switch d.Action {
		case engine.AddMessage:
			tel.OnAdded()
		case engine.UpdateMessage, engine.UpdateMessageState:
			tel.OnUpdated()
		}
		if d.Restored {
			tel.OnRestored()
		}
		return nil

	default:
		return &ContractError{URI: uri, Kind: ev.Kind}
	}
}
