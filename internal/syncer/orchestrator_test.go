package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labelsync/internal/dump"
	"github.com/roach88/labelsync/internal/engine"
	"github.com/roach88/labelsync/internal/labels"
	"github.com/roach88/labelsync/internal/message"
	"github.com/roach88/labelsync/internal/policy"
	"github.com/roach88/labelsync/internal/source"
	"github.com/roach88/labelsync/internal/telemetry"
	"github.com/roach88/labelsync/internal/testutil"
)

const uri = "maildir:///mail"

func msg(id, info string, names ...string) message.Message {
	return message.Message{ID: id, SourceURI: uri, SourceInfo: info, Labels: labels.New(names...)}
}

func rec(id, info string, names ...string) message.Record {
	return message.Record{ID: id, SourceURI: uri, SourceInfo: info, Labels: labels.New(names...)}
}

func add(m message.Message, prior *message.Record, progress float64) source.Event {
	return source.Event{Kind: source.KindAdd, Message: m, Prior: prior, Progress: progress}
}

func del(r message.Record) source.Event {
	return source.Event{
		Kind:     source.KindDelete,
		Message:  message.Message{ID: r.ID, SourceURI: r.SourceURI, SourceInfo: r.SourceInfo, Labels: r.Labels},
		Prior:    &r,
		Progress: 1,
	}
}

func newOrchestrator(idx Index, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = testutil.NewFakeClock(testutil.Epoch, time.Second).Now
	}
	return New(idx, opts)
}

// mixedEvents exercises every action: add, no-op, location update, state
// update under discard, and delete.
func mixedEvents() []source.Event {
	p1 := rec("m1", "1", "inbox")
	p2 := rec("m2", "2", "starred")
	p3 := rec("m3", "3", "work")
	return []source.Event{
		add(msg("m0", "0", "inbox", "unread"), nil, 0.25),
		add(msg("m1", "1", "inbox"), &p1, 0.5),
		add(msg("m2", "22", "inbox", "unread"), &p2, 0.75),
		del(p3),
	}
}

func TestRun_AsIs(t *testing.T) {
	idx := testutil.NewMemoryIndex(rec("m1", "1", "inbox"), rec("m2", "2", "starred"), rec("m3", "3", "work"))
	o := newOrchestrator(idx, Options{Mode: engine.AsIs()})

	sum, err := o.Run(context.Background(), uri, testutil.SliceStream(mixedEvents()...))
	require.NoError(t, err)

	assert.Equal(t, telemetry.Counters{Scanned: 4, Added: 1, Updated: 1, Deleted: 1}, sum.Counters)
	assert.Equal(t, uri, sum.URI)

	recs := idx.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, "m0", recs[0].ID)
	assert.Equal(t, "inbox,unread", recs[0].Labels.String())
	assert.Equal(t, "m2", recs[2].ID)
	assert.Equal(t, "22", recs[2].SourceInfo, "location updated")
	assert.Equal(t, "starred", recs[2].Labels.String(), "as-is keeps indexed labels")
}

func TestRun_Discard(t *testing.T) {
	idx := testutil.NewMemoryIndex(rec("m1", "1", "inbox"), rec("m2", "2", "starred"), rec("m3", "3", "work"))
	o := newOrchestrator(idx, Options{Mode: engine.Discard()})

	sum, err := o.Run(context.Background(), uri, testutil.SliceStream(mixedEvents()...))
	require.NoError(t, err)
	assert.Equal(t, telemetry.Counters{Scanned: 4, Added: 1, Updated: 1, Deleted: 1}, sum.Counters)

	got, err := idx.Get(context.Background(), "m2")
	require.NoError(t, err)
	assert.Equal(t, "inbox,unread", got.Labels.String(), "discard takes the source's labels")
}

func TestRun_Restore(t *testing.T) {
	snap, err := dump.ParseLines([]string{"m1 (starred)", "m9 (work,starred)"})
	require.NoError(t, err)

	p1 := rec("m1", "1", "unread")
	idx := testutil.NewMemoryIndex(p1)
	o := newOrchestrator(idx, Options{Mode: engine.Restore(snap)})

	sum, err := o.Run(context.Background(), uri, testutil.SliceStream(
		add(msg("m1", "1", "inbox", "unread"), &p1, 0.3),
		add(msg("m9", "9", "inbox", "unread"), nil, 0.6),
		add(msg("m5", "5", "inbox"), nil, 1),
	))
	require.NoError(t, err)
	assert.Equal(t, telemetry.Counters{Scanned: 3, Added: 2, Updated: 1, Restored: 2}, sum.Counters)

	recs := idx.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, "starred", recs[0].Labels.String())
	assert.Equal(t, "inbox", recs[1].Labels.String(), "m5 has no snapshot entry and is added as-is")
	assert.Equal(t, "starred,work", recs[2].Labels.String())

	assert.Equal(t, []string{
		"Scanned 3, added 2, updated 1, deleted 0 messages from maildir:///mail.",
		"Restored state on 2 (66.7%) messages.",
	}, sum.Lines())
}

func TestRun_OverridesApplyBeforeDecision(t *testing.T) {
	idx := testutil.NewMemoryIndex()
	o := newOrchestrator(idx, Options{
		Mode:   engine.AsIs(),
		Policy: policy.Options{StripInbox: true, StripUnread: true},
	})

	sum, err := o.Run(context.Background(), uri, testutil.SliceStream(add(msg("m1", "1", "inbox", "unread"), nil, 1)))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Counters.Added)

	got, err := idx.Get(context.Background(), "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0, got.Labels.Len())
}

func TestRun_ExtraLabels(t *testing.T) {
	idx := testutil.NewMemoryIndex()
	o := newOrchestrator(idx, Options{
		Mode:   engine.Discard(),
		Policy: policy.Options{Extra: labels.New("imported")},
	})

	_, err := o.Run(context.Background(), uri, testutil.SliceStream(add(msg("m1", "1", "inbox"), nil, 1)))
	require.NoError(t, err)

	got, err := idx.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "imported,inbox", got.Labels.String())
}

func TestRun_DryRunCountsButNeverWrites(t *testing.T) {
	snap, err := dump.ParseLines([]string{"m1 (restored)"})
	require.NoError(t, err)

	modes := map[string]engine.Mode{
		"asis":    engine.AsIs(),
		"discard": engine.Discard(),
		"restore": engine.Restore(snap),
	}

	for name, mode := range modes {
		t.Run(name, func(t *testing.T) {
			seed := []message.Record{rec("m1", "1", "inbox"), rec("m2", "2", "starred"), rec("m3", "3", "work")}

			wet := testutil.NewMemoryIndex(seed...)
			wetSum, err := newOrchestrator(wet, Options{Mode: mode}).
				Run(context.Background(), uri, testutil.SliceStream(mixedEvents()...))
			require.NoError(t, err)

			dry := testutil.NewMemoryIndex(seed...)
			drySum, err := newOrchestrator(dry, Options{Mode: mode, DryRun: true}).
				Run(context.Background(), uri, testutil.SliceStream(mixedEvents()...))
			require.NoError(t, err)

			assert.Equal(t, wetSum.Counters, drySum.Counters)
			assert.True(t, drySum.DryRun)
			assert.Positive(t, wet.Writes())
			assert.Zero(t, dry.Writes())
			assert.Equal(t, seed, dry.Records())
		})
	}
}

func TestRun_IdempotentOverUnchangedSource(t *testing.T) {
	idx := testutil.NewMemoryIndex()
	enum := &testutil.Enumerator{SourceURI: uri, Observations: []source.Observation{
		{Message: msg("m1", "1", "inbox", "unread"), Progress: 0.5},
		{Message: msg("m2", "2", "inbox"), Progress: 1},
	}}
	o := newOrchestrator(idx, Options{Mode: engine.AsIs()})
	ctx := context.Background()

	first, err := o.Run(ctx, uri, source.Poll(ctx, enum, idx))
	require.NoError(t, err)
	assert.Equal(t, telemetry.Counters{Scanned: 2, Added: 2}, first.Counters)

	writes := idx.Writes()
	second, err := o.Run(ctx, uri, source.Poll(ctx, enum, idx))
	require.NoError(t, err)
	assert.Equal(t, telemetry.Counters{Scanned: 2}, second.Counters)
	assert.Equal(t, writes, idx.Writes())
}

func TestRun_DeletesWhatTheSourceNoLongerHolds(t *testing.T) {
	idx := testutil.NewMemoryIndex(rec("m1", "1", "inbox"), rec("gone", "7", "starred"))
	enum := &testutil.Enumerator{SourceURI: uri, Observations: []source.Observation{
		{Message: msg("m1", "1", "inbox"), Progress: 1},
	}}
	ctx := context.Background()

	sum, err := newOrchestrator(idx, Options{Mode: engine.AsIs()}).Run(ctx, uri, source.Poll(ctx, enum, idx))
	require.NoError(t, err)
	assert.Equal(t, telemetry.Counters{Scanned: 2, Deleted: 1}, sum.Counters)

	gone, err := idx.Get(ctx, "gone")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestRun_ContractViolation(t *testing.T) {
	idx := testutil.NewMemoryIndex()
	o := newOrchestrator(idx, Options{Mode: engine.AsIs()})

	sum, err := o.Run(context.Background(), uri, testutil.SliceStream(
		add(msg("m1", "1"), nil, 0.5),
		source.Event{Kind: "move", Message: msg("m2", "2")},
		add(msg("m3", "3"), nil, 1),
	))
	require.Error(t, err)
	assert.True(t, IsContractError(err))
	assert.Contains(t, err.Error(), `"move"`)
	assert.Equal(t, 1, sum.Counters.Scanned, "processing stops at the bad event")
	assert.Equal(t, 1, idx.Upserts)
}

func TestRun_StreamErrorStopsRun(t *testing.T) {
	boom := source.Fail(uri, "read", errors.New("i/o error"))
	idx := testutil.NewMemoryIndex()

	sum, err := newOrchestrator(idx, Options{Mode: engine.AsIs()}).
		Run(context.Background(), uri, testutil.FailingStream(boom, add(msg("m1", "1"), nil, 0.5)))
	require.Error(t, err)
	assert.True(t, source.IsCommunicationError(err))
	assert.Equal(t, 1, sum.Counters.Scanned)
}

func TestRun_WriteErrorStopsRun(t *testing.T) {
	idx := testutil.NewMemoryIndex()
	idx.FailUpsert = errors.New("disk full")

	sum, err := newOrchestrator(idx, Options{Mode: engine.AsIs()}).
		Run(context.Background(), uri, testutil.SliceStream(add(msg("m1", "1"), nil, 1)))
	require.EqualError(t, err, "disk full")
	assert.Zero(t, sum.Counters.Scanned)
}

func TestRun_CancelledBetweenEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	idx := testutil.NewMemoryIndex()

	events := func(yield func(source.Event, error) bool) {
		if !yield(add(msg("m1", "1"), nil, 0.5), nil) {
			return
		}
		cancel()
		yield(add(msg("m2", "2"), nil, 1), nil)
	}

	sum, err := newOrchestrator(idx, Options{Mode: engine.AsIs()}).Run(ctx, uri, events)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sum.Counters.Scanned)
	assert.Equal(t, 1, idx.Upserts)
}

func TestRun_PeriodicReports(t *testing.T) {
	clock := testutil.NewFakeClock(testutil.Epoch, 10*time.Second)
	var reports []telemetry.Report

	o := New(testutil.NewMemoryIndex(), Options{
		Mode:           engine.AsIs(),
		Now:            clock.Now,
		ReportInterval: 15 * time.Second,
		OnReport: func(u string, r telemetry.Report) {
			assert.Equal(t, uri, u)
			reports = append(reports, r)
		},
	})

	var events []source.Event
	for i, id := range []string{"a", "b", "c", "d"} {
		events = append(events, add(msg(id, id), nil, float64(i+1)/4))
	}
	_, err := o.Run(context.Background(), uri, testutil.SliceStream(events...))
	require.NoError(t, err)

	// Start at 0s; events are sampled at 10s, 20s, 30s, 40s.
	require.Len(t, reports, 2)
	assert.Equal(t, 2, reports[0].Scanned)
	assert.Equal(t, 4, reports[1].Scanned)
}

func TestRunAll(t *testing.T) {
	defs := []source.Definition{{URI: "maildir:///a"}, {URI: "maildir:///b"}, {URI: "maildir:///c"}}
	idx := testutil.NewMemoryIndex()
	o := newOrchestrator(idx, Options{Mode: engine.AsIs()})

	var opened []string
	open := func(_ context.Context, def source.Definition, _ source.Lookup) (source.Stream, error) {
		opened = append(opened, def.URI)
		if def.URI == "maildir:///b" {
			return testutil.FailingStream(source.Fail(def.URI, "list", errors.New("no such directory"))), nil
		}
		return testutil.SliceStream(add(message.Message{ID: def.URI + "-1", SourceInfo: "1"}, nil, 1)), nil
	}

	sums, err := o.RunAll(context.Background(), defs, open)
	require.Error(t, err)
	assert.True(t, source.IsCommunicationError(err))
	assert.Equal(t, []string{"maildir:///a", "maildir:///b"}, opened, "remaining sources are not attempted")
	require.Len(t, sums, 2, "the failed source's partial summary is kept")
	assert.Equal(t, "maildir:///a", sums[0].URI)
	assert.Equal(t, "maildir:///b", sums[1].URI)
	assert.Equal(t, telemetry.Counters{Scanned: 1, Added: 1}, Totals(sums))

	got, err := idx.Get(context.Background(), "maildir:///a-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "maildir:///a", got.SourceURI)
}

func TestRunAll_OpenError(t *testing.T) {
	o := newOrchestrator(testutil.NewMemoryIndex(), Options{Mode: engine.AsIs()})
	sums, err := o.RunAll(context.Background(), []source.Definition{{URI: "imaps://me@example.com"}},
		func(context.Context, source.Definition, source.Lookup) (source.Stream, error) {
			return nil, errors.New("no password")
		})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open source imaps://me@example.com")
	assert.Empty(t, sums)
}

func TestRunAll_CountersResetPerSource(t *testing.T) {
	o := newOrchestrator(testutil.NewMemoryIndex(), Options{Mode: engine.AsIs()})
	defs := []source.Definition{{URI: "maildir:///a"}, {URI: "maildir:///b"}}
	open := func(_ context.Context, def source.Definition, _ source.Lookup) (source.Stream, error) {
		return testutil.SliceStream(
			add(message.Message{ID: def.URI + "-1", SourceInfo: "1"}, nil, 0.5),
			add(message.Message{ID: def.URI + "-2", SourceInfo: "2"}, nil, 1),
		), nil
	}

	sums, err := o.RunAll(context.Background(), defs, open)
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, 2, sums[0].Counters.Added)
	assert.Equal(t, 2, sums[1].Counters.Added)
	assert.Equal(t, telemetry.Counters{Scanned: 4, Added: 4}, Totals(sums))
}

func TestRunAll_PartialSummaryOfFailedSource(t *testing.T) {
	o := newOrchestrator(testutil.NewMemoryIndex(), Options{Mode: engine.AsIs()})
	boom := source.Fail("maildir:///a", "read", errors.New("i/o error"))
	open := func(_ context.Context, def source.Definition, _ source.Lookup) (source.Stream, error) {
		return testutil.FailingStream(boom,
			add(message.Message{ID: "a-1", SourceInfo: "1"}, nil, 0.3),
			add(message.Message{ID: "a-2", SourceInfo: "2"}, nil, 0.6),
		), nil
	}

	sums, err := o.RunAll(context.Background(), []source.Definition{{URI: "maildir:///a"}}, open)
	require.Error(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, telemetry.Counters{Scanned: 2, Added: 2}, sums[0].Counters)
}

// duplicateScan sees the same message twice in one pass, as a maildir
// holding a copy in both new/ and cur/ does.
func duplicateScan() *testutil.Enumerator {
	return &testutil.Enumerator{SourceURI: uri, Observations: []source.Observation{
		{Message: msg("dup", "0", "inbox"), Progress: 0.5},
		{Message: msg("dup", "100", "inbox"), Progress: 1},
	}}
}

func TestRun_DryRunMatchesRealRunOnDuplicateIDs(t *testing.T) {
	ctx := context.Background()

	wet := testutil.NewMemoryIndex()
	wetOrch := newOrchestrator(wet, Options{Mode: engine.AsIs()})
	wetSum, err := wetOrch.Run(ctx, uri, source.Poll(ctx, duplicateScan(), wetOrch.Lookup()))
	require.NoError(t, err)
	assert.Equal(t, telemetry.Counters{Scanned: 2, Added: 1, Updated: 1}, wetSum.Counters)

	dry := testutil.NewMemoryIndex()
	dryOrch := newOrchestrator(dry, Options{Mode: engine.AsIs(), DryRun: true})
	drySum, err := dryOrch.Run(ctx, uri, source.Poll(ctx, duplicateScan(), dryOrch.Lookup()))
	require.NoError(t, err)
	assert.Equal(t, wetSum.Counters, drySum.Counters)
	assert.Zero(t, dry.Writes())
}

func TestRunAll_DryRunSeesEarlierSources(t *testing.T) {
	// m1 moves from a to b. Scanning a deletes it, so b adds it again.
	seed := message.Record{ID: "m1", SourceURI: "maildir:///a", SourceInfo: "1", Labels: labels.New("starred")}
	defs := []source.Definition{{URI: "maildir:///a"}, {URI: "maildir:///b"}}
	open := func(ctx context.Context, def source.Definition, lookup source.Lookup) (source.Stream, error) {
		enum := &testutil.Enumerator{SourceURI: def.URI}
		if def.URI == "maildir:///b" {
			enum.Observations = []source.Observation{{
				Message:  message.Message{ID: "m1", SourceURI: def.URI, SourceInfo: "9", Labels: labels.New("inbox")},
				Progress: 1,
			}}
		}
		return source.Poll(ctx, enum, lookup), nil
	}

	wet := testutil.NewMemoryIndex(seed)
	wetSums, err := newOrchestrator(wet, Options{Mode: engine.AsIs()}).RunAll(context.Background(), defs, open)
	require.NoError(t, err)

	dry := testutil.NewMemoryIndex(seed)
	drySums, err := newOrchestrator(dry, Options{Mode: engine.AsIs(), DryRun: true}).RunAll(context.Background(), defs, open)
	require.NoError(t, err)

	require.Len(t, drySums, 2)
	for i := range wetSums {
		assert.Equal(t, wetSums[i].Counters, drySums[i].Counters, wetSums[i].URI)
	}
	assert.Equal(t, telemetry.Counters{Scanned: 2, Added: 1, Deleted: 1}, Totals(drySums))
	assert.Equal(t, []message.Record{seed}, dry.Records())
}
