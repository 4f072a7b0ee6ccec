package syncer

import (
	"context"
	"sort"

	"github.com/roach88/labelsync/internal/message"
)

// overlay records a dry run's writes in memory and serves reads through
// them, so later events see the same priors a real run would.
type overlay struct {
	base Index

	// changed holds every record the run touched; nil marks a delete.
	changed map[string]*message.Record
}

func newOverlay(base Index) *overlay {
	return &overlay{base: base, changed: make(map[string]*message.Record)}
}

func (ov *overlay) Get(ctx context.Context, id string) (*message.Record, error) {
	if r, ok := ov.changed[id]; ok {
		if r == nil {
			return nil, nil
		}
		c := *r
		c.Labels = r.Labels.Clone()
		return &c, nil
	}
	return ov.base.Get(ctx, id)
}

func (ov *overlay) IDsForSource(ctx context.Context, uri string) ([]string, error) {
	base, err := ov.base.IDsForSource(ctx, uri)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(base))
	indexed := make(map[string]struct{}, len(base))
	for _, id := range base {
		indexed[id] = struct{}{}
		if r, ok := ov.changed[id]; ok && (r == nil || r.SourceURI != uri) {
			continue
		}
		ids = append(ids, id)
	}
	for id, r := range ov.changed {
		if _, ok := indexed[id]; !ok && r != nil && r.SourceURI == uri {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (ov *overlay) Upsert(_ context.Context, rec message.Record) error {
	rec.Labels = rec.Labels.Clone()
	ov.changed[rec.ID] = &rec
	return nil
}

func (ov *overlay) Delete(_ context.Context, id string) error {
	ov.changed[id] = nil
	return nil
}
