package source

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/labelsync/internal/message"
)

// Lookup is the read side of the index that Poll needs.
type Lookup interface {
	// Get returns the record for id, or nil when the index has none.
	Get(ctx context.Context, id string) (*message.Record, error)

	// IDsForSource returns the ids of every record attributed to uri.
	IDsForSource(ctx context.Context, uri string) ([]string, error)
}

// Poll returns the event stream for one scan of e.
//
// Every observed message yields an add event carrying its prior record,
// including messages that did not change; deciding that nothing needs doing
// is the engine's job. Once the enumerator is exhausted, every id the index
// attributes to the source that was not observed yields a delete event, in
// id order, with progress 1.
//
// Prior records are looked up lazily, immediately before each event is
// yielded, so writes made by the consumer for earlier events are visible.
func Poll(ctx context.Context, e Enumerator, idx Lookup) Stream {
	return func(yield func(Event, error) bool) {
		uri := e.URI()
		seen := make(map[string]struct{})
		progress := 0.0

		for obs, err := range e.Scan(ctx) {
			if err != nil {
				yield(Event{}, err)
				return
			}
			prior, err := idx.Get(ctx, obs.Message.ID)
			if err != nil {
				yield(Event{}, fmt.Errorf("poll %s: lookup %s: %w", uri, obs.Message.ID, err))
				return
			}
			seen[obs.Message.ID] = struct{}{}
			if obs.Progress > progress {
				progress = obs.Progress
			}
			if !yield(Event{Kind: KindAdd, Message: obs.Message, Prior: prior, Progress: progress}, nil) {
				return
			}
		}

		ids, err := idx.IDsForSource(ctx, uri)
		if err != nil {
			yield(Event{}, fmt.Errorf("poll %s: list indexed ids: %w", uri, err))
			return
		}
		sort.Strings(ids)

		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			prior, err := idx.Get(ctx, id)
			if err != nil {
				yield(Event{}, fmt.Errorf("poll %s: lookup %s: %w", uri, id, err))
				return
			}
			if prior == nil {
				continue
			}
			ev := Event{
				Kind: KindDelete,
				Message: message.Message{
					ID:         id,
					SourceURI:  uri,
					SourceInfo: prior.SourceInfo,
					Labels:     prior.Labels.Clone(),
				},
				Prior:    prior,
				Progress: 1,
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}
