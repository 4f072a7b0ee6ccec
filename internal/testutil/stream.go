package testutil

import (
	"context"
	"iter"

	"github.com/roach88/labelsync/internal/source"
)

// SliceStream returns a stream yielding events in order.
func SliceStream(events ...source.Event) source.Stream {
	return func(yield func(source.Event, error) bool) {
		for _, ev := range events {
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// FailingStream yields events and then err.
func FailingStream(err error, events ...source.Event) source.Stream {
	return func(yield func(source.Event, error) bool) {
		for _, ev := range events {
			if !yield(ev, nil) {
				return
			}
		}
		yield(source.Event{}, err)
	}
}

// Enumerator is a fixed source.Enumerator.
type Enumerator struct {
	SourceURI    string
	Observations []source.Observation
}

// URI returns the source URI.
func (e *Enumerator) URI() string { return e.SourceURI }

// Scan yields the observations in order.
func (e *Enumerator) Scan(ctx context.Context) iter.Seq2[source.Observation, error] {
	return func(yield func(source.Observation, error) bool) {
		for _, o := range e.Observations {
			if err := ctx.Err(); err != nil {
				yield(source.Observation{}, err)
				return
			}
			if !yield(o, nil) {
				return
			}
		}
	}
}
