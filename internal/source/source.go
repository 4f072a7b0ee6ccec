// Package source turns an external message source into the event stream the
// syncer consumes.
//
// A concrete source kind (maildir, mbox, imap) only enumerates what it
// currently holds, as Observations. Poll wraps an Enumerator, looks up each
// message's prior index record, and finally emits delete events for ids the
// index still attributes to the source but the scan no longer saw.
package source

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strings"

	"github.com/roach88/labelsync/internal/labels"
	"github.com/roach88/labelsync/internal/message"
)

// Supported URI schemes.
const (
	SchemeMaildir = "maildir"
	SchemeMbox    = "mbox"
	SchemeIMAP    = "imap"
	SchemeIMAPS   = "imaps"
)

// Definition is a registered source.
type Definition struct {
	// URI identifies the source, e.g. "maildir:///home/me/Mail".
	URI string `json:"uri"`

	// Usual sources are scanned when no source is named explicitly.
	Usual bool `json:"usual"`

	// Archived sources do not give new messages the inbox label.
	Archived bool `json:"archived"`

	// Labels are added to every message's default state.
	Labels labels.Set `json:"-"`
}

// Scheme returns the lower-cased URI scheme of the definition.
func (d Definition) Scheme() string {
	u, err := url.Parse(d.URI)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

// EventKind discriminates poll events.
type EventKind string

const (
	// KindAdd reports a message the source still holds, changed or not.
	KindAdd EventKind = "add"
	// KindDelete reports an indexed message the source no longer holds.
	KindDelete EventKind = "delete"
)

// Event is one element of a source's poll stream.
type Event struct {
	Kind    EventKind
	Message message.Message

	// Prior is the indexed record for Message.ID at the time the event was
	// produced, or nil.
	Prior *message.Record

	// Progress is the fraction of the source consumed, in [0,1], and never
	// decreases along a stream.
	Progress float64
}

// Stream is a lazy, finite, non-restartable sequence of poll events. A
// non-nil error ends the stream.
type Stream = iter.Seq2[Event, error]

// Observation is one message as an Enumerator found it, with default labels
// already derived.
type Observation struct {
	Message  message.Message
	Progress float64
}

// Enumerator lists the messages a source currently holds.
type Enumerator interface {
	// URI returns the source's URI.
	URI() string

	// Scan yields every message in a stable order. Errors reaching the
	// source are reported as *CommunicationError.
	Scan(ctx context.Context) iter.Seq2[Observation, error]
}

// CommunicationError reports that a source could not be reached or read.
type CommunicationError struct {
	URI string
	Op  string
	Err error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("source %s: %s: %v", e.URI, e.Op, e.Err)
}

func (e *CommunicationError) Unwrap() error { return e.Err }

// IsCommunicationError reports whether err (or any error in its chain) is a
// CommunicationError.
func IsCommunicationError(err error) bool {
	var ce *CommunicationError
	return errors.As(err, &ce)
}

// Fail builds a CommunicationError for uri.
func Fail(uri, op string, err error) error {
	return &CommunicationError{URI: uri, Op: op, Err: err}
}
