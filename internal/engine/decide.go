package engine

import (
	"fmt"

	"github.com/roach88/labelsync/internal/labels"
	"github.com/roach88/labelsync/internal/message"
)

// Action is the single outcome of reconciling one poll event.
type Action int

const (
	// NoOp leaves the index untouched.
	NoOp Action = iota
	// AddMessage creates a record for a message the index has never seen.
	AddMessage
	// UpdateMessage rewrites an existing record whose location changed.
	UpdateMessage
	// UpdateMessageState rewrites only the labels of an existing record.
	UpdateMessageState
	// Delete removes a record the source no longer reports. It is never
	// produced by Decide; the poll layer emits it directly.
	Delete
)

func (a Action) String() string {
	switch a {
	case NoOp:
		return "noop"
	case AddMessage:
		return "add_message"
	case UpdateMessage:
		return "update_message"
	case UpdateMessageState:
		return "update_message_state"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Upserts reports whether the action materialises as an index upsert.
func (a Action) Upserts() bool {
	return a == AddMessage || a == UpdateMessage || a == UpdateMessageState
}

// Input is everything Decide looks at for one message.
type Input struct {
	// ID of the incoming message; the restore snapshot is keyed by it.
	ID string

	// Candidate is the message's default labels after overrides.
	Candidate labels.Set

	// SourceInfo is where the source currently reports the message.
	SourceInfo string

	// Prior is the indexed record for ID, or nil. It is compared as stored,
	// before any override.
	Prior *message.Record
}

// Decision is the engine's verdict for one message.
type Decision struct {
	Action Action

	// Labels is the label set to store. Meaningful only when
	// Action.Upserts() is true.
	Labels labels.Set

	// Restored is set when the restore snapshot changed the outcome,
	// i.e. the run's restored counter must move.
	Restored bool
}

// Decide reconciles one incoming message against its prior record.
//
// It is a pure function of its arguments and never fails. Rules, in order:
//
//  1. Restore mode with a snapshot entry for the id: the snapshot's labels
//     win. A new message is added, a record with different labels gets a
//     state update; both count as restored.
//  2. Discard mode: the candidate's labels win over the record's.
//  3. As-is mode, or restore mode without an entry: the record's labels are
//     kept; a new message is added with the candidate's labels.
//
// Whenever a record exists and its labels already match the outcome, a
// changed source location still yields UpdateMessage; otherwise NoOp.
func Decide(mode Mode, in Input) Decision {
	switch mode.kind {
	case KindRestore:
		if want, ok := mode.snapshot.Lookup(in.ID); ok {
			return decideRestore(in, want)
		}
		return decideAsIs(in)
	case KindDiscard:
		return decideDiscard(in)
	default:
		return decideAsIs(in)
	}
}

func decideRestore(in Input, want labels.Set) Decision {
	switch {
	case in.Prior == nil:
		return Decision{Action: AddMessage, Labels: want, Restored: true}
	case !in.Prior.Labels.Equal(want):
		return Decision{Action: UpdateMessageState, Labels: want, Restored: true}
	default:
		return unchanged(in, in.Prior.Labels)
	}
}

func decideDiscard(in Input) Decision {
	switch {
	case in.Prior == nil:
		return Decision{Action: AddMessage, Labels: in.Candidate.Clone()}
	case !in.Prior.Labels.Equal(in.Candidate):
		return Decision{Action: UpdateMessageState, Labels: in.Candidate.Clone()}
	default:
		return unchanged(in, in.Candidate)
	}
}

func decideAsIs(in Input) Decision {
	if in.Prior == nil {
		return Decision{Action: AddMessage, Labels: in.Candidate.Clone()}
	}
	return unchanged(in, in.Prior.Labels)
}

// unchanged handles a prior record whose labels need no change.
func unchanged(in Input, keep labels.Set) Decision {
	if in.Prior.SourceInfo != in.SourceInfo {
		return Decision{Action: UpdateMessage, Labels: keep.Clone()}
	}
	return Decision{Action: NoOp}
}
