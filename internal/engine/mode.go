package engine

import (
	"fmt"

	"github.com/roach88/labelsync/internal/dump"
)

// ModeKind identifies which label policy a run uses.
type ModeKind int

const (
	// KindAsIs keeps whatever labels the index already holds.
	KindAsIs ModeKind = iota
	// KindRestore reinstates labels from a dump snapshot.
	KindRestore
	// KindDiscard replaces indexed labels with the source's labels.
	KindDiscard
)

func (k ModeKind) String() string {
	switch k {
	case KindAsIs:
		return "asis"
	case KindRestore:
		return "restore"
	case KindDiscard:
		return "discard"
	default:
		return fmt.Sprintf("ModeKind(%d)", int(k))
	}
}

// Mode is the operation mode of a run: exactly one of as-is, restore (with
// its snapshot) or discard. It is resolved once before scanning starts and
// never re-derived from flags per message.
type Mode struct {
	kind     ModeKind
	snapshot *dump.Snapshot
}

// AsIs returns the default mode.
func AsIs() Mode { return Mode{kind: KindAsIs} }

// Discard returns the mode that trusts the source's labels over the index.
func Discard() Mode { return Mode{kind: KindDiscard} }

// Restore returns the mode that applies snap. A nil snapshot behaves like an
// empty one: every message falls back to as-is handling.
func Restore(snap *dump.Snapshot) Mode {
	return Mode{kind: KindRestore, snapshot: snap}
}

// Kind returns the mode's variant.
func (m Mode) Kind() ModeKind { return m.kind }

// Snapshot returns the restore snapshot, or nil outside restore mode.
func (m Mode) Snapshot() *dump.Snapshot { return m.snapshot }

func (m Mode) String() string { return m.kind.String() }
