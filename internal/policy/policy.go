// Package policy applies command-line label overrides to freshly observed
// messages before they reach the reconciliation engine.
package policy

import "github.com/roach88/labelsync/internal/labels"

// Options holds the override flags for one run.
type Options struct {
	// StripInbox removes the inbox label (--archive).
	StripInbox bool

	// StripUnread removes the unread label (--read).
	StripUnread bool

	// Extra is unioned into every message (--extra-labels).
	Extra labels.Set
}

// Apply returns the override-adjusted copy of candidate. The input set is not
// modified. Order of effects: strip inbox, strip unread, then add extras, so
// an extra label of "inbox" survives --archive.
func Apply(candidate labels.Set, opts Options) labels.Set {
	out := candidate.Clone()
	if opts.StripInbox {
		out.Remove(labels.Inbox)
	}
	if opts.StripUnread {
		out.Remove(labels.Unread)
	}
	return out.Union(opts.Extra)
}

// IsZero reports whether opts changes nothing.
func (o Options) IsZero() bool {
	return !o.StripInbox && !o.StripUnread && o.Extra.Len() == 0
}
