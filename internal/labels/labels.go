// Package labels implements the label set carried by every indexed message.
//
// A label is a symbolic tag describing message state (unread, inbox,
// starred, ...) or a user-defined category. Label names are compared after
// trimming surrounding whitespace and NFC normalisation, so "café" typed on
// two different keyboards is one label.
package labels

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Well-known labels with state meaning. Every other label is user-defined.
const (
	Inbox      = "inbox"
	Unread     = "unread"
	Starred    = "starred"
	Deleted    = "deleted"
	Spam       = "spam"
	Draft      = "draft"
	Replied    = "replied"
	Forwarded  = "forwarded"
	Attachment = "attachment"
)

// Set is an unordered collection of labels with set semantics.
//
// The zero value is an empty set ready for use; methods with pointer
// receivers allocate on first write.
type Set struct {
	m map[string]struct{}
}

// New returns a set holding the given labels. Empty names are dropped.
func New(names ...string) Set {
	var s Set
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Parse splits a comma-separated label list. Whitespace around each name is
// ignored, as are empty entries, so "" and " , " both yield the empty set.
func Parse(csv string) Set {
	return New(strings.Split(csv, ",")...)
}

// Normalize returns the canonical form of a label name.
func Normalize(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Len returns the number of labels in the set.
func (s Set) Len() int { return len(s.m) }

// Contains reports whether the set holds name.
func (s Set) Contains(name string) bool {
	_, ok := s.m[Normalize(name)]
	return ok
}

// Add inserts name into the set. Adding an empty name is a no-op.
func (s *Set) Add(name string) {
	name = Normalize(name)
	if name == "" {
		return
	}
	if s.m == nil {
		s.m = make(map[string]struct{})
	}
	s.m[name] = struct{}{}
}

// Remove deletes name from the set if present.
func (s *Set) Remove(name string) {
	delete(s.m, Normalize(name))
}

// Union returns a new set holding the labels of both s and other.
func (s Set) Union(other Set) Set {
	out := s.Clone()
	for n := range other.m {
		out.Add(n)
	}
	return out
}

// Difference returns a new set holding the labels of s absent from other.
func (s Set) Difference(other Set) Set {
	var out Set
	for n := range s.m {
		if _, ok := other.m[n]; !ok {
			out.Add(n)
		}
	}
	return out
}

// Equal reports whether both sets hold exactly the same labels.
// Order of insertion never matters.
func (s Set) Equal(other Set) bool {
	if len(s.m) != len(other.m) {
		return false
	}
	for n := range s.m {
		if _, ok := other.m[n]; !ok {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	var out Set
	for n := range s.m {
		out.Add(n)
	}
	return out
}

// Sorted returns the labels in ascending byte order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s.m))
	for n := range s.m {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// String renders the set as a stable comma-joined list, e.g. "inbox,unread".
// The empty set renders as "".
func (s Set) String() string {
	return strings.Join(s.Sorted(), ",")
}
