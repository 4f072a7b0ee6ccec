package source

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/roach88/labelsync/internal/labels"
)

// Flags is the message state a source reports, independent of its native
// encoding (maildir info suffix, mbox Status headers, IMAP system flags).
type Flags struct {
	Seen    bool
	Flagged bool
	Replied bool
	Passed  bool
	Draft   bool
	Trashed bool
}

// DefaultLabels derives the default state of a message from its flags and
// the source definition.
func DefaultLabels(def Definition, f Flags) labels.Set {
	out := def.Labels.Clone()
	if !def.Archived {
		out.Add(labels.Inbox)
	}
	if !f.Seen {
		out.Add(labels.Unread)
	}
	if f.Flagged {
		out.Add(labels.Starred)
	}
	if f.Replied {
		out.Add(labels.Replied)
	}
	if f.Passed {
		out.Add(labels.Forwarded)
	}
	if f.Draft {
		out.Add(labels.Draft)
	}
	if f.Trashed {
		out.Add(labels.Deleted)
	}
	return out
}

// MaildirFlags decodes the flag letters of a maildir "2," info suffix.
func MaildirFlags(info string) Flags {
	var f Flags
	for _, c := range info {
		switch c {
		case 'S':
			f.Seen = true
		case 'F':
			f.Flagged = true
		case 'R':
			f.Replied = true
		case 'P':
			f.Passed = true
		case 'D':
			f.Draft = true
		case 'T':
			f.Trashed = true
		}
	}
	return f
}

// MboxFlags decodes the Status and X-Status headers written by mbox MUAs.
func MboxFlags(status, xstatus string) Flags {
	var f Flags
	f.Seen = strings.ContainsRune(status, 'R')
	for _, c := range xstatus {
		switch c {
		case 'F':
			f.Flagged = true
		case 'A':
			f.Replied = true
		case 'D':
			f.Trashed = true
		case 'T':
			f.Draft = true
		}
	}
	return f
}

// NormalizeID strips the angle brackets around a Message-Id and drops all
// whitespace, including any inside a malformed id. Ids never contain
// whitespace, so every one can be written to a dump line.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "<")
	id = strings.TrimSuffix(id, ">")
	return strings.Join(strings.Fields(id), "")
}

// FakeID builds a stable id for a message without a Message-Id header from
// header values that identify it.
func FakeID(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return "labelsync-faked-" + hex.EncodeToString(sum[:16])
}
