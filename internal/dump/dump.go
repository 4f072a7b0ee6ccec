// Package dump reads and writes label state dumps.
//
// A dump is UTF-8 text with one record per line:
//
//	<id> (<label1,label2,...>)
//
// An empty label list is written as "()". Dumps are produced by
// "labelsync dump" and consumed by "labelsync sync --restore".
//
// Parsing is all-or-nothing: one malformed line rejects the whole dump,
// because restoring half a snapshot would silently corrupt label state.
package dump

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"

	"github.com/roach88/labelsync/internal/labels"
)

// maxLineBytes bounds a single dump line. Message ids are short, but user
// label lists are not.
const maxLineBytes = 1 << 20

var linePattern = regexp.MustCompile(`^(\S+) \((.*)\)$`)

// MalformedDumpError reports a line that does not match the dump format.
// Line holds the offending line verbatim.
type MalformedDumpError struct {
	LineNo int
	Line   string
}

func (e *MalformedDumpError) Error() string {
	return fmt.Sprintf("malformed dump line %d: %q", e.LineNo, e.Line)
}

// IsMalformed reports whether err (or anything it wraps) is a MalformedDumpError.
func IsMalformed(err error) bool {
	var me *MalformedDumpError
	return errors.As(err, &me)
}

// Snapshot maps message ids to the label set to restore.
// It is immutable once parsed.
type Snapshot struct {
	entries map[string]labels.Set
}

// Lookup returns the restore labels for id.
func (s *Snapshot) Lookup(id string) (labels.Set, bool) {
	if s == nil {
		return labels.Set{}, false
	}
	l, ok := s.entries[id]
	if !ok {
		return labels.Set{}, false
	}
	return l.Clone(), true
}

// Len returns the number of ids in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Parse reads a dump from r. The first malformed line aborts parsing with a
// *MalformedDumpError; no partial snapshot is returned. When an id appears
// more than once the last line wins.
func Parse(r io.Reader) (*Snapshot, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	snap := &Snapshot{entries: make(map[string]labels.Set)}
	lineNo := 0
	for sc.Scan() {
		lineNo++
		id, l, err := parseLine(sc.Text(), lineNo)
		if err != nil {
			return nil, err
		}
		snap.entries[id] = l
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dump: %w", err)
	}
	return snap, nil
}

// ParseLines is Parse over an in-memory slice of lines.
func ParseLines(lines []string) (*Snapshot, error) {
	snap := &Snapshot{entries: make(map[string]labels.Set, len(lines))}
	for i, line := range lines {
		id, l, err := parseLine(line, i+1)
		if err != nil {
			return nil, err
		}
		snap.entries[id] = l
	}
	return snap, nil
}

func parseLine(line string, lineNo int) (string, labels.Set, error) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return "", labels.Set{}, &MalformedDumpError{LineNo: lineNo, Line: line}
	}
	return m[1], labels.Parse(m[2]), nil
}

// Entry is one dumped message.
type Entry struct {
	ID     string
	Labels labels.Set
}

// FormatLine renders a single dump line without the trailing newline.
func FormatLine(id string, l labels.Set) string {
	return id + " (" + l.String() + ")"
}

// Write renders entries to w sorted by id, one line each.
func Write(w io.Writer, entries []Entry) error {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	bw := bufio.NewWriter(w)
	for _, e := range sorted {
		if _, err := bw.WriteString(FormatLine(e.ID, e.Labels) + "\n"); err != nil {
			return fmt.Errorf("write dump: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write dump: %w", err)
	}
	return nil
}
