// Package message defines the message shapes shared by sources, the
// reconciliation engine and the index.
package message

import "github.com/roach88/labelsync/internal/labels"

// Message is one message as a source currently reports it. It lives for a
// single poll event.
type Message struct {
	// ID is the stable key of the message across scans (normally the
	// Message-Id header).
	ID string

	// SourceURI names the source that produced the message.
	SourceURI string

	// SourceInfo locates the message inside its source (file name, byte
	// offset, IMAP uid). Opaque to everything but the source.
	SourceInfo string

	// Labels is the default state the source assigns to the message.
	Labels labels.Set
}

// Record is a message as the index stores it.
type Record struct {
	ID         string
	SourceURI  string
	SourceInfo string
	Labels     labels.Set
}

// Record converts m into the record an upsert would store, with l as its
// labels.
func (m Message) Record(l labels.Set) Record {
	return Record{
		ID:         m.ID,
		SourceURI:  m.SourceURI,
		SourceInfo: m.SourceInfo,
		Labels:     l.Clone(),
	}
}
