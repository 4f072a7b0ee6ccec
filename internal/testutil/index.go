package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/labelsync/internal/message"
)

// MemoryIndex is an in-memory stand-in for the SQLite index. It serves
// both the poll side (Get, IDsForSource) and the write side (Upsert,
// Delete), and counts writes so tests can assert that a dry run sent none.
type MemoryIndex struct {
	mu      sync.Mutex
	records map[string]message.Record

	Upserts int
	Deletes int

	// FailUpsert, when set, is returned by every Upsert.
	FailUpsert error
}

// NewMemoryIndex returns an index holding recs.
func NewMemoryIndex(recs ...message.Record) *MemoryIndex {
	ix := &MemoryIndex{records: make(map[string]message.Record)}
	for _, r := range recs {
		ix.records[r.ID] = cloneRecord(r)
	}
	return ix
}

// Get returns a copy of the record for id, or nil.
func (ix *MemoryIndex) Get(_ context.Context, id string) (*message.Record, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	r, ok := ix.records[id]
	if !ok {
		return nil, nil
	}
	c := cloneRecord(r)
	return &c, nil
}

// Upsert stores a copy of rec.
func (ix *MemoryIndex) Upsert(_ context.Context, rec message.Record) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.FailUpsert != nil {
		return ix.FailUpsert
	}
	if rec.ID == "" {
		return fmt.Errorf("upsert: empty id")
	}
	ix.records[rec.ID] = cloneRecord(rec)
	ix.Upserts++
	return nil
}

// Delete removes the record for id.
func (ix *MemoryIndex) Delete(_ context.Context, id string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.records, id)
	ix.Deletes++
	return nil
}

// IDsForSource returns the ids attributed to uri, sorted.
func (ix *MemoryIndex) IDsForSource(_ context.Context, uri string) ([]string, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	var ids []string
	for id, r := range ix.records {
		if r.SourceURI == uri {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Records returns copies of every record, sorted by id.
func (ix *MemoryIndex) Records() []message.Record {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	out := make([]message.Record, 0, len(ix.records))
	for _, r := range ix.records {
		out = append(out, cloneRecord(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Writes returns the number of upserts and deletes received.
func (ix *MemoryIndex) Writes() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.Upserts + ix.Deletes
}

func cloneRecord(r message.Record) message.Record {
	r.Labels = r.Labels.Clone()
	return r
}
