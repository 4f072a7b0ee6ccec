package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/labelsync/internal/dump"
	"github.com/roach88/labelsync/internal/labels"
	"github.com/roach88/labelsync/internal/message"
)

type messageRow struct {
	ID         string `db:"id"`
	SourceURI  string `db:"source_uri"`
	SourceInfo string `db:"source_info"`
	Labels     string `db:"labels"`
	UpdatedAt  string `db:"updated_at"`
}

func (r messageRow) record() *message.Record {
	return &message.Record{
		ID:         r.ID,
		SourceURI:  r.SourceURI,
		SourceInfo: r.SourceInfo,
		Labels:     labels.Parse(r.Labels),
	}
}

// Get returns the record for id, or nil when the index has none.
func (ix *Index) Get(ctx context.Context, id string) (*message.Record, error) {
	var row messageRow
	err := ix.db.GetContext(ctx, &row, `
		SELECT id, source_uri, source_info, labels, updated_at
		FROM messages WHERE id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return row.record(), nil
}

// Upsert stores rec, replacing any record with the same id.
func (ix *Index) Upsert(ctx context.Context, rec message.Record) error {
	row := messageRow{
		ID:         rec.ID,
		SourceURI:  rec.SourceURI,
		SourceInfo: rec.SourceInfo,
		Labels:     rec.Labels.String(),
		UpdatedAt:  ix.timestamp(),
	}
	_, err := ix.db.NamedExecContext(ctx, `
		INSERT INTO messages (id, source_uri, source_info, labels, updated_at)
		VALUES (:id, :source_uri, :source_info, :labels, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			source_uri = excluded.source_uri,
			source_info = excluded.source_info,
			labels = excluded.labels,
			updated_at = excluded.updated_at
	`, row)
	if err != nil {
		return fmt.Errorf("upsert message %s: %w", rec.ID, err)
	}
	return nil
}

// Delete removes the record for id. Deleting an absent id is a no-op.
func (ix *Index) Delete(ctx context.Context, id string) error {
	if _, err := ix.db.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete message %s: %w", id, err)
	}
	return nil
}

// IDsForSource returns the ids of every record attributed to uri, in id
// order.
func (ix *Index) IDsForSource(ctx context.Context, uri string) ([]string, error) {
	var ids []string
	err := ix.db.SelectContext(ctx, &ids, `
		SELECT id FROM messages WHERE source_uri = ? ORDER BY id ASC
	`, uri)
	if err != nil {
		return nil, fmt.Errorf("list messages of %s: %w", uri, err)
	}
	return ids, nil
}

// Entries returns every record's id and labels in id order, ready for the
// dump writer.
func (ix *Index) Entries(ctx context.Context) ([]dump.Entry, error) {
	var rows []messageRow
	err := ix.db.SelectContext(ctx, &rows, `
		SELECT id, source_uri, source_info, labels, updated_at
		FROM messages ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	entries := make([]dump.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, dump.Entry{ID: r.ID, Labels: labels.Parse(r.Labels)})
	}
	return entries, nil
}
