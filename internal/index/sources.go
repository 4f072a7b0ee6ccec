package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/labelsync/internal/labels"
	"github.com/roach88/labelsync/internal/source"
)

type sourceRow struct {
	URI       string `db:"uri"`
	Usual     bool   `db:"usual"`
	Archived  bool   `db:"archived"`
	Labels    string `db:"labels"`
	CreatedAt string `db:"created_at"`
}

func (r sourceRow) definition() source.Definition {
	return source.Definition{
		URI:      r.URI,
		Usual:    r.Usual,
		Archived: r.Archived,
		Labels:   labels.Parse(r.Labels),
	}
}

// HasSource reports whether uri is registered.
func (ix *Index) HasSource(ctx context.Context, uri string) (bool, error) {
	var n int
	if err := ix.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM sources WHERE uri = ?", uri); err != nil {
		return false, fmt.Errorf("lookup source %s: %w", uri, err)
	}
	return n > 0, nil
}

// AddSource registers def. Registering a URI twice fails with
// *SourceExistsError.
func (ix *Index) AddSource(ctx context.Context, def source.Definition) error {
	ok, err := ix.HasSource(ctx, def.URI)
	if err != nil {
		return err
	}
	if ok {
		return &SourceExistsError{URI: def.URI}
	}

	row := sourceRow{
		URI:       def.URI,
		Usual:     def.Usual,
		Archived:  def.Archived,
		Labels:    def.Labels.String(),
		CreatedAt: ix.timestamp(),
	}
	_, err = ix.db.NamedExecContext(ctx, `
		INSERT INTO sources (uri, usual, archived, labels, created_at)
		VALUES (:uri, :usual, :archived, :labels, :created_at)
	`, row)
	if err != nil {
		return fmt.Errorf("add source %s: %w", def.URI, err)
	}
	return nil
}

// Source returns the definition registered under uri, or
// *UnknownSourceError.
func (ix *Index) Source(ctx context.Context, uri string) (source.Definition, error) {
	var row sourceRow
	err := ix.db.GetContext(ctx, &row, `
		SELECT uri, usual, archived, labels, created_at FROM sources WHERE uri = ?
	`, uri)
	if errors.Is(err, sql.ErrNoRows) {
		return source.Definition{}, &UnknownSourceError{URI: uri}
	}
	if err != nil {
		return source.Definition{}, fmt.Errorf("get source %s: %w", uri, err)
	}
	return row.definition(), nil
}

// Sources returns every registered source, ordered by URI.
func (ix *Index) Sources(ctx context.Context) ([]source.Definition, error) {
	var rows []sourceRow
	err := ix.db.SelectContext(ctx, &rows, `
		SELECT uri, usual, archived, labels, created_at FROM sources ORDER BY uri ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	defs := make([]source.Definition, 0, len(rows))
	for _, r := range rows {
		defs = append(defs, r.definition())
	}
	return defs, nil
}

// Select resolves which sources a run scans: the named URIs in the order
// given, every source when all is set, otherwise the usual ones. Naming an
// unregistered URI fails with *UnknownSourceError before anything is
// scanned.
func (ix *Index) Select(ctx context.Context, uris []string, all bool) ([]source.Definition, error) {
	if len(uris) > 0 {
		defs := make([]source.Definition, 0, len(uris))
		for _, uri := range uris {
			def, err := ix.Source(ctx, uri)
			if err != nil {
				return nil, err
			}
			defs = append(defs, def)
		}
		return defs, nil
	}

	defs, err := ix.Sources(ctx)
	if err != nil {
		return nil, err
	}
	if all {
		return defs, nil
	}

	usual := defs[:0]
	for _, d := range defs {
		if d.Usual {
			usual = append(usual, d)
		}
	}
	return usual, nil
}
