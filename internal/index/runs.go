package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/labelsync/internal/telemetry"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is one recorded sync run.
type Run struct {
	ID         string             `json:"id"`
	Mode       string             `json:"mode"`
	Sources    []string           `json:"sources"`
	StartedAt  string             `json:"started_at"`
	FinishedAt string             `json:"finished_at,omitempty"`
	Status     string             `json:"status"`
	Totals     telemetry.Counters `json:"totals"`
}

type runRow struct {
	ID         string         `db:"id"`
	Mode       string         `db:"mode"`
	Sources    string         `db:"sources"`
	StartedAt  string         `db:"started_at"`
	FinishedAt sql.NullString `db:"finished_at"`
	Status     string         `db:"status"`
	Scanned    int            `db:"scanned"`
	Added      int            `db:"added"`
	Updated    int            `db:"updated"`
	Deleted    int            `db:"deleted"`
	Restored   int            `db:"restored"`
}

// BeginRun records the start of run id.
func (ix *Index) BeginRun(ctx context.Context, id, mode string, sources []string) error {
	_, err := ix.db.ExecContext(ctx, `
		INSERT INTO runs (id, mode, sources, started_at, status) VALUES (?, ?, ?, ?, ?)
	`, id, mode, strings.Join(sources, " "), ix.timestamp(), RunRunning)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", id, err)
	}
	return nil
}

// FinishRun stores the totals and final status of run id.
func (ix *Index) FinishRun(ctx context.Context, id, status string, totals telemetry.Counters) error {
	res, err := ix.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, status = ?,
			scanned = ?, added = ?, updated = ?, deleted = ?, restored = ?
		WHERE id = ?
	`, ix.timestamp(), status,
		totals.Scanned, totals.Added, totals.Updated, totals.Deleted, totals.Restored,
		id)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: no such run", id)
	}
	return nil
}

// GetRun returns run id, or nil when it was never recorded.
func (ix *Index) GetRun(ctx context.Context, id string) (*Run, error) {
	var row runRow
	err := ix.db.GetContext(ctx, &row, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	run := &Run{
		ID:         row.ID,
		Mode:       row.Mode,
		StartedAt:  row.StartedAt,
		FinishedAt: row.FinishedAt.String,
		Status:     row.Status,
		Totals: telemetry.Counters{
			Scanned:  row.Scanned,
			Added:    row.Added,
			Updated:  row.Updated,
			Deleted:  row.Deleted,
			Restored: row.Restored,
		},
	}
	if row.Sources != "" {
		run.Sources = strings.Fields(row.Sources)
	}
	return run, nil
}
