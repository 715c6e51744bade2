package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/agsrecall/internal/ir"
)

// Meta returns a session attribute, or ErrNotFound.
func (s *Store) Meta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("meta %s: %w", key, err)
	}
	return value, nil
}

// ReadTasks returns every journaled task ordered by seq.
func (s *Store) ReadTasks(ctx context.Context) ([]ir.TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, kind, args, error
		FROM tasks
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []ir.TaskRecord{}
	for rows.Next() {
		var rec ir.TaskRecord
		var args string
		if err := rows.Scan(&rec.ID, &rec.Seq, &rec.Kind, &args, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if rec.Args, err = unmarshalArgs(args); err != nil {
			return nil, fmt.Errorf("task %s: %w", rec.ID, err)
		}
		tasks = append(tasks, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// ReadContexts returns contexts ordered by start seq. With liveOnly set,
// stopped contexts are skipped.
func (s *Store) ReadContexts(ctx context.Context, liveOnly bool) ([]ir.ContextRecord, error) {
	query := `
		SELECT recall_id, parent_id, audio, orientation, scope, pad, started_seq, stopped_seq
		FROM contexts`
	if liveOnly {
		query += ` WHERE stopped_seq IS NULL`
	}
	query += ` ORDER BY started_seq ASC, recall_id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query contexts: %w", err)
	}
	defer rows.Close()

	contexts := []ir.ContextRecord{}
	for rows.Next() {
		var rec ir.ContextRecord
		var stopped sql.NullInt64
		if err := rows.Scan(
			&rec.RecallID,
			&rec.ParentID,
			&rec.Audio,
			&rec.Orientation,
			&rec.Scope,
			&rec.Pad,
			&rec.StartedSeq,
			&stopped,
		); err != nil {
			return nil, fmt.Errorf("scan context: %w", err)
		}
		rec.StoppedSeq = stopped.Int64
		contexts = append(contexts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contexts: %w", err)
	}
	return contexts, nil
}

// ReadResets returns the resets of one context, or of all contexts when
// recallID is empty, ordered by seq.
func (s *Store) ReadResets(ctx context.Context, recallID string) ([]ir.ResetRecord, error) {
	query := `
		SELECT seq, recall_id, mode, old_len, new_len, first_name, last_name
		FROM resets`
	var args []any
	if recallID != "" {
		query += ` WHERE recall_id = ?`
		args = append(args, recallID)
	}
	query += ` ORDER BY seq ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query resets: %w", err)
	}
	defer rows.Close()

	resets := []ir.ResetRecord{}
	for rows.Next() {
		var rec ir.ResetRecord
		if err := rows.Scan(
			&rec.Seq,
			&rec.RecallID,
			&rec.Mode,
			&rec.OldLen,
			&rec.NewLen,
			&rec.First,
			&rec.Last,
		); err != nil {
			return nil, fmt.Errorf("scan reset: %w", err)
		}
		resets = append(resets, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resets: %w", err)
	}
	return resets, nil
}
