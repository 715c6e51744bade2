package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/agsrecall/internal/ir"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("not found")

// SetMeta stores a session attribute such as the topology hash.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

// WriteTask journals an applied task. A task whose id or seq is already
// journaled is ignored.
func (s *Store) WriteTask(ctx context.Context, rec ir.TaskRecord) error {
	argsJSON, err := marshalArgs(rec.Args)
	if err != nil {
		return fmt.Errorf("write task: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, seq, kind, args, error)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, rec.ID, rec.Seq, rec.Kind, argsJSON, rec.Error)
	if err != nil {
		return fmt.Errorf("write task: %w", err)
	}
	return nil
}

// WriteContext journals the start of a recall context.
func (s *Store) WriteContext(ctx context.Context, rec ir.ContextRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contexts
		(recall_id, parent_id, audio, orientation, scope, pad, started_seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(recall_id) DO NOTHING
	`,
		rec.RecallID,
		rec.ParentID,
		rec.Audio,
		rec.Orientation,
		rec.Scope,
		rec.Pad,
		rec.StartedSeq,
	)
	if err != nil {
		return fmt.Errorf("write context: %w", err)
	}
	return nil
}

// CloseContext stamps the stop seq of a context. Closing an already closed
// context keeps the first stamp. Returns ErrNotFound for an unknown id.
func (s *Store) CloseContext(ctx context.Context, recallID string, seq int64) error {
	var stopped sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT stopped_seq FROM contexts WHERE recall_id = ?`, recallID,
	).Scan(&stopped)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("close context %s: %w", recallID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("close context %s: %w", recallID, err)
	}
	if stopped.Valid {
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE contexts SET stopped_seq = ? WHERE recall_id = ?`, seq, recallID)
	if err != nil {
		return fmt.Errorf("close context %s: %w", recallID, err)
	}
	return nil
}

// WriteReset journals a container reset. The context must exist.
func (s *Store) WriteReset(ctx context.Context, rec ir.ResetRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resets
		(seq, recall_id, mode, old_len, new_len, first_name, last_name)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Seq,
		rec.RecallID,
		rec.Mode,
		rec.OldLen,
		rec.NewLen,
		rec.First,
		rec.Last,
	)
	if err != nil {
		return fmt.Errorf("write reset: %w", err)
	}
	return nil
}
