package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/agsrecall/internal/channel"
	"github.com/roach88/agsrecall/internal/ir"
	"github.com/roach88/agsrecall/internal/recall"
	"github.com/roach88/agsrecall/internal/recycling"
)

// recyclingChanged collects topology changes. Channel notifies after
// releasing its locks; the changes are applied by propagate once the task
// that caused them returns.
func (e *Engine) recyclingChanged(c channel.Change) {
	e.pendingMu.Lock()
	e.pending = append(e.pending, c)
	e.pendingMu.Unlock()
}

func (e *Engine) takePending() []channel.Change {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	changes := e.pending
	e.pending = nil
	return changes
}

// propagate resets the containers of every context affected by the pending
// changes, in the order the changes happened.
func (e *Engine) propagate(ctx context.Context, seq int64) error {
	var errs []error
	for _, c := range e.takePending() {
		slog.Debug("topology changed",
			"audio", c.Audio.Name(),
			"orientation", c.Orientation.String(),
			"kind", c.Kind.String(),
			"seq", seq,
		)
		var err error
		switch c.Kind {
		case channel.Replaced:
			err = e.propagateReplaced(ctx, seq, c)
		case channel.Inserted:
			err = e.propagateInserted(ctx, seq, c)
		case channel.Removed:
			err = e.propagateRemoved(ctx, seq, c)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) propagateReplaced(ctx context.Context, seq int64, c channel.Change) error {
	var errs []error
	for _, rc := range e.affected(c) {
		if rc.id.Container().Find(c.OldFirst) < 0 {
			continue
		}
		err := e.reset(ctx, seq, rc, recall.ResetInfer, c.OldFirst, c.OldLast, c.NewFirst, c.NewLast)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) propagateInserted(ctx context.Context, seq int64, c channel.Change) error {
	var errs []error
	for _, rc := range e.affected(c) {
		if !rc.spansChain() {
			continue
		}
		if err := e.reset(ctx, seq, rc, recall.ResetInfer, nil, nil, c.NewFirst, c.NewLast); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) propagateRemoved(ctx context.Context, seq int64, c channel.Change) error {
	removed, err := recycling.Collect(c.OldFirst, c.OldLast)
	if err != nil {
		return err
	}

	var errs []error
	for _, rc := range e.affected(c) {
		if rc.id.Released() {
			// Stopped along with an ancestor earlier in this pass.
			continue
		}
		if !rc.spansChain() {
			if holdsAny(rc.id.Container(), removed) {
				errs = append(errs, e.stopContext(ctx, seq, rc))
			}
			continue
		}
		if c.ChainFirst == nil {
			errs = append(errs, e.stopEmptied(ctx, seq, rc))
			continue
		}
		errs = append(errs, e.reset(ctx, seq, rc, recall.ResetGraft, nil, nil, c.ChainFirst, c.ChainLast))
	}
	return errors.Join(errs...)
}

// stopEmptied stops a chain context whose chain has no lines left. An empty
// output chain ends the whole playback.
func (e *Engine) stopEmptied(ctx context.Context, seq int64, rc *recallContext) error {
	slog.Info("chain emptied, stopping context",
		"audio", rc.audio.Name(),
		"role", string(rc.role),
		"recall_id", rc.id.String(),
	)
	if rc.role == RoleOutput {
		e.mu.RLock()
		pb := e.playbacks[rc.audio.Name()]
		e.mu.RUnlock()
		if pb != nil && pb.output == rc {
			return e.stopPlayback(ctx, seq, pb)
		}
	}
	return e.stopContext(ctx, seq, rc)
}

// reset replaces rc's container. When the requested reset cannot be
// applied, the context is grafted onto the range it currently scopes.
func (e *Engine) reset(ctx context.Context, seq int64, rc *recallContext, mode recall.ResetMode, oldFirst, oldLast, newFirst, newLast *recycling.Recycling) error {
	old := rc.id.Container()
	next, err := recall.ResetRecyclingMode(old, mode, oldFirst, oldLast, newFirst, newLast)
	if err != nil {
		slog.Warn("reset rejected, grafting onto current range",
			"recall_id", rc.id.String(),
			"mode", mode.String(),
			"error", err,
		)
		first, last := rc.scopeRange()
		if first == nil {
			return e.stopContext(ctx, seq, rc)
		}
		mode = recall.ResetGraft
		next, err = recall.ResetRecyclingMode(old, mode, nil, nil, first, last)
		if err != nil {
			return err
		}
	}
	// The detached container keeps only its construction reference.
	old.Unref()

	slog.Debug("context reset",
		"recall_id", rc.id.String(),
		"mode", mode.String(),
		"old_len", old.Len(),
		"new_len", next.Len(),
	)
	if e.store == nil {
		return nil
	}
	rec := ir.ResetRecord{
		Seq:      seq,
		RecallID: rc.id.String(),
		Mode:     mode.String(),
		OldLen:   old.Len(),
		NewLen:   next.Len(),
	}
	if f := next.First(); f != nil {
		rec.First = f.Name()
	}
	if l := next.Last(); l != nil {
		rec.Last = l.Name()
	}
	return e.store.WriteReset(ctx, rec)
}

// affected returns the live contexts over c's audio and orientation in start
// order.
func (e *Engine) affected(c channel.Change) []*recallContext {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []*recallContext
	for _, rc := range e.contexts {
		if rc.audio == c.Audio && rc.id.Orientation() == c.Orientation {
			out = append(out, rc)
		}
	}
	return out
}

func holdsAny(c *recall.Container, recs []*recycling.Recycling) bool {
	for _, r := range recs {
		if c.Find(r) >= 0 {
			return true
		}
	}
	return false
}
