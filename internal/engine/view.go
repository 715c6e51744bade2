package engine

import (
	"fmt"
	"slices"
)

// Render returns the mix of the playback identified by its output recall id
// for one tick. Safe to call from an audio thread while tasks are applied.
func (e *Engine) Render(playbackID string, tick int) ([]float32, error) {
	dst := make([]float32, e.bufferSize)
	if err := e.RenderInto(playbackID, tick, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// RenderInto is Render into a caller-owned buffer, which is cleared first.
// Frames longer than dst are truncated.
func (e *Engine) RenderInto(playbackID string, tick int, dst []float32) error {
	e.mu.RLock()
	var found *playback
	for _, pb := range e.playbacks {
		if pb.output.id.String() == playbackID {
			found = pb
			break
		}
	}
	e.mu.RUnlock()

	if found == nil {
		return &RuntimeError{Code: ErrCodeNotPlaying, Message: fmt.Sprintf("no playback %q", playbackID)}
	}
	clear(dst)
	found.run.Render(tick, dst)
	return nil
}

// BufferSize returns the number of samples Render returns.
func (e *Engine) BufferSize() int {
	return e.bufferSize
}

// PlaybackID returns the output recall id of the audio's playback.
func (e *Engine) PlaybackID(audio string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	pb := e.playbacks[audio]
	if pb == nil {
		return "", false
	}
	return pb.output.id.String(), true
}

// Playing returns the audios with a playback, in start order.
func (e *Engine) Playing() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.order)
}

// Voices returns the pads of the audio's sounding voices in start order.
func (e *Engine) Voices(audio string) []int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	pb := e.playbacks[audio]
	if pb == nil {
		return nil
	}
	var pads []int
	for _, v := range pb.voices() {
		pads = append(pads, v.pad)
	}
	return pads
}

// Contexts returns a snapshot of every live context in start order.
func (e *Engine) Contexts() []ContextInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]ContextInfo, 0, len(e.contexts))
	for _, rc := range e.contexts {
		out = append(out, rc.info())
	}
	return out
}

// Context returns the live context with the given recall id.
func (e *Engine) Context(recallID string) (ContextInfo, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, rc := range e.contexts {
		if rc.id.String() == recallID {
			return rc.info(), true
		}
	}
	return ContextInfo{}, false
}

// Walk visits every playback's context tree depth-first, playbacks in start
// order and parents before children.
func (e *Engine) Walk(fn func(info ContextInfo, depth int)) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var walk func(rc *recallContext, depth int)
	walk = func(rc *recallContext, depth int) {
		fn(rc.info(), depth)
		for _, child := range rc.children {
			walk(child, depth+1)
		}
	}
	for _, name := range e.order {
		walk(e.playbacks[name].output, 0)
	}
}

// CheckTree verifies that the container tree mirrors the context tree: every
// id is bound to a container that names it back, and parent and child edges
// agree in both directions.
func (e *Engine) CheckTree() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, rc := range e.contexts {
		if rc.id.Released() {
			return fmt.Errorf("context %s: recall id released while live", rc.id)
		}
		c := rc.id.Container()
		if c == nil {
			return fmt.Errorf("context %s: no container bound", rc.id)
		}
		if c.RecallID() != rc.id {
			return fmt.Errorf("context %s: container bound to %s", rc.id, c.RecallID())
		}

		if rc.parent == nil {
			if c.Parent() != nil {
				return fmt.Errorf("context %s: toplevel container has a parent", rc.id)
			}
		} else {
			pc := rc.parent.id.Container()
			if c.Parent() != pc {
				return fmt.Errorf("context %s: parent edge does not reach %s", rc.id, rc.parent.id)
			}
			if !slices.Contains(pc.Children(), c) {
				return fmt.Errorf("context %s: missing from children of %s", rc.id, rc.parent.id)
			}
		}

		if got, want := len(c.Children()), len(rc.children); got != want {
			return fmt.Errorf("context %s: container has %d children, want %d", rc.id, got, want)
		}
	}
	return nil
}
