package engine

import (
	"github.com/roach88/agsrecall/internal/channel"
	"github.com/roach88/agsrecall/internal/recall"
	"github.com/roach88/agsrecall/internal/recycling"
	"github.com/roach88/agsrecall/internal/run"
)

// Role tells what a context is for within a playback.
type Role string

const (
	RoleOutput Role = "output"
	RoleInput  Role = "input"
	RoleVoice  Role = "voice"
)

// recallContext is the engine's record of one live context: a recall id and
// the container it is bound to, placed in the playback tree.
type recallContext struct {
	id       *recall.ID
	audio    *channel.Audio
	role     Role
	pad      int // -1 unless role is RoleVoice
	seq      int64
	parent   *recallContext
	children []*recallContext
}

// spansChain reports whether the context covers a whole chain rather than
// a single pad.
func (c *recallContext) spansChain() bool {
	return c.role != RoleVoice
}

func (c *recallContext) removeChild(child *recallContext) {
	for i, k := range c.children {
		if k == child {
			c.children = append(c.children[:i], c.children[i+1:]...)
			return
		}
	}
}

// playback groups the contexts started for one audio.
type playback struct {
	audio  *channel.Audio
	output *recallContext
	input  *recallContext
	run    *run.AudioRun
}

// voices returns the live voice contexts in start order.
func (p *playback) voices() []*recallContext {
	if p.input == nil {
		return nil
	}
	return p.input.children
}

// ContextInfo is a read-only snapshot of one live context.
type ContextInfo struct {
	ID          string   `json:"id"`
	ParentID    string   `json:"parent_id,omitempty"`
	Audio       string   `json:"audio"`
	Role        Role     `json:"role"`
	Orientation string   `json:"orientation"`
	Scope       string   `json:"scope"`
	Pad         int      `json:"pad"`
	Recycling   []string `json:"recycling"`
}

func (c *recallContext) info() ContextInfo {
	info := ContextInfo{
		ID:          c.id.String(),
		Audio:       c.audio.Name(),
		Role:        c.role,
		Orientation: c.id.Orientation().String(),
		Scope:       string(c.id.Scope()),
		Pad:         c.pad,
	}
	if c.parent != nil {
		info.ParentID = c.parent.id.String()
	}
	recs := c.id.Container().Recycling()
	info.Recycling = make([]string, len(recs))
	for i, r := range recs {
		info.Recycling[i] = r.Name()
	}
	return info
}

// scopeRange returns the chain range the context covers now: the whole
// chain, or its pad for voices.
func (c *recallContext) scopeRange() (first, last *recycling.Recycling) {
	if c.spansChain() {
		return c.audio.Range(c.id.Orientation())
	}
	return c.audio.PadRange(c.id.Orientation(), c.pad)
}
