package run

import (
	"sync"
	"sync/atomic"

	"github.com/viterin/vek/vek32"

	"github.com/roach88/agsrecall/internal/channel"
	"github.com/roach88/agsrecall/internal/recall"
	"github.com/roach88/agsrecall/internal/recycling"
)

// Connectable is implemented by nodes that are only active while connected.
type Connectable interface {
	Connect()
	Disconnect()
	IsConnected() bool
}

type connection struct {
	connected atomic.Bool
}

func (c *connection) Connect()          { c.connected.Store(true) }
func (c *connection) Disconnect()       { c.connected.Store(false) }
func (c *connection) IsConnected() bool { return c.connected.Load() }

// ChannelRun renders one channel line within one context.
type ChannelRun struct {
	connection
	id      *recall.ID
	channel *channel.Channel
	gain    float32

	mu      sync.Mutex
	scratch []float32
}

var _ Connectable = (*ChannelRun)(nil)

// NewChannelRun duplicates a channel run for id. The run starts connected.
func NewChannelRun(id *recall.ID, ch *channel.Channel, gain float32) *ChannelRun {
	r := &ChannelRun{id: id, channel: ch, gain: gain}
	r.Connect()
	return r
}

// Duplicate returns a connected run of the same line for another context.
func (r *ChannelRun) Duplicate(id *recall.ID) *ChannelRun {
	return NewChannelRun(id, r.channel, r.gain)
}

// RecallID returns the context the run was duplicated for.
func (r *ChannelRun) RecallID() *recall.ID {
	return r.id
}

// Resolve returns the channel's recycling if the context's container holds
// it, or nil.
func (r *ChannelRun) Resolve() *recycling.Recycling {
	rec := r.channel.Recycling()
	if r.id.Container().Find(rec) < 0 {
		return nil
	}
	return rec
}

// Render adds the line's frame for tick to dst. Reports whether anything was
// resolved.
func (r *ChannelRun) Render(tick int, dst []float32) bool {
	if !r.IsConnected() {
		return false
	}
	rec := r.Resolve()
	if rec == nil {
		return false
	}
	r.mu.Lock()
	r.scratch = mixRecycling(rec, tick, r.gain, dst, r.scratch)
	r.mu.Unlock()
	return true
}

// AudioRun renders a whole context. Contexts with child contexts render their
// children; leaf contexts render each of their lines through channel runs.
type AudioRun struct {
	connection
	id   *recall.ID
	gain float32

	mu       sync.Mutex
	channels map[*channel.Channel]*ChannelRun
	children map[*recall.ID]*AudioRun
}

var _ Connectable = (*AudioRun)(nil)

// NewAudioRun duplicates an audio run for id. The run starts connected.
func NewAudioRun(id *recall.ID, gain float32) *AudioRun {
	r := &AudioRun{
		id:       id,
		gain:     gain,
		channels: make(map[*channel.Channel]*ChannelRun),
		children: make(map[*recall.ID]*AudioRun),
	}
	r.Connect()
	return r
}

// Duplicate returns a connected run for another context with the same gain.
func (r *AudioRun) Duplicate(id *recall.ID) *AudioRun {
	return NewAudioRun(id, r.gain)
}

// RecallID returns the context the run was duplicated for.
func (r *AudioRun) RecallID() *recall.ID {
	return r.id
}

// Resolve returns the context's current recyclings.
func (r *AudioRun) Resolve() []*recycling.Recycling {
	return r.id.Container().Recycling()
}

// Render adds the context's frame for tick to dst.
func (r *AudioRun) Render(tick int, dst []float32) {
	if !r.IsConnected() {
		return
	}
	c := r.id.Container()
	if c == nil {
		return
	}

	if ids := c.ChildRecallIDs(); len(ids) > 0 {
		for _, child := range r.childRuns(ids) {
			child.Render(tick, dst)
		}
		return
	}

	for _, rec := range c.Recycling() {
		if rec == nil {
			continue
		}
		ch, ok := rec.Owner().(*channel.Channel)
		if !ok {
			continue
		}
		r.channelRun(ch).Render(tick, dst)
	}
}

// Duplicates returns the number of channel and child runs duplicated so far.
func (r *AudioRun) Duplicates() (channels, children int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels), len(r.children)
}

// childRuns returns runs for ids, duplicating missing ones and dropping runs
// of contexts that are gone.
func (r *AudioRun) childRuns(ids []*recall.ID) []*AudioRun {
	r.mu.Lock()
	defer r.mu.Unlock()

	live := make(map[*recall.ID]bool, len(ids))
	out := make([]*AudioRun, 0, len(ids))
	for _, id := range ids {
		live[id] = true
		child, ok := r.children[id]
		if !ok {
			child = r.Duplicate(id)
			r.children[id] = child
		}
		out = append(out, child)
	}
	for id := range r.children {
		if !live[id] {
			delete(r.children, id)
		}
	}
	return out
}

func (r *AudioRun) channelRun(ch *channel.Channel) *ChannelRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	cr, ok := r.channels[ch]
	if !ok {
		cr = NewChannelRun(r.id, ch, r.gain)
		r.channels[ch] = cr
	}
	return cr
}

// mixRecycling adds rec's signal frames, and those of its source, to dst.
// Scaled frames go through scratch, which is grown as needed and returned.
func mixRecycling(rec *recycling.Recycling, tick int, gain float32, dst, scratch []float32) []float32 {
	for _, src := range []*recycling.Recycling{rec, rec.Source()} {
		if src == nil {
			continue
		}
		for _, sig := range src.Signals() {
			frame := sig.Frame(tick)
			n := min(len(frame), len(dst))
			if n == 0 {
				continue
			}
			if gain == 1 {
				vek32.Add_Inplace(dst[:n], frame[:n])
				continue
			}
			if cap(scratch) < n {
				scratch = make([]float32, n)
			}
			scaled := vek32.MulNumber_Into(scratch[:n], frame[:n], gain)
			vek32.Add_Inplace(dst[:n], scaled)
		}
	}
	return scratch
}
