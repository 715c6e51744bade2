package recall

import (
	"sync"
	"sync/atomic"

	"github.com/roach88/agsrecall/internal/recycling"
)

// Container is a recycling container: the ordered window of recyclings one
// playback context operates over, positioned in a tree of contexts.
//
// INVARIANTS:
//   - Len() == len(recycling); the length never changes after New.
//   - The parent/child relation is a tree: c is in p.children iff c.parent == p.
//   - Slot order mirrors the pad order of the chain at the last reset.
//
// Add, Remove, Insert and ResetRecycling never mutate the receiver's slots;
// they return a new container. Only Replace writes a slot, and is meant for
// populating a freshly constructed container.
//
// Thread-safety: every field is guarded by mu. Structural tree changes are
// additionally serialized by treeMu, so a goroutine only ever holds more than
// one container lock while holding treeMu.
type Container struct {
	mu        sync.Mutex
	recycling []*recycling.Recycling
	parent    *Container // back reference, not owned
	children  []*Container
	recallID  *ID

	refs atomic.Int32
}

// treeMu serializes AddChild, RemoveChild and the parent splice of resets.
var treeMu sync.Mutex

// New creates a container with length nil slots, holding one reference.
// Panics if length is negative.
func New(length int) *Container {
	c := &Container{recycling: make([]*recycling.Recycling, length)}
	c.refs.Store(1)
	return c
}

// FromRange creates a container holding first..last in chain order.
func FromRange(first, last *recycling.Recycling) (*Container, error) {
	recs, err := recycling.Collect(first, last)
	if err != nil {
		return nil, newChainError(err)
	}
	c := New(0)
	c.recycling = recs
	return c, nil
}

// Len returns the slot count. A nil container has length 0.
func (c *Container) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.recycling)
}

// Recycling returns a copy of the slots.
func (c *Container) Recycling() []*recycling.Recycling {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// At returns slot i, or nil when out of range.
func (c *Container) At(i int) *recycling.Recycling {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.recycling) {
		return nil
	}
	return c.recycling[i]
}

// First returns the first slot, or nil.
func (c *Container) First() *recycling.Recycling {
	return c.At(0)
}

// Last returns the last slot, or nil.
func (c *Container) Last() *recycling.Recycling {
	return c.At(c.Len() - 1)
}

// Parent returns the parent container, or nil at the top of the tree.
func (c *Container) Parent() *Container {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parent
}

// Children returns a copy of the child list in insertion order.
func (c *Container) Children() []*Container {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Container, len(c.children))
	copy(out, c.children)
	return out
}

// RecallID returns the recall id scoping this container, or nil.
func (c *Container) RecallID() *ID {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recallID
}

// SetRecallID binds id to c in both directions.
func (c *Container) SetRecallID(id *ID) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.recallID = id
	c.mu.Unlock()
	if id != nil {
		id.container.Store(c)
	}
}

// Ref acquires a strong reference.
func (c *Container) Ref() {
	c.refs.Add(1)
}

// Unref releases a strong reference and reports whether it was the last.
func (c *Container) Unref() bool {
	return c.refs.Add(-1) == 0
}

// RefCount returns the number of strong references.
func (c *Container) RefCount() int {
	return int(c.refs.Load())
}

// Replace sets slot position to r. A nil container is a no-op.
// Slots do not own their recycling, so no reference is taken.
func (c *Container) Replace(r *recycling.Recycling, position int) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if position < 0 || position >= len(c.recycling) {
		return newIndexError(position, len(c.recycling))
	}
	c.recycling[position] = r
	return nil
}

// Add returns a new container with r appended. c is left unchanged.
func (c *Container) Add(r *recycling.Recycling) *Container {
	if c == nil {
		return nil
	}
	old := c.Recycling()
	next := New(len(old) + 1)
	copy(next.recycling, old)
	next.recycling[len(old)] = r
	return next
}

// Remove returns a new container without r. If r is not found the result is
// an unchanged copy.
func (c *Container) Remove(r *recycling.Recycling) *Container {
	if c == nil {
		return nil
	}
	old := c.Recycling()
	i := indexOf(old, r)
	if i < 0 {
		next := New(len(old))
		copy(next.recycling, old)
		return next
	}
	next := New(len(old) - 1)
	copy(next.recycling, old[:i])
	copy(next.recycling[i:], old[i+1:])
	return next
}

// Insert returns a new container with r at position, later slots shifted up.
// position == Len() appends.
func (c *Container) Insert(r *recycling.Recycling, position int) (*Container, error) {
	if c == nil {
		return nil, nil
	}
	old := c.Recycling()
	if position < 0 || position > len(old) {
		return nil, newIndexError(position, len(old))
	}
	next := New(len(old) + 1)
	copy(next.recycling, old[:position])
	next.recycling[position] = r
	copy(next.recycling[position+1:], old[position:])
	return next, nil
}

// Find returns the slot index of r, or -1.
func (c *Container) Find(r *recycling.Recycling) int {
	if c == nil {
		return -1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return indexOf(c.recycling, r)
}

// FindChild returns the index of the first child containing r, or -1.
func (c *Container) FindChild(r *recycling.Recycling) int {
	for i, child := range c.Children() {
		if child.Find(r) >= 0 {
			return i
		}
	}
	return -1
}

// FindParent returns the index of r in the parent's slots, or -1 when c has
// no parent or the parent does not hold r.
func (c *Container) FindParent(r *recycling.Recycling) int {
	parent := c.Parent()
	if parent == nil {
		return -1
	}
	return parent.Find(r)
}

// Toplevel returns the root of c's tree. A nil container returns nil.
func (c *Container) Toplevel() *Container {
	if c == nil {
		return nil
	}
	cur := c
	for {
		parent := cur.Parent()
		if parent == nil {
			return cur
		}
		cur = parent
	}
}

func (c *Container) snapshotLocked() []*recycling.Recycling {
	out := make([]*recycling.Recycling, len(c.recycling))
	copy(out, c.recycling)
	return out
}

func indexOf(recs []*recycling.Recycling, r *recycling.Recycling) int {
	for i, cur := range recs {
		if cur == r {
			return i
		}
	}
	return -1
}
