package recycling

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Owner is the channel a recycling belongs to. The channel layer implements it;
// it is kept opaque here so this package has no dependency on channels.
type Owner interface {
	Line() int
}

// Recycling is one node of a channel's recycling chain.
//
// Nodes are doubly linked in pad order. The chain is owned by the channel
// layer; containers only reference nodes and never copy them.
//
// Thread-safety: links, owner and signals are guarded by a per-node mutex.
type Recycling struct {
	name string

	mu      sync.Mutex
	next    *Recycling
	prev    *Recycling
	owner   Owner
	source  *Recycling
	signals []*AudioSignal

	refs atomic.Int32
}

// New creates an unlinked recycling holding one reference.
func New(name string) *Recycling {
	r := &Recycling{name: name}
	r.refs.Store(1)
	return r
}

// Name returns the node name (stable, used in traces).
func (r *Recycling) Name() string {
	if r == nil {
		return "<nil>"
	}
	return r.name
}

// String implements fmt.Stringer.
func (r *Recycling) String() string {
	return r.Name()
}

// Next returns the following node in pad order, or nil.
func (r *Recycling) Next() *Recycling {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

// Prev returns the preceding node in pad order, or nil.
func (r *Recycling) Prev() *Recycling {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prev
}

// Owner returns the channel owning this node, or nil.
func (r *Recycling) Owner() Owner {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owner
}

// SetOwner assigns the owning channel. A recycling has at most one owner.
func (r *Recycling) SetOwner(o Owner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owner = o
}

// Source returns the upstream recycling this node is fed from, or nil.
// Set on recyclings of linked input lines.
func (r *Recycling) Source() *Recycling {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.source
}

// SetSource sets the upstream recycling.
func (r *Recycling) SetSource(src *Recycling) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.source = src
}

// AddSignal appends an audio signal to the node.
func (r *Recycling) AddSignal(s *AudioSignal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, s)
}

// RemoveSignal removes s if present.
func (r *Recycling) RemoveSignal(s *AudioSignal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cur := range r.signals {
		if cur == s {
			r.signals = append(r.signals[:i:i], r.signals[i+1:]...)
			return
		}
	}
}

// Signals returns a copy of the signal list.
func (r *Recycling) Signals() []*AudioSignal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*AudioSignal, len(r.signals))
	copy(out, r.signals)
	return out
}

// Ref acquires a reference.
func (r *Recycling) Ref() {
	r.refs.Add(1)
}

// Unref releases a reference and reports whether it was the last one.
func (r *Recycling) Unref() bool {
	return r.refs.Add(-1) == 0
}

// RefCount returns the current reference count.
func (r *Recycling) RefCount() int {
	return int(r.refs.Load())
}

// Link makes b follow a. Either side may be nil.
func Link(a, b *Recycling) {
	if a != nil {
		a.mu.Lock()
		a.next = b
		a.mu.Unlock()
	}
	if b != nil {
		b.mu.Lock()
		b.prev = a
		b.mu.Unlock()
	}
}

// Unlink detaches r from both neighbours and joins them together.
func Unlink(r *Recycling) {
	if r == nil {
		return
	}
	prev, next := r.Prev(), r.Next()
	Link(prev, next)
	r.mu.Lock()
	r.prev, r.next = nil, nil
	r.mu.Unlock()
}

// Count returns the number of nodes from first to last inclusive.
// Fails with ErrInvalidChainRange when a bound is nil or last is not
// reachable from first by following Next.
func Count(first, last *Recycling) (int, error) {
	if first == nil || last == nil {
		return 0, fmt.Errorf("%w: nil bound (first=%s, last=%s)", ErrInvalidChainRange, first, last)
	}
	n := 1
	for cur := first; cur != last; n++ {
		cur = cur.Next()
		if cur == nil {
			return 0, fmt.Errorf("%w: %s not reachable from %s", ErrInvalidChainRange, last, first)
		}
	}
	return n, nil
}

// Position returns the traversal distance from first to target, stopping at
// last (inclusive) or the end of the chain. Returns -1 if target is not met.
func Position(first, last, target *Recycling) int {
	i := 0
	for cur := first; cur != nil; cur = cur.Next() {
		if cur == target {
			return i
		}
		if cur == last {
			break
		}
		i++
	}
	return -1
}

// Collect returns the nodes from first to last inclusive.
func Collect(first, last *Recycling) ([]*Recycling, error) {
	n, err := Count(first, last)
	if err != nil {
		return nil, err
	}
	out := make([]*Recycling, 0, n)
	for cur := first; len(out) < n; cur = cur.Next() {
		out = append(out, cur)
	}
	return out, nil
}
