package recall

import (
	"github.com/roach88/agsrecall/internal/recycling"
)

// ResetMode selects how ResetRecyclingMode places the new range.
type ResetMode int

const (
	// ResetInfer decides between splice and graft from chain adjacency.
	ResetInfer ResetMode = iota
	// ResetSplice replaces the old range in place, keeping the other slots.
	ResetSplice
	// ResetGraft discards all slots; the result holds only the new range.
	ResetGraft
)

// String implements fmt.Stringer.
func (m ResetMode) String() string {
	switch m {
	case ResetSplice:
		return "splice"
	case ResetGraft:
		return "graft"
	default:
		return "infer"
	}
}

// resetPlan is the slot range [first, end) of the old array replaced by the
// new chain. end == first is a pure insertion.
type resetPlan struct {
	graft bool
	first int
	end   int
}

// ResetRecycling returns a replacement for c reflecting a changed chain:
// the range oldFirst..oldLast (nil pair when c had nothing assigned) is
// replaced by newFirst..newLast. Whether this is a splice or a graft is
// inferred from chain adjacency; see ResetRecyclingMode.
func ResetRecycling(c *Container, oldFirst, oldLast, newFirst, newLast *recycling.Recycling) (*Container, error) {
	return ResetRecyclingMode(c, ResetInfer, oldFirst, oldLast, newFirst, newLast)
}

// ResetRecyclingMode is ResetRecycling with an explicit mode.
//
// The replacement takes c's place in its parent's child list, adopts c's
// children and is bound to c's recall id, which keeps its identity. c is no
// longer reachable from the tree, but its slots and its parent and child
// links are untouched, so holders that have not re-fetched keep seeing the
// pre-reset window and tree.
//
// Fails with ErrInvalidChainRange if newLast is not reachable from newFirst,
// and with ErrAmbiguousReset if mode is ResetSplice and the old range cannot
// be located. On error c and the tree are unchanged.
func ResetRecyclingMode(c *Container, mode ResetMode, oldFirst, oldLast, newFirst, newLast *recycling.Recycling) (*Container, error) {
	if c == nil {
		return nil, nil
	}

	newLength, err := recycling.Count(newFirst, newLast)
	if err != nil {
		return nil, newChainError(err)
	}

	treeMu.Lock()
	defer treeMu.Unlock()

	old := c.Recycling()
	plan, err := planReset(old, mode, oldFirst, oldLast, newFirst, newLast)
	if err != nil {
		return nil, err
	}

	var next *Container
	if plan.graft {
		next = New(newLength)
		plan.first = 0
	} else {
		next = New(len(old) - (plan.end - plan.first) + newLength)
		copy(next.recycling, old[:plan.first])
	}

	cur := newFirst
	for i := 0; i < newLength; i++ {
		next.recycling[plan.first+i] = cur
		cur = cur.Next()
	}

	if !plan.graft {
		copy(next.recycling[plan.first+newLength:], old[plan.end:])
	}

	spliceLocked(c, next)
	return next, nil
}

// spliceLocked moves c's tree position, children and recall id to next.
// c keeps its own parent and child links as a pre-reset view. Children are
// re-pointed before the parent slot is swapped, so every upward walk reaches
// the same root throughout. Requires treeMu.
func spliceLocked(c, next *Container) {
	c.mu.Lock()
	parent := c.parent
	children := make([]*Container, len(c.children))
	copy(children, c.children)
	id := c.recallID
	c.mu.Unlock()

	next.mu.Lock()
	next.parent = parent
	next.children = children
	next.recallID = id
	next.mu.Unlock()

	for _, child := range children {
		child.mu.Lock()
		child.parent = next
		child.mu.Unlock()
		next.Ref()
		c.Unref()
	}

	if parent != nil {
		parent.mu.Lock()
		if i := indexOfContainer(parent.children, c); i >= 0 {
			parent.children[i] = next
		}
		parent.mu.Unlock()

		// The parent edge moves from c to next.
		next.Ref()
		c.Unref()
	}

	if id != nil {
		id.container.Store(next)
	}
}

func planReset(old []*recycling.Recycling, mode ResetMode, oldFirst, oldLast, newFirst, newLast *recycling.Recycling) (resetPlan, error) {
	switch mode {
	case ResetGraft:
		return resetPlan{graft: true}, nil

	case ResetSplice:
		plan, ok, err := locate(old, oldFirst, oldLast, newFirst, newLast)
		if err != nil {
			return resetPlan{}, err
		}
		if !ok {
			return resetPlan{}, &Error{
				Code:    ErrCodeAmbiguousReset,
				Message: "old range not located in container",
			}
		}
		return plan, nil
	}

	if len(old) == 0 {
		return resetPlan{graft: true}, nil
	}
	plan, ok, err := locate(old, oldFirst, oldLast, newFirst, newLast)
	if err != nil {
		return resetPlan{}, err
	}
	if !ok {
		return resetPlan{graft: true}, nil
	}
	if oldFirst != nil || oldLast != nil {
		// The new range must slot between the surviving neighbours.
		headOK := plan.first == 0 || newFirst.Prev() == old[plan.first-1]
		tailOK := plan.end == len(old) || newLast.Next() == old[plan.end]
		if !headOK || !tailOK {
			return resetPlan{graft: true}, nil
		}
	}
	return plan, nil
}

// locate finds the slots the new range replaces. A nil old pair means a pure
// insertion; its position is found from the chain links around the new range.
func locate(old []*recycling.Recycling, oldFirst, oldLast, newFirst, newLast *recycling.Recycling) (resetPlan, bool, error) {
	n := len(old)

	if oldFirst == nil && oldLast == nil {
		if n == 0 {
			return resetPlan{}, true, nil
		}
		prepend := newLast.Next() == old[0]
		appendAt := old[n-1].Next() == newFirst
		if prepend && appendAt {
			return resetPlan{}, false, &Error{
				Code:    ErrCodeAmbiguousReset,
				Message: "new range is adjacent to both ends of the container",
			}
		}
		if prepend {
			return resetPlan{first: 0, end: 0}, true, nil
		}
		if appendAt {
			return resetPlan{first: n, end: n}, true, nil
		}

		// Distance from the first slot to newFirst along the chain.
		if d := recycling.Position(old[0], nil, newFirst); d > 0 && d <= n {
			return resetPlan{first: d, end: d}, true, nil
		}
		return resetPlan{}, false, nil
	}

	if oldFirst == nil {
		oldFirst = oldLast
	}
	if oldLast == nil {
		oldLast = oldFirst
	}
	fi := indexOf(old, oldFirst)
	li := indexOf(old, oldLast)
	if fi < 0 || li < 0 || fi > li {
		return resetPlan{}, false, nil
	}
	return resetPlan{first: fi, end: li + 1}, true, nil
}
