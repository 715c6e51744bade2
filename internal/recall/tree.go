package recall

// AddChild makes child a child of parent. No-op if either is nil or child is
// already a child of parent. A child with another parent is moved.
//
// Both ends gain a strong reference, released again by RemoveChild.
// Returns ErrTreeCycle if parent is child or one of its descendants.
func AddChild(parent, child *Container) error {
	if parent == nil || child == nil {
		return nil
	}

	treeMu.Lock()
	defer treeMu.Unlock()

	for cur := parent; cur != nil; cur = cur.Parent() {
		if cur == child {
			return &Error{Code: ErrCodeTreeCycle, Message: "child is an ancestor of parent"}
		}
	}

	old := child.Parent()
	if old == parent {
		return nil
	}
	if old != nil {
		removeChildLocked(old, child)
	}

	parent.Ref()
	child.Ref()

	child.mu.Lock()
	child.parent = parent
	child.mu.Unlock()

	parent.mu.Lock()
	parent.children = append(parent.children, child)
	parent.mu.Unlock()

	return nil
}

// RemoveChild detaches child from parent and releases the references taken
// by AddChild. No-op if either is nil or child is not a child of parent.
func RemoveChild(parent, child *Container) {
	if parent == nil || child == nil {
		return
	}

	treeMu.Lock()
	defer treeMu.Unlock()

	removeChildLocked(parent, child)
}

// removeChildLocked requires treeMu.
func removeChildLocked(parent, child *Container) {
	parent.mu.Lock()
	i := indexOfContainer(parent.children, child)
	if i < 0 {
		parent.mu.Unlock()
		return
	}
	parent.children = append(parent.children[:i:i], parent.children[i+1:]...)
	parent.mu.Unlock()

	child.mu.Lock()
	if child.parent == parent {
		child.parent = nil
	}
	child.mu.Unlock()

	child.Unref()
	parent.Unref()
}

// ChildRecallIDs returns the recall ids of the direct children in order,
// skipping children without one. Grandchildren are not visited.
func (c *Container) ChildRecallIDs() []*ID {
	var ids []*ID
	for _, child := range c.Children() {
		if id := child.RecallID(); id != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Walk visits c and its descendants depth-first, parents before children.
// Returning false from fn skips the node's subtree.
func (c *Container) Walk(fn func(c *Container, depth int) bool) {
	var walk func(cur *Container, depth int)
	walk = func(cur *Container, depth int) {
		if !fn(cur, depth) {
			return
		}
		for _, child := range cur.Children() {
			walk(child, depth+1)
		}
	}
	if c != nil {
		walk(c, 0)
	}
}

func indexOfContainer(list []*Container, c *Container) int {
	for i, cur := range list {
		if cur == c {
			return i
		}
	}
	return -1
}
