package recall

import (
	"fmt"
	"sync/atomic"
)

// Orientation tells whether a context runs over output or input lines.
type Orientation int

const (
	// OrientationOutput contexts run over an audio's output chain.
	OrientationOutput Orientation = iota + 1
	// OrientationInput contexts run over an audio's input chain.
	OrientationInput
)

// String implements fmt.Stringer.
func (o Orientation) String() string {
	switch o {
	case OrientationOutput:
		return "output"
	case OrientationInput:
		return "input"
	default:
		return fmt.Sprintf("orientation(%d)", int(o))
	}
}

// ParseOrientation parses "output" or "input".
func ParseOrientation(s string) (Orientation, error) {
	switch s {
	case "output", "out":
		return OrientationOutput, nil
	case "input", "in":
		return OrientationInput, nil
	default:
		return 0, fmt.Errorf("invalid orientation %q: must be output or input", s)
	}
}

// SoundScope is the kind of playback that started a context.
type SoundScope string

const (
	ScopePlayback  SoundScope = "playback"
	ScopeSequencer SoundScope = "sequencer"
	ScopeNotation  SoundScope = "notation"
	ScopeWave      SoundScope = "wave"
	ScopeMIDI      SoundScope = "midi"
)

// ValidateScope checks that s is a known sound scope.
func ValidateScope(s string) error {
	switch SoundScope(s) {
	case ScopePlayback, ScopeSequencer, ScopeNotation, ScopeWave, ScopeMIDI:
		return nil
	default:
		return fmt.Errorf("invalid sound scope %q", s)
	}
}

// ID is the recall id token of one playback context.
//
// An ID is bound 1:1 to the container scoping its invocation. The binding is
// an atomic pointer: ResetRecycling rebinds the same ID to the replacement
// container, so holders of the ID always resolve the current container.
type ID struct {
	id          string
	orientation Orientation
	scope       SoundScope

	container atomic.Pointer[Container]
	released  atomic.Bool
}

// NewID creates an unbound recall id.
func NewID(gen IDGenerator, orientation Orientation, scope SoundScope) *ID {
	return &ID{
		id:          gen.Generate(),
		orientation: orientation,
		scope:       scope,
	}
}

// String returns the id string.
func (id *ID) String() string {
	if id == nil {
		return "<nil>"
	}
	return id.id
}

// Orientation returns the context orientation.
func (id *ID) Orientation() Orientation {
	return id.orientation
}

// Scope returns the sound scope.
func (id *ID) Scope() SoundScope {
	return id.scope
}

// Container returns the container currently bound to the id, or nil.
func (id *ID) Container() *Container {
	if id == nil {
		return nil
	}
	return id.container.Load()
}

// Released reports whether Release was called.
func (id *ID) Released() bool {
	return id.released.Load()
}

// Release ends the context: the bound container is detached from its parent
// so the context tree does not keep dead branches. Idempotent.
func (id *ID) Release() {
	if id == nil || id.released.Swap(true) {
		return
	}

	treeMu.Lock()
	defer treeMu.Unlock()

	// Loaded under treeMu so a concurrent reset cannot rebind in between.
	c := id.container.Load()
	if c == nil {
		return
	}
	if parent := c.Parent(); parent != nil {
		removeChildLocked(parent, c)
	}
}
