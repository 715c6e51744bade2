package channel

import (
	"github.com/roach88/agsrecall/internal/recall"
	"github.com/roach88/agsrecall/internal/recycling"
)

// ChangeKind classifies a topology change.
type ChangeKind int

const (
	// Inserted: NewFirst..NewLast were added; there is no old range.
	Inserted ChangeKind = iota + 1
	// Removed: OldFirst..OldLast left the chain; there is no new range.
	Removed
	// Replaced: OldFirst..OldLast were swapped for NewFirst..NewLast in place.
	Replaced
)

// String implements fmt.Stringer.
func (k ChangeKind) String() string {
	switch k {
	case Inserted:
		return "inserted"
	case Removed:
		return "removed"
	case Replaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// Change describes one structural change of an audio's recycling chain.
type Change struct {
	Kind        ChangeKind
	Audio       *Audio
	Orientation recall.Orientation

	OldFirst, OldLast *recycling.Recycling
	NewFirst, NewLast *recycling.Recycling

	// ChainFirst and ChainLast bound the whole chain after the change;
	// both nil when the orientation has no lines left.
	ChainFirst, ChainLast *recycling.Recycling
}

// Observer receives topology changes.
type Observer interface {
	RecyclingChanged(Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Change)

// RecyclingChanged calls f.
func (f ObserverFunc) RecyclingChanged(c Change) {
	f(c)
}

func notify(observers []Observer, c Change) {
	for _, obs := range observers {
		obs.RecyclingChanged(c)
	}
}
