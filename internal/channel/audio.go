package channel

import (
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/agsrecall/internal/recall"
	"github.com/roach88/agsrecall/internal/recycling"
)

// Errors returned by topology operations.
var (
	ErrNoPads          = errors.New("no pads left")
	ErrWrongDirection  = errors.New("link must go from an input to an output")
	ErrSameAudio       = errors.New("cannot link an audio to itself")
	ErrNotLinked       = errors.New("input is not linked")
	ErrInvalidGeometry = errors.New("invalid audio geometry")
)

// Audio is a machine with output and input lines.
//
// Thread-safety: all methods are safe for concurrent use. Observers are
// notified after the audio's lock is released, in registration order.
type Audio struct {
	name          string
	audioChannels int

	mu        sync.Mutex
	outputs   []*Channel
	inputs    []*Channel
	observers []Observer
}

// NewAudio creates an audio with the given pad counts.
func NewAudio(name string, audioChannels, outputPads, inputPads int) (*Audio, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidGeometry)
	}
	if audioChannels < 1 || outputPads < 0 || inputPads < 0 {
		return nil, fmt.Errorf("%w: %s has %d audio channels, %d output pads, %d input pads",
			ErrInvalidGeometry, name, audioChannels, outputPads, inputPads)
	}

	a := &Audio{name: name, audioChannels: audioChannels}
	for i := 0; i < outputPads; i++ {
		a.growLocked(recall.OrientationOutput)
	}
	for i := 0; i < inputPads; i++ {
		a.growLocked(recall.OrientationInput)
	}
	return a, nil
}

// Name returns the audio name.
func (a *Audio) Name() string {
	return a.name
}

// AudioChannels returns the number of lines per pad.
func (a *Audio) AudioChannels() int {
	return a.audioChannels
}

// Pads returns the pad count of an orientation.
func (a *Audio) Pads(o recall.Orientation) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(*a.linesLocked(o)) / a.audioChannels
}

// Lines returns a copy of the lines of an orientation in pad order.
func (a *Audio) Lines(o recall.Orientation) []*Channel {
	a.mu.Lock()
	defer a.mu.Unlock()
	lines := *a.linesLocked(o)
	out := make([]*Channel, len(lines))
	copy(out, lines)
	return out
}

// Line returns line i of an orientation, or nil.
func (a *Audio) Line(o recall.Orientation, i int) *Channel {
	a.mu.Lock()
	defer a.mu.Unlock()
	lines := *a.linesLocked(o)
	if i < 0 || i >= len(lines) {
		return nil
	}
	return lines[i]
}

// PadRange returns the recycling range of one pad.
func (a *Audio) PadRange(o recall.Orientation, pad int) (first, last *recycling.Recycling) {
	a.mu.Lock()
	defer a.mu.Unlock()
	lines := *a.linesLocked(o)
	lo, hi := pad*a.audioChannels, (pad+1)*a.audioChannels-1
	if pad < 0 || hi >= len(lines) {
		return nil, nil
	}
	return lines[lo].Recycling(), lines[hi].Recycling()
}

// Range returns the first and last recycling of an orientation's chain,
// or nil, nil when it has no lines.
func (a *Audio) Range(o recall.Orientation) (first, last *recycling.Recycling) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rangeLocked(o)
}

// Observe registers an observer for topology changes.
func (a *Audio) Observe(obs Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, obs)
}

// AddPad appends one pad of lines to an orientation and returns them.
func (a *Audio) AddPad(o recall.Orientation) []*Channel {
	a.mu.Lock()
	added := a.growLocked(o)
	first, last := a.rangeLocked(o)
	observers := a.observersLocked()
	a.mu.Unlock()

	notify(observers, Change{
		Kind:        Inserted,
		Audio:       a,
		Orientation: o,
		NewFirst:    added[0].Recycling(),
		NewLast:     added[len(added)-1].Recycling(),
		ChainFirst:  first,
		ChainLast:   last,
	})
	return added
}

// RemovePad removes the last pad of an orientation.
// Returns ErrNoPads when the orientation has none. Inputs of other audios fed
// by a removed output keep their link; Graph.RemovePad unlinks them.
func (a *Audio) RemovePad(o recall.Orientation) error {
	_, err := a.removePad(o)
	return err
}

// removePad removes the last pad and returns its lines.
func (a *Audio) removePad(o recall.Orientation) ([]*Channel, error) {
	a.mu.Lock()
	lines := a.linesLocked(o)
	if len(*lines) == 0 {
		a.mu.Unlock()
		return nil, fmt.Errorf("%s %s: %w", a.name, o, ErrNoPads)
	}
	cut := len(*lines) - a.audioChannels
	removed := (*lines)[cut:]
	*lines = (*lines)[:cut:cut]

	oldFirst, oldLast := removed[0].Recycling(), removed[len(removed)-1].Recycling()
	// Detach the removed run from the chain.
	recycling.Link(oldFirst.Prev(), nil)
	recycling.Link(nil, oldFirst)
	for _, ch := range removed {
		ch.mu.Lock()
		ch.link = nil
		ch.mu.Unlock()
	}
	first, last := a.rangeLocked(o)
	observers := a.observersLocked()
	a.mu.Unlock()

	notify(observers, Change{
		Kind:        Removed,
		Audio:       a,
		Orientation: o,
		OldFirst:    oldFirst,
		OldLast:     oldLast,
		ChainFirst:  first,
		ChainLast:   last,
	})
	return removed, nil
}

// Link feeds input from output: the input's recycling is replaced by a node
// whose source is the output's recycling, spliced into the same position.
func Link(input, output *Channel) error {
	if input == nil || output == nil ||
		input.orientation != recall.OrientationInput || output.orientation != recall.OrientationOutput {
		return ErrWrongDirection
	}
	if input.audio == output.audio {
		return fmt.Errorf("%s: %w", input.audio.name, ErrSameAudio)
	}

	input.mu.Lock()
	input.link = output
	input.generation++
	input.mu.Unlock()

	return input.audio.replaceRecycling(input, output.Recycling())
}

// Unlink detaches input from its output and gives it a fresh own recycling.
func Unlink(input *Channel) error {
	input.mu.Lock()
	if input.link == nil {
		input.mu.Unlock()
		return fmt.Errorf("%s: %w", input, ErrNotLinked)
	}
	input.link = nil
	input.generation++
	input.mu.Unlock()

	return input.audio.replaceRecycling(input, nil)
}

// replaceRecycling swaps ch's node for a new one at the same chain position.
func (a *Audio) replaceRecycling(ch *Channel, source *recycling.Recycling) error {
	a.mu.Lock()
	old := ch.Recycling()
	node := recycling.New(ch.nodeName())
	node.SetOwner(ch)
	node.SetSource(source)

	prev, next := old.Prev(), old.Next()
	recycling.Link(prev, node)
	recycling.Link(node, next)
	recycling.Link(nil, old)
	recycling.Link(old, nil)
	old.SetOwner(nil)

	ch.mu.Lock()
	ch.recycling = node
	ch.mu.Unlock()

	first, last := a.rangeLocked(ch.orientation)
	observers := a.observersLocked()
	a.mu.Unlock()

	notify(observers, Change{
		Kind:        Replaced,
		Audio:       a,
		Orientation: ch.orientation,
		OldFirst:    old,
		OldLast:     old,
		NewFirst:    node,
		NewLast:     node,
		ChainFirst:  first,
		ChainLast:   last,
	})
	return nil
}

// growLocked appends one pad of lines, linking the new nodes after the
// current chain end.
func (a *Audio) growLocked(o recall.Orientation) []*Channel {
	lines := a.linesLocked(o)
	var tail *recycling.Recycling
	if n := len(*lines); n > 0 {
		tail = (*lines)[n-1].Recycling()
	}

	added := make([]*Channel, a.audioChannels)
	for i := range added {
		ch := &Channel{audio: a, orientation: o, line: len(*lines), generation: 1}
		node := recycling.New(ch.nodeName())
		node.SetOwner(ch)
		ch.recycling = node
		recycling.Link(tail, node)
		tail = node
		*lines = append(*lines, ch)
		added[i] = ch
	}
	return added
}

func (a *Audio) linesLocked(o recall.Orientation) *[]*Channel {
	if o == recall.OrientationInput {
		return &a.inputs
	}
	return &a.outputs
}

func (a *Audio) rangeLocked(o recall.Orientation) (first, last *recycling.Recycling) {
	lines := *a.linesLocked(o)
	if len(lines) == 0 {
		return nil, nil
	}
	return lines[0].Recycling(), lines[len(lines)-1].Recycling()
}

func (a *Audio) observersLocked() []Observer {
	out := make([]Observer, len(a.observers))
	copy(out, a.observers)
	return out
}
