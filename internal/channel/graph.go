package channel

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/roach88/agsrecall/internal/recall"
)

// Graph is a named set of audios.
type Graph struct {
	mu        sync.Mutex
	audios    map[string]*Audio
	order     []string
	observers []Observer
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{audios: make(map[string]*Audio)}
}

// Add registers an audio. Observers already registered on the graph are
// attached to it. Returns an error on a duplicate name.
func (g *Graph) Add(a *Audio) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.audios[a.Name()]; exists {
		return fmt.Errorf("duplicate audio %q", a.Name())
	}
	g.audios[a.Name()] = a
	g.order = append(g.order, a.Name())
	for _, obs := range g.observers {
		a.Observe(obs)
	}
	return nil
}

// Audio returns the audio named name, or nil.
func (g *Graph) Audio(name string) *Audio {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.audios[name]
}

// Audios returns the audios in registration order.
func (g *Graph) Audios() []*Audio {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Audio, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.audios[name])
	}
	return out
}

// Names returns the audio names sorted.
func (g *Graph) Names() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, len(g.order))
	copy(names, g.order)
	sort.Strings(names)
	return names
}

// Observe registers obs on every current and future audio.
func (g *Graph) Observe(obs Observer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observers = append(g.observers, obs)
	for _, name := range g.order {
		g.audios[name].Observe(obs)
	}
}

// RemovePad removes the last pad of a's orientation. When output lines go,
// every input in the graph fed by one of them is unlinked, so its chain gets
// a fresh own node and observers see a Replaced change.
func (g *Graph) RemovePad(a *Audio, o recall.Orientation) error {
	removed, err := a.removePad(o)
	if err != nil {
		return err
	}
	if o != recall.OrientationOutput {
		return nil
	}

	var errs []error
	for _, other := range g.Audios() {
		for _, in := range other.Lines(recall.OrientationInput) {
			if link := in.Link(); link != nil && slices.Contains(removed, link) {
				if err := Unlink(in); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}
	return errors.Join(errs...)
}
