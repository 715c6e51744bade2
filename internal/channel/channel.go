package channel

import (
	"fmt"
	"sync"

	"github.com/roach88/agsrecall/internal/recall"
	"github.com/roach88/agsrecall/internal/recycling"
)

// Channel is one line of an audio.
type Channel struct {
	audio       *Audio
	orientation recall.Orientation

	mu         sync.Mutex
	line       int
	recycling  *recycling.Recycling
	link       *Channel
	generation int
}

// Audio returns the owning audio.
func (c *Channel) Audio() *Audio {
	return c.audio
}

// Orientation returns whether this is an output or input line.
func (c *Channel) Orientation() recall.Orientation {
	return c.orientation
}

// Line returns the line index within the audio's lines of this orientation.
func (c *Channel) Line() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.line
}

// Pad returns the pad this line belongs to.
func (c *Channel) Pad() int {
	return c.Line() / c.audio.audioChannels
}

// AudioChannel returns the line's index within its pad.
func (c *Channel) AudioChannel() int {
	return c.Line() % c.audio.audioChannels
}

// Recycling returns the line's recycling. A line owns exactly one, so it is
// both the first and the last of the channel's range.
func (c *Channel) Recycling() *recycling.Recycling {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recycling
}

// Link returns the output this input is linked to, or nil.
func (c *Channel) Link() *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link
}

// String returns "audio.out.N" or "audio.in.N".
func (c *Channel) String() string {
	return fmt.Sprintf("%s.%s.%d", c.audio.name, orientationTag(c.orientation), c.Line())
}

// nodeName names a recycling created for this line.
func (c *Channel) nodeName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	short := "o"
	if c.orientation == recall.OrientationInput {
		short = "i"
	}
	name := fmt.Sprintf("%s.%s%d", c.audio.name, short, c.line)
	if c.generation > 1 {
		name = fmt.Sprintf("%s.%d", name, c.generation)
	}
	if c.link != nil {
		name = fmt.Sprintf("%s<%s", name, c.link.Recycling().Name())
	}
	return name
}

func orientationTag(o recall.Orientation) string {
	if o == recall.OrientationInput {
		return "in"
	}
	return "out"
}
