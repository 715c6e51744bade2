// Package midiin turns MIDI note messages into engine note tasks.
//
// Keys map onto the input pads of one audio, key modulo pad count, so any
// keyboard range can drive an audio with few pads.
package midiin

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"gitlab.com/gomidi/midi/v2"

	"github.com/roach88/agsrecall/internal/engine"
)

// AnyChannel accepts notes on every MIDI channel.
const AnyChannel = -1

// Translator maps note messages for one audio.
type Translator struct {
	Audio string
	Pads  int
	// Channel filters by MIDI channel (0-15), or AnyChannel.
	Channel int
}

// New creates a translator accepting every channel.
func New(audio string, pads int) Translator {
	return Translator{Audio: audio, Pads: pads, Channel: AnyChannel}
}

// Translate returns the note task for msg. Messages other than note start
// and note end, and notes on other channels, report false.
func (t Translator) Translate(msg midi.Message) (engine.Task, bool) {
	if t.Pads <= 0 {
		return nil, false
	}
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		if !t.accepts(ch) {
			return nil, false
		}
		return engine.NoteOn{Audio: t.Audio, Pad: t.pad(key), Velocity: int(vel)}, true
	case msg.GetNoteEnd(&ch, &key):
		if !t.accepts(ch) {
			return nil, false
		}
		return engine.NoteOff{Audio: t.Audio, Pad: t.pad(key)}, true
	default:
		return nil, false
	}
}

// Translate is a shorthand for New(audio, pads).Translate(msg).
func Translate(msg midi.Message, audio string, pads int) (engine.Task, bool) {
	return New(audio, pads).Translate(msg)
}

// Receiver returns a callback in the shape midi.ListenTo expects that
// enqueues the translated tasks.
func (t Translator) Receiver(enqueue func(engine.Task) bool) func(msg midi.Message, timestampms int32) {
	return func(msg midi.Message, timestampms int32) {
		task, ok := t.Translate(msg)
		if !ok {
			return
		}
		if !enqueue(task) {
			slog.Warn("midi note dropped: engine stopped", "audio", t.Audio, "msg", msg.String(), "ts_ms", timestampms)
		}
	}
}

func (t Translator) accepts(ch uint8) bool {
	return t.Channel == AnyChannel || int(ch) == t.Channel
}

func (t Translator) pad(key uint8) int {
	return int(key) % t.Pads
}

// ParseHex decodes a raw message such as "90 3c 64". Spaces are ignored.
func ParseHex(s string) (midi.Message, error) {
	b, err := hex.DecodeString(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	if err != nil {
		return nil, fmt.Errorf("midi message %q: %w", s, err)
	}
	msg := midi.Message(b)
	if msg.Type() == midi.UnknownMsg {
		return nil, fmt.Errorf("midi message %q: unknown message type", s)
	}
	return msg, nil
}
