package midiin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"

	"github.com/roach88/agsrecall/internal/engine"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		msg  midi.Message
		want engine.Task
		ok   bool
	}{
		{"note on", midi.NoteOn(0, 60, 100), engine.NoteOn{Audio: "synth", Pad: 0, Velocity: 100}, true},
		{"key wraps onto pads", midi.NoteOn(0, 61, 64), engine.NoteOn{Audio: "synth", Pad: 1, Velocity: 64}, true},
		{"note off", midi.NoteOff(0, 62), engine.NoteOff{Audio: "synth", Pad: 2}, true},
		{"zero velocity ends note", midi.NoteOn(0, 63, 0), engine.NoteOff{Audio: "synth", Pad: 0}, true},
		{"control change ignored", midi.ControlChange(0, 7, 100), nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Translate(tt.msg, "synth", 3)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranslate_NoPads(t *testing.T) {
	_, ok := Translate(midi.NoteOn(0, 60, 100), "synth", 0)
	assert.False(t, ok)
}

func TestTranslator_ChannelFilter(t *testing.T) {
	tr := Translator{Audio: "synth", Pads: 4, Channel: 2}

	_, ok := tr.Translate(midi.NoteOn(0, 60, 100))
	assert.False(t, ok)

	got, ok := tr.Translate(midi.NoteOn(2, 60, 100))
	require.True(t, ok)
	assert.Equal(t, engine.NoteOn{Audio: "synth", Pad: 0, Velocity: 100}, got)
}

func TestReceiver_Enqueues(t *testing.T) {
	var got []engine.Task
	recv := New("synth", 2).Receiver(func(task engine.Task) bool {
		got = append(got, task)
		return true
	})

	recv(midi.NoteOn(0, 1, 90), 0)
	recv(midi.ProgramChange(0, 3), 5)
	recv(midi.NoteOff(0, 1), 10)

	assert.Equal(t, []engine.Task{
		engine.NoteOn{Audio: "synth", Pad: 1, Velocity: 90},
		engine.NoteOff{Audio: "synth", Pad: 1},
	}, got)
}

func TestParseHex(t *testing.T) {
	msg, err := ParseHex("90 3c 64")
	require.NoError(t, err)
	assert.Equal(t, midi.NoteOn(0, 60, 100), msg)

	_, err = ParseHex("zz")
	assert.Error(t, err)
}
