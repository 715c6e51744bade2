package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/agsrecall/internal/ir"
	"github.com/roach88/agsrecall/internal/recall"
)

func TestParseTask_RoundTripsArgs(t *testing.T) {
	tasks := []Task{
		StartPlayback{Audio: "synth"},
		StopPlayback{Audio: "synth"},
		NoteOn{Audio: "synth", Pad: 3, Velocity: 90},
		NoteOff{Audio: "synth", Pad: 3},
		AddPad{Audio: "synth", Orientation: recall.OrientationInput},
		RemovePad{Audio: "synth", Orientation: recall.OrientationOutput},
		Link{Input: "mix", InputLine: 1, Output: "osc", OutputLine: 0},
		Unlink{Input: "mix", InputLine: 1},
	}
	for _, task := range tasks {
		t.Run(task.Kind(), func(t *testing.T) {
			got, err := ParseTask(task.Kind(), task.Args())
			require.NoError(t, err)
			assert.Equal(t, task, got)
		})
	}
}

func TestParseTask_DefaultVelocity(t *testing.T) {
	got, err := ParseTask(KindNoteOn, ir.Object{"audio": ir.Str("synth"), "pad": ir.Int(0)})
	require.NoError(t, err)
	assert.Equal(t, NoteOn{Audio: "synth", Pad: 0, Velocity: 127}, got)
}

func TestParseTask_Errors(t *testing.T) {
	tests := []struct {
		name string
		kind string
		args ir.Object
		want string
	}{
		{"unknown kind", "bend", ir.Object{}, `unknown task kind "bend"`},
		{"unknown argument", KindStartPlayback, ir.Object{"audio": ir.Str("a"), "gain": ir.Int(1)}, `unknown argument "gain"`},
		{"bad orientation", KindAddPad, ir.Object{"audio": ir.Str("a"), "orientation": ir.Str("sideways")}, "invalid orientation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTask(tt.kind, tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
