package engine

import (
	"fmt"
	"slices"

	"github.com/roach88/agsrecall/internal/ir"
	"github.com/roach88/agsrecall/internal/recall"
)

// Task kinds.
const (
	KindStartPlayback = "start_playback"
	KindStopPlayback  = "stop_playback"
	KindNoteOn        = "note_on"
	KindNoteOff       = "note_off"
	KindAddPad        = "add_pad"
	KindRemovePad     = "remove_pad"
	KindLink          = "link"
	KindUnlink        = "unlink"
)

// Task is one unit of work applied by the engine loop.
type Task interface {
	// Kind names the task for logs and the journal.
	Kind() string
	// Args returns the task arguments in canonical form.
	Args() ir.Object
}

// StartPlayback starts playing an audio: an output context over its output
// chain with an input context over its input chain as child.
type StartPlayback struct {
	Audio string
}

// StopPlayback stops an audio's playback and every context below it.
type StopPlayback struct {
	Audio string
}

// NoteOn starts a voice: a context over one input pad, nested under the
// playback's input context.
type NoteOn struct {
	Audio    string
	Pad      int
	Velocity int
}

// NoteOff stops the oldest voice on a pad.
type NoteOff struct {
	Audio string
	Pad   int
}

// AddPad appends a pad to one orientation of an audio.
type AddPad struct {
	Audio       string
	Orientation recall.Orientation
}

// RemovePad removes the last pad of one orientation of an audio.
type RemovePad struct {
	Audio       string
	Orientation recall.Orientation
}

// Link feeds an input line from an output line of another audio.
type Link struct {
	Input      string
	InputLine  int
	Output     string
	OutputLine int
}

// Unlink detaches an input line from its output.
type Unlink struct {
	Input     string
	InputLine int
}

func (StartPlayback) Kind() string { return KindStartPlayback }
func (StopPlayback) Kind() string  { return KindStopPlayback }
func (NoteOn) Kind() string        { return KindNoteOn }
func (NoteOff) Kind() string       { return KindNoteOff }
func (AddPad) Kind() string        { return KindAddPad }
func (RemovePad) Kind() string     { return KindRemovePad }
func (Link) Kind() string          { return KindLink }
func (Unlink) Kind() string        { return KindUnlink }

func (t StartPlayback) Args() ir.Object { return ir.Object{"audio": ir.Str(t.Audio)} }
func (t StopPlayback) Args() ir.Object  { return ir.Object{"audio": ir.Str(t.Audio)} }

func (t NoteOn) Args() ir.Object {
	return ir.Object{"audio": ir.Str(t.Audio), "pad": ir.Int(t.Pad), "velocity": ir.Int(t.Velocity)}
}

func (t NoteOff) Args() ir.Object {
	return ir.Object{"audio": ir.Str(t.Audio), "pad": ir.Int(t.Pad)}
}

func (t AddPad) Args() ir.Object {
	return ir.Object{"audio": ir.Str(t.Audio), "orientation": ir.Str(t.Orientation.String())}
}

func (t RemovePad) Args() ir.Object {
	return ir.Object{"audio": ir.Str(t.Audio), "orientation": ir.Str(t.Orientation.String())}
}

func (t Link) Args() ir.Object {
	return ir.Object{
		"input":       ir.Str(t.Input),
		"input_line":  ir.Int(t.InputLine),
		"output":      ir.Str(t.Output),
		"output_line": ir.Int(t.OutputLine),
	}
}

func (t Unlink) Args() ir.Object {
	return ir.Object{"input": ir.Str(t.Input), "input_line": ir.Int(t.InputLine)}
}

// ParseTask builds a task from its kind and arguments, as read from a script
// or a journal. Unknown argument keys are rejected.
func ParseTask(kind string, args ir.Object) (Task, error) {
	allowed := map[string][]string{
		KindStartPlayback: {"audio"},
		KindStopPlayback:  {"audio"},
		KindNoteOn:        {"audio", "pad", "velocity"},
		KindNoteOff:       {"audio", "pad"},
		KindAddPad:        {"audio", "orientation"},
		KindRemovePad:     {"audio", "orientation"},
		KindLink:          {"input", "input_line", "output", "output_line"},
		KindUnlink:        {"input", "input_line"},
	}
	keys, ok := allowed[kind]
	if !ok {
		return nil, fmt.Errorf("unknown task kind %q", kind)
	}
	for k := range args {
		if !slices.Contains(keys, k) {
			return nil, fmt.Errorf("%s: unknown argument %q", kind, k)
		}
	}

	switch kind {
	case KindStartPlayback:
		return StartPlayback{Audio: args.String("audio")}, nil
	case KindStopPlayback:
		return StopPlayback{Audio: args.String("audio")}, nil
	case KindNoteOn:
		velocity := 127
		if _, ok := args["velocity"]; ok {
			velocity = int(args.Int("velocity"))
		}
		return NoteOn{Audio: args.String("audio"), Pad: int(args.Int("pad")), Velocity: velocity}, nil
	case KindNoteOff:
		return NoteOff{Audio: args.String("audio"), Pad: int(args.Int("pad"))}, nil
	case KindAddPad, KindRemovePad:
		o, err := recall.ParseOrientation(args.String("orientation"))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		if kind == KindAddPad {
			return AddPad{Audio: args.String("audio"), Orientation: o}, nil
		}
		return RemovePad{Audio: args.String("audio"), Orientation: o}, nil
	case KindLink:
		return Link{
			Input:      args.String("input"),
			InputLine:  int(args.Int("input_line")),
			Output:     args.String("output"),
			OutputLine: int(args.Int("output_line")),
		}, nil
	default:
		return Unlink{Input: args.String("input"), InputLine: int(args.Int("input_line"))}, nil
	}
}
