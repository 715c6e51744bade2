package ir

import (
	"cmp"
	"slices"
)

// Topology describes the audios of a session and how their lines connect.
type Topology struct {
	Audios []AudioSpec `json:"audios"`
	Links  []LinkSpec  `json:"links"`
}

// AudioSpec declares one audio and its pad geometry.
type AudioSpec struct {
	Name          string `json:"name"`
	AudioChannels int    `json:"audio_channels"`
	OutputPads    int    `json:"output_pads"`
	InputPads     int    `json:"input_pads"`
}

// LinkSpec feeds an input line of one audio from an output line of another.
type LinkSpec struct {
	Input      string `json:"input"`
	InputLine  int    `json:"input_line"`
	Output     string `json:"output"`
	OutputLine int    `json:"output_line"`
}

// Audio returns the spec named name, or false.
func (t Topology) Audio(name string) (AudioSpec, bool) {
	for _, a := range t.Audios {
		if a.Name == name {
			return a, true
		}
	}
	return AudioSpec{}, false
}

// Value converts the topology to its canonical value form. Audios are keyed
// by name and links sorted by input, so declaration order does not matter.
func (t Topology) Value() Value {
	audios := make(Object, len(t.Audios))
	for _, a := range t.Audios {
		audios[a.Name] = Object{
			"audio_channels": Int(a.AudioChannels),
			"output_pads":    Int(a.OutputPads),
			"input_pads":     Int(a.InputPads),
		}
	}

	links := slices.Clone(t.Links)
	slices.SortFunc(links, func(a, b LinkSpec) int {
		return cmp.Or(
			compareUTF16(a.Input, b.Input),
			cmp.Compare(a.InputLine, b.InputLine),
		)
	})
	arr := make(Array, len(links))
	for i, l := range links {
		arr[i] = Object{
			"input":       Str(l.Input),
			"input_line":  Int(l.InputLine),
			"output":      Str(l.Output),
			"output_line": Int(l.OutputLine),
		}
	}

	return Object{"audio": audios, "link": arr}
}
