package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/agsrecall/internal/channel"
	"github.com/roach88/agsrecall/internal/ir"
	"github.com/roach88/agsrecall/internal/recall"
)

// Load reads a topology from a .cue file or from every .cue file in a
// directory, compiles it and validates it. Validation errors are returned
// alongside the compiled topology so callers can report all of them.
func Load(path string) (*ir.Topology, []ValidationError, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("topology not found: %w", err)
	}
	if path, err = filepath.Abs(path); err != nil {
		return nil, nil, err
	}

	cfg := &load.Config{Dir: path}
	args := []string{"."}
	if !info.IsDir() {
		cfg.Dir = filepath.Dir(path)
		args = []string{filepath.Base(path)}
	}

	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return nil, nil, fmt.Errorf("no CUE instances loaded from %s", path)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	topo, err := CompileTopology(value)
	if err != nil {
		if ce, ok := err.(*CompileError); ok {
			return nil, []ValidationError{FromCompileError(ce)}, nil
		}
		return nil, nil, err
	}
	return topo, Validate(topo), nil
}

// Build instantiates the audios of a validated topology and applies its
// links.
func Build(t *ir.Topology) (*channel.Graph, error) {
	g := channel.NewGraph()
	for _, spec := range t.Audios {
		a, err := channel.NewAudio(spec.Name, spec.AudioChannels, spec.OutputPads, spec.InputPads)
		if err != nil {
			return nil, err
		}
		if err := g.Add(a); err != nil {
			return nil, err
		}
	}

	for i, l := range t.Links {
		in := g.Audio(l.Input)
		out := g.Audio(l.Output)
		if in == nil || out == nil {
			return nil, fmt.Errorf("link[%d]: unknown audio", i)
		}
		input := in.Line(recall.OrientationInput, l.InputLine)
		output := out.Line(recall.OrientationOutput, l.OutputLine)
		if input == nil || output == nil {
			return nil, fmt.Errorf("link[%d]: line out of range", i)
		}
		if err := channel.Link(input, output); err != nil {
			return nil, fmt.Errorf("link[%d]: %w", i, err)
		}
	}
	return g, nil
}
