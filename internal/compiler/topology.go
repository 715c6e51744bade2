package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/agsrecall/internal/ir"
)

// CompileTopology parses a CUE value into a Topology.
//
// The value holds an audio struct keyed by name and an optional link list:
//
//	audio: osc: {output_pads: 1}
//	audio: mix: {audio_channels: 2, output_pads: 1, input_pads: 4}
//	link: [{input: "mix", input_line: 0, output: "osc", output_line: 0}]
//
// audio_channels defaults to 1; pad counts default to 0. Audios keep their
// declaration order.
func CompileTopology(v cue.Value) (*ir.Topology, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	topo := &ir.Topology{}

	audiosVal := v.LookupPath(cue.ParsePath("audio"))
	if !audiosVal.Exists() {
		return nil, &CompileError{Field: "audio", Message: "at least one audio is required", Pos: v.Pos()}
	}
	iter, err := audiosVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		spec, err := compileAudio(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		topo.Audios = append(topo.Audios, spec)
	}

	linksVal := v.LookupPath(cue.ParsePath("link"))
	if linksVal.Exists() {
		list, err := linksVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for list.Next() {
			link, err := compileLink(list.Value())
			if err != nil {
				return nil, err
			}
			topo.Links = append(topo.Links, link)
		}
	}

	return topo, nil
}

func compileAudio(name string, v cue.Value) (ir.AudioSpec, error) {
	spec := ir.AudioSpec{Name: name, AudioChannels: 1}
	var err error
	if spec.AudioChannels, err = optionalInt(v, "audio_channels", 1); err != nil {
		return spec, err
	}
	if spec.OutputPads, err = optionalInt(v, "output_pads", 0); err != nil {
		return spec, err
	}
	if spec.InputPads, err = optionalInt(v, "input_pads", 0); err != nil {
		return spec, err
	}
	return spec, nil
}

func compileLink(v cue.Value) (ir.LinkSpec, error) {
	var link ir.LinkSpec
	var err error
	if link.Input, err = requiredString(v, "input"); err != nil {
		return link, err
	}
	if link.Output, err = requiredString(v, "output"); err != nil {
		return link, err
	}
	if link.InputLine, err = optionalInt(v, "input_line", 0); err != nil {
		return link, err
	}
	if link.OutputLine, err = optionalInt(v, "output_line", 0); err != nil {
		return link, err
	}
	return link, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: "link." + field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// optionalInt reads an integer field, rejecting floats.
func optionalInt(v cue.Value, field string, def int) (int, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return def, nil
	}
	switch fv.IncompleteKind() {
	case cue.IntKind:
	case cue.FloatKind, cue.NumberKind:
		return 0, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("%s must be an integer", field),
			Pos:     fv.Pos(),
		}
	default:
		return 0, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("%s has unsupported kind %v", field, fv.IncompleteKind()),
			Pos:     fv.Pos(),
		}
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return int(n), nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError keeps the first CUE error with its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
