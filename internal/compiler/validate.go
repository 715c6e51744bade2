package compiler

import (
	"fmt"

	"github.com/roach88/agsrecall/internal/ir"
)

// Validation error codes (E200-E299).
const (
	ErrNoAudios        = "E200" // topology declares no audio
	ErrInvalidGeometry = "E201" // audio_channels < 1 or negative pad count
	ErrUnknownAudio    = "E202" // link names an undeclared audio
	ErrLineOutOfRange  = "E203" // link line beyond the audio's lines
	ErrSelfLink        = "E204" // link feeds an audio from itself
	ErrDuplicateLink   = "E205" // input line linked more than once
	ErrDuplicateAudio  = "E206" // audio name declared twice
	ErrFloatForbidden  = "E207" // numeric field is not an integer
	ErrCompileGeneric  = "E299" // CUE or structural error
)

// ValidationError represents a topology validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// FromCompileError converts a compile error into a validation error.
func FromCompileError(err *CompileError) ValidationError {
	code := ErrCompileGeneric
	switch err.Field {
	case "type":
		code = ErrFloatForbidden
	case "audio":
		code = ErrNoAudios
	}
	ve := ValidationError{Field: err.Field, Message: err.Message, Code: code}
	if err.Pos.IsValid() {
		ve.Line = err.Pos.Line()
	}
	return ve
}

// Validate checks a compiled topology and returns every error found.
func Validate(t *ir.Topology) []ValidationError {
	var errs []ValidationError
	if len(t.Audios) == 0 {
		return []ValidationError{{Field: "audio", Message: "at least one audio is required", Code: ErrNoAudios}}
	}

	seen := make(map[string]bool, len(t.Audios))
	for _, a := range t.Audios {
		field := "audio." + a.Name
		if seen[a.Name] {
			errs = append(errs, ValidationError{Field: field, Message: "duplicate audio name", Code: ErrDuplicateAudio})
		}
		seen[a.Name] = true

		if a.AudioChannels < 1 {
			errs = append(errs, ValidationError{
				Field:   field + ".audio_channels",
				Message: fmt.Sprintf("audio_channels must be at least 1, got %d", a.AudioChannels),
				Code:    ErrInvalidGeometry,
			})
		}
		if a.OutputPads < 0 || a.InputPads < 0 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("pad counts must not be negative (output %d, input %d)", a.OutputPads, a.InputPads),
				Code:    ErrInvalidGeometry,
			})
		}
	}

	linked := make(map[string]bool, len(t.Links))
	for i, l := range t.Links {
		field := fmt.Sprintf("link[%d]", i)

		in, okIn := t.Audio(l.Input)
		out, okOut := t.Audio(l.Output)
		if !okIn {
			errs = append(errs, ValidationError{Field: field + ".input", Message: fmt.Sprintf("unknown audio %q", l.Input), Code: ErrUnknownAudio})
		}
		if !okOut {
			errs = append(errs, ValidationError{Field: field + ".output", Message: fmt.Sprintf("unknown audio %q", l.Output), Code: ErrUnknownAudio})
		}
		if !okIn || !okOut {
			continue
		}

		if l.Input == l.Output {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("%s cannot feed itself", l.Input), Code: ErrSelfLink})
		}
		if n := in.AudioChannels * in.InputPads; l.InputLine < 0 || l.InputLine >= n {
			errs = append(errs, ValidationError{
				Field:   field + ".input_line",
				Message: fmt.Sprintf("%s has %d input lines, got line %d", l.Input, n, l.InputLine),
				Code:    ErrLineOutOfRange,
			})
		}
		if n := out.AudioChannels * out.OutputPads; l.OutputLine < 0 || l.OutputLine >= n {
			errs = append(errs, ValidationError{
				Field:   field + ".output_line",
				Message: fmt.Sprintf("%s has %d output lines, got line %d", l.Output, n, l.OutputLine),
				Code:    ErrLineOutOfRange,
			})
		}

		key := fmt.Sprintf("%s/%d", l.Input, l.InputLine)
		if linked[key] {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("input line %s is linked twice", key), Code: ErrDuplicateLink})
		}
		linked[key] = true
	}

	return errs
}
