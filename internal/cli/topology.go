package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/agsrecall/internal/channel"
	"github.com/roach88/agsrecall/internal/compiler"
	"github.com/roach88/agsrecall/internal/ir"
)

// CLI error codes. Topology validation codes (E2xx) come from the compiler.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeLoadFailed   = "E004" // CUE load failed
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeBuildFailed  = "E006" // Topology could not be instantiated
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeDatabase     = "E008" // Journal open/read/write failed
	ErrCodeScript       = "E009" // Malformed play script
	ErrCodeHashMismatch = "E010" // Journal recorded another topology
	ErrCodeDiverged     = "E011" // Replay does not match the journal
)

// LoadError is a topology that could not be loaded, as opposed to one that
// loaded but failed validation.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// loadedTopology is a compiled topology and its hash.
type loadedTopology struct {
	Path     string
	Topology *ir.Topology
	Hash     string
	Errors   []compiler.ValidationError
}

// Valid reports whether the topology passed validation.
func (t *loadedTopology) Valid() bool {
	return len(t.Errors) == 0
}

// loadTopology compiles and validates the topology at path. Validation
// errors are carried in the result; only unreadable input is an error.
func loadTopology(path string) (*loadedTopology, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("topology not found: %s", path)}
	}

	topo, verrs, err := compiler.Load(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "failed to load topology", Err: err}
	}
	lt := &loadedTopology{Path: path, Topology: topo, Errors: verrs}
	if topo != nil && lt.Valid() {
		if lt.Hash, err = ir.TopologyHash(*topo); err != nil {
			return nil, &LoadError{Code: ErrCodeGeneric, Message: "failed to hash topology", Err: err}
		}
	}
	return lt, nil
}

// buildTopology loads path and instantiates its graph. Invalid topologies
// are reported through f.
func buildTopology(f *OutputFormatter, path string) (*loadedTopology, *channel.Graph, error) {
	lt, err := loadTopology(path)
	if err != nil {
		return nil, nil, failLoad(f, err)
	}
	if !lt.Valid() {
		return nil, nil, f.Fail(ExitFailure, lt.Errors[0].Code,
			fmt.Sprintf("invalid topology: %s", lt.Errors[0].Error()), lt.Errors)
	}
	graph, err := compiler.Build(lt.Topology)
	if err != nil {
		return nil, nil, f.Fail(ExitCommandError, ErrCodeBuildFailed, err.Error(), nil)
	}
	f.VerboseLog("Loaded topology %s (%d audios, %d links)", path, len(lt.Topology.Audios), len(lt.Topology.Links))
	return lt, graph, nil
}

// failLoad reports a loadTopology error and returns the exit error.
func failLoad(f *OutputFormatter, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		return f.Fail(ExitCommandError, le.Code, le.Error(), nil)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}
