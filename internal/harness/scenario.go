package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted playback session with assertions on the resulting
// context tree.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Topology is the CUE topology file or directory.
	// Relative paths resolve against the scenario file location.
	Topology string `yaml:"topology"`

	// IDPrefix names recall ids prefix-1, prefix-2, ... Default: "ctx".
	IDPrefix string `yaml:"id_prefix,omitempty"`

	// MaxContexts bounds live contexts. Zero keeps the engine default.
	MaxContexts int `yaml:"max_contexts,omitempty"`

	// Steps are applied in order, one engine task each.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final context tree and journal.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one task, given either by kind and args or as a raw MIDI message.
type Step struct {
	// Task is the task kind (e.g. "start_playback").
	Task string `yaml:"task,omitempty"`

	// Args contains the task arguments.
	Args map[string]any `yaml:"args,omitempty"`

	// MIDI is a hex encoded note message, e.g. "90 3c 64".
	MIDI string `yaml:"midi,omitempty"`

	// Audio receives the MIDI note. Required with MIDI.
	Audio string `yaml:"audio,omitempty"`

	// ExpectError is the runtime error code the step must fail with.
	// Steps without it must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "context_length": the context's container has Length slots
	// - "context_contains": the context's container holds every Recycling name
	// - "live_contexts": exactly Count contexts are live
	// - "tree_consistent": the container tree mirrors the context tree
	// - "voices": the audio's voices sound on Pads, in start order
	// - "reset_count": the journal holds Count resets (of Context, if set)
	Type string `yaml:"type"`

	// Context is a recall id.
	Context string `yaml:"context,omitempty"`

	// Length is the expected slot count (context_length).
	Length int `yaml:"length,omitempty"`

	// Recycling lists expected recycling names (context_contains).
	Recycling []string `yaml:"recycling,omitempty"`

	// Count is the expected number (live_contexts, reset_count).
	Count int `yaml:"count,omitempty"`

	// Audio is the audio name (voices).
	Audio string `yaml:"audio,omitempty"`

	// Pads is the expected voice pad order (voices).
	Pads []int `yaml:"pads,omitempty"`
}

// Assertion type constants.
const (
	AssertContextLength   = "context_length"
	AssertContextContains = "context_contains"
	AssertLiveContexts    = "live_contexts"
	AssertTreeConsistent  = "tree_consistent"
	AssertVoices          = "voices"
	AssertResetCount      = "reset_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Topology != "" && !filepath.IsAbs(scenario.Topology) {
		scenario.Topology = filepath.Join(filepath.Dir(path), scenario.Topology)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, ordered by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Topology == "" {
		return fmt.Errorf("topology is required")
	}
	if _, err := os.Stat(s.Topology); os.IsNotExist(err) {
		return fmt.Errorf("topology not found: %s", s.Topology)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		switch {
		case step.Task != "" && step.MIDI != "":
			return fmt.Errorf("steps[%d]: task and midi are exclusive", i)
		case step.Task == "" && step.MIDI == "":
			return fmt.Errorf("steps[%d]: task or midi is required", i)
		case step.MIDI != "" && step.Audio == "":
			return fmt.Errorf("steps[%d]: audio is required with midi", i)
		case step.Task != "" && step.Audio != "":
			return fmt.Errorf("steps[%d]: audio belongs in args for tasks", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertContextLength:
		if a.Context == "" {
			return fmt.Errorf("assertions[%d]: context is required for context_length", index)
		}
		if a.Length < 0 {
			return fmt.Errorf("assertions[%d]: length must be non-negative", index)
		}
	case AssertContextContains:
		if a.Context == "" || len(a.Recycling) == 0 {
			return fmt.Errorf("assertions[%d]: context and recycling are required for context_contains", index)
		}
	case AssertLiveContexts, AssertResetCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertTreeConsistent:
	case AssertVoices:
		if a.Audio == "" {
			return fmt.Errorf("assertions[%d]: audio is required for voices", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
