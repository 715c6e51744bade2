package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/agsrecall/internal/engine"
)

// Tree renders the engine's live context tree, one context per line,
// children indented below their parent:
//
//	ctx-1 output playback synth [synth.o0]
//	  ctx-2 input playback synth [synth.i0 synth.i1]
//	    ctx-3 voice midi synth pad=1 [synth.i1]
func Tree(e *engine.Engine) string {
	var buf strings.Builder
	e.Walk(func(info engine.ContextInfo, depth int) {
		buf.WriteString(strings.Repeat("  ", depth))
		fmt.Fprintf(&buf, "%s %s %s %s", info.ID, info.Role, info.Scope, info.Audio)
		if info.Role == engine.RoleVoice {
			fmt.Fprintf(&buf, " pad=%d", info.Pad)
		}
		fmt.Fprintf(&buf, " [%s]\n", strings.Join(info.Recycling, " "))
	})
	return buf.String()
}

// Snapshot renders a result for golden comparison: the applied steps, then
// the final context tree.
func Snapshot(name string, r *Result) []byte {
	var buf strings.Builder
	fmt.Fprintf(&buf, "scenario: %s\n", name)
	buf.WriteString("steps:\n")
	for _, s := range r.Steps {
		fmt.Fprintf(&buf, "  %d %s", s.Seq, s.Kind)
		if s.Args != "" {
			fmt.Fprintf(&buf, " %s", s.Args)
		}
		if s.Error != "" {
			fmt.Fprintf(&buf, " -> %s", s.Error)
		}
		buf.WriteString("\n")
	}
	buf.WriteString("tree:\n")
	buf.WriteString(r.Tree)
	return []byte(buf.String())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Snapshot(name, result))
}
