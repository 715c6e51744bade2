package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/agsrecall/internal/engine"
	"github.com/roach88/agsrecall/internal/store"
)

// AssertionContext provides what assertions inspect.
type AssertionContext struct {
	Engine *engine.Engine
	Store  *store.Store
	Ctx    context.Context
}

// AssertionError is returned when an assertion fails.
// It carries the context tree to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Tree     string // Context tree at evaluation time
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Tree != "" {
		fmt.Fprintf(&buf, "\nContext tree:\n%s", e.Tree)
	}
	return buf.String()
}

// EvaluateAssertions evaluates every assertion and returns the failure
// messages in assertion order.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(a, actx); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertContextLength:
		return assertContextLength(a, actx)
	case AssertContextContains:
		return assertContextContains(a, actx)
	case AssertLiveContexts:
		return assertLiveContexts(a, actx)
	case AssertTreeConsistent:
		return assertTreeConsistent(a, actx)
	case AssertVoices:
		return assertVoices(a, actx)
	case AssertResetCount:
		return assertResetCount(a, actx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func failure(a Assertion, actx *AssertionContext, expected, actual string) error {
	return &AssertionError{
		Type:     a.Type,
		Expected: expected,
		Actual:   actual,
		Tree:     Tree(actx.Engine),
	}
}

func assertContextLength(a Assertion, actx *AssertionContext) error {
	info, ok := actx.Engine.Context(a.Context)
	if !ok {
		return failure(a, actx, fmt.Sprintf("context %s of length %d", a.Context, a.Length), "context not live")
	}
	if got := len(info.Recycling); got != a.Length {
		return failure(a, actx,
			fmt.Sprintf("context %s of length %d", a.Context, a.Length),
			fmt.Sprintf("length %d %v", got, info.Recycling))
	}
	return nil
}

func assertContextContains(a Assertion, actx *AssertionContext) error {
	info, ok := actx.Engine.Context(a.Context)
	if !ok {
		return failure(a, actx, fmt.Sprintf("context %s holding %v", a.Context, a.Recycling), "context not live")
	}
	var missing []string
	for _, name := range a.Recycling {
		if !slices.Contains(info.Recycling, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return failure(a, actx,
			fmt.Sprintf("context %s holding %v", a.Context, a.Recycling),
			fmt.Sprintf("missing %v in %v", missing, info.Recycling))
	}
	return nil
}

func assertLiveContexts(a Assertion, actx *AssertionContext) error {
	if got := len(actx.Engine.Contexts()); got != a.Count {
		return failure(a, actx, fmt.Sprintf("%d live contexts", a.Count), fmt.Sprintf("%d live contexts", got))
	}
	return nil
}

func assertTreeConsistent(a Assertion, actx *AssertionContext) error {
	if err := actx.Engine.CheckTree(); err != nil {
		return failure(a, actx, "consistent context tree", err.Error())
	}
	return nil
}

func assertVoices(a Assertion, actx *AssertionContext) error {
	got := actx.Engine.Voices(a.Audio)
	want := a.Pads
	if len(got) == 0 && len(want) == 0 {
		return nil
	}
	if !slices.Equal(got, want) {
		return failure(a, actx,
			fmt.Sprintf("voices of %s on pads %v", a.Audio, want),
			fmt.Sprintf("pads %v", got))
	}
	return nil
}

func assertResetCount(a Assertion, actx *AssertionContext) error {
	resets, err := actx.Store.ReadResets(actx.Ctx, a.Context)
	if err != nil {
		return fmt.Errorf("read resets: %w", err)
	}
	if len(resets) != a.Count {
		subject := "journal"
		if a.Context != "" {
			subject = "context " + a.Context
		}
		return failure(a, actx,
			fmt.Sprintf("%d resets for %s", a.Count, subject),
			fmt.Sprintf("%d resets", len(resets)))
	}
	return nil
}
