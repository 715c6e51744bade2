package harness

import "github.com/roach88/agsrecall/internal/engine"

// StepResult records how one step was applied.
type StepResult struct {
	Seq  int64  `json:"seq"`
	Kind string `json:"kind"`
	Args string `json:"args"`
	// Error is the runtime error code, empty on success.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step met its expectation and every assertion held.
	Pass bool `json:"pass"`

	// Steps lists the applied steps in order.
	Steps []StepResult `json:"steps"`

	// Contexts is the final set of live contexts.
	Contexts []engine.ContextInfo `json:"contexts"`

	// Tree is the textual context tree, compared against golden files.
	Tree string `json:"tree"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
