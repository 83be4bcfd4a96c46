// Package oracle defines the port for the external reasoning capability
// the engine consults for parameter extraction, adaptation proposals, and
// mid-plan checkpoint judgments.
package oracle

import (
	"context"

	"github.com/stride-ai/stride/internal/domain/execution"
	"github.com/stride-ai/stride/internal/domain/plan"
)

// Extraction is the typed outcome of a semantic parameter extraction.
// Unresolved=true means the oracle could not derive a value with enough
// confidence; callers must not guess a value in that case.
type Extraction struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	Unresolved bool    `json:"unresolved"`
}

// Proposal is a suggested replacement action and parameter set for a
// failed step. None=true means the oracle has no viable alternative.
type Proposal struct {
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters"`
	Reason     string         `json:"reason"`
	None       bool           `json:"none"`
}

// Verdict is the checkpoint judgment on the remaining plan.
type Verdict string

const (
	VerdictContinue          Verdict = "continue"
	VerdictReplanRecommended Verdict = "replan_recommended"
	VerdictAbortRecommended  Verdict = "abort_recommended"
)

// Oracle is the reasoning boundary. Every call is bounded by the caller's
// context deadline and returns a typed failure rather than throwing opaquely.
type Oracle interface {
	// ExtractParameter derives a parameter value from a prior step's raw
	// result given the parameter's intended meaning.
	ExtractParameter(ctx context.Context, rawPriorResult any, parameterIntent string) (Extraction, error)

	// ProposeAdaptation suggests a different action/parameters for the
	// same intent after a step failed.
	ProposeAdaptation(ctx context.Context, failedStep plan.Step, failureContext string) (Proposal, error)

	// Checkpoint judges whether the remaining plan is still viable given
	// the results so far.
	Checkpoint(ctx context.Context, p *plan.Plan, resultsSoFar []execution.StepResult, goal string) (Verdict, error)
}
