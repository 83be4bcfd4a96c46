// Package plan defines the Plan domain entity consumed by the execution engine.
package plan

import "time"

// StepStatus represents the lifecycle state of an individual step.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusFailed     StepStatus = "failed"
	StepStatusSkipped    StepStatus = "skipped"
)

// Plan is an ordered set of steps produced by the upstream planning stage.
// A Plan is immutable once created; a replan produces a new Plan with an
// incremented Version, never a mutation of the old one.
type Plan struct {
	ID                  string    `json:"id"`
	RequestID           string    `json:"request_id"`
	Goal                string    `json:"goal"`
	Steps               []Step    `json:"steps"`
	Version             int       `json:"version"`
	Confidence          float64   `json:"confidence"`
	EstimatedComplexity float64   `json:"estimated_complexity"`
	CreatedAt           time.Time `json:"created_at"`
}

// Step is one unit of work mapping to a single external tool invocation.
// Parameter values may be literals or unresolved placeholders referencing
// an earlier step's output. Status is mutated only by the step executor
// during a single execution run.
type Step struct {
	ID              string         `json:"id"`
	Order           int            `json:"order"` // 1-based position
	Description     string         `json:"description"`
	Action          string         `json:"action"`
	Parameters      map[string]any `json:"parameters"`
	DependsOn       []string       `json:"depends_on,omitempty"`
	ExpectedOutcome string         `json:"expected_outcome,omitempty"`
	Status          StepStatus     `json:"status"`
}

// ByID returns the step with the given ID, or nil.
func (p *Plan) ByID(id string) *Step {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i]
		}
	}
	return nil
}
