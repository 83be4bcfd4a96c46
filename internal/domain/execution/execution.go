// Package execution defines the append-only records produced by a plan
// execution run: per-step results, plan-level aggregates, and every
// adaptation, parameter update, and follow-up question made along the way.
package execution

import "time"

// FailureKind categorizes a step failure. The category drives the recovery
// decision, so classification must be conservative: unknown is always a
// safe answer, a wrong category is not.
type FailureKind string

const (
	FailureTransient            FailureKind = "transient"
	FailureInvalidParameter     FailureKind = "invalid_parameter"
	FailureExtractionImpossible FailureKind = "extraction_impossible"
	FailureToolNotApplicable    FailureKind = "tool_not_applicable"
	FailureUnknown              FailureKind = "unknown"
)

// Priority of a follow-up question.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// StepResult records one executed step within one execution version.
// Append-only; never mutated after creation.
type StepResult struct {
	StepID              string         `json:"step_id"`
	StepOrder           int            `json:"step_order"`
	Success             bool           `json:"success"`
	Result              any            `json:"result,omitempty"`
	Error               string         `json:"error,omitempty"`
	ErrorKind           FailureKind    `json:"error_kind,omitempty"`
	ToolCalled          string         `json:"tool_called"`
	ParametersUsed      map[string]any `json:"parameters_used"`
	Retries             int            `json:"retries"`
	AdaptationAttempted bool           `json:"adaptation_attempted"`
	DurationMS          int64          `json:"duration_ms"`
	Timestamp           time.Time      `json:"timestamp"`
}

// Adaptation records a substitution of a different tool/action than the
// plan originally specified.
type Adaptation struct {
	StepID         string    `json:"step_id"`
	OriginalAction string    `json:"original_action"`
	AdaptedAction  string    `json:"adapted_action"`
	Reason         string    `json:"reason"`
	Timestamp      time.Time `json:"timestamp"`
}

// PlanUpdate records a change to a step's parameter values without
// changing its action. It never introduces new parameter names.
type PlanUpdate struct {
	StepID             string         `json:"step_id"`
	StepOrder          int            `json:"step_order"`
	OriginalParameters map[string]any `json:"original_parameters"`
	UpdatedParameters  map[string]any `json:"updated_parameters"`
	Reason             string         `json:"reason"`
	Timestamp          time.Time      `json:"timestamp"`
}

// QuestionContext carries enough structured detail for a human to answer
// a follow-up question without re-reading logs.
type QuestionContext struct {
	WhatFailed string         `json:"what_failed"`
	StepID     string         `json:"step_id"`
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters,omitempty"`
	ErrorKind  FailureKind    `json:"error_kind,omitempty"`
}

// FollowUpQuestion is a clarifying question synthesized when recovery is
// impossible without operator input. UserAnswer stays empty until answered.
type FollowUpQuestion struct {
	ID         string          `json:"id"`
	Question   string          `json:"question"`
	Category   string          `json:"category"`
	Priority   Priority        `json:"priority"`
	Context    QuestionContext `json:"context"`
	UserAnswer string          `json:"user_answer,omitempty"`
}

// Answered reports whether the operator has supplied an answer.
func (q *FollowUpQuestion) Answered() bool {
	return q.UserAnswer != ""
}

// PlanResult aggregates everything one execution attempt produced.
// A resumed execution produces a new ExecutionVersion, not a mutation.
type PlanResult struct {
	RequestID            string             `json:"request_id"`
	PlanID               string             `json:"plan_id"`
	PlanVersion          int                `json:"plan_version"`
	ExecutionVersion     int                `json:"execution_version"`
	Steps                []StepResult       `json:"steps"`
	OverallSuccess       bool               `json:"overall_success"`
	RequiresUserFeedback bool               `json:"requires_user_feedback"`
	ReplanRecommended    bool               `json:"replan_recommended,omitempty"`
	TotalDurationMS      int64              `json:"total_duration_ms"`
	Errors               []string           `json:"errors,omitempty"`
	Adaptations          []Adaptation       `json:"adaptations,omitempty"`
	PlanUpdates          []PlanUpdate       `json:"plan_updates,omitempty"`
	QuestionsAsked       []FollowUpQuestion `json:"questions_asked,omitempty"`
	StartedAt            time.Time          `json:"started_at"`
}

// StepByID returns the recorded result for the given step, or nil.
func (r *PlanResult) StepByID(stepID string) *StepResult {
	for i := range r.Steps {
		if r.Steps[i].StepID == stepID {
			return &r.Steps[i]
		}
	}
	return nil
}

// QuestionByID returns the recorded question with the given ID, or nil.
func (r *PlanResult) QuestionByID(id string) *FollowUpQuestion {
	for i := range r.QuestionsAsked {
		if r.QuestionsAsked[i].ID == id {
			return &r.QuestionsAsked[i]
		}
	}
	return nil
}
