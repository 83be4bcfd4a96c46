// Package critique defines the plan critique entity produced by the
// upstream review stage. The engine only stores and versions critiques;
// generating them is external.
package critique

import "time"

// Recommendation is the reviewer's routing verdict for a plan.
type Recommendation string

const (
	RecommendExecute        Recommendation = "execute"
	RecommendReview         Recommendation = "review"
	RecommendRethink        Recommendation = "rethink"
	RecommendEscalate       Recommendation = "escalate"
	RecommendApproveWithFix Recommendation = "approve_with_dynamic_fix"
)

// Severity of an identified issue.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Issue is one problem the reviewer found in a plan.
type Issue struct {
	Severity    Severity `json:"severity"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion,omitempty"`
}

// Critique belongs to exactly one (RequestID, Version) and references
// exactly one PlanID.
type Critique struct {
	RequestID         string         `json:"request_id"`
	Version           int            `json:"version"`
	PlanID            string         `json:"plan_id"`
	OverallScore      float64        `json:"overall_score"`
	FeasibilityScore  float64        `json:"feasibility_score"`
	CorrectnessScore  float64        `json:"correctness_score"`
	EfficiencyScore   float64        `json:"efficiency_score"`
	SafetyScore       float64        `json:"safety_score"`
	Recommendation    Recommendation `json:"recommendation"`
	Issues            []Issue        `json:"issues,omitempty"`
	FollowUpQuestions []string       `json:"follow_up_questions,omitempty"`
	Strengths         []string       `json:"strengths,omitempty"`
	Suggestions       []string       `json:"suggestions,omitempty"`
	Rationale         string         `json:"rationale,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}
