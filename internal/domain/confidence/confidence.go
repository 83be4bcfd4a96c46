// Package confidence combines per-agent confidence scores into a single
// routing decision. Pure functions only; no side effects, no external calls.
package confidence

import "time"

// Score is one agent stage's self-reported confidence.
type Score struct {
	AgentName string    `json:"agent_name"`
	Value     float64   `json:"score"`
	Reasoning string    `json:"reasoning,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Decision is the routing band an aggregated confidence falls into.
type Decision string

const (
	DecisionExecute  Decision = "execute"
	DecisionReview   Decision = "review"
	DecisionRethink  Decision = "rethink"
	DecisionEscalate Decision = "escalate"
)

// Thresholds are the fixed band boundaries, descending:
// execute >= Execute > review >= Review > rethink >= Rethink > escalate.
type Thresholds struct {
	Execute float64 `json:"execute" yaml:"execute"`
	Review  float64 `json:"review" yaml:"review"`
	Rethink float64 `json:"rethink" yaml:"rethink"`
}

// DefaultThresholds are the shipped band boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{Execute: 0.8, Review: 0.6, Rethink: 0.4}
}

// Valid reports whether the thresholds are strictly descending within (0,1).
func (t Thresholds) Valid() bool {
	return t.Execute > t.Review && t.Review > t.Rethink &&
		t.Rethink > 0 && t.Execute < 1
}

// Outcome carries the decision together with the inputs that produced it,
// so the routing is reproducible after the fact.
type Outcome struct {
	OverallConfidence float64    `json:"overall_confidence"`
	Decision          Decision   `json:"decision"`
	Thresholds        Thresholds `json:"thresholds"`
	Scores            []Score    `json:"scores"`
}

// Aggregate computes the simple (unweighted) mean of the scores and maps
// it through the thresholds. A value exactly equal to a threshold resolves
// to the higher band. An empty score list escalates.
func Aggregate(scores []Score, t Thresholds) Outcome {
	out := Outcome{Thresholds: t, Scores: scores, Decision: DecisionEscalate}
	if len(scores) == 0 {
		return out
	}

	var sum float64
	for _, s := range scores {
		sum += clamp01(s.Value)
	}
	out.OverallConfidence = sum / float64(len(scores))

	switch {
	case out.OverallConfidence >= t.Execute:
		out.Decision = DecisionExecute
	case out.OverallConfidence >= t.Review:
		out.Decision = DecisionReview
	case out.OverallConfidence >= t.Rethink:
		out.Decision = DecisionRethink
	default:
		out.Decision = DecisionEscalate
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
