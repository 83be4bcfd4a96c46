package service

import (
	"time"

	"github.com/stride-ai/stride/internal/domain/confidence"
	"github.com/stride-ai/stride/internal/domain/critique"
	"github.com/stride-ai/stride/internal/domain/plan"
)

// Router turns the upstream stages' self-reported confidence into the
// routing decision that gates execution. Pure glue over
// confidence.Aggregate; the thresholds come from configuration.
type Router struct {
	thresholds confidence.Thresholds
}

// NewRouter creates a Router with the given band thresholds.
func NewRouter(t confidence.Thresholds) *Router {
	return &Router{thresholds: t}
}

// Route aggregates the planner's confidence with the reviewer's scores.
// critique may be nil when no review stage ran; the decision then rests on
// the planner's score alone.
func (r *Router) Route(p *plan.Plan, c *critique.Critique) confidence.Outcome {
	now := time.Now().UTC()
	scores := []confidence.Score{
		{AgentName: "planner", Value: p.Confidence, Timestamp: now},
	}
	if c != nil {
		scores = append(scores,
			confidence.Score{AgentName: "critic", Value: c.OverallScore, Timestamp: now},
		)
	}
	return confidence.Aggregate(scores, r.thresholds)
}

// Executable reports whether routing allows the plan to run without
// further review.
func (r *Router) Executable(out confidence.Outcome) bool {
	return out.Decision == confidence.DecisionExecute
}
