package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/stride-ai/stride/internal/domain/execution"
	"github.com/stride-ai/stride/internal/domain/plan"
	"github.com/stride-ai/stride/internal/port/oracle"
)

// CheckpointService asks the oracle, mid-plan, whether the remaining steps
// are still worth running given what the completed steps actually produced.
// The verdict is advisory; the engine decides what to do with it.
type CheckpointService struct {
	oracle  oracle.Oracle
	timeout time.Duration
	minDone int
}

// NewCheckpointService creates a CheckpointService. minCompleted is the
// number of completed steps required before a checkpoint fires at all;
// judging an empty track record wastes an oracle round trip.
func NewCheckpointService(o oracle.Oracle, timeout time.Duration, minCompleted int) *CheckpointService {
	if minCompleted < 1 {
		minCompleted = 1
	}
	return &CheckpointService{oracle: o, timeout: timeout, minDone: minCompleted}
}

// Evaluate returns the checkpoint verdict for the plan's remaining steps.
// Any oracle fault degrades to VerdictContinue: a broken checkpoint must
// never stall an otherwise healthy execution.
func (s *CheckpointService) Evaluate(ctx context.Context, p *plan.Plan, resultsSoFar []execution.StepResult) oracle.Verdict {
	if len(resultsSoFar) < s.minDone {
		return oracle.VerdictContinue
	}

	octx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	verdict, err := s.oracle.Checkpoint(octx, p, resultsSoFar, p.Goal)
	if err != nil {
		slog.Warn("checkpoint evaluation failed, continuing",
			"plan_id", p.ID,
			"completed_steps", len(resultsSoFar),
			"error", err,
		)
		return oracle.VerdictContinue
	}

	switch verdict {
	case oracle.VerdictContinue, oracle.VerdictReplanRecommended, oracle.VerdictAbortRecommended:
	default:
		// Unrecognized verdicts are treated as continue rather than halting.
		slog.Warn("unrecognized checkpoint verdict", "plan_id", p.ID, "verdict", verdict)
		return oracle.VerdictContinue
	}

	if verdict != oracle.VerdictContinue {
		slog.Info("checkpoint verdict",
			"plan_id", p.ID,
			"verdict", verdict,
			"completed_steps", len(resultsSoFar),
		)
	}
	return verdict
}
