package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	strideotel "github.com/stride-ai/stride/internal/adapter/otel"
	"github.com/stride-ai/stride/internal/domain"
	"github.com/stride-ai/stride/internal/domain/execution"
	"github.com/stride-ai/stride/internal/domain/plan"
	"github.com/stride-ai/stride/internal/port/broadcast"
	"github.com/stride-ai/stride/internal/port/messagequeue"
	"github.com/stride-ai/stride/internal/port/oracle"
)

// Engine drives a plan through its steps in dependency order, one step at
// a time, and appends the outcome to the ledger as a new execution version.
//
// Executions for the same request are serialized; different requests run
// concurrently.
type Engine struct {
	executor   *StepExecutor
	checkpoint *CheckpointService
	ledger     *Ledger
	queue      messagequeue.Queue
	hub        broadcast.Broadcaster
	metrics    *strideotel.Metrics

	mu    sync.Mutex
	locks map[string]*requestLock
}

// requestLock serializes executions for one request. The refs count lets
// the engine drop the map entry once the last holder releases it, so the
// map does not grow with every request ID ever seen.
type requestLock struct {
	mu   sync.Mutex
	refs int
}

// NewEngine creates an Engine. queue and metrics may be nil; hub may be
// broadcast.Noop when no event surface is wired.
func NewEngine(executor *StepExecutor, checkpoint *CheckpointService, ledger *Ledger, queue messagequeue.Queue, hub broadcast.Broadcaster, metrics *strideotel.Metrics) *Engine {
	if hub == nil {
		hub = broadcast.Noop{}
	}
	return &Engine{
		executor:   executor,
		checkpoint: checkpoint,
		ledger:     ledger,
		queue:      queue,
		hub:        hub,
		metrics:    metrics,
		locks:      make(map[string]*requestLock),
	}
}

// Execute runs the latest plan version for the request from scratch and
// returns the recorded result.
func (e *Engine) Execute(ctx context.Context, requestID string) (*execution.PlanResult, error) {
	unlock := e.lock(requestID)
	defer unlock()

	p, err := e.ledger.LatestPlan(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load plan for %s: %w", requestID, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPlan, err)
	}

	result := e.run(ctx, p, nil, nil)

	if _, err := e.ledger.SaveExecution(ctx, result); err != nil {
		return nil, fmt.Errorf("record execution for %s: %w", requestID, err)
	}
	e.publishFinal(ctx, result)
	return result, nil
}

// ResumeWithFeedback re-runs the latest plan after the operator answered
// outstanding follow-up questions. Steps that already succeeded are seeded
// from the prior execution and never re-invoked; answers are keyed by
// question ID.
func (e *Engine) ResumeWithFeedback(ctx context.Context, requestID string, answers map[string]string) (*execution.PlanResult, error) {
	unlock := e.lock(requestID)
	defer unlock()

	p, err := e.ledger.LatestPlan(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load plan for %s: %w", requestID, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPlan, err)
	}

	last, err := e.ledger.LatestExecution(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load prior execution for %s: %w", requestID, err)
	}
	if !last.RequiresUserFeedback {
		return nil, fmt.Errorf("request %s has no outstanding questions: %w", requestID, domain.ErrNotFound)
	}

	prior := make(map[string]execution.StepResult)
	for _, sr := range last.Steps {
		if sr.Success {
			prior[sr.StepID] = sr
		}
	}

	answered := make(map[string]string)
	var carried []execution.FollowUpQuestion
	for _, q := range last.QuestionsAsked {
		answer, ok := answers[q.ID]
		if !ok {
			continue
		}
		// A replan may have dropped the step the question was about.
		if p.ByID(q.Context.StepID) == nil {
			continue
		}
		q.UserAnswer = answer
		answered[q.Context.StepID] = answer
		carried = append(carried, q)
	}

	result := e.run(ctx, p, prior, answered)
	result.QuestionsAsked = append(carried, result.QuestionsAsked...)

	if _, err := e.ledger.SaveExecution(ctx, result); err != nil {
		return nil, fmt.Errorf("record execution for %s: %w", requestID, err)
	}
	e.publishFinal(ctx, result)
	return result, nil
}

// run is the serial traversal. prior seeds already-succeeded results by
// step ID; answered maps step IDs to operator answers from a previous
// execution version.
func (e *Engine) run(ctx context.Context, p *plan.Plan, prior map[string]execution.StepResult, answered map[string]string) *execution.PlanResult {
	ctx, span := strideotel.StartPlanSpan(ctx, p.RequestID, p.ID, p.Version)
	defer span.End()

	start := time.Now()
	if e.metrics != nil {
		e.metrics.PlansStarted.Add(ctx, 1)
	}
	result := &execution.PlanResult{
		RequestID:   p.RequestID,
		PlanID:      p.ID,
		PlanVersion: p.Version,
		StartedAt:   start.UTC(),
	}

	e.publish(ctx, messagequeue.SubjectPlanStarted, map[string]any{
		"request_id": p.RequestID,
		"plan_id":    p.ID,
		"version":    p.Version,
		"steps":      len(p.Steps),
	})

	steps := plan.Ordered(p.Steps)
	for i := range steps {
		steps[i].Status = plan.StepStatusPending
	}

	// byOrder lets resolution reach prior results through step numbers.
	byOrder := make(map[int]execution.StepResult)

	halted := false
	for i := range steps {
		step := &steps[i]

		if halted {
			e.skip(ctx, result, step, "execution halted before this step ran")
			byOrder[step.Order] = result.Steps[len(result.Steps)-1]
			continue
		}

		if sr, ok := prior[step.ID]; ok {
			step.Status = plan.StepStatusCompleted
			result.Steps = append(result.Steps, sr)
			byOrder[step.Order] = sr
			continue
		}

		if blocked := plan.BlockedBy(step, steps); len(blocked) > 0 {
			e.skip(ctx, result, step, fmt.Sprintf("dependency unsatisfied: %v", blocked))
			byOrder[step.Order] = result.Steps[len(result.Steps)-1]
			continue
		}

		// A valid DAG may still order a dependency after its dependent;
		// the serial traversal cannot run such a step.
		if !plan.Ready(step, steps) {
			e.skip(ctx, result, step, "dependency not yet completed")
			byOrder[step.Order] = result.Steps[len(result.Steps)-1]
			continue
		}

		step.Status = plan.StepStatusInProgress
		e.publish(ctx, messagequeue.SubjectStepStarted, stepEvent(p, step, ""))

		_, questionAnswered := answered[step.ID]
		outcome := e.executor.Run(ctx, *step, byOrder, questionAnswered)

		if outcome.Update != nil {
			result.PlanUpdates = append(result.PlanUpdates, *outcome.Update)
		}
		if outcome.Adaptation != nil {
			result.Adaptations = append(result.Adaptations, *outcome.Adaptation)
			e.publish(ctx, messagequeue.SubjectStepAdapted, stepEvent(p, step, outcome.Adaptation.AdaptedAction))
		}

		result.Steps = append(result.Steps, outcome.Result)
		byOrder[step.Order] = outcome.Result

		switch outcome.State {
		case StepStateSucceeded:
			step.Status = plan.StepStatusCompleted
			e.publish(ctx, messagequeue.SubjectStepCompleted, stepEvent(p, step, ""))

		case StepStateAwaitingQuestion:
			step.Status = plan.StepStatusFailed
			result.RequiresUserFeedback = true
			if outcome.Question != nil {
				result.QuestionsAsked = append(result.QuestionsAsked, *outcome.Question)
				e.publish(ctx, messagequeue.SubjectQuestionAsked, map[string]any{
					"request_id":  p.RequestID,
					"question_id": outcome.Question.ID,
					"step_id":     step.ID,
					"priority":    outcome.Question.Priority,
				})
			}
			result.Errors = append(result.Errors, fmt.Sprintf("step %d: %s", step.Order, outcome.Result.Error))
			e.publish(ctx, messagequeue.SubjectStepFailed, stepEvent(p, step, outcome.Result.Error))
			halted = true

		default: // StepStateFailed
			step.Status = plan.StepStatusFailed
			result.Errors = append(result.Errors, fmt.Sprintf("step %d: %s", step.Order, outcome.Result.Error))
			e.publish(ctx, messagequeue.SubjectStepFailed, stepEvent(p, step, outcome.Result.Error))
		}

		if halted || i == len(steps)-1 {
			continue
		}
		switch e.checkpoint.Evaluate(ctx, p, result.Steps) {
		case oracle.VerdictReplanRecommended:
			result.ReplanRecommended = true
			halted = true
		case oracle.VerdictAbortRecommended:
			halted = true
		}
	}

	result.OverallSuccess = allSucceeded(result.Steps) && !result.RequiresUserFeedback && !result.ReplanRecommended
	result.TotalDurationMS = time.Since(start).Milliseconds()

	if e.metrics != nil {
		if result.OverallSuccess {
			e.metrics.PlansCompleted.Add(ctx, 1)
		} else {
			e.metrics.PlansFailed.Add(ctx, 1)
		}
		e.metrics.PlanDuration.Record(ctx, time.Since(start).Seconds())
	}

	return result
}

func (e *Engine) skip(ctx context.Context, result *execution.PlanResult, step *plan.Step, reason string) {
	step.Status = plan.StepStatusSkipped
	result.Steps = append(result.Steps, execution.StepResult{
		StepID:         step.ID,
		StepOrder:      step.Order,
		Success:        false,
		Error:          fmt.Sprintf("skipped: %s", reason),
		ToolCalled:     step.Action,
		ParametersUsed: step.Parameters,
		Timestamp:      time.Now().UTC(),
	})
	e.publish(ctx, messagequeue.SubjectStepSkipped, map[string]any{
		"step_id": step.ID,
		"order":   step.Order,
		"reason":  reason,
	})
}

func (e *Engine) publishFinal(ctx context.Context, result *execution.PlanResult) {
	subject := messagequeue.SubjectPlanCompleted
	switch {
	case result.RequiresUserFeedback:
		subject = messagequeue.SubjectPlanAwaiting
	case !result.OverallSuccess:
		subject = messagequeue.SubjectPlanFailed
	}
	e.publish(ctx, subject, map[string]any{
		"request_id":        result.RequestID,
		"plan_id":           result.PlanID,
		"execution_version": result.ExecutionVersion,
		"overall_success":   result.OverallSuccess,
		"duration_ms":       result.TotalDurationMS,
	})
}

// publish fans one lifecycle event out to the queue and the live hub.
// Delivery is best effort; execution never fails because an observer is
// unreachable.
func (e *Engine) publish(ctx context.Context, subject string, payload any) {
	e.hub.BroadcastEvent(ctx, subject, payload)
	if e.queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("event payload marshal failed", "subject", subject, "error", err)
		return
	}
	if err := e.queue.Publish(ctx, subject, data); err != nil {
		slog.Warn("event publish failed", "subject", subject, "error", err)
	}
}

func (e *Engine) lock(requestID string) func() {
	e.mu.Lock()
	l, ok := e.locks[requestID]
	if !ok {
		l = &requestLock{}
		e.locks[requestID] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		e.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, requestID)
		}
		e.mu.Unlock()
	}
}

func stepEvent(p *plan.Plan, step *plan.Step, detail string) map[string]any {
	ev := map[string]any{
		"request_id": p.RequestID,
		"plan_id":    p.ID,
		"step_id":    step.ID,
		"order":      step.Order,
		"action":     step.Action,
	}
	if detail != "" {
		ev["detail"] = detail
	}
	return ev
}

func allSucceeded(steps []execution.StepResult) bool {
	for _, sr := range steps {
		if !sr.Success {
			return false
		}
	}
	return true
}
