package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	strideotel "github.com/stride-ai/stride/internal/adapter/otel"
	"github.com/stride-ai/stride/internal/config"
	"github.com/stride-ai/stride/internal/domain/execution"
	"github.com/stride-ai/stride/internal/domain/plan"
	"github.com/stride-ai/stride/internal/domain/toolresult"
	"github.com/stride-ai/stride/internal/port/oracle"
	"github.com/stride-ai/stride/internal/port/toolrunner"
)

// StepState is a state of the step execution machine.
type StepState string

const (
	StepStatePending             StepState = "pending"
	StepStateResolvingParameters StepState = "resolving_parameters"
	StepStateInvokingTool        StepState = "invoking_tool"
	StepStateClassifyingFailure  StepState = "classifying_failure"
	StepStateRecovering          StepState = "recovering"
	StepStateSucceeded           StepState = "succeeded"
	StepStateFailed              StepState = "failed"
	StepStateAwaitingQuestion    StepState = "awaiting_question"
)

// StepOutcome is everything one step execution produced. Exactly one of
// the terminal states is set; Update/Adaptation/Question are present only
// when the corresponding record was emitted.
type StepOutcome struct {
	State      StepState
	Result     execution.StepResult
	Update     *execution.PlanUpdate
	Adaptation *execution.Adaptation
	Question   *execution.FollowUpQuestion
}

// StepExecutor owns the lifecycle of a single step: resolve parameters,
// invoke the tool, classify the outcome, recover if needed.
type StepExecutor struct {
	tools    toolrunner.Runner
	oracle   oracle.Oracle
	resolver *ParameterResolver
	cfg      config.Engine
	metrics  *strideotel.Metrics
}

// NewStepExecutor creates a StepExecutor. metrics may be nil.
func NewStepExecutor(tools toolrunner.Runner, o oracle.Oracle, resolver *ParameterResolver, cfg config.Engine, metrics *strideotel.Metrics) *StepExecutor {
	return &StepExecutor{tools: tools, oracle: o, resolver: resolver, cfg: cfg, metrics: metrics}
}

// Run drives one step to a terminal state. prior maps 1-based step order
// to already-recorded results; questionAnswered reports whether the
// operator already answered a question about this step's failure in an
// earlier execution version.
//
// Side effects are one tool invocation per invoking_tool transition and
// zero or more oracle calls during resolution/adaptation. Idempotency of
// the tool itself is the tool's responsibility.
func (e *StepExecutor) Run(ctx context.Context, step plan.Step, prior map[int]execution.StepResult, questionAnswered bool) StepOutcome {
	ctx, span := strideotel.StartStepSpan(ctx, step.ID, step.Action, step.Order)
	defer span.End()

	start := time.Now()

	action := step.Action
	params := step.Parameters
	retries := 0
	adapted := false

	out := StepOutcome{State: StepStatePending}

	var (
		failKind execution.FailureKind
		failText string
		// failedResolving records which phase produced the current failure
		// so a retry re-enters that phase. A step must never reach the tool
		// with an unresolved placeholder.
		failedResolving bool
	)

	state := StepStateResolvingParameters
	for {
		switch state {
		case StepStateResolvingParameters:
			resolved, err := e.resolver.Resolve(ctx, &step, prior)
			if err != nil {
				// An oracle fault during resolution is classified exactly
				// like a tool failure.
				failKind = ClassifyError(err)
				failText = err.Error()
				failedResolving = true
				state = StepStateClassifyingFailure
				continue
			}
			if resolved.Unresolved {
				failKind = resolved.Kind
				failText = resolved.Reason
				failedResolving = true
				state = StepStateClassifyingFailure
				continue
			}
			params = resolved.Parameters
			if resolved.Update != nil && out.Update == nil {
				out.Update = resolved.Update
			}
			failedResolving = false
			state = StepStateInvokingTool

		case StepStateInvokingTool:
			tctx, cancel := context.WithTimeout(ctx, e.cfg.ToolTimeout)
			tctx, toolSpan := strideotel.StartToolCallSpan(tctx, action)
			raw, err := e.tools.Invoke(tctx, action, params)
			toolSpan.End()
			cancel()
			e.count(ctx, func(m *strideotel.Metrics) metric.Int64Counter { return m.ToolCalls })
			if err != nil {
				failKind = ClassifyError(err)
				failText = err.Error()
				failedResolving = false
				state = StepStateClassifyingFailure
				continue
			}
			res := toolresult.Classify(raw)
			if res.IsError() {
				failKind = ClassifyResult(res)
				failText = res.ErrorText()
				failedResolving = false
				state = StepStateClassifyingFailure
				continue
			}
			out.State = StepStateSucceeded
			out.Result = e.record(ctx, step, action, params, retries, adapted, start, execution.StepResult{
				Success: true,
				Result:  res.Payload,
			})
			return out

		case StepStateClassifyingFailure:
			slog.Debug("step failure classified",
				"step_id", step.ID,
				"kind", failKind,
				"error", failText,
			)
			state = StepStateRecovering

		case StepStateRecovering:
			decision := DecideRecovery(RecoveryInput{
				Kind:                failKind,
				Retries:             retries,
				MaxRetries:          e.cfg.MaxRetries,
				AdaptationAttempted: adapted,
				MaxAdaptations:      e.cfg.MaxAdaptations,
				QuestionAnswered:    questionAnswered,
			})

			switch decision {
			case ActionRetry:
				retries++
				e.count(ctx, func(m *strideotel.Metrics) metric.Int64Counter { return m.StepRetries })
				slog.Info("retrying step", "step_id", step.ID, "retry", retries, "kind", failKind)
				if failedResolving {
					state = StepStateResolvingParameters
				} else {
					state = StepStateInvokingTool
				}

			case ActionAdapt:
				proposal, ok := e.adapt(ctx, step, failText)
				if !ok {
					e.count(ctx, func(m *strideotel.Metrics) metric.Int64Counter { return m.QuestionsAsked })
					out.Question = e.question(step, action, params, failKind, failText)
					out.State = StepStateAwaitingQuestion
					out.Result = e.record(ctx, step, action, params, retries, adapted, start, execution.StepResult{
						Error:     failText,
						ErrorKind: failKind,
					})
					return out
				}
				adapted = true
				e.count(ctx, func(m *strideotel.Metrics) metric.Int64Counter { return m.Adaptations })
				out.Adaptation = &execution.Adaptation{
					StepID:         step.ID,
					OriginalAction: step.Action,
					AdaptedAction:  proposal.Action,
					Reason:         proposal.Reason,
					Timestamp:      time.Now().UTC(),
				}
				action = proposal.Action
				if len(proposal.Parameters) > 0 {
					params = proposal.Parameters
				}
				slog.Info("step adapted",
					"step_id", step.ID,
					"original_action", step.Action,
					"adapted_action", action,
				)
				state = StepStateInvokingTool

			case ActionAsk:
				e.count(ctx, func(m *strideotel.Metrics) metric.Int64Counter { return m.QuestionsAsked })
				out.Question = e.question(step, action, params, failKind, failText)
				out.State = StepStateAwaitingQuestion
				out.Result = e.record(ctx, step, action, params, retries, adapted, start, execution.StepResult{
					Error:     failText,
					ErrorKind: failKind,
				})
				return out

			default: // ActionAbort
				out.State = StepStateFailed
				out.Result = e.record(ctx, step, action, params, retries, adapted, start, execution.StepResult{
					Error:     failText,
					ErrorKind: failKind,
				})
				return out
			}
		}
	}
}

// adapt asks the oracle for a replacement action. ok=false means no viable
// proposal was produced and the caller should fall back to asking.
func (e *StepExecutor) adapt(ctx context.Context, step plan.Step, failureContext string) (oracle.Proposal, bool) {
	octx, cancel := context.WithTimeout(ctx, e.cfg.OracleTimeout)
	defer cancel()

	proposal, err := e.oracle.ProposeAdaptation(octx, step, failureContext)
	if err != nil {
		slog.Warn("adaptation proposal failed", "step_id", step.ID, "error", err)
		return oracle.Proposal{}, false
	}
	if proposal.None || proposal.Action == "" {
		return oracle.Proposal{}, false
	}
	return proposal, true
}

// question synthesizes a follow-up question with enough context that a
// human can answer without re-reading logs.
func (e *StepExecutor) question(step plan.Step, action string, params map[string]any, kind execution.FailureKind, failText string) *execution.FollowUpQuestion {
	return &execution.FollowUpQuestion{
		ID: uuid.NewString(),
		Question: fmt.Sprintf("Step %d (%s) failed and could not be recovered automatically: %s. How should this step proceed?",
			step.Order, step.Description, failText),
		Category: string(kind),
		Priority: questionPriority(kind),
		Context: execution.QuestionContext{
			WhatFailed: failText,
			StepID:     step.ID,
			Action:     action,
			Parameters: params,
			ErrorKind:  kind,
		},
	}
}

func questionPriority(kind execution.FailureKind) execution.Priority {
	switch kind {
	case execution.FailureExtractionImpossible, execution.FailureToolNotApplicable:
		return execution.PriorityHigh
	case execution.FailureInvalidParameter, execution.FailureUnknown:
		return execution.PriorityMedium
	default:
		return execution.PriorityLow
	}
}

// record fills the bookkeeping fields shared by every terminal outcome.
func (e *StepExecutor) record(ctx context.Context, step plan.Step, action string, params map[string]any, retries int, adapted bool, start time.Time, base execution.StepResult) execution.StepResult {
	base.StepID = step.ID
	base.StepOrder = step.Order
	base.ToolCalled = action
	base.ParametersUsed = params
	base.Retries = retries
	base.AdaptationAttempted = adapted
	base.DurationMS = time.Since(start).Milliseconds()
	base.Timestamp = start.UTC()

	if e.metrics != nil {
		e.metrics.StepsExecuted.Add(ctx, 1)
		e.metrics.StepDuration.Record(ctx, time.Since(start).Seconds())
	}
	return base
}

func (e *StepExecutor) count(ctx context.Context, pick func(*strideotel.Metrics) metric.Int64Counter) {
	if e.metrics == nil {
		return
	}
	pick(e.metrics).Add(ctx, 1)
}
