package service

import "github.com/stride-ai/stride/internal/domain/execution"

// RecoveryAction is the strategist's verdict for a failed step.
type RecoveryAction string

const (
	// ActionRetry re-invokes the tool unchanged.
	ActionRetry RecoveryAction = "retry"
	// ActionAdapt asks the oracle for a replacement action/parameters.
	ActionAdapt RecoveryAction = "adapt"
	// ActionAsk synthesizes a follow-up question for the operator.
	ActionAsk RecoveryAction = "ask"
	// ActionAbort gives up on the step with no further recovery.
	ActionAbort RecoveryAction = "abort"
)

// RecoveryInput is everything the decision depends on. Keeping the
// decision a pure function of this struct makes the state machine
// auditable and testable without running the oracle.
type RecoveryInput struct {
	Kind                execution.FailureKind
	Retries             int // retries already consumed for this step
	MaxRetries          int
	AdaptationAttempted bool
	MaxAdaptations      int
	QuestionAnswered    bool // a question about this exact failure was already asked and answered
}

// DecideRecovery maps a failure category and the step's recovery history to
// exactly one action.
//
// If the operator already answered a question about this exact failure and
// the step failed again, the answer itself was invalid: no retry,
// adaptation, or further question can plausibly help, so the step aborts.
func DecideRecovery(in RecoveryInput) RecoveryAction {
	if in.QuestionAnswered {
		return ActionAbort
	}

	canAdapt := !in.AdaptationAttempted && in.MaxAdaptations > 0

	switch in.Kind {
	case execution.FailureTransient:
		if in.Retries < in.MaxRetries {
			return ActionRetry
		}
		return ActionAsk

	case execution.FailureInvalidParameter:
		if canAdapt {
			return ActionAdapt
		}
		return ActionAsk

	case execution.FailureToolNotApplicable:
		if canAdapt {
			return ActionAdapt
		}
		return ActionAsk

	case execution.FailureExtractionImpossible:
		// Retrying extraction against the same data cannot succeed.
		return ActionAsk

	default: // FailureUnknown and anything unforeseen
		if in.Retries < 1 && in.MaxRetries > 0 {
			return ActionRetry
		}
		return ActionAsk
	}
}
