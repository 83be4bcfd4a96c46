package service

import (
	"context"
	"errors"
	"strings"

	"github.com/stride-ai/stride/internal/domain/execution"
	"github.com/stride-ai/stride/internal/domain/toolresult"
)

// transientMarkers are error-text fragments that indicate a failure safe
// to retry unchanged.
var transientMarkers = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"temporarily unavailable",
	"service unavailable",
	"too many requests",
	"rate limit",
	"unexpected eof",
	"broken pipe",
	"502",
	"503",
	"504",
}

// invalidParameterMarkers indicate the tool rejected the input shape or value.
var invalidParameterMarkers = []string{
	"invalid parameter",
	"invalid argument",
	"invalid input",
	"missing required",
	"required parameter",
	"bad request",
	"validation failed",
	"must be a",
	"expected type",
	"400",
	"422",
}

// notApplicableMarkers indicate the action itself is wrong for the situation.
var notApplicableMarkers = []string{
	"unknown tool",
	"unknown action",
	"no such tool",
	"tool not found",
	"unsupported action",
	"unsupported operation",
	"not applicable",
	"method not allowed",
	"404",
	"405",
}

// ClassifyError assigns a failure category to a step outcome that surfaced
// as a Go error (transport failure, context deadline, oracle fault).
// Classification is conservative: when nothing matches it returns unknown,
// never a guess, because the category drives an irreversible recovery action.
func ClassifyError(err error) execution.FailureKind {
	if err == nil {
		return execution.FailureUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return execution.FailureTransient
	}
	return classifyText(err.Error())
}

// ClassifyResult assigns a failure category to a tool call that returned
// successfully at the transport level but produced an error-shaped payload.
func ClassifyResult(res toolresult.Result) execution.FailureKind {
	switch res.Kind {
	case toolresult.KindToolError:
		return classifyText(res.Message)
	case toolresult.KindAmbiguousArray:
		return classifyText(res.ErrorText())
	default:
		return execution.FailureUnknown
	}
}

func classifyText(msg string) execution.FailureKind {
	lower := strings.ToLower(msg)
	for _, m := range transientMarkers {
		if strings.Contains(lower, m) {
			return execution.FailureTransient
		}
	}
	for _, m := range invalidParameterMarkers {
		if strings.Contains(lower, m) {
			return execution.FailureInvalidParameter
		}
	}
	for _, m := range notApplicableMarkers {
		if strings.Contains(lower, m) {
			return execution.FailureToolNotApplicable
		}
	}
	return execution.FailureUnknown
}
