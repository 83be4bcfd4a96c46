package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/stride-ai/stride/internal/domain/execution"
	"github.com/stride-ai/stride/internal/domain/plan"
	"github.com/stride-ai/stride/internal/domain/toolresult"
	"github.com/stride-ai/stride/internal/port/oracle"
)

// Built-in placeholder grammar. A parameter value is a candidate
// placeholder if it carries an extract-intent token together with a step
// reference, or reads "from step N". Separators between tokens may be
// underscore, space, or hyphen. The grammar is heuristic: it can both
// over-match literal strings and under-match novel phrasings, which is why
// extra patterns are configurable rather than hard-coded.
// RE2's \b treats underscore as a word character, so explicit boundary
// classes are used instead to let "_" separate tokens.
var (
	extractTokenPattern = regexp.MustCompile(`(?i)(?:^|[^0-9a-z])extract(?:[^0-9a-z]|$)`)
	stepRefPattern      = regexp.MustCompile(`(?i)(?:^|[^0-9a-z])step[_\s-]*(\d+)(?:[^0-9a-z]|$)`)
	fromStepPattern     = regexp.MustCompile(`(?i)(?:^|[^0-9a-z])from[_\s-]+step[_\s-]*(\d+)(?:[^0-9a-z]|$)`)
)

// ResolveOutcome is what parameter resolution produced for one step.
// Unresolved=true means at least one placeholder could not be resolved;
// the step executor treats that the same as a tool failure of Kind.
type ResolveOutcome struct {
	Parameters map[string]any
	Update     *execution.PlanUpdate
	Unresolved bool
	Kind       execution.FailureKind
	Reason     string
}

// ParameterResolver substitutes placeholder parameter values with values
// derived from prior step results, consulting the reasoning oracle for the
// semantic extraction itself.
type ParameterResolver struct {
	oracle        oracle.Oracle
	extra         []*regexp.Regexp
	minConfidence float64
	timeout       time.Duration
}

// NewParameterResolver creates a resolver. extraPatterns are appended to
// the built-in grammar; each must capture the referenced step number in
// its first capture group. Invalid patterns are skipped with a warning.
func NewParameterResolver(o oracle.Oracle, extraPatterns []string, minConfidence float64, timeout time.Duration) *ParameterResolver {
	r := &ParameterResolver{
		oracle:        o,
		minConfidence: minConfidence,
		timeout:       timeout,
	}
	for _, p := range extraPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			slog.Warn("skipping invalid placeholder pattern", "pattern", p, "error", err)
			continue
		}
		r.extra = append(r.extra, re)
	}
	return r
}

// placeholderRef returns the referenced 1-based step order if the value is
// a candidate placeholder, and ok=false otherwise.
func (r *ParameterResolver) placeholderRef(value string) (int, bool) {
	if m := fromStepPattern.FindStringSubmatch(value); m != nil {
		return atoiRef(m[1])
	}
	if extractTokenPattern.MatchString(value) {
		if m := stepRefPattern.FindStringSubmatch(value); m != nil {
			return atoiRef(m[1])
		}
	}
	for _, re := range r.extra {
		if m := re.FindStringSubmatch(value); m != nil && len(m) > 1 {
			return atoiRef(m[1])
		}
	}
	return 0, false
}

func atoiRef(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Resolve inspects the step's declared parameters, substitutes resolved
// values for placeholders, and emits at most one PlanUpdate when anything
// changed. prior maps 1-based step order to that step's recorded result.
//
// Error-array fast path: if the referenced prior result is itself an
// error-shaped payload, extraction is declared impossible without invoking
// the oracle — retrying extraction against an error payload cannot succeed.
func (r *ParameterResolver) Resolve(ctx context.Context, step *plan.Step, prior map[int]execution.StepResult) (ResolveOutcome, error) {
	resolved := make(map[string]any, len(step.Parameters))
	original := make(map[string]any, len(step.Parameters))
	var reasons []string
	changed := false

	for name, value := range step.Parameters {
		original[name] = value
		resolved[name] = value

		str, isString := value.(string)
		if !isString {
			continue
		}
		ref, ok := r.placeholderRef(str)
		if !ok {
			continue
		}

		priorResult, exists := prior[ref]
		if !exists {
			return ResolveOutcome{
				Unresolved: true,
				Kind:       execution.FailureExtractionImpossible,
				Reason:     fmt.Sprintf("parameter %q references step %d, which has no recorded result", name, ref),
			}, nil
		}

		classified := toolresult.Classify(priorResult.Result)
		if classified.IsError() {
			// Fast fail: never ask the oracle to extract from an error payload.
			return ResolveOutcome{
				Unresolved: true,
				Kind:       execution.FailureExtractionImpossible,
				Reason:     fmt.Sprintf("parameter %q references step %d, whose result is an error: %s", name, ref, classified.ErrorText()),
			}, nil
		}

		intent := fmt.Sprintf("parameter %q for action %q (step: %s)", name, step.Action, step.Description)
		octx, cancel := context.WithTimeout(ctx, r.timeout)
		ext, err := r.oracle.ExtractParameter(octx, priorResult.Result, intent)
		cancel()
		if err != nil {
			return ResolveOutcome{}, fmt.Errorf("extract parameter %q: %w", name, err)
		}
		if ext.Unresolved || ext.Confidence < r.minConfidence {
			return ResolveOutcome{
				Unresolved: true,
				Kind:       execution.FailureExtractionImpossible,
				Reason:     fmt.Sprintf("oracle could not resolve parameter %q (confidence %.2f): %s", name, ext.Confidence, ext.Reason),
			}, nil
		}

		resolved[name] = ext.Value
		changed = true
		if ext.Reason != "" {
			reasons = append(reasons, fmt.Sprintf("%s: %s", name, ext.Reason))
		}
	}

	out := ResolveOutcome{Parameters: resolved}
	if changed {
		out.Update = &execution.PlanUpdate{
			StepID:             step.ID,
			StepOrder:          step.Order,
			OriginalParameters: original,
			UpdatedParameters:  resolved,
			Reason:             joinReasons(reasons),
			Timestamp:          time.Now().UTC(),
		}
	}
	return out, nil
}

func joinReasons(reasons []string) string {
	if len(reasons) == 0 {
		return "resolved placeholder parameters from prior step results"
	}
	out := reasons[0]
	for _, r := range reasons[1:] {
		out += "; " + r
	}
	return out
}
