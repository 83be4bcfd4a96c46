package litellm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stride-ai/stride/internal/domain/execution"
	"github.com/stride-ai/stride/internal/domain/plan"
	"github.com/stride-ai/stride/internal/port/oracle"
)

const extractSystemPrompt = `You extract a single parameter value from the raw output of a previous step.
Respond with JSON only: {"value": <extracted value>, "confidence": <0.0-1.0>, "reason": "<one sentence>", "unresolved": <bool>}.
Set unresolved=true when the output does not contain the requested information. Never invent a value.`

const adaptSystemPrompt = `A step in an execution plan failed. Propose one alternative tool call that achieves the same intent.
Respond with JSON only: {"action": "<tool name>", "parameters": {...}, "reason": "<one sentence>", "none": <bool>}.
Set none=true when no alternative tool can achieve the intent.`

const checkpointSystemPrompt = `You judge whether the remaining steps of an execution plan are still worth running given the results so far.
Respond with JSON only: {"verdict": "continue" | "replan_recommended" | "abort_recommended", "reason": "<one sentence>"}.
Recommend replan when completed steps invalidated the remaining plan. Recommend abort only when the goal is clearly unreachable.`

// ExtractParameter implements oracle.Oracle.
func (c *Client) ExtractParameter(ctx context.Context, rawPriorResult any, parameterIntent string) (oracle.Extraction, error) {
	prior, err := json.Marshal(rawPriorResult)
	if err != nil {
		prior = []byte(fmt.Sprintf("%v", rawPriorResult))
	}

	user := fmt.Sprintf("Previous step output:\n%s\n\nExtract: %s", prior, parameterIntent)
	content, err := c.ChatCompletion(ctx, extractSystemPrompt, user)
	if err != nil {
		return oracle.Extraction{}, fmt.Errorf("extract parameter: %w", err)
	}

	var out oracle.Extraction
	if err := json.Unmarshal([]byte(stripFences(content)), &out); err != nil {
		// An unparseable answer is an unresolved extraction, not a crash.
		return oracle.Extraction{Unresolved: true, Reason: "oracle returned unparseable output"}, nil
	}
	out.Confidence = clamp01(out.Confidence)
	if out.Value == nil {
		out.Unresolved = true
	}
	return out, nil
}

// ProposeAdaptation implements oracle.Oracle.
func (c *Client) ProposeAdaptation(ctx context.Context, failedStep plan.Step, failureContext string) (oracle.Proposal, error) {
	params, err := json.Marshal(failedStep.Parameters)
	if err != nil {
		params = []byte("{}")
	}

	user := fmt.Sprintf("Failed step: %s\nAction: %s\nParameters: %s\nFailure: %s",
		failedStep.Description, failedStep.Action, params, failureContext)
	content, err := c.ChatCompletion(ctx, adaptSystemPrompt, user)
	if err != nil {
		return oracle.Proposal{}, fmt.Errorf("propose adaptation: %w", err)
	}

	var out oracle.Proposal
	if err := json.Unmarshal([]byte(stripFences(content)), &out); err != nil {
		return oracle.Proposal{None: true, Reason: "oracle returned unparseable output"}, nil
	}
	if strings.TrimSpace(out.Action) == "" {
		out.None = true
	}
	return out, nil
}

// Checkpoint implements oracle.Oracle.
func (c *Client) Checkpoint(ctx context.Context, p *plan.Plan, resultsSoFar []execution.StepResult, goal string) (oracle.Verdict, error) {
	type briefResult struct {
		Order   int    `json:"order"`
		Action  string `json:"action"`
		Success bool   `json:"success"`
		Error   string `json:"error,omitempty"`
	}
	briefs := make([]briefResult, 0, len(resultsSoFar))
	done := make(map[string]bool, len(resultsSoFar))
	for _, r := range resultsSoFar {
		briefs = append(briefs, briefResult{Order: r.StepOrder, Action: r.ToolCalled, Success: r.Success, Error: r.Error})
		done[r.StepID] = true
	}

	var remaining []string
	for _, s := range p.Steps {
		if !done[s.ID] {
			remaining = append(remaining, fmt.Sprintf("%d. %s (%s)", s.Order, s.Description, s.Action))
		}
	}

	briefJSON, err := json.Marshal(briefs)
	if err != nil {
		briefJSON = []byte("[]")
	}

	user := fmt.Sprintf("Goal: %s\n\nResults so far:\n%s\n\nRemaining steps:\n%s",
		goal, briefJSON, strings.Join(remaining, "\n"))
	content, err := c.ChatCompletion(ctx, checkpointSystemPrompt, user)
	if err != nil {
		return oracle.VerdictContinue, fmt.Errorf("checkpoint: %w", err)
	}

	var out struct {
		Verdict string `json:"verdict"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &out); err != nil {
		return oracle.VerdictContinue, nil
	}

	switch oracle.Verdict(out.Verdict) {
	case oracle.VerdictReplanRecommended:
		return oracle.VerdictReplanRecommended, nil
	case oracle.VerdictAbortRecommended:
		return oracle.VerdictAbortRecommended, nil
	default:
		return oracle.VerdictContinue, nil
	}
}

// stripFences removes a markdown code fence wrapper some models emit even
// in JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
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
