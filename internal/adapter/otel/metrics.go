package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "stride"

// Metrics holds all engine metric instruments.
type Metrics struct {
	PlansStarted   metric.Int64Counter
	PlansCompleted metric.Int64Counter
	PlansFailed    metric.Int64Counter
	StepsExecuted  metric.Int64Counter
	StepRetries    metric.Int64Counter
	Adaptations    metric.Int64Counter
	QuestionsAsked metric.Int64Counter
	ToolCalls      metric.Int64Counter
	PlanDuration   metric.Float64Histogram
	StepDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.PlansStarted, err = meter.Int64Counter("stride.plans.started",
		metric.WithDescription("Number of plan executions started"))
	if err != nil {
		return nil, err
	}

	m.PlansCompleted, err = meter.Int64Counter("stride.plans.completed",
		metric.WithDescription("Number of plan executions completed successfully"))
	if err != nil {
		return nil, err
	}

	m.PlansFailed, err = meter.Int64Counter("stride.plans.failed",
		metric.WithDescription("Number of plan executions that failed or paused"))
	if err != nil {
		return nil, err
	}

	m.StepsExecuted, err = meter.Int64Counter("stride.steps.executed",
		metric.WithDescription("Number of steps driven to a terminal state"))
	if err != nil {
		return nil, err
	}

	m.StepRetries, err = meter.Int64Counter("stride.steps.retries",
		metric.WithDescription("Number of step retries"))
	if err != nil {
		return nil, err
	}

	m.Adaptations, err = meter.Int64Counter("stride.steps.adaptations",
		metric.WithDescription("Number of step adaptations attempted"))
	if err != nil {
		return nil, err
	}

	m.QuestionsAsked, err = meter.Int64Counter("stride.questions.asked",
		metric.WithDescription("Number of follow-up questions synthesized"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("stride.toolcalls",
		metric.WithDescription("Number of tool invocations"))
	if err != nil {
		return nil, err
	}

	m.PlanDuration, err = meter.Float64Histogram("stride.plan.duration_seconds",
		metric.WithDescription("Plan execution duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.StepDuration, err = meter.Float64Histogram("stride.step.duration_seconds",
		metric.WithDescription("Step execution duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
