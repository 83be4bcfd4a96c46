package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "stride"

// StartPlanSpan starts a span covering one plan execution.
func StartPlanSpan(ctx context.Context, requestID, planID string, planVersion int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "plan.execute",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("plan.id", planID),
			attribute.Int("plan.version", planVersion),
		),
	)
}

// StartStepSpan starts a span covering one step's lifecycle.
func StartStepSpan(ctx context.Context, stepID, action string, order int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "step.execute",
		trace.WithAttributes(
			attribute.String("step.id", stepID),
			attribute.String("step.action", action),
			attribute.Int("step.order", order),
		),
	)
}

// StartToolCallSpan starts a span for one tool invocation within a step.
func StartToolCallSpan(ctx context.Context, action string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("toolcall.action", action),
		),
	)
}

// StartOracleSpan starts a span for one reasoning oracle call.
func StartOracleSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "oracle."+operation)
}
