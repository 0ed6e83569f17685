package agent

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/clara/internal/tracing"
)

// emitLLMSpan wraps one provider.Chat call in an "llm.chat" span, recording
// the model, round number and resulting tool-call count as attributes.
func emitLLMSpan(ctx context.Context, model string, round int, fn func(context.Context) (int, error)) error {
	ctx, span := tracing.Tracer().Start(ctx, "llm.chat",
		oteltrace.WithAttributes(tracing.StringAttr("model", model), tracing.IntAttr("round", round)))
	defer span.End()

	toolCalls, err := fn(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(tracing.IntAttr("tool_calls", toolCalls))
	return nil
}

// emitToolSpan wraps one skill execution in a span named after the tool.
func emitToolSpan(ctx context.Context, tool string, fn func(context.Context) string) string {
	ctx, span := tracing.Tracer().Start(ctx, "tool."+tool, oteltrace.WithAttributes(tracing.StringAttr("tool", tool)))
	defer span.End()
	return fn(ctx)
}

// emitAgentSpan wraps one delegated sub-agent run in a span named after the
// delegate, so a trace shows the full recursive fan-out shape.
func emitAgentSpan(ctx context.Context, agentName string, fn func(context.Context) error) error {
	ctx, span := tracing.Tracer().Start(ctx, "agent."+agentName, oteltrace.WithAttributes(tracing.StringAttr("agent", agentName)))
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
