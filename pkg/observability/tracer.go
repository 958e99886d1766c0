// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Tracer wraps the OpenTelemetry tracer with GenAI span helpers.
// A nil *Tracer is valid and produces no-op spans.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	system   string
}

// TracerOption configures the Tracer.
type TracerOption func(*Tracer)

// WithSystem sets the gen_ai.system value recorded on chat spans.
func WithSystem(system string) TracerOption {
	return func(t *Tracer) {
		t.system = system
	}
}

// NewTracer creates a Tracer from configuration and installs it as the
// global tracer provider together with the W3C trace-context and baggage
// propagators. It returns nil when tracing is disabled.
func NewTracer(ctx context.Context, cfg *TracingConfig, opts ...TracerOption) (*Tracer, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	cfg.SetDefaults()

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(provider)
	InstallPropagator()

	t := &Tracer{
		provider: provider,
		tracer:   provider.Tracer(InstrumentID),
		system:   SystemOpenAI,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// NewTracerFromProvider wraps an existing provider. The caller keeps
// ownership of the provider's lifecycle.
func NewTracerFromProvider(tp trace.TracerProvider, opts ...TracerOption) *Tracer {
	t := &Tracer{
		tracer: tp.Tracer(InstrumentID),
		system: SystemOpenAI,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// InstallPropagator sets the global propagator to W3C trace-context plus
// baggage.
func InstallPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// createExporter creates the appropriate span exporter based on configuration.
func createExporter(ctx context.Context, cfg *TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "otlp":
		return createOTLPExporter(ctx, cfg)
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", cfg.Exporter)
	}
}

// createOTLPExporter creates an OTLP gRPC exporter.
func createOTLPExporter(ctx context.Context, cfg *TracingConfig) (*otlptrace.Exporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(cfg.Timeout),
	}

	if cfg.IsInsecure() {
		opts = append(opts, otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	return otlptracegrpc.New(ctx, opts...)
}

// Start begins a new span with the given name.
func (t *Tracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return ctx, noopSpan()
	}
	return t.tracer.Start(ctx, spanName, opts...)
}

// StartTurn begins the span enclosing one conversational turn.
func (t *Tracer) StartTurn(ctx context.Context, agentName, conversationID string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanTurn,
		trace.WithAttributes(
			attribute.String(AttrAgentName, agentName),
			attribute.String(AttrGenAIConversationID, conversationID),
		),
	)
}

// StartChat begins a span for one model call.
func (t *Tracer) StartChat(ctx context.Context, model string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrGenAIOperationName, OpChat),
		attribute.String(AttrGenAISystem, t.systemName()),
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrGenAIRequestModel, model))
	}
	return t.Start(ctx, SpanChat, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

// StartToolRound begins the span covering every tool call of one round.
// Outbound requests made with the returned context are its children.
func (t *Tracer) StartToolRound(ctx context.Context, toolNames []string) (context.Context, trace.Span) {
	return t.Start(ctx, ToolSpanName(toolNames),
		trace.WithAttributes(
			attribute.String(AttrGenAIOperationName, OpToolCall),
			attribute.String(AttrGenAIToolName, strings.Join(toolNames, ", ")),
		),
	)
}

// ToolSpanName returns "gen_ai.tool (a, b)" for the given tools, or
// "gen_ai.tool" when there are none.
func ToolSpanName(toolNames []string) string {
	if len(toolNames) == 0 {
		return SpanTool
	}
	return fmt.Sprintf("%s (%s)", SpanTool, strings.Join(toolNames, ", "))
}

// AddUsage adds token usage information to a span.
func (t *Tracer) AddUsage(span trace.Span, inputTokens, outputTokens int) {
	if span == nil {
		return
	}
	span.SetAttributes(
		attribute.Int(AttrGenAIUsageInputTokens, inputTokens),
		attribute.Int(AttrGenAIUsageOutputTokens, outputTokens),
	)
}

// AddFinishReason adds the finish reason to a span.
func (t *Tracer) AddFinishReason(span trace.Span, reason string) {
	if span == nil || reason == "" {
		return
	}
	span.SetAttributes(attribute.String(AttrGenAIResponseFinishReason, reason))
}

// RecordError records an error on a span and marks it failed.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(
		attribute.String(AttrErrorType, fmt.Sprintf("%T", err)),
		attribute.String(AttrErrorMessage, err.Error()),
	)
}

// Shutdown flushes and stops the provider created by NewTracer.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

func (t *Tracer) systemName() string {
	if t == nil || t.system == "" {
		return SystemOpenAI
	}
	return t.system
}

// noopSpan returns a span that records nothing.
func noopSpan() trace.Span {
	_, span := noop.NewTracerProvider().Tracer("noop").Start(context.Background(), "noop")
	return span
}
