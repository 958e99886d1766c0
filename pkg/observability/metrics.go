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
	"net/http"
	"strconv"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Recorder records agent metrics. Implementations must be safe for
// concurrent use.
type Recorder interface {
	RecordTurn(ctx context.Context, agent, outcome string, duration time.Duration)
	RecordModelCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
	RecordToolCall(ctx context.Context, toolName string, duration time.Duration, err error)
	RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration)
}

// Metrics is the Prometheus-backed Recorder. A nil *Metrics records nothing.
type Metrics struct {
	registry *promclient.Registry
	provider *sdkmetric.MeterProvider

	turnDuration metric.Float64Histogram
	turns        metric.Int64Counter

	modelDuration     metric.Float64Histogram
	modelCalls        metric.Int64Counter
	modelErrors       metric.Int64Counter
	modelInputTokens  metric.Int64Counter
	modelOutputTokens metric.Int64Counter

	toolDuration metric.Float64Histogram
	toolCalls    metric.Int64Counter
	toolErrors   metric.Int64Counter

	httpDuration metric.Float64Histogram
	httpRequests metric.Int64Counter
}

var _ Recorder = (*Metrics)(nil)

// NewMetrics creates the metric instruments on a dedicated registry.
// It returns nil when metrics are disabled.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	registry := promclient.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(InstrumentID)

	m := &Metrics{registry: registry, provider: provider}

	if m.turnDuration, err = meter.Float64Histogram(
		"agent_turn_duration_seconds",
		metric.WithDescription("Conversation turn duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create turn duration histogram: %w", err)
	}
	if m.turns, err = meter.Int64Counter(
		"agent_turns_total",
		metric.WithDescription("Total conversation turns by outcome"),
	); err != nil {
		return nil, fmt.Errorf("failed to create turns counter: %w", err)
	}

	if m.modelDuration, err = meter.Float64Histogram(
		"agent_llm_request_duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}
	if m.modelCalls, err = meter.Int64Counter(
		"agent_llm_requests_total",
		metric.WithDescription("Total LLM requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm requests counter: %w", err)
	}
	if m.modelErrors, err = meter.Int64Counter(
		"agent_llm_errors_total",
		metric.WithDescription("Total LLM errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}
	if m.modelInputTokens, err = meter.Int64Counter(
		"agent_llm_tokens_input_total",
		metric.WithDescription("Total input tokens sent to LLM"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm input tokens counter: %w", err)
	}
	if m.modelOutputTokens, err = meter.Int64Counter(
		"agent_llm_tokens_output_total",
		metric.WithDescription("Total output tokens from LLM"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm output tokens counter: %w", err)
	}

	if m.toolDuration, err = meter.Float64Histogram(
		"agent_tool_execution_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}
	if m.toolCalls, err = meter.Int64Counter(
		"agent_tool_calls_total",
		metric.WithDescription("Total tool calls"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool calls counter: %w", err)
	}
	if m.toolErrors, err = meter.Int64Counter(
		"agent_tool_errors_total",
		metric.WithDescription("Total tool errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool errors counter: %w", err)
	}

	if m.httpDuration, err = meter.Float64Histogram(
		"agent_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}
	if m.httpRequests, err = meter.Int64Counter(
		"agent_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	return m, nil
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// RecordTurn implements Recorder.
func (m *Metrics) RecordTurn(ctx context.Context, agent, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("agent", agent),
		attribute.String("outcome", outcome),
	)
	m.turnDuration.Record(ctx, duration.Seconds(), attrs)
	m.turns.Add(ctx, 1, attrs)
}

// RecordModelCall implements Recorder.
func (m *Metrics) RecordModelCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("model", model))
	m.modelDuration.Record(ctx, duration.Seconds(), attrs)
	m.modelCalls.Add(ctx, 1, attrs)
	if err != nil {
		m.modelErrors.Add(ctx, 1, attrs)
		return
	}
	if inputTokens > 0 {
		m.modelInputTokens.Add(ctx, int64(inputTokens), attrs)
	}
	if outputTokens > 0 {
		m.modelOutputTokens.Add(ctx, int64(outputTokens), attrs)
	}
}

// RecordToolCall implements Recorder.
func (m *Metrics) RecordToolCall(ctx context.Context, toolName string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tool", toolName))
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
	m.toolCalls.Add(ctx, 1, attrs)
	if err != nil {
		m.toolErrors.Add(ctx, 1, attrs)
	}
}

// RecordHTTPRequest implements Recorder.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	)
	m.httpDuration.Record(ctx, duration.Seconds(), attrs)
	m.httpRequests.Add(ctx, 1, attrs)
}
