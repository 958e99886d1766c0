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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/evaline-ju/agent-examples/pkg/observability"
)

const (
	// LegacyAgentCardPath is the pre-0.3 well-known card location.
	LegacyAgentCardPath = "/.well-known/agent.json"

	// DefaultWriteTimeout applies when no turn budget is known.
	DefaultWriteTimeout = 120 * time.Second

	requestIDHeader = "X-Request-ID"
	shutdownTimeout = 5 * time.Second
	writeMargin     = 30 * time.Second
)

// Config configures the HTTP listener.
type Config struct {
	Host string
	Port int

	// PublicURL overrides the URL advertised on the agent card.
	PublicURL string

	// MetricsPath is where Prometheus metrics are served when enabled.
	MetricsPath string

	// WriteTimeout bounds a whole request, including a blocking
	// message/send turn. Zero means DefaultWriteTimeout; negative
	// disables it.
	WriteTimeout time.Duration
}

// WriteTimeoutFor returns a write timeout that outlasts a turn of the given
// budget. A zero budget means turns are unbounded, so the timeout is
// disabled.
func WriteTimeoutFor(turnBudget time.Duration) time.Duration {
	if turnBudget <= 0 {
		return -1
	}
	return max(DefaultWriteTimeout, turnBudget+writeMargin)
}

func (c Config) writeTimeout() time.Duration {
	switch {
	case c.WriteTimeout < 0:
		return 0
	case c.WriteTimeout == 0:
		return DefaultWriteTimeout
	default:
		return c.WriteTimeout
	}
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// CardURL returns the URL advertised on the agent card.
func (c Config) CardURL() string {
	if c.PublicURL != "" {
		return c.PublicURL
	}
	return "http://" + c.Address() + "/"
}

// Server serves one agent over A2A JSON-RPC.
type Server struct {
	cfg       Config
	card      *a2a.AgentCard
	executor  a2asrv.AgentExecutor
	tracer    *observability.Tracer
	metrics   *observability.Metrics
	taskStore a2asrv.TaskStore

	handlerOnce sync.Once
	handler     http.Handler
	server      *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithTracer traces every HTTP request.
func WithTracer(t *observability.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithMetrics records HTTP metrics and serves them at Config.MetricsPath.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithTaskStore replaces a2a-go's in-memory task store.
func WithTaskStore(store a2asrv.TaskStore) Option {
	return func(s *Server) { s.taskStore = store }
}

// New creates a Server.
func New(cfg Config, card *a2a.AgentCard, executor a2asrv.AgentExecutor, opts ...Option) *Server {
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = observability.DefaultMetricsPath
	}
	s := &Server{cfg: cfg, card: card, executor: executor}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the listener configuration.
func (s *Server) Config() Config { return s.cfg }

// Card returns the advertised agent card.
func (s *Server) Card() *a2a.AgentCard { return s.card }

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	s.handlerOnce.Do(func() {
		s.handler = s.routes()
	})
	return s.handler
}

// routes wires:
//   - GET  /health
//   - GET  /.well-known/agent-card.json (and the legacy agent.json)
//   - POST /  A2A JSON-RPC
//   - GET  /metrics when metrics are enabled
func (s *Server) routes() http.Handler {
	var handlerOpts []a2asrv.RequestHandlerOption
	if s.taskStore != nil {
		handlerOpts = append(handlerOpts, a2asrv.WithTaskStore(s.taskStore))
	}
	jsonrpc := a2asrv.NewJSONRPCHandler(a2asrv.NewHandler(s.executor, handlerOpts...))
	cardHandler := a2asrv.NewStaticAgentCardHandler(s.card)

	r := chi.NewRouter()

	var recorder observability.Recorder
	if s.metrics != nil {
		recorder = s.metrics
	}
	r.Use(observability.HTTPMiddleware(s.tracer, recorder))
	r.Use(requestIDMiddleware)
	r.Use(corsMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, a2asrv.WellKnownAgentCardPath, cardHandler)
	r.Method(http.MethodGet, LegacyAgentCardPath, cardHandler)
	r.Method(http.MethodPost, "/", jsonrpc)

	if s.metrics != nil {
		r.Method(http.MethodGet, s.cfg.MetricsPath, s.metrics.Handler())
		slog.Info("Metrics endpoint enabled", "path", s.cfg.MetricsPath)
	}

	return r
}

// Start serves until ctx is done or the listener fails, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Address(),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.cfg.writeTimeout(),
		IdleTimeout:  120 * time.Second,
	}

	slog.Info("HTTP server starting",
		"address", s.cfg.Address(),
		"agent", s.card.Name,
		"card", s.cfg.CardURL())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	slog.Info("HTTP server shutting down")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown error: %w", err)
	}
	return nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, traceparent, tracestate, baggage")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"request_id", w.Header().Get(requestIDHeader),
			"duration", time.Since(start))
	})
}
