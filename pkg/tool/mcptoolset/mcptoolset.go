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

// Package mcptoolset exposes the tools of an MCP server as a tool.Executor.
//
// The connection is established lazily on the first Tools or Execute call
// and reused afterwards. A failed connection is retried on the next call,
// and a session that fails mid-call is dropped so the next call reconnects.
//
// Transports:
//   - streamable_http (default): one POST per JSON-RPC message
//   - sse: the legacy HTTP+SSE transport
//   - stdio: a subprocess speaking MCP over stdin/stdout
//
// HTTP transports carry the caller's trace context so gateway spans nest
// under the agent's tool span.
package mcptoolset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/evaline-ju/agent-examples/pkg/observability"
	"github.com/evaline-ju/agent-examples/pkg/tool"
)

// Transport names.
const (
	TransportStreamableHTTP = "streamable_http"
	TransportSSE            = "sse"
	TransportStdio          = "stdio"

	DefaultURL = "http://localhost:8000/mcp"

	clientName    = "agent-examples"
	clientVersion = "1.0.0"
)

// Config configures a Toolset.
type Config struct {
	// URL is the MCP endpoint for HTTP transports.
	URL string

	// Transport is one of streamable_http, sse or stdio. "streamable-http"
	// is accepted as an alias.
	Transport string

	// Command, Args and Env start the server for the stdio transport.
	Command string
	Args    []string
	Env     map[string]string

	// Filter limits which tools are exposed. Empty exposes all.
	Filter []string

	// HTTPClient overrides the trace-propagating default.
	HTTPClient *http.Client
}

// NormalizeTransport maps accepted spellings to the canonical name.
func NormalizeTransport(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", TransportStreamableHTTP, "streamable-http", "http":
		return TransportStreamableHTTP, nil
	case TransportSSE:
		return TransportSSE, nil
	case TransportStdio:
		return TransportStdio, nil
	default:
		return "", fmt.Errorf("unsupported MCP transport %q (valid: streamable_http, sse, stdio)", name)
	}
}

// Toolset is an MCP-backed tool.Executor.
type Toolset struct {
	cfg       Config
	filterSet map[string]bool

	mu     sync.Mutex
	client *client.Client
	tools  []tool.Spec
}

var _ tool.Executor = (*Toolset)(nil)

// New validates cfg and creates a Toolset. It does not connect.
func New(cfg Config) (*Toolset, error) {
	kind, err := NormalizeTransport(cfg.Transport)
	if err != nil {
		return nil, err
	}
	cfg.Transport = kind

	switch kind {
	case TransportStdio:
		if cfg.Command == "" {
			return nil, errors.New("command is required for stdio transport")
		}
	default:
		if cfg.URL == "" {
			cfg.URL = DefaultURL
		}
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = observability.NewHTTPClient()
	}

	var filterSet map[string]bool
	if len(cfg.Filter) > 0 {
		filterSet = make(map[string]bool, len(cfg.Filter))
		for _, name := range cfg.Filter {
			filterSet[name] = true
		}
	}

	return &Toolset{cfg: cfg, filterSet: filterSet}, nil
}

// Tools implements tool.Executor, connecting on first use.
func (t *Toolset) Tools(ctx context.Context) ([]tool.Spec, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.connectLocked(ctx); err != nil {
		return nil, err
	}
	return t.tools, nil
}

// Execute implements tool.Executor. A result the server flags as an error
// is returned as an error carrying the server's text.
func (t *Toolset) Execute(ctx context.Context, call tool.Call) (string, error) {
	args, err := call.DecodeArgs()
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	err = t.connectLocked(ctx)
	c := t.client
	t.mu.Unlock()
	if err != nil {
		return "", err
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = call.Name
	req.Params.Arguments = args

	res, err := c.CallTool(ctx, req)
	if err != nil {
		if ctx.Err() == nil {
			t.drop(c)
		}
		return "", fmt.Errorf("MCP call %q failed: %w", call.Name, err)
	}

	text := resultText(res)
	if res.IsError {
		if text == "" {
			text = "unknown error"
		}
		return "", errors.New(text)
	}
	return text, nil
}

// Close terminates the session. The next call reconnects.
func (t *Toolset) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	t.tools = nil
	return err
}

// drop discards the session c after a transport failure so the next call
// reconnects. A session opened since c is left alone.
func (t *Toolset) drop(c *client.Client) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != c {
		return
	}
	_ = t.client.Close()
	t.client = nil
	t.tools = nil
	slog.Warn("Dropped MCP session after transport failure", "url", t.cfg.URL, "command", t.cfg.Command)
}

func (t *Toolset) connectLocked(ctx context.Context) error {
	if t.client != nil {
		return nil
	}

	c, err := t.newClient()
	if err != nil {
		return fmt.Errorf("failed to create MCP client: %w", err)
	}
	// The session outlives the call that opened it.
	if err := c.Start(context.WithoutCancel(ctx)); err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to start MCP client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to initialize MCP session: %w", err)
	}

	listResp, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to list MCP tools: %w", err)
	}

	specs := make([]tool.Spec, 0, len(listResp.Tools))
	for _, mt := range listResp.Tools {
		if t.filterSet != nil && !t.filterSet[mt.Name] {
			continue
		}
		specs = append(specs, tool.Spec{
			Name:        mt.Name,
			Description: mt.Description,
			Parameters:  convertSchema(mt.InputSchema),
		})
	}

	t.client = c
	t.tools = specs

	slog.Info("Connected to MCP server",
		"transport", t.cfg.Transport,
		"url", t.cfg.URL,
		"command", t.cfg.Command,
		"tools", len(specs))
	return nil
}

func (t *Toolset) newClient() (*client.Client, error) {
	switch t.cfg.Transport {
	case TransportStdio:
		return client.NewStdioMCPClient(t.cfg.Command, envList(t.cfg.Env), t.cfg.Args...)
	case TransportSSE:
		return client.NewSSEMCPClient(t.cfg.URL, transport.WithHTTPClient(t.cfg.HTTPClient))
	default:
		return client.NewStreamableHttpClient(t.cfg.URL, transport.WithHTTPBasicClient(t.cfg.HTTPClient))
	}
}

func resultText(res *mcp.CallToolResult) string {
	var texts []string
	for _, content := range res.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func envList(env map[string]string) []string {
	if env == nil {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// convertSchema turns an MCP input schema into a JSON Schema map.
func convertSchema(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
