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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/evaline-ju/agent-examples/pkg/config"
	"github.com/evaline-ju/agent-examples/pkg/runtime"
)

// ServeCmd starts the A2A server. Flags override the config file and the
// environment.
type ServeCmd struct {
	Agent     string `arg:"" optional:"" help:"Agent to serve (cheerup, recipe, trivia, weather)."`
	Host      string `help:"Bind address."`
	Port      int    `help:"Port to listen on."`
	Model     string `help:"Model name."`
	APIBase   string `name:"api-base" help:"OpenAI-compatible API base URL."`
	MCPURL    string `name:"mcp-url" help:"MCP gateway URL (weather agent)."`
	MaxRounds int    `name:"max-rounds" help:"Maximum model calls per turn."`
	Metrics   bool   `help:"Serve Prometheus metrics."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if err := c.apply(cfg); err != nil {
		return err
	}

	cleanup, err := initLoggerFromConfig(cli, cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer cleanup()

	if cli.Config != "" {
		slog.Info("Loaded configuration", "path", cli.Config)
	}

	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create runtime: %w", err)
	}

	card := rt.Server().Card()
	fmt.Printf("\n%s ready\n", card.Name)
	fmt.Printf("   Agent Card:  %s.well-known/agent-card.json\n", card.URL)
	fmt.Printf("   Health:      %shealth\n", card.URL)
	fmt.Printf("   Model:       %s (%s)\n", cfg.LLM.Model, cfg.LLM.APIBase)
	if rt.Profile().UsesTools {
		fmt.Printf("   MCP:         %s (%s)\n", cfg.MCP.URL, cfg.MCP.Transport)
	}
	if cfg.Observability.Tracing.Enabled {
		fmt.Printf("   Tracing:     %s (%s)\n", cfg.Observability.Tracing.Exporter, cfg.Observability.Tracing.Endpoint)
	}
	if cfg.Observability.Metrics.Enabled {
		fmt.Printf("   Metrics:     %s\n", cfg.Observability.Metrics.Endpoint)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	return rt.Run(ctx)
}

// apply layers the flags over cfg and revalidates.
func (c *ServeCmd) apply(cfg *config.Config) error {
	changed := false
	set := func(cond bool, fn func()) {
		if cond {
			fn()
			changed = true
		}
	}

	set(c.Agent != "", func() {
		cfg.Agent = c.Agent
		// Profile defaults must follow the new agent.
		if c.Model == "" && os.Getenv("LLM_MODEL") == "" {
			cfg.LLM.Model = ""
		}
		if os.Getenv("LLM_TEMPERATURE") == "" {
			cfg.LLM.Temperature = nil
		}
	})
	set(c.Host != "", func() { cfg.Server.Host = c.Host })
	set(c.Port != 0, func() { cfg.Server.Port = c.Port })
	set(c.Model != "", func() { cfg.LLM.Model = c.Model })
	set(c.APIBase != "", func() { cfg.LLM.APIBase = c.APIBase })
	set(c.MCPURL != "", func() { cfg.MCP.URL = c.MCPURL })
	set(c.MaxRounds != 0, func() { cfg.Loop.MaxRounds = c.MaxRounds })
	set(c.Metrics, func() { cfg.Observability.Metrics.Enabled = true })

	if !changed {
		return nil
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}
