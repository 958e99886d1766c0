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

// Command agent serves one of the example agents over A2A.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	agentexamples "github.com/evaline-ju/agent-examples"
	"github.com/evaline-ju/agent-examples/pkg/agents"
)

// CLI is the root command.
type CLI struct {
	Serve    ServeCmd    `cmd:"" default:"withargs" help:"Start the A2A server (default)."`
	Agents   AgentsCmd   `cmd:"" help:"List the available agents."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Schema   SchemaCmd   `cmd:"" help:"Print the JSON Schema of the configuration."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, json)."`
}

// VersionCmd prints build metadata.
type VersionCmd struct {
	JSON bool `help:"Print as JSON."`
}

func (c *VersionCmd) Run() error {
	info := agentexamples.GetVersion()
	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Println(info.String())
	return nil
}

// AgentsCmd lists the agent profiles.
type AgentsCmd struct{}

func (c *AgentsCmd) Run() error {
	for _, name := range agents.Names() {
		p, err := agents.Lookup(name)
		if err != nil {
			return err
		}
		tools := ""
		if p.UsesTools {
			tools = " [tools]"
		}
		fmt.Printf("  %-8s %s (%s)%s\n", p.Name, p.DisplayName, p.DefaultModel, tools)
		fmt.Printf("           %s\n", firstSentence(p.Description))
	}
	return nil
}

func firstSentence(s string) string {
	if i := strings.Index(s, ". "); i >= 0 {
		return s[:i+1]
	}
	return s
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("agent"),
		kong.Description("A2A example agents: cheerup, recipe, trivia and weather."),
		kong.UsageOnError(),
	)

	cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
