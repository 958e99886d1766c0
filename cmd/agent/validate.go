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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/evaline-ju/agent-examples/pkg/config"
)

// ValidateCmd loads and validates a configuration file.
type ValidateCmd struct {
	Config string `arg:"" name:"config" help:"Configuration file path." placeholder:"PATH"`

	Format string `short:"f" help:"Output format: compact, verbose, json." default:"compact" enum:"compact,verbose,json"`

	PrintConfig bool `short:"p" name:"print-config" help:"Print the expanded configuration (defaults applied, env vars resolved)."`
}

func (c *ValidateCmd) Run() error {
	return c.run(os.Stdout, os.Stderr)
}

func (c *ValidateCmd) run(stdout, stderr io.Writer) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		printLoadError(stdout, stderr, c.Format, c.Config, err)
		return fmt.Errorf("config load failed")
	}

	if c.PrintConfig {
		return printExpandedConfig(stdout, c.Format, c.Config, cfg)
	}
	printSuccess(stdout, c.Format, c.Config)
	return nil
}

type validationError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type jsonResult struct {
	Valid  bool              `json:"valid"`
	File   string            `json:"file"`
	Errors []validationError `json:"errors,omitempty"`
}

func printLoadError(stdout, stderr io.Writer, format, file string, err error) {
	switch format {
	case "json":
		printJSONResult(stdout, jsonResult{File: file, Errors: []validationError{{Type: "load", Message: err.Error()}}})
	case "verbose":
		fmt.Fprintf(stderr, "Configuration Load Error\n")
		fmt.Fprintf(stderr, "========================\n\n")
		fmt.Fprintf(stderr, "File:    %s\n", file)
		fmt.Fprintf(stderr, "Error:   %s\n", err)
	default:
		fmt.Fprintf(stderr, "%s: load error: %s\n", file, err)
	}
}

func printSuccess(w io.Writer, format, file string) {
	switch format {
	case "json":
		printJSONResult(w, jsonResult{Valid: true, File: file})
	case "verbose":
		fmt.Fprintf(w, "Configuration Validation Successful\n")
		fmt.Fprintf(w, "===================================\n\n")
		fmt.Fprintf(w, "File:   %s\n", file)
		fmt.Fprintf(w, "Status: OK Valid\n")
	default:
		fmt.Fprintf(w, "%s: valid\n", file)
	}
}

func printExpandedConfig(w io.Writer, format, file string, cfg *config.Config) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config as JSON: %w", err)
		}
		return nil
	}

	fmt.Fprintf(w, "# Expanded configuration from: %s\n", file)
	fmt.Fprintf(w, "# (defaults applied, env vars resolved)\n\n")
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config as YAML: %w", err)
	}
	return enc.Close()
}

func printJSONResult(w io.Writer, result jsonResult) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
	}
}
