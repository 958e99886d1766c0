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
	"os"

	"github.com/evaline-ju/agent-examples/pkg/config"
)

// SchemaCmd prints the JSON Schema of the configuration file.
type SchemaCmd struct {
	Compact bool `help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run() error {
	schema := config.Schema()
	schema.Version = "http://json-schema.org/draft-07/schema#"
	schema.Examples = []any{
		map[string]any{
			"agent": "weather",
			"llm": map[string]any{
				"model":    "qwen2.5:3b",
				"api_base": "${LLM_API_BASE:-http://host.docker.internal:11434/v1}",
			},
			"mcp": map[string]any{
				"url": "http://weather-tool:8000/mcp",
			},
		},
	}

	enc := json.NewEncoder(os.Stdout)
	if !c.Compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(schema); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}
