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

package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// envOverride sets one field from one environment variable.
type envOverride struct {
	name  string
	apply func(c *Config, value string) error
}

var envOverrides = []envOverride{
	{"AGENT_NAME", func(c *Config, v string) error { c.Agent = v; return nil }},
	{"LLM_MODEL", func(c *Config, v string) error { c.LLM.Model = v; return nil }},
	{"LLM_API_BASE", func(c *Config, v string) error { c.LLM.APIBase = v; return nil }},
	{"LLM_API_KEY", func(c *Config, v string) error { c.LLM.APIKey = v; return nil }},
	{"LLM_TEMPERATURE", func(c *Config, v string) error {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.LLM.Temperature = &t
		return nil
	}},
	{"MCP_URL", func(c *Config, v string) error { c.MCP.URL = v; return nil }},
	{"MCP_TRANSPORT", func(c *Config, v string) error { c.MCP.Transport = v; return nil }},
	{"HOST", func(c *Config, v string) error { c.Server.Host = v; return nil }},
	{"PORT", func(c *Config, v string) error {
		port, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Server.Port = port
		return nil
	}},
	{"MAX_ROUNDS", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Loop.MaxRounds = n
		return nil
	}},
	{"LOG_LEVEL", func(c *Config, v string) error { c.Logger.Level = strings.ToLower(v); return nil }},
	{"LOG_FILE", func(c *Config, v string) error { c.Logger.File = v; return nil }},
	{"LOG_FORMAT", func(c *Config, v string) error { c.Logger.Format = strings.ToLower(v); return nil }},
	{"OTEL_EXPORTER_OTLP_ENDPOINT", func(c *Config, v string) error {
		tracing := &c.Observability.Tracing
		tracing.Enabled = true
		tracing.Endpoint = stripScheme(v)
		if strings.HasPrefix(v, "https://") {
			secure := false
			tracing.Insecure = &secure
		}
		return nil
	}},
}

// applyEnv applies every set override in table order.
func applyEnv(c *Config) error {
	for _, o := range envOverrides {
		v, ok := os.LookupEnv(o.name)
		if !ok || v == "" {
			continue
		}
		if err := o.apply(c, v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", o.name, v, err)
		}
	}
	return nil
}

// stripScheme turns an OTLP URL into the host:port the gRPC exporter
// expects.
func stripScheme(endpoint string) string {
	for _, prefix := range []string{"http://", "https://"} {
		endpoint = strings.TrimPrefix(endpoint, prefix)
	}
	return strings.TrimSuffix(endpoint, "/")
}

// envVarPattern matches ${VAR}, ${VAR:-default}, and $VAR
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars recursively expands environment references in a map.
func expandEnvVars(input map[string]any) map[string]any {
	result := make(map[string]any, len(input))
	for k, v := range input {
		result[k] = expandValue(v)
	}
	return result
}

func expandValue(v any) any {
	switch val := v.(type) {
	case string:
		return expandEnvString(val)
	case map[string]any:
		return expandEnvVars(val)
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = expandValue(item)
		}
		return result
	default:
		return v
	}
}

func expandEnvString(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if strings.HasPrefix(match, "${") {
			inner := match[2 : len(match)-1]
			if name, def, ok := strings.Cut(inner, ":-"); ok {
				if val := os.Getenv(name); val != "" {
					return val
				}
				return def
			}
			return os.Getenv(inner)
		}
		return os.Getenv(match[1:])
	})
}
