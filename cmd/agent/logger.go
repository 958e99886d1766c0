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
	"os"

	"github.com/evaline-ju/agent-examples/pkg/config"
	"github.com/evaline-ju/agent-examples/pkg/logger"
)

const (
	logLevelEnvVar  = "LOG_LEVEL"
	logFileEnvVar   = "LOG_FILE"
	logFormatEnvVar = "LOG_FORMAT"
)

// initLoggerFromCLI installs the bootstrap logger used until the config
// is loaded. Priority: CLI flags > env vars > defaults.
func initLoggerFromCLI(level, file, format string) (func(), error) {
	return initLogger(config.LoggerConfig{
		Level:  firstNonEmpty(level, os.Getenv(logLevelEnvVar), "info"),
		File:   firstNonEmpty(file, os.Getenv(logFileEnvVar)),
		Format: firstNonEmpty(format, os.Getenv(logFormatEnvVar), logger.FormatSimple),
	})
}

// initLoggerFromConfig reinstalls the logger from the loaded config, with
// CLI flags still taking priority. The config already carries env values.
func initLoggerFromConfig(cli *CLI, cfg config.LoggerConfig) (func(), error) {
	return initLogger(config.LoggerConfig{
		Level:  firstNonEmpty(cli.LogLevel, cfg.Level),
		File:   firstNonEmpty(cli.LogFile, cfg.File),
		Format: firstNonEmpty(cli.LogFormat, cfg.Format),
	})
}

func initLogger(cfg config.LoggerConfig) (func(), error) {
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	output := os.Stderr
	cleanup := func() {}
	if cfg.File != "" {
		file, closeFn, err := logger.OpenLogFile(cfg.File)
		if err != nil {
			return nil, err
		}
		output = file
		cleanup = closeFn
	}

	logger.Init(level, output, cfg.Format)
	return cleanup, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
