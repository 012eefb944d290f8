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
	"fmt"
	"io"
	"os"

	"github.com/kadirpekel/forge/pkg/config"
	"github.com/kadirpekel/forge/pkg/logger"
)

const (
	LogFileEnvVar   = "LOG_FILE"
	LogLevelEnvVar  = "LOG_LEVEL"
	LogFormatEnvVar = "LOG_FORMAT"
)

// initLogger resolves each setting as CLI flag > env var > config file >
// default and installs the result as the slog default.
func initLogger(flagLevel, flagFile, flagFormat string, cfg config.LoggerConfig) (func(), error) {
	levelStr := firstNonEmpty(flagLevel, os.Getenv(LogLevelEnvVar), cfg.Level, "info")
	file := firstNonEmpty(flagFile, os.Getenv(LogFileEnvVar), cfg.File)
	format := firstNonEmpty(flagFormat, os.Getenv(LogFormatEnvVar), cfg.Format, logger.FormatSimple)

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}

	var output io.Writer = os.Stderr
	cleanup := func() {}
	if file != "" {
		f, closeFn, err := logger.OpenLogFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		output = f
		cleanup = closeFn
	}

	logger.Init(level, output, format)
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
