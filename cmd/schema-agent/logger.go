// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// buildLogger creates a JSON logger writing to logFile, or to stderr when
// logFile is empty. Stdout carries only the answer. The returned function
// flushes the logger and closes the log file.
func buildLogger(logFile, logLevel string) (*zap.Logger, func() error, error) {
	level := parseLogLevel(logLevel)

	var output zapcore.WriteSyncer
	var file *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) // #nosec G304 -- log file path from CLI flag
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", logFile, err)
		}
		file = f
		output = zapcore.AddSync(f)
	} else {
		output = zapcore.Lock(zapcore.AddSync(os.Stderr))
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		output,
		level,
	)

	logger := zap.New(core)
	closeLog := func() error {
		// Sync on stderr fails on some terminals; only the file matters.
		if file == nil {
			_ = logger.Sync()
			return nil
		}
		syncErr := logger.Sync()
		if err := file.Close(); err != nil {
			return err
		}
		return syncErr
	}
	return logger, closeLog, nil
}

// parseLogLevel converts a string log level to a zapcore.Level.
func parseLogLevel(logLevel string) zapcore.Level {
	switch logLevel {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
