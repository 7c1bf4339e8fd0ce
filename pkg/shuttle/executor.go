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

package shuttle

import (
	"context"
	"sync/atomic"
	"time"
	"unicode"

	"go.uber.org/zap"
)

// Error codes set by the executor.
const (
	CodeToolNotFound     = "tool_not_found"
	CodeInvalidArguments = "invalid_arguments"
	CodeExecutionFailed  = "execution_failed"
)

// Executor executes tools with tracking and error handling.
//
// Failures never surface as Go errors: unknown tools, invalid arguments and
// tool errors all come back as an unsuccessful Result so the model can read
// them and try again.
type Executor struct {
	registry *Registry
	logger   *zap.Logger

	executions atomic.Int64
	failures   atomic.Int64
}

// ExecutorStats summarizes executor activity.
type ExecutorStats struct {
	Executions int64
	Failures   int64
}

// NewExecutor creates a new tool executor.
func NewExecutor(registry *Registry, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{registry: registry, logger: logger}
}

// Execute runs the named tool.
func (e *Executor) Execute(ctx context.Context, toolName string, params map[string]interface{}) *Result {
	e.executions.Add(1)

	tool, ok := e.registry.Get(toolName)
	if !ok {
		e.failures.Add(1)
		e.logger.Warn("model requested unknown tool", zap.String("tool", toolName))
		return &Result{
			Success: false,
			Error:   &Error{Code: CodeToolNotFound, Message: "tool not found: " + toolName},
		}
	}

	// LLMs naturally use snake_case, but some tools expect camelCase
	params = normalizeParametersToSchema(tool, params)

	if err := ValidateParams(tool.InputSchema(), params); err != nil {
		e.failures.Add(1)
		e.logger.Debug("tool arguments rejected", zap.String("tool", toolName), zap.Error(err))
		return &Result{
			Success: false,
			Error:   &Error{Code: CodeInvalidArguments, Message: err.Error(), Retryable: true},
		}
	}

	start := time.Now()
	result, err := tool.Execute(ctx, params)
	duration := time.Since(start)

	if err != nil {
		e.failures.Add(1)
		e.logger.Debug("tool execution failed",
			zap.String("tool", toolName),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return &Result{
			Success:         false,
			Error:           &Error{Code: CodeExecutionFailed, Message: err.Error()},
			ExecutionTimeMs: duration.Milliseconds(),
		}
	}

	if result == nil {
		result = &Result{Success: true}
	}
	// Executor timing is authoritative
	result.ExecutionTimeMs = duration.Milliseconds()
	if !result.Success {
		e.failures.Add(1)
	}

	e.logger.Debug("tool executed",
		zap.String("tool", toolName),
		zap.Bool("success", result.Success),
		zap.Duration("duration", duration),
	)
	return result
}

// Stats returns execution counters.
func (e *Executor) Stats() ExecutorStats {
	return ExecutorStats{
		Executions: e.executions.Load(),
		Failures:   e.failures.Load(),
	}
}

// normalizeParametersToSchema renames parameters whose names match a schema
// property modulo case and underscores.
func normalizeParametersToSchema(tool Tool, params map[string]interface{}) map[string]interface{} {
	if len(params) == 0 {
		return params
	}

	schema := tool.InputSchema()
	if schema == nil || schema.Properties == nil {
		return params
	}

	schemaKeys := make(map[string]string, len(schema.Properties))
	for key := range schema.Properties {
		schemaKeys[toLowerUnderscore(key)] = key
	}

	normalized := make(map[string]interface{}, len(params))
	for key, value := range params {
		if schemaKey, exists := schemaKeys[toLowerUnderscore(key)]; exists {
			normalized[schemaKey] = value
		} else {
			normalized[key] = value
		}
	}

	return normalized
}

// toLowerUnderscore converts any naming convention to lowercase with underscores.
func toLowerUnderscore(s string) string {
	var result []rune
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			result = append(result, '_')
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}
