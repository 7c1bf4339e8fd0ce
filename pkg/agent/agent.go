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

// Package agent runs one tool-calling invocation against a model: the user
// message goes in, tools run until the model answers in plain text.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/schema-agent/pkg/llm"
	"github.com/teradata-labs/schema-agent/pkg/shuttle"
)

// Executor drives a model through the tools of a registry.
type Executor struct {
	// LLM provider for generating responses
	llm llm.Provider

	// Tool registry for available tools
	tools *shuttle.Registry

	// Tool executor
	executor *shuttle.Executor

	config *Config
	logger *zap.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithConfig replaces the whole configuration.
func WithConfig(config *Config) Option {
	return func(e *Executor) {
		if config != nil {
			e.config = config
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSystemPrompt sets the system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(e *Executor) {
		e.config.SystemPrompt = prompt
	}
}

// WithMaxIterations bounds the number of model calls per invocation.
func WithMaxIterations(n int) Option {
	return func(e *Executor) {
		e.config.MaxIterations = n
	}
}

// WithRetry sets the retry policy for model calls.
func WithRetry(retry RetryConfig) Option {
	return func(e *Executor) {
		e.config.Retry = retry
	}
}

// NewExecutor creates an agent executor over the tools in registry. A nil
// registry means no tools.
func NewExecutor(provider llm.Provider, registry *shuttle.Registry, opts ...Option) *Executor {
	if registry == nil {
		registry = shuttle.NewRegistry()
	}
	e := &Executor{
		llm:    provider,
		tools:  registry,
		config: DefaultConfig(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.config.MaxIterations <= 0 {
		e.config.MaxIterations = DefaultConfig().MaxIterations
	}
	if e.config.MaxToolExecutions <= 0 {
		e.config.MaxToolExecutions = DefaultConfig().MaxToolExecutions
	}
	e.logger = e.logger.With(zap.String("agent", e.config.Name))
	e.executor = shuttle.NewExecutor(registry, e.logger)
	return e
}

// Invoke runs one invocation with input as the single user message. A
// model that stops without text, or an exhausted iteration budget, yields
// a NoResponse result and no error. Model errors that survive retry are
// returned.
func (e *Executor) Invoke(ctx context.Context, input string) (*Result, error) {
	start := time.Now()

	var messages []llm.Message
	if e.config.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: e.config.SystemPrompt})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: input})

	tools := e.tools.ListTools()
	result := &Result{}

	for result.Turns < e.config.MaxIterations {
		result.Turns++

		resp, err := e.chatWithRetry(ctx, messages, tools)
		if err != nil {
			return nil, fmt.Errorf("LLM call failed: %w", err)
		}
		result.Usage.Add(resp.Usage)
		result.StopReason = resp.StopReason

		// If LLM returned text (no tool calls), we're done
		if len(resp.ToolCalls) == 0 {
			e.finish(result, resp.Content)
			e.logger.Info("invocation finished",
				zap.Bool("answered", result.Answered),
				zap.Int("turns", result.Turns),
				zap.Int("tool_calls", result.ToolCalls),
				zap.Int("total_tokens", result.Usage.TotalTokens),
				zap.Duration("duration", time.Since(start)),
			)
			return result, nil
		}

		// Assistant message with tool calls goes into history before the results
		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			if result.ToolCalls >= e.config.MaxToolExecutions {
				messages = append(messages, llm.Message{
					Role:      llm.RoleTool,
					Content:   "Error: tool execution limit reached",
					ToolUseID: call.ID,
					ToolName:  call.Name,
					IsError:   true,
				})
				continue
			}
			result.ToolCalls++

			toolResult := e.executor.Execute(ctx, call.Name, call.Input)
			result.ToolExecutions = append(result.ToolExecutions, ToolExecution{
				ID:       call.ID,
				ToolName: call.Name,
				Input:    call.Input,
				Result:   toolResult,
			})

			e.logger.Debug("tool call",
				zap.String("tool", call.Name),
				zap.Bool("success", toolResult.Success),
				zap.Int64("duration_ms", toolResult.ExecutionTimeMs),
			)

			messages = append(messages, llm.Message{
				Role:      llm.RoleTool,
				Content:   toolResult.Text(),
				ToolUseID: call.ID,
				ToolName:  call.Name,
				IsError:   !toolResult.Success,
			})
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	e.logger.Warn("iteration budget exhausted without an answer",
		zap.Int("max_iterations", e.config.MaxIterations),
		zap.Int("tool_calls", result.ToolCalls),
	)
	e.finish(result, "")
	return result, nil
}

func (e *Executor) finish(result *Result, content string) {
	if strings.TrimSpace(content) == "" {
		result.Response = NoResponse
		result.Answered = false
		return
	}
	result.Response = content
	result.Answered = true
}

// Tools returns the names of the tools offered to the model.
func (e *Executor) Tools() []string {
	return e.tools.List()
}
