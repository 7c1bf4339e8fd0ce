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

package agent

import (
	"time"

	"github.com/teradata-labs/schema-agent/pkg/llm"
	"github.com/teradata-labs/schema-agent/pkg/shuttle"
)

// NoResponse is returned as the response text when an invocation ends
// without a terminal answer.
const NoResponse = "no response"

// Config holds agent configuration.
type Config struct {
	// Name is the agent name (used for logging)
	Name string

	// SystemPrompt is sent ahead of the user message when non-empty
	SystemPrompt string

	// MaxIterations bounds the number of model calls in one invocation
	MaxIterations int

	// MaxToolExecutions bounds the number of tool calls in one invocation
	MaxToolExecutions int

	// Retry configuration for LLM calls
	Retry RetryConfig
}

// RetryConfig configures exponential backoff retry logic for LLM calls.
// Only transient failures (see llm.IsTransient) are retried.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (0 = no retries)
	MaxRetries int

	// InitialDelay is the initial delay before the first retry
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration

	// Multiplier is the exponential backoff multiplier (e.g., 2.0 for doubling)
	Multiplier float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:              "schema-agent",
		MaxIterations:     10,
		MaxToolExecutions: 50,
		Retry: RetryConfig{
			MaxRetries:   2,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// ToolExecution records one tool call made during an invocation.
type ToolExecution struct {
	ID       string
	ToolName string
	Input    map[string]interface{}
	Result   *shuttle.Result
}

// Result is the outcome of one invocation. Either Answered is true and
// Response holds the model's final text, or Response is NoResponse.
type Result struct {
	Response       string
	Answered       bool
	Turns          int
	ToolCalls      int
	Usage          llm.Usage
	StopReason     string
	ToolExecutions []ToolExecution
}
