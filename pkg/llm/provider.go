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

// Package llm defines the chat model interface shared by every backend.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/teradata-labs/schema-agent/pkg/shuttle"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall represents a tool invocation by the LLM.
type ToolCall struct {
	// ID is a unique identifier for this tool call
	ID string

	// Name is the tool name
	Name string

	// Input contains the tool parameters
	Input map[string]interface{}
}

// Message represents a single message in the conversation.
type Message struct {
	// Role is the message sender (system, user, assistant, tool)
	Role string

	// Content is the message text
	Content string

	// ToolCalls contains tool invocations (if role is assistant)
	ToolCalls []ToolCall

	// ToolUseID is the ID of the tool call this result answers (if role is tool)
	ToolUseID string

	// ToolName is the name of the tool that produced this result (if role is tool)
	ToolName string

	// IsError marks a tool result that reports a failure
	IsError bool
}

// Usage tracks LLM token usage.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Add accumulates u2 into u.
func (u *Usage) Add(u2 Usage) {
	u.InputTokens += u2.InputTokens
	u.OutputTokens += u2.OutputTokens
	u.TotalTokens += u2.TotalTokens
}

// Response represents a response from the LLM.
type Response struct {
	// Content is the text response
	Content string

	// ToolCalls contains requested tool executions
	ToolCalls []ToolCall

	// StopReason indicates why the LLM stopped
	StopReason string

	// Usage tracks token usage
	Usage Usage

	// Metadata contains provider-specific metadata
	Metadata map[string]interface{}
}

// Provider is a pluggable chat model backend.
type Provider interface {
	// Chat sends a conversation to the LLM and returns the response
	Chat(ctx context.Context, messages []Message, tools []shuttle.Tool) (*Response, error)

	// Name returns the provider name
	Name() string

	// Model returns the model identifier
	Model() string
}

// Capability is an optional model feature a preset declares.
type Capability string

// CapabilityJSONSchemaResponse allows constraining output with a JSON schema.
const CapabilityJSONSchemaResponse Capability = "response_format_json_schema"

// CapabilityReporter is implemented by providers that were configured with
// capabilities.
type CapabilityReporter interface {
	Supports(capability Capability) bool
}

// Supports reports whether p declares capability. Providers that do not
// implement CapabilityReporter declare nothing.
func Supports(p Provider, capability Capability) bool {
	r, ok := p.(CapabilityReporter)
	return ok && r.Supports(capability)
}

// APIError is a non-2xx answer from a model endpoint.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// Transient reports whether retrying the same request may succeed.
func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= 500
}

// IsTransient reports whether err is worth retrying. Cancellation and client
// errors other than 408 and 429 are not. Callers check their own context
// separately, since an HTTP client timeout also matches DeadlineExceeded.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	var transient interface{ Transient() bool }
	if errors.As(err, &transient) {
		return transient.Transient()
	}
	// Network failures are worth another attempt.
	return true
}
