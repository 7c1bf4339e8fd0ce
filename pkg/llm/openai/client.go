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

// Package openai implements llm.Provider against the OpenAI chat completions
// API and compatible servers.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/schema-agent/pkg/llm"
	"github.com/teradata-labs/schema-agent/pkg/shuttle"
)

// Default OpenAI configuration values.
const (
	DefaultModel     = "gpt-4o-mini"
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultTimeout   = 60 * time.Second
	DefaultMaxTokens = 4096
)

// Client implements the llm.Provider interface for OpenAI's API.
type Client struct {
	apiKey       string
	model        string
	endpoint     string
	httpClient   *http.Client
	maxTokens    int
	temperature  *float64
	capabilities []llm.Capability
	logger       *zap.Logger
}

// Config holds configuration for the OpenAI client.
type Config struct {
	APIKey       string
	Model        string        // Default: gpt-4o-mini
	BaseURL      string        // Default: https://api.openai.com/v1
	Timeout      time.Duration // Default: 60s
	MaxTokens    int           // Default: 4096
	Temperature  *float64      // Default: server default
	Capabilities []llm.Capability
	Logger       *zap.Logger
}

// NewClient creates a new OpenAI client.
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Client{
		apiKey:       config.APIKey,
		model:        config.Model,
		endpoint:     strings.TrimRight(config.BaseURL, "/") + "/chat/completions",
		maxTokens:    config.MaxTokens,
		temperature:  config.Temperature,
		capabilities: config.Capabilities,
		logger:       config.Logger,
		httpClient:   &http.Client{Timeout: config.Timeout},
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "openai"
}

// Model returns the model identifier.
func (c *Client) Model() string {
	return c.model
}

// Supports reports whether the client was configured with capability.
func (c *Client) Supports(capability llm.Capability) bool {
	for _, have := range c.capabilities {
		if have == capability {
			return true
		}
	}
	return false
}

// Chat sends a conversation to OpenAI and returns the response.
func (c *Client) Chat(ctx context.Context, messages []llm.Message, tools []shuttle.Tool) (*llm.Response, error) {
	req := &chatRequest{
		Model:       c.model,
		Messages:    convertMessages(messages),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	if len(tools) > 0 {
		apiTools, err := convertTools(tools)
		if err != nil {
			return nil, err
		}
		req.Tools = apiTools
		req.ToolChoice = "auto"
	}

	resp, err := c.callAPI(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai API call failed: %w", err)
	}

	return c.convertResponse(resp)
}

// convertMessages converts agent messages to OpenAI format.
func convertMessages(messages []llm.Message) []chatMessage {
	apiMessages := make([]chatMessage, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem, llm.RoleUser:
			apiMessages = append(apiMessages, chatMessage{Role: msg.Role, Content: msg.Content})

		case llm.RoleAssistant:
			apiMsg := chatMessage{Role: llm.RoleAssistant}
			if msg.Content != "" {
				apiMsg.Content = msg.Content
			}
			for _, tc := range msg.ToolCalls {
				argsJSON, err := json.Marshal(tc.Input)
				if err != nil || tc.Input == nil {
					argsJSON = []byte("{}")
				}
				apiMsg.ToolCalls = append(apiMsg.ToolCalls, toolCall{
					ID:       tc.ID,
					Type:     "function",
					Function: functionCall{Name: tc.Name, Arguments: string(argsJSON)},
				})
			}
			apiMessages = append(apiMessages, apiMsg)

		case llm.RoleTool:
			apiMessages = append(apiMessages, chatMessage{
				Role:       llm.RoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolUseID,
			})
		}
	}

	return apiMessages
}

// convertTools converts shuttle tools to OpenAI format.
func convertTools(tools []shuttle.Tool) ([]toolDef, error) {
	apiTools := make([]toolDef, 0, len(tools))
	for _, tool := range tools {
		params, err := shuttle.NormalizeSchema(tool.InputSchema()).ToMap()
		if err != nil {
			return nil, fmt.Errorf("tool %s: invalid input schema: %w", tool.Name(), err)
		}
		if _, ok := params["properties"]; !ok {
			// Strict servers reject object schemas without properties.
			params["properties"] = map[string]interface{}{}
		}
		apiTools = append(apiTools, toolDef{
			Type: "function",
			Function: functionDef{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  params,
			},
		})
	}
	return apiTools, nil
}

// convertResponse converts OpenAI response to agent format.
func (c *Client) convertResponse(resp *chatResponse) (*llm.Response, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai response has no choices")
	}
	choice := resp.Choices[0]

	llmResp := &llm.Response{
		Usage: llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		Metadata: map[string]interface{}{
			"model":         resp.Model,
			"finish_reason": choice.FinishReason,
		},
	}

	// Map finish_reason to stop_reason
	switch choice.FinishReason {
	case "stop":
		llmResp.StopReason = "end_turn"
	case "length":
		llmResp.StopReason = "max_tokens"
	case "tool_calls", "function_call":
		llmResp.StopReason = "tool_use"
	default:
		llmResp.StopReason = choice.FinishReason
	}

	if str, ok := choice.Message.Content.(string); ok {
		llmResp.Content = str
	}

	for _, tc := range choice.Message.ToolCalls {
		input := map[string]interface{}{}
		if strings.TrimSpace(tc.Function.Arguments) != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
				c.logger.Warn("failed to parse tool arguments",
					zap.String("tool", tc.Function.Name),
					zap.String("raw", tc.Function.Arguments),
					zap.Error(err),
				)
				input = map[string]interface{}{"_raw": tc.Function.Arguments}
			}
		}

		llmResp.ToolCalls = append(llmResp.ToolCalls, llm.ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: input,
		})
	}

	return llmResp, nil
}

// callAPI makes the HTTP request to the chat completions endpoint.
func (c *Client) callAPI(ctx context.Context, req *chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		msg := string(respBody)
		var errResp chatResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != nil {
			msg = fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return nil, &llm.APIError{Provider: "openai", StatusCode: httpResp.StatusCode, Body: msg}
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("OpenAI API error: %s (type: %s)", resp.Error.Message, resp.Error.Type)
	}

	return &resp, nil
}

// Ensure Client implements Provider interface.
var _ llm.Provider = (*Client)(nil)
