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

// Package anthropic implements llm.Provider with the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/teradata-labs/schema-agent/pkg/llm"
	"github.com/teradata-labs/schema-agent/pkg/shuttle"
)

// Default configuration values.
const (
	DefaultModel     = "claude-sonnet-4-5"
	DefaultMaxTokens = 4096
	DefaultTimeout   = 120 * time.Second
)

// Config holds configuration for the Anthropic client.
type Config struct {
	APIKey      string
	Model       string        // Default: claude-sonnet-4-5
	BaseURL     string        // Default: SDK default
	MaxTokens   int           // Default: 4096
	Temperature *float64      // Default: API default
	Timeout     time.Duration // Default: 120s
	Logger      *zap.Logger
}

// Client implements the llm.Provider interface for Anthropic.
type Client struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature *float64
	logger      *zap.Logger
}

// NewClient creates a new Anthropic client. SDK retries are disabled because
// the agent retries chat calls itself.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	opts := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "anthropic"
}

// Model returns the model identifier.
func (c *Client) Model() string {
	return c.model
}

// Chat sends a conversation to Anthropic and returns the response.
func (c *Client) Chat(ctx context.Context, messages []llm.Message, tools []shuttle.Tool) (*llm.Response, error) {
	systemPrompt, sdkMessages := convertMessages(messages)
	if len(sdkMessages) == 0 {
		return nil, fmt.Errorf("no valid messages to send (messages may be empty)")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		Messages:  sdkMessages,
		MaxTokens: c.maxTokens,
	}
	if c.temperature != nil {
		params.Temperature = anthropic.Float(*c.temperature)
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	if len(tools) > 0 {
		sdkTools, err := convertTools(tools)
		if err != nil {
			return nil, err
		}
		toolUnions := make([]anthropic.ToolUnionParam, len(sdkTools))
		for i := range sdkTools {
			toolUnions[i] = anthropic.ToolUnionParam{OfTool: &sdkTools[i]}
		}
		params.Tools = toolUnions
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var sdkErr *anthropic.Error
		if errors.As(err, &sdkErr) {
			return nil, fmt.Errorf("anthropic API call failed: %w",
				&llm.APIError{Provider: "anthropic", StatusCode: sdkErr.StatusCode, Body: sdkErr.Error()})
		}
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	return c.convertResponse(message), nil
}

// convertMessages converts agent messages to Anthropic SDK format.
// Returns the system prompt and the API messages. Consecutive tool results
// are merged into one user message, as the API requires.
func convertMessages(messages []llm.Message) (string, []anthropic.MessageParam) {
	var systemPrompts []string
	var sdkMessages []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flushResults := func() {
		if len(pendingResults) > 0 {
			sdkMessages = append(sdkMessages, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			if msg.Content != "" {
				systemPrompts = append(systemPrompts, msg.Content)
			}

		case llm.RoleUser:
			flushResults()
			if msg.Content != "" {
				sdkMessages = append(sdkMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			}

		case llm.RoleAssistant:
			flushResults()
			var content []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				content = append(content, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				// Ensure input is never null
				var input interface{} = map[string]interface{}{}
				if tc.Input != nil {
					input = tc.Input
				}
				content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(content) > 0 {
				sdkMessages = append(sdkMessages, anthropic.NewAssistantMessage(content...))
			}

		case llm.RoleTool:
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(msg.ToolUseID, msg.Content, msg.IsError))
		}
	}
	flushResults()

	return strings.Join(systemPrompts, "\n\n"), sdkMessages
}

// convertTools converts shuttle tools to Anthropic SDK format.
func convertTools(tools []shuttle.Tool) ([]anthropic.ToolParam, error) {
	sdkTools := make([]anthropic.ToolParam, 0, len(tools))
	for _, tool := range tools {
		schemaJSON, err := json.Marshal(shuttle.NormalizeSchema(tool.InputSchema()))
		if err != nil {
			return nil, fmt.Errorf("tool %s: invalid input schema: %w", tool.Name(), err)
		}
		var inputSchema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(schemaJSON, &inputSchema); err != nil {
			return nil, fmt.Errorf("tool %s: invalid input schema: %w", tool.Name(), err)
		}

		sdkTools = append(sdkTools, anthropic.ToolParam{
			Name:        tool.Name(),
			Description: anthropic.String(tool.Description()),
			InputSchema: inputSchema,
		})
	}
	return sdkTools, nil
}

// convertResponse converts Anthropic SDK response to agent format.
func (c *Client) convertResponse(message *anthropic.Message) *llm.Response {
	resp := &llm.Response{
		StopReason: string(message.StopReason),
		Usage: llm.Usage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
			TotalTokens:  int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
		Metadata: map[string]interface{}{
			"model":      string(message.Model),
			"message_id": message.ID,
		},
	}

	for _, block := range message.Content {
		switch block.Type {
		case "text":
			resp.Content += block.Text
		case "tool_use":
			var input map[string]interface{}
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &input); err != nil {
					c.logger.Warn("failed to parse tool input", zap.String("tool", block.Name), zap.Error(err))
				}
			}
			if input == nil {
				input = map[string]interface{}{}
			}
			resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}

	return resp
}

// Ensure Client implements Provider interface.
var _ llm.Provider = (*Client)(nil)
