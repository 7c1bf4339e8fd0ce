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

// Package ollama implements llm.Provider against a local Ollama server.
package ollama

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

// DefaultEndpoint is where a local Ollama listens.
const DefaultEndpoint = "http://localhost:11434"

// Client implements the llm.Provider interface for Ollama.
type Client struct {
	endpoint    string
	model       string
	httpClient  *http.Client
	maxTokens   int
	temperature float64
	toolMode    ToolMode
	logger      *zap.Logger

	// capabilities are declared by configuration; Chat does not consult them.
	capabilities []llm.Capability
}

// Models known to support native tool calling (Ollama v0.12.3+)
var toolSupportedModels = []string{
	"llama3.3",
	"llama3.2",
	"llama3.1",
	"qwen2.5",
	"qwen3",
	"mistral",
	"mixtral",
	"functionary",
}

// ToolMode defines how tools are handled.
type ToolMode string

const (
	// ToolModeAuto automatically detects if the model supports native tool calling
	ToolModeAuto ToolMode = "auto"
	// ToolModeNative uses Ollama's native tool calling API
	ToolModeNative ToolMode = "native"
	// ToolModePrompt sends no tools; tool results are folded into user messages
	ToolModePrompt ToolMode = "prompt"
)

// Config holds configuration for the Ollama client.
type Config struct {
	Endpoint     string        // Default: http://localhost:11434
	Model        string        // Required: e.g., llama3.1, qwen2.5:7b
	MaxTokens    int           // Default: model-aware
	Temperature  *float64      // Default: 0.8
	Timeout      time.Duration // Default: 120s
	ToolMode     ToolMode      // Default: auto
	Capabilities []llm.Capability
	Logger       *zap.Logger
}

// getDefaultMaxTokens returns max_tokens based on model size.
func getDefaultMaxTokens(model string) int {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "70b"), strings.Contains(m, "72b"), strings.Contains(m, "405b"):
		return 8192
	case strings.Contains(m, "13b"), strings.Contains(m, "14b"), strings.Contains(m, "32b"):
		return 6144
	default:
		// 7B-8B or unknown
		return 4096
	}
}

// NewClient creates a new Ollama client.
func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.1"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = getDefaultMaxTokens(cfg.Model)
	}
	temperature := 0.8
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.ToolMode == "" {
		cfg.ToolMode = ToolModeAuto
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Client{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		model:        cfg.Model,
		maxTokens:    cfg.MaxTokens,
		temperature:  temperature,
		toolMode:     cfg.ToolMode,
		capabilities: cfg.Capabilities,
		logger:       cfg.Logger,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "ollama"
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

// supportsNativeTools checks if the model supports native tool calling.
func (c *Client) supportsNativeTools() bool {
	switch c.toolMode {
	case ToolModeNative:
		return true
	case ToolModePrompt:
		return false
	}
	for _, base := range toolSupportedModels {
		if strings.HasPrefix(c.model, base) {
			return true
		}
	}
	return false
}

// Chat sends a conversation to Ollama and returns the response.
func (c *Client) Chat(ctx context.Context, messages []llm.Message, tools []shuttle.Tool) (*llm.Response, error) {
	req := chatRequest{
		Model:    c.model,
		Messages: c.convertMessages(messages),
		Stream:   false,
		Options: map[string]interface{}{
			"temperature": c.temperature,
			"num_predict": c.maxTokens,
		},
	}

	if c.supportsNativeTools() && len(tools) > 0 {
		req.Tools = convertTools(tools)
	}

	resp, err := c.callAPI(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("ollama API call failed: %w", err)
	}

	return c.convertResponse(resp), nil
}

// convertTools converts shuttle.Tool to Ollama tool format.
func convertTools(tools []shuttle.Tool) []ollamaTool {
	ollamaTools := make([]ollamaTool, len(tools))
	for i, tool := range tools {
		ollamaTools[i] = ollamaTool{
			Type: "function",
			Function: ollamaFunction{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  shuttle.NormalizeSchema(tool.InputSchema()),
			},
		}
	}
	return ollamaTools
}

// convertMessages converts agent messages to Ollama format.
func (c *Client) convertMessages(messages []llm.Message) []ollamaMessage {
	apiMessages := make([]ollamaMessage, 0, len(messages))
	native := c.supportsNativeTools()

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem, llm.RoleUser:
			apiMessages = append(apiMessages, ollamaMessage{Role: msg.Role, Content: msg.Content})

		case llm.RoleAssistant:
			out := ollamaMessage{Role: llm.RoleAssistant, Content: msg.Content}
			if native {
				for _, tc := range msg.ToolCalls {
					out.ToolCalls = append(out.ToolCalls, ollamaToolCall{
						ID:       tc.ID,
						Type:     "function",
						Function: ollamaFunctionCall{Name: tc.Name, Arguments: tc.Input},
					})
				}
			}
			apiMessages = append(apiMessages, out)

		case llm.RoleTool:
			if native {
				apiMessages = append(apiMessages, ollamaMessage{
					Role:     llm.RoleTool,
					Content:  msg.Content,
					ToolName: msg.ToolName,
				})
			} else {
				apiMessages = append(apiMessages, ollamaMessage{
					Role:    llm.RoleUser,
					Content: fmt.Sprintf("Tool result: %s", msg.Content),
				})
			}
		}
	}

	return apiMessages
}

// cleanJSONString removes common formatting issues from JSON strings.
func cleanJSONString(s string) string {
	s = strings.TrimSpace(s)

	// Strip surrounding backticks (common in Ollama responses)
	if len(s) >= 2 && s[0] == '`' && s[len(s)-1] == '`' {
		s = strings.Trim(s, "`")
	}

	// Strip "json" language marker after opening backticks
	if len(s) > 4 && strings.HasPrefix(s, "json") && strings.ContainsRune("\n\r \t", rune(s[4])) {
		s = strings.TrimSpace(s[4:])
	}

	return s
}

// convertResponse converts Ollama response to agent format.
func (c *Client) convertResponse(resp *chatResponse) *llm.Response {
	var toolCalls []llm.ToolCall
	for i, tc := range resp.Message.ToolCalls {
		var params map[string]interface{}
		switch args := tc.Function.Arguments.(type) {
		case string:
			cleaned := cleanJSONString(args)
			if err := json.Unmarshal([]byte(cleaned), &params); err != nil {
				c.logger.Warn("failed to parse tool arguments",
					zap.String("tool", tc.Function.Name),
					zap.String("raw", args),
					zap.Error(err),
				)
				params = make(map[string]interface{})
			}
		case map[string]interface{}:
			params = args
		default:
			params = make(map[string]interface{})
		}

		id := tc.ID
		if id == "" {
			// Older Ollama versions omit call ids.
			id = fmt.Sprintf("call_%d", i)
		}
		toolCalls = append(toolCalls, llm.ToolCall{
			ID:    id,
			Name:  tc.Function.Name,
			Input: params,
		})
	}

	return &llm.Response{
		Content:    resp.Message.Content,
		ToolCalls:  toolCalls,
		StopReason: stopReason(resp.DoneReason, len(toolCalls) > 0),
		Usage: llm.Usage{
			InputTokens:  resp.PromptEvalCount,
			OutputTokens: resp.EvalCount,
			TotalTokens:  resp.PromptEvalCount + resp.EvalCount,
		},
		Metadata: map[string]interface{}{
			"model":         resp.Model,
			"eval_duration": resp.EvalDuration,
			"native_tools":  c.supportsNativeTools(),
		},
	}
}

// stopReason maps done_reason onto the values the other backends report.
func stopReason(doneReason string, calledTools bool) string {
	switch {
	case calledTools:
		return "tool_use"
	case doneReason == "" || doneReason == "stop":
		return "end_turn"
	case doneReason == "length":
		return "max_tokens"
	default:
		return doneReason
	}
}

// callAPI makes the HTTP request to Ollama.
func (c *Client) callAPI(ctx context.Context, req chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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
		return nil, &llm.APIError{Provider: "ollama", StatusCode: httpResp.StatusCode, Body: string(respBody)}
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &resp, nil
}

// Ollama API types

type chatRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Tools    []ollamaTool           `json:"tools,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaTool struct {
	Type     string         `json:"type"`
	Function ollamaFunction `json:"function"`
}

type ollamaFunction struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Parameters  *shuttle.JSONSchema `json:"parameters"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function ollamaFunctionCall `json:"function"`
}

type ollamaFunctionCall struct {
	Name      string      `json:"name"`
	Arguments interface{} `json:"arguments"` // Can be string or map
}

type chatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	EvalDuration    int64         `json:"eval_duration"`
}

// Ensure Client implements Provider interface.
var _ llm.Provider = (*Client)(nil)
