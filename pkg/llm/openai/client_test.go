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

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/schema-agent/pkg/llm"
	"github.com/teradata-labs/schema-agent/pkg/shuttle"
)

func zero() *float64 { v := 0.0; return &v }

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{})
	assert.Equal(t, "openai", c.Name())
	assert.Equal(t, DefaultModel, c.Model())
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", c.endpoint)
	assert.Equal(t, DefaultMaxTokens, c.maxTokens)
	assert.Nil(t, c.temperature)

	c = NewClient(Config{BaseURL: "http://localhost:8000/v1/", Capabilities: []llm.Capability{llm.CapabilityJSONSchemaResponse}})
	assert.Equal(t, "http://localhost:8000/v1/chat/completions", c.endpoint)
	assert.True(t, c.Supports(llm.CapabilityJSONSchemaResponse))
}

func TestClient_Chat_Text(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var raw map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, "gpt-4o-mini", raw["model"])
		assert.Equal(t, 0.0, raw["temperature"])
		assert.NotContains(t, raw, "tools")

		_ = json.NewEncoder(w).Encode(chatResponse{
			Model: "gpt-4o-mini",
			Choices: []chatChoice{{
				Message:      chatMessage{Role: "assistant", Content: "There are 3 open issues."},
				FinishReason: "stop",
			}},
			Usage: chatUsage{PromptTokens: 100, CompletionTokens: 8, TotalTokens: 108},
		})
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL + "/v1", Temperature: zero()})
	resp, err := c.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "How many?"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "There are 3 open issues.", resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, 108, resp.Usage.TotalTokens)
}

func TestClient_Chat_ToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		require.Len(t, req.Tools, 2)
		assert.Equal(t, "auto", req.ToolChoice)
		assert.Equal(t, "list_resources", req.Tools[0].Function.Name)
		assert.Equal(t, map[string]interface{}{}, req.Tools[0].Function.Parameters["properties"])
		assert.Equal(t, []interface{}{"uri"}, req.Tools[1].Function.Parameters["required"])

		_ = json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{
				Message: chatMessage{Role: "assistant", ToolCalls: []toolCall{
					{ID: "call_1", Type: "function", Function: functionCall{Name: "read_resource", Arguments: `{"uri":"r1"}`}},
					{ID: "call_2", Type: "function", Function: functionCall{Name: "list_resources", Arguments: ""}},
				}},
				FinishReason: "tool_calls",
			}},
		})
	}))
	defer server.Close()

	tools := []shuttle.Tool{
		&shuttle.MockTool{MockName: "list_resources", MockSchema: shuttle.NewObjectSchema("", nil, nil)},
		&shuttle.MockTool{MockName: "read_resource", MockSchema: shuttle.NewObjectSchema("", map[string]*shuttle.JSONSchema{
			"uri": shuttle.NewStringSchema("uri"),
		}, []string{"uri"})},
	}

	c := NewClient(Config{BaseURL: server.URL})
	resp, err := c.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "tables?"}}, tools)
	require.NoError(t, err)
	assert.Equal(t, "tool_use", resp.StopReason)
	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, llm.ToolCall{ID: "call_1", Name: "read_resource", Input: map[string]interface{}{"uri": "r1"}}, resp.ToolCalls[0])
	assert.Equal(t, map[string]interface{}{}, resp.ToolCalls[1].Input)
}

func TestConvertMessages(t *testing.T) {
	msgs := convertMessages([]llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleUser, Content: "q"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "c1", Name: "list_resources"}}},
		{Role: llm.RoleTool, ToolUseID: "c1", Content: "[]"},
	})
	require.Len(t, msgs, 4)
	assert.Nil(t, msgs[2].Content)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, "{}", msgs[2].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "c1", msgs[3].ToolCallID)
}

func TestClient_Chat_Errors(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
		}))
		defer server.Close()

		_, err := NewClient(Config{BaseURL: server.URL}).Chat(context.Background(), nil, nil)
		var apiErr *llm.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "Rate limit reached (type: requests)", apiErr.Body)
		assert.True(t, llm.IsTransient(err))
	})

	t.Run("no choices", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))
		defer server.Close()

		_, err := NewClient(Config{BaseURL: server.URL}).Chat(context.Background(), nil, nil)
		assert.ErrorContains(t, err, "no choices")
	})
}
