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

// Package adapter exposes MCP client operations and MCP server tools as
// shuttle.Tool values an agent can call.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/teradata-labs/schema-agent/pkg/mcp/protocol"
	"github.com/teradata-labs/schema-agent/pkg/shuttle"
)

// DefaultMaxResultBytes is the maximum size of a bridged tool result before
// truncation. 20KB is roughly 5K tokens.
const DefaultMaxResultBytes = 20000

// ToolCaller is the part of *client.Client needed to bridge server tools.
type ToolCaller interface {
	ListTools(ctx context.Context) ([]protocol.Tool, error)
	CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*protocol.CallToolResult, error)
}

// MCPToolAdapter wraps an MCP server tool as a shuttle.Tool.
type MCPToolAdapter struct {
	client         ToolCaller
	tool           protocol.Tool
	prefix         string
	maxResultBytes int
	logger         *zap.Logger
}

// NewMCPToolAdapter creates a new adapter that wraps an MCP tool. A non-empty
// prefix is prepended to the tool name to avoid collisions with local tools.
func NewMCPToolAdapter(client ToolCaller, tool protocol.Tool, prefix string) *MCPToolAdapter {
	return &MCPToolAdapter{
		client:         client,
		tool:           tool,
		prefix:         prefix,
		maxResultBytes: DefaultMaxResultBytes,
		logger:         zap.NewNop(),
	}
}

// SetLogger configures the structured logger for this adapter.
func (a *MCPToolAdapter) SetLogger(logger *zap.Logger) {
	if logger != nil {
		a.logger = logger
	}
}

// SetMaxResultBytes overrides the truncation limit. Zero disables truncation.
func (a *MCPToolAdapter) SetMaxResultBytes(n int) {
	a.maxResultBytes = n
}

// Name implements shuttle.Tool. Model APIs restrict tool names to
// [a-zA-Z0-9_-], so the prefix is joined with an underscore.
func (a *MCPToolAdapter) Name() string {
	if a.prefix == "" {
		return a.tool.Name
	}
	return a.prefix + "_" + a.tool.Name
}

// Description implements shuttle.Tool
func (a *MCPToolAdapter) Description() string {
	return a.tool.Description
}

// InputSchema implements shuttle.Tool. Property names are exposed in
// snake_case, which models produce more reliably than camelCase.
func (a *MCPToolAdapter) InputSchema() *shuttle.JSONSchema {
	schema, err := shuttle.FromMap(a.tool.InputSchema)
	if err != nil {
		a.logger.Debug("unusable tool input schema, accepting any object",
			zap.String("tool", a.tool.Name), zap.Error(err))
		schema = nil
	}
	if schema == nil {
		return shuttle.NormalizeSchema(nil)
	}

	if schema.Properties != nil {
		props := make(map[string]*shuttle.JSONSchema, len(schema.Properties))
		for key, prop := range schema.Properties {
			props[toSnakeCase(key)] = prop
		}
		schema.Properties = props

		required := make([]string, len(schema.Required))
		for i, req := range schema.Required {
			required[i] = toSnakeCase(req)
		}
		schema.Required = required
	}

	return shuttle.NormalizeSchema(schema)
}

// Execute implements shuttle.Tool. Call failures are returned as an
// unsuccessful result so the model can see them.
func (a *MCPToolAdapter) Execute(ctx context.Context, params map[string]interface{}) (*shuttle.Result, error) {
	start := time.Now()

	args := a.restoreParameterNames(params)
	result, err := a.client.CallTool(ctx, a.tool.Name, args)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return &shuttle.Result{
			Success: false,
			Error: &shuttle.Error{
				Code:      "mcp_call_failed",
				Message:   err.Error(),
				Retryable: true,
			},
			ExecutionTimeMs: elapsed,
		}, nil
	}

	data := convertMCPContent(result.Content)
	metadata := map[string]interface{}{"tool_name": a.tool.Name}
	if a.maxResultBytes > 0 {
		var truncated bool
		var originalSize int
		data, truncated, originalSize = truncateResult(data, a.maxResultBytes)
		if truncated {
			metadata["truncated"] = true
			metadata["original_size"] = originalSize
		}
	}

	return &shuttle.Result{
		Success:         true,
		Data:            data,
		Metadata:        metadata,
		ExecutionTimeMs: elapsed,
	}, nil
}

// restoreParameterNames maps snake_case argument names back to the names the
// server's schema declares. Unknown names pass through unchanged.
func (a *MCPToolAdapter) restoreParameterNames(params map[string]interface{}) map[string]interface{} {
	if params == nil {
		return map[string]interface{}{}
	}

	original := make(map[string]string)
	if props, ok := a.tool.InputSchema["properties"].(map[string]interface{}); ok {
		for key := range props {
			original[toSnakeCase(key)] = key
		}
	}

	restored := make(map[string]interface{}, len(params))
	for key, value := range params {
		if name, ok := original[key]; ok {
			restored[name] = value
		} else {
			restored[key] = value
		}
	}
	return restored
}

// AdaptMCPTools lists the server's tools and wraps each as a shuttle.Tool.
func AdaptMCPTools(ctx context.Context, caller ToolCaller, prefix string, logger *zap.Logger) ([]shuttle.Tool, error) {
	mcpTools, err := caller.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list MCP tools: %w", err)
	}

	tools := make([]shuttle.Tool, 0, len(mcpTools))
	for _, mcpTool := range mcpTools {
		adapter := NewMCPToolAdapter(caller, mcpTool, prefix)
		adapter.SetLogger(logger)
		tools = append(tools, adapter)
	}
	return tools, nil
}

// convertMCPContent converts MCP Content array to shuttle-compatible data
func convertMCPContent(content []protocol.Content) interface{} {
	if len(content) == 0 {
		return nil
	}

	// If single text content, return as string
	if len(content) == 1 && content[0].Type == "text" {
		return content[0].Text
	}

	results := make([]map[string]interface{}, len(content))
	for i, c := range content {
		item := map[string]interface{}{"type": c.Type}
		switch c.Type {
		case "text":
			item["text"] = c.Text
		default:
			item["data"] = c.Data
			item["mimeType"] = c.MimeType
		}
		results[i] = item
	}
	return results
}

// truncateResult caps the encoded size of data at limit bytes.
// Returns: (truncatedData, wasTruncated, originalSize)
func truncateResult(data interface{}, limit int) (interface{}, bool, int) {
	var s string
	switch v := data.(type) {
	case nil:
		return nil, false, 0
	case string:
		s = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return data, false, 0
		}
		if len(encoded) <= limit {
			return data, false, len(encoded)
		}
		s = string(encoded)
	}

	originalSize := len(s)
	if originalSize <= limit {
		return s, false, originalSize
	}

	truncated := s[:limit]
	// Prefer cutting at a row boundary.
	if lastNewline := strings.LastIndex(truncated, "\n"); lastNewline > limit/2 {
		truncated = truncated[:lastNewline]
	}

	notice := fmt.Sprintf("\n\n[TRUNCATED: showing %d of %d bytes. Narrow the query for full results.]",
		len(truncated), originalSize)
	return truncated + notice, true, originalSize
}

// toSnakeCase converts a camelCase string to snake_case.
// Example: "databaseName" -> "database_name"
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				result.WriteRune('_')
			}
			result.WriteRune(unicode.ToLower(r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
