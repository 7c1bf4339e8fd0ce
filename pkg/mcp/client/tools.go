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

package client

import (
	"context"
	"fmt"

	"github.com/teradata-labs/schema-agent/pkg/mcp/protocol"
)

// ListTools returns all available tools from the server and refreshes the
// tool cache used by CallTool.
func (c *Client) ListTools(ctx context.Context) ([]protocol.Tool, error) {
	var result protocol.ToolListResult
	if err := c.call(ctx, protocol.MethodToolsList, struct{}{}, &result); err != nil {
		return nil, err
	}

	c.toolsMu.Lock()
	c.tools = make(map[string]protocol.Tool, len(result.Tools))
	for _, tool := range result.Tools {
		c.tools[tool.Name] = tool
	}
	c.toolsMu.Unlock()

	return result.Tools, nil
}

// CallTool invokes a server tool after validating arguments against its input
// schema. A result flagged isError is returned as an error.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*protocol.CallToolResult, error) {
	tool, err := c.getTool(ctx, name)
	if err != nil {
		return nil, err
	}

	if err := protocol.ValidateToolArguments(tool, arguments); err != nil {
		return nil, fmt.Errorf("invalid arguments for tool %s: %w", name, err)
	}

	params := protocol.CallToolParams{
		Name:      name,
		Arguments: arguments,
	}

	var result protocol.CallToolResult
	if err := c.call(ctx, protocol.MethodToolsCall, params, &result); err != nil {
		return nil, err
	}

	if result.IsError {
		if len(result.Content) > 0 && result.Content[0].Type == "text" {
			return nil, fmt.Errorf("tool error: %s", result.Content[0].Text)
		}
		return nil, fmt.Errorf("tool %s returned an error", name)
	}

	return &result, nil
}

// getTool retrieves tool definition from cache or server
func (c *Client) getTool(ctx context.Context, name string) (protocol.Tool, error) {
	c.toolsMu.RLock()
	tool, exists := c.tools[name]
	c.toolsMu.RUnlock()
	if exists {
		return tool, nil
	}

	if _, err := c.ListTools(ctx); err != nil {
		return protocol.Tool{}, err
	}

	c.toolsMu.RLock()
	tool, exists = c.tools[name]
	c.toolsMu.RUnlock()
	if !exists {
		return protocol.Tool{}, fmt.Errorf("tool %s not found", name)
	}

	return tool, nil
}
