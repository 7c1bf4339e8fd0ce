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

package adapter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/schema-agent/pkg/mcp/client"
	"github.com/teradata-labs/schema-agent/pkg/mcp/mcptest"
	"github.com/teradata-labs/schema-agent/pkg/mcp/protocol"
	"github.com/teradata-labs/schema-agent/pkg/shuttle"
)

type fakeCaller struct {
	tools    []protocol.Tool
	listErr  error
	result   *protocol.CallToolResult
	callErr  error
	lastName string
	lastArgs map[string]interface{}
}

func (f *fakeCaller) ListTools(context.Context) ([]protocol.Tool, error) {
	return f.tools, f.listErr
}

func (f *fakeCaller) CallTool(_ context.Context, name string, args map[string]interface{}) (*protocol.CallToolResult, error) {
	f.lastName = name
	f.lastArgs = args
	return f.result, f.callErr
}

func queryTool() protocol.Tool {
	return protocol.Tool{
		Name:        "query",
		Description: "Run a read-only SQL query",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"sql":          map[string]interface{}{"type": "string"},
				"databaseName": map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"sql", "databaseName"},
		},
	}
}

func TestMCPToolAdapter_Name(t *testing.T) {
	assert.Equal(t, "query", NewMCPToolAdapter(nil, queryTool(), "").Name())
	assert.Equal(t, "postgres_query", NewMCPToolAdapter(nil, queryTool(), "postgres").Name())
}

func TestMCPToolAdapter_InputSchema(t *testing.T) {
	a := NewMCPToolAdapter(nil, queryTool(), "")
	schema := a.InputSchema()

	assert.Equal(t, "object", schema.Type)
	assert.Contains(t, schema.Properties, "sql")
	assert.Contains(t, schema.Properties, "database_name")
	assert.ElementsMatch(t, []string{"sql", "database_name"}, schema.Required)
	assert.Equal(t, "Run a read-only SQL query", a.Description())
}

func TestMCPToolAdapter_InputSchema_Missing(t *testing.T) {
	a := NewMCPToolAdapter(nil, protocol.Tool{Name: "noop"}, "")
	schema := a.InputSchema()
	assert.Equal(t, "object", schema.Type)
	assert.NotNil(t, schema.Properties)
}

func TestMCPToolAdapter_Execute(t *testing.T) {
	caller := &fakeCaller{result: &protocol.CallToolResult{
		Content: []protocol.Content{{Type: "text", Text: `[{"count":3}]`}},
	}}
	a := NewMCPToolAdapter(caller, queryTool(), "")
	a.SetLogger(zaptest.NewLogger(t))

	result, err := a.Execute(context.Background(), map[string]interface{}{
		"sql":           "SELECT count(*) FROM issues",
		"database_name": "tracker",
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, `[{"count":3}]`, result.Data)

	assert.Equal(t, "query", caller.lastName)
	assert.Equal(t, map[string]interface{}{
		"sql":          "SELECT count(*) FROM issues",
		"databaseName": "tracker",
	}, caller.lastArgs)
}

func TestMCPToolAdapter_ExecuteFailureIsResult(t *testing.T) {
	caller := &fakeCaller{callErr: errors.New("tool error: relation \"nope\" does not exist")}
	a := NewMCPToolAdapter(caller, queryTool(), "")

	result, err := a.Execute(context.Background(), map[string]interface{}{"sql": "SELECT * FROM nope"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "mcp_call_failed", result.Error.Code)
	assert.Contains(t, result.Text(), "does not exist")
}

func TestMCPToolAdapter_Truncation(t *testing.T) {
	long := strings.Repeat("row\n", 100)
	caller := &fakeCaller{result: &protocol.CallToolResult{
		Content: []protocol.Content{{Type: "text", Text: long}},
	}}
	a := NewMCPToolAdapter(caller, queryTool(), "")
	a.SetMaxResultBytes(50)

	result, err := a.Execute(context.Background(), map[string]interface{}{"sql": "SELECT 1"})
	require.NoError(t, err)
	require.True(t, result.Success)

	text := result.Data.(string)
	assert.Contains(t, text, "[TRUNCATED")
	assert.True(t, strings.HasPrefix(text, "row\n"))
	assert.Equal(t, true, result.Metadata["truncated"])
	assert.Equal(t, len(long), result.Metadata["original_size"])
}

func TestConvertMCPContent(t *testing.T) {
	assert.Nil(t, convertMCPContent(nil))
	assert.Equal(t, "hi", convertMCPContent([]protocol.Content{{Type: "text", Text: "hi"}}))

	mixed := convertMCPContent([]protocol.Content{
		{Type: "text", Text: "chart"},
		{Type: "image", Data: "aGk=", MimeType: "image/png"},
	}).([]map[string]interface{})
	require.Len(t, mixed, 2)
	assert.Equal(t, "chart", mixed[0]["text"])
	assert.Equal(t, "image/png", mixed[1]["mimeType"])
}

func TestAdaptMCPTools(t *testing.T) {
	caller := &fakeCaller{tools: []protocol.Tool{queryTool(), {Name: "explain"}}}
	tools, err := AdaptMCPTools(context.Background(), caller, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "query", tools[0].Name())
	assert.Equal(t, "explain", tools[1].Name())

	_, err = AdaptMCPTools(context.Background(), &fakeCaller{listErr: errors.New("boom")}, "", nil)
	assert.ErrorContains(t, err, "failed to list MCP tools")
}

func TestMCPToolAdapter_ThroughClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := mcptest.NewServer(zaptest.NewLogger(t)).AddTool(queryTool(),
		func(_ context.Context, args map[string]interface{}) (*protocol.CallToolResult, error) {
			return &protocol.CallToolResult{Content: []protocol.Content{
				{Type: "text", Text: "db=" + args["databaseName"].(string)},
			}}, nil
		})

	c, err := client.NewClient(client.Config{Transport: srv.Connect(ctx), Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	defer c.Close()

	tools, err := AdaptMCPTools(ctx, c, "", nil)
	require.NoError(t, err)
	require.Len(t, tools, 1)

	registry := shuttle.NewRegistry()
	require.NoError(t, registry.Register(tools[0]))
	result := shuttle.NewExecutor(registry, nil).Execute(ctx, "query", map[string]interface{}{
		"sql":           "SELECT 1",
		"database_name": "tracker",
	})
	require.True(t, result.Success, result.Text())
	assert.Equal(t, "db=tracker", result.Text())
}
