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

package session

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/schema-agent/pkg/agent"
	"github.com/teradata-labs/schema-agent/pkg/docker"
	"github.com/teradata-labs/schema-agent/pkg/llm"
	"github.com/teradata-labs/schema-agent/pkg/mcp/client"
	"github.com/teradata-labs/schema-agent/pkg/mcp/mcptest"
	"github.com/teradata-labs/schema-agent/pkg/mcp/protocol"
	"github.com/teradata-labs/schema-agent/pkg/mcp/transport"
	"github.com/teradata-labs/schema-agent/pkg/prompts"
	"github.com/teradata-labs/schema-agent/pkg/shuttle"
)

type countingTransport struct {
	transport.Transport
	closes atomic.Int32
}

func (c *countingTransport) Close() error {
	c.closes.Add(1)
	return c.Transport.Close()
}

// fakeProvider answers with reply, which sees every request.
type fakeProvider struct {
	mu       sync.Mutex
	reply    func(call int, messages []llm.Message, tools []shuttle.Tool) (*llm.Response, error)
	requests [][]llm.Message
	tools    [][]string
}

func (f *fakeProvider) Chat(_ context.Context, messages []llm.Message, tools []shuttle.Tool) (*llm.Response, error) {
	f.mu.Lock()
	call := len(f.requests)
	f.requests = append(f.requests, append([]llm.Message(nil), messages...))
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name()
	}
	f.tools = append(f.tools, names)
	f.mu.Unlock()

	if f.reply == nil {
		return &llm.Response{Content: "answer"}, nil
	}
	return f.reply(call, messages, tools)
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-1" }

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func answer(text string) func(int, []llm.Message, []shuttle.Tool) (*llm.Response, error) {
	return func(int, []llm.Message, []shuttle.Tool) (*llm.Response, error) {
		return &llm.Response{Content: text, StopReason: "end_turn"}, nil
	}
}

func connectServer(t *testing.T, srv *mcptest.Server) *countingTransport {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &countingTransport{Transport: srv.Connect(ctx)}
}

func testConfig(t *testing.T, input string) Config {
	return Config{ID: "test-session", Input: input, Logger: zaptest.NewLogger(t)}
}

func TestRun_TwoTables(t *testing.T) {
	srv := mcptest.NewServer(nil).
		AddTextResource("postgres://db/issues/schema", "issues", "id,title").
		AddTextResource("postgres://db/projects/schema", "projects", "id,name")
	tr := connectServer(t, srv)
	provider := &fakeProvider{reply: answer("There are two tables.")}

	out, err := Run(context.Background(), testConfig(t, "Which tables exist?"), Deps{Transport: tr, Provider: provider})
	require.NoError(t, err)

	assert.Equal(t, "test-session", out.SessionID)
	assert.Equal(t, "mcptest", out.Server.Name)
	assert.Equal(t, "issues = id,title\n\nprojects = id,name\n\n", out.Schema.String())
	assert.Equal(t, "There are two tables.", out.Result.Response)
	assert.True(t, out.Result.Answered)

	assert.Contains(t, out.Prompt, "issues = id,title\n\nprojects = id,name\n\n")
	assert.Contains(t, out.Prompt, "Which tables exist?")

	require.Equal(t, 1, provider.calls())
	sent := provider.requests[0]
	require.Len(t, sent, 1)
	assert.Equal(t, llm.RoleUser, sent[0].Role)
	assert.Equal(t, out.Prompt, sent[0].Content)
	assert.Equal(t, []string{"list_resources", "read_resource"}, provider.tools[0])

	assert.Equal(t, int32(1), tr.closes.Load())
	assert.Equal(t, 1, srv.ReadCount("postgres://db/issues/schema"))
}

func TestRun_EmptyServer(t *testing.T) {
	tr := connectServer(t, mcptest.NewServer(nil))
	provider := &fakeProvider{reply: answer("")}

	out, err := Run(context.Background(), testConfig(t, "anything?"), Deps{Transport: tr, Provider: provider})
	require.NoError(t, err)

	assert.Equal(t, "", out.Schema.String())
	assert.Equal(t, agent.NoResponse, out.Result.Response)
	assert.False(t, out.Result.Answered)
	assert.Equal(t, 1, provider.calls())
	assert.Equal(t, int32(1), tr.closes.Load())
}

func TestRun_ReadFailureAbortsBeforeModel(t *testing.T) {
	srv := mcptest.NewServer(nil).
		AddTextResource("r1", "issues", "id,title").
		AddTextResource("r3", "users", "id,email").
		Handle(protocol.MethodResourcesList, func(context.Context, json.RawMessage) (interface{}, error) {
			return protocol.ResourceListResult{Resources: []protocol.Resource{
				{URI: "r1", Name: "issues"},
				{URI: "r2", Name: "projects"},
				{URI: "r3", Name: "users"},
			}}, nil
		})
	tr := connectServer(t, srv)
	provider := &fakeProvider{}

	out, err := Run(context.Background(), testConfig(t, "q"), Deps{Transport: tr, Provider: provider})
	require.Error(t, err)
	assert.Nil(t, out)

	var protoErr *client.ProtocolError
	require.True(t, errors.As(err, &protoErr))
	assert.Equal(t, protocol.MethodResourcesRead, protoErr.Method)

	assert.Equal(t, 0, provider.calls())
	assert.Equal(t, 0, srv.ReadCount("r3"))
	assert.Equal(t, int32(1), tr.closes.Load())
}

func TestRun_ServerExitsMidReceive(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	// Answers initialize, swallows the initialized notification, then exits
	// after reading resources/list.
	script := `read line
printf '%s\n' '{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":"2024-11-05","capabilities":{"resources":{}},"serverInfo":{"name":"sh","version":"1"}}}'
read line
read line
exit 0`

	cfg := testConfig(t, "q")
	cfg.Server = ServerConfig{Command: "sh", Args: []string{"-c", script}}
	provider := &fakeProvider{}

	out, err := Run(context.Background(), cfg, Deps{Provider: provider})
	require.Error(t, err)
	assert.Nil(t, out)

	var ioErr *transport.IOError
	require.True(t, errors.As(err, &ioErr), "got %v", err)
	assert.Equal(t, "receive", ioErr.Op)
	assert.Equal(t, 0, provider.calls())
}

func TestRun_LaunchFailure(t *testing.T) {
	cfg := testConfig(t, "q")
	cfg.Server = ServerConfig{Command: "schema-agent-test-no-such-binary"}

	_, err := Run(context.Background(), cfg, Deps{Provider: &fakeProvider{}})
	var launchErr *transport.LaunchError
	require.True(t, errors.As(err, &launchErr), "got %v", err)
	assert.Equal(t, "schema-agent-test-no-such-binary", launchErr.Command)
}

func TestRun_MissingCommand(t *testing.T) {
	_, err := Run(context.Background(), testConfig(t, "q"), Deps{})
	assert.ErrorContains(t, err, "mcp.command is required")
}

func TestRun_InvalidConnectionStringStopsLaunch(t *testing.T) {
	cfg := testConfig(t, "q")
	cfg.Server = ServerConfig{
		Command: "schema-agent-test-no-such-binary",
		Args:    []string{"run", "-i", "mcp/postgres", "postgresql://u:p@localhost:abc/db"},
	}

	_, err := Run(context.Background(), cfg, Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid postgres connection string")
	var launchErr *transport.LaunchError
	assert.False(t, errors.As(err, &launchErr))
}

func TestRun_PreflightFailureStopsLaunch(t *testing.T) {
	var got docker.PreflightConfig
	cfg := testConfig(t, "q")
	cfg.Server = ServerConfig{
		Command:   "docker",
		Args:      []string{"run", "-i", "--rm", "mcp/postgres", "postgresql://u:p@localhost/db"},
		Preflight: true,
		Pull:      true,
	}

	_, err := Run(context.Background(), cfg, Deps{
		Preflight: func(_ context.Context, pc docker.PreflightConfig) (*docker.PreflightReport, error) {
			got = pc
			return nil, errors.New("failed to ping Docker daemon")
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "container preflight")
	assert.Equal(t, "mcp/postgres", got.Image)
	assert.True(t, got.Pull)
}

func TestRun_AgentReadsResourceThroughClient(t *testing.T) {
	srv := mcptest.NewServer(nil).AddTextResource("postgres://db/issues/schema", "issues", "id,title")
	tr := connectServer(t, srv)

	provider := &fakeProvider{reply: func(call int, messages []llm.Message, _ []shuttle.Tool) (*llm.Response, error) {
		if call == 0 {
			return &llm.Response{ToolCalls: []llm.ToolCall{{
				ID: "c1", Name: "read_resource", Input: map[string]interface{}{"uri": "postgres://db/issues/schema"},
			}}}, nil
		}
		last := messages[len(messages)-1]
		return &llm.Response{Content: "columns: " + last.Content}, nil
	}}

	out, err := Run(context.Background(), testConfig(t, "Describe issues"), Deps{Transport: tr, Provider: provider})
	require.NoError(t, err)
	assert.Equal(t, "columns: id,title", out.Result.Response)
	assert.Equal(t, 1, out.Result.ToolCalls)
	// Once for the schema, once for the tool call.
	assert.Equal(t, 2, srv.ReadCount("postgres://db/issues/schema"))
}

func TestRun_BridgesServerTools(t *testing.T) {
	srv := mcptest.NewServer(nil).
		AddTextResource("postgres://db/issues/schema", "issues", "id,title").
		AddTool(protocol.Tool{
			Name:        "query",
			Description: "Run a read-only SQL query",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"sql": map[string]interface{}{"type": "string"}},
				"required":   []interface{}{"sql"},
			},
		}, func(_ context.Context, args map[string]interface{}) (*protocol.CallToolResult, error) {
			return &protocol.CallToolResult{Content: []protocol.Content{{Type: "text", Text: `[{"count":3}]`}}}, nil
		})
	tr := connectServer(t, srv)

	provider := &fakeProvider{reply: func(call int, messages []llm.Message, _ []shuttle.Tool) (*llm.Response, error) {
		if call == 0 {
			return &llm.Response{ToolCalls: []llm.ToolCall{{
				ID: "c1", Name: "postgres_query", Input: map[string]interface{}{"sql": "SELECT count(*) FROM issues"},
			}}}, nil
		}
		return &llm.Response{Content: "3 issues (" + messages[len(messages)-1].Content + ")"}, nil
	}}

	cfg := testConfig(t, "How many issues?")
	cfg.BridgeServerTools = true
	cfg.ToolPrefix = "postgres"

	out, err := Run(context.Background(), cfg, Deps{Transport: tr, Provider: provider})
	require.NoError(t, err)
	assert.Equal(t, []string{"list_resources", "postgres_query", "read_resource"}, provider.tools[0])
	assert.Equal(t, `3 issues ([{"count":3}])`, out.Result.Response)
}

func TestRun_CustomTemplate(t *testing.T) {
	tr := connectServer(t, mcptest.NewServer(nil).AddTextResource("r1", "issues", "id"))
	cfg := testConfig(t, "count issues")
	cfg.Template = prompts.MustParse("Q: {{input}}\nS: {{schema}}")

	out, err := Run(context.Background(), cfg, Deps{Transport: tr, Provider: &fakeProvider{}})
	require.NoError(t, err)
	assert.Equal(t, "Q: count issues\nS: issues = id\n\n", out.Prompt)
}

func TestRun_TemplateMissingVariable(t *testing.T) {
	tr := connectServer(t, mcptest.NewServer(nil))
	provider := &fakeProvider{}
	cfg := testConfig(t, "q")
	cfg.Template = prompts.MustParse("{{input}} in {{dialect}}")

	_, err := Run(context.Background(), cfg, Deps{Transport: tr, Provider: provider})
	assert.ErrorContains(t, err, "no value for dialect")
	assert.Equal(t, 0, provider.calls())
	assert.Equal(t, int32(1), tr.closes.Load())
}

func TestRun_UnknownPreset(t *testing.T) {
	tr := connectServer(t, mcptest.NewServer(nil))
	cfg := testConfig(t, "q")
	cfg.LLM = LLMConfig{Preset: "gpt-5-turbo"}

	_, err := Run(context.Background(), cfg, Deps{Transport: tr})
	assert.ErrorContains(t, err, "unknown preset: gpt-5-turbo")
	assert.Equal(t, int32(1), tr.closes.Load())
}

func TestRun_ProviderErrorPropagates(t *testing.T) {
	tr := connectServer(t, mcptest.NewServer(nil))
	provider := &fakeProvider{reply: func(int, []llm.Message, []shuttle.Tool) (*llm.Response, error) {
		return nil, &llm.APIError{Provider: "fake", StatusCode: 400, Body: "bad request"}
	}}

	_, err := Run(context.Background(), testConfig(t, "q"), Deps{Transport: tr, Provider: provider})
	var apiErr *llm.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.StatusCode)
}

func TestAssemble(t *testing.T) {
	tr := connectServer(t, mcptest.NewServer(nil).AddTextResource("r1", "issues", "id,title"))

	s, err := Assemble(context.Background(), testConfig(t, ""), Deps{Transport: tr})
	require.NoError(t, err)
	assert.Equal(t, "issues = id,title\n\n", s.String())
	assert.Equal(t, int32(1), tr.closes.Load())
}

func TestOpen_GeneratesSessionID(t *testing.T) {
	tr := connectServer(t, mcptest.NewServer(nil))

	conn, err := Open(context.Background(), Config{}, Deps{Transport: tr})
	require.NoError(t, err)
	assert.Len(t, conn.ID, 36)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.Equal(t, int32(1), tr.closes.Load())
}

func TestSessionIDContext(t *testing.T) {
	ctx := WithSessionID(context.Background(), "abc")
	assert.Equal(t, "abc", SessionIDFromContext(ctx))
	assert.Equal(t, "", SessionIDFromContext(context.Background()))
	assert.Equal(t, context.Background(), WithSessionID(context.Background(), ""))
}
