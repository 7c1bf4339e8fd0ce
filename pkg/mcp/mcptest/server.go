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

// Package mcptest provides an in-memory MCP server for tests. It serves
// resources and tools from fixtures over a PipeTransport so clients can be
// exercised without spawning a process.
package mcptest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/teradata-labs/schema-agent/pkg/mcp/protocol"
	"github.com/teradata-labs/schema-agent/pkg/mcp/transport"
	"go.uber.org/zap"
)

// MethodHandler processes a JSON-RPC method call. Returning a *protocol.Error
// preserves its code in the response.
type MethodHandler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// ToolHandler runs a fixture tool.
type ToolHandler func(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResult, error)

// errCrash stops Serve without answering.
var errCrash = errors.New("server crashed")

// Server is a scripted MCP server.
type Server struct {
	logger *zap.Logger

	mu         sync.Mutex
	info       protocol.Implementation
	version    string
	resources  []protocol.Resource
	contents   map[string][]protocol.ResourceContents
	tools      []protocol.Tool
	toolFuncs  map[string]ToolHandler
	handlers   map[string]MethodHandler
	preambles  map[string][][]byte
	raw        map[string]func(id *protocol.RequestID) []byte
	crashOn    map[string]bool
	received   []string
	readCounts map[string]int
}

// NewServer creates an empty server answering initialize, ping,
// resources/list, resources/read, tools/list and tools/call.
func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger:     logger,
		info:       protocol.Implementation{Name: "mcptest", Version: "0.0.0"},
		version:    protocol.ProtocolVersion,
		contents:   make(map[string][]protocol.ResourceContents),
		toolFuncs:  make(map[string]ToolHandler),
		handlers:   make(map[string]MethodHandler),
		preambles:  make(map[string][][]byte),
		raw:        make(map[string]func(id *protocol.RequestID) []byte),
		crashOn:    make(map[string]bool),
		readCounts: make(map[string]int),
	}
	s.handlers[protocol.MethodInitialize] = s.handleInitialize
	s.handlers[protocol.MethodInitialized] = func(context.Context, json.RawMessage) (interface{}, error) { return nil, nil }
	s.handlers[protocol.MethodPing] = func(context.Context, json.RawMessage) (interface{}, error) { return struct{}{}, nil }
	s.handlers[protocol.MethodResourcesList] = s.handleResourcesList
	s.handlers[protocol.MethodResourcesRead] = s.handleResourcesRead
	s.handlers[protocol.MethodToolsList] = s.handleToolsList
	s.handlers[protocol.MethodToolsCall] = s.handleToolsCall
	return s
}

// AddResource lists r and serves contents when it is read.
func (s *Server) AddResource(r protocol.Resource, contents ...protocol.ResourceContents) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources = append(s.resources, r)
	s.contents[r.URI] = contents
	return s
}

// AddTextResource is AddResource with a single text fragment.
func (s *Server) AddTextResource(uri, name, text string) *Server {
	return s.AddResource(protocol.Resource{URI: uri, Name: name}, protocol.TextContents(uri, "text/plain", text))
}

// AddTool registers a tool.
func (s *Server) AddTool(tool protocol.Tool, fn ToolHandler) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = append(s.tools, tool)
	s.toolFuncs[tool.Name] = fn
	return s
}

// Handle overrides the handler for method.
func (s *Server) Handle(method string, h MethodHandler) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
	return s
}

// SetProtocolVersion changes the version answered to initialize.
func (s *Server) SetProtocolVersion(v string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = v
	return s
}

// SendBefore queues raw frames to be written before the response to the
// next request for method.
func (s *Server) SendBefore(method string, frames ...string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range frames {
		s.preambles[method] = append(s.preambles[method], []byte(f))
	}
	return s
}

// ReplyRaw answers method with whatever fn returns instead of a marshalled
// response.
func (s *Server) ReplyRaw(method string, fn func(id *protocol.RequestID) []byte) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[method] = fn
	return s
}

// CrashOn makes the server hang up without answering when method arrives.
func (s *Server) CrashOn(method string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crashOn[method] = true
	return s
}

// Received returns the methods received so far, notifications included.
func (s *Server) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

// ReadCount returns how many times uri was read.
func (s *Server) ReadCount(uri string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readCounts[uri]
}

// Connect starts serving on an in-memory pipe and returns the client end.
// Closing the returned transport stops the server and waits for it to exit.
func (s *Server) Connect(ctx context.Context) transport.Transport {
	c2sR, c2sW := io.Pipe()
	s2cR, s2cW := io.Pipe()

	serverEnd := transport.NewPipeTransport(c2sR, s2cW, transport.PipeConfig{})
	conn := &conn{
		PipeTransport: transport.NewPipeTransport(s2cR, c2sW, transport.PipeConfig{}),
		done:          make(chan struct{}),
	}

	go func() {
		defer close(conn.done)
		if err := s.Serve(ctx, serverEnd); err != nil {
			s.logger.Debug("mcptest server stopped", zap.Error(err))
		}
		_ = serverEnd.Close()
	}()

	return conn
}

// conn is the client end of Connect.
type conn struct {
	*transport.PipeTransport
	done chan struct{}
}

// Close closes the pipe, which ends Serve, then waits for the serving
// goroutine.
func (c *conn) Close() error {
	err := c.PipeTransport.Close()
	<-c.done
	return err
}

// Serve handles messages until the transport fails or ctx is done.
func (s *Server) Serve(ctx context.Context, t transport.Transport) error {
	for {
		msg, err := t.Receive(ctx)
		if err != nil {
			return fmt.Errorf("receive error: %w", err)
		}

		frames, err := s.HandleMessage(ctx, msg)
		if err != nil {
			return err
		}
		for _, f := range frames {
			if err := t.Send(ctx, f); err != nil {
				return fmt.Errorf("send error: %w", err)
			}
		}
	}
}

// HandleMessage returns the frames to write in reply to msg, in order.
// Notifications get no reply.
func (s *Server) HandleMessage(ctx context.Context, msg []byte) ([][]byte, error) {
	var req protocol.Request
	if err := json.Unmarshal(msg, &req); err != nil {
		resp, mErr := marshalResponse(nil, nil, protocol.NewError(protocol.ParseError, "invalid JSON", nil))
		return [][]byte{resp}, mErr
	}

	// A response to a request the server never sent.
	if req.Method == "" {
		return nil, nil
	}

	s.mu.Lock()
	s.received = append(s.received, req.Method)
	crash := s.crashOn[req.Method]
	handler, ok := s.handlers[req.Method]
	raw := s.raw[req.Method]
	frames := s.preambles[req.Method]
	delete(s.preambles, req.Method)
	s.mu.Unlock()

	if crash {
		return nil, errCrash
	}

	if req.ID == nil {
		if ok {
			_, _ = handler(ctx, req.Params)
		}
		return nil, nil
	}

	if raw != nil {
		return append(frames, raw(req.ID)), nil
	}

	if !ok {
		resp, err := marshalResponse(req.ID, nil, protocol.NewError(protocol.MethodNotFound, "method not found: "+req.Method, nil))
		return append(frames, resp), err
	}

	result, err := handler(ctx, req.Params)
	if err != nil {
		var rpcErr *protocol.Error
		if !errors.As(err, &rpcErr) {
			rpcErr = protocol.NewError(protocol.InternalError, err.Error(), nil)
		}
		resp, mErr := marshalResponse(req.ID, nil, rpcErr)
		return append(frames, resp), mErr
	}

	resp, err := marshalResponse(req.ID, result, nil)
	return append(frames, resp), err
}

func (s *Server) handleInitialize(_ context.Context, params json.RawMessage) (interface{}, error) {
	var initParams protocol.InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &initParams); err != nil {
			return nil, protocol.NewError(protocol.InvalidParams, fmt.Sprintf("invalid initialize params: %v", err), nil)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return protocol.InitializeResult{
		ProtocolVersion: s.version,
		Capabilities: protocol.ServerCapabilities{
			Resources: &protocol.ResourcesCapability{},
			Tools:     &protocol.ToolsCapability{},
		},
		ServerInfo: s.info,
	}, nil
}

func (s *Server) handleResourcesList(context.Context, json.RawMessage) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return protocol.ResourceListResult{Resources: append([]protocol.Resource{}, s.resources...)}, nil
}

func (s *Server) handleResourcesRead(_ context.Context, params json.RawMessage) (interface{}, error) {
	var p protocol.ReadResourceParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, protocol.NewError(protocol.InvalidParams, "invalid params", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.readCounts[p.URI]++
	contents, ok := s.contents[p.URI]
	if !ok {
		return nil, protocol.NewError(protocol.ResourceNotFound, "Resource not found", map[string]string{"uri": p.URI})
	}
	return protocol.ReadResourceResult{Contents: append([]protocol.ResourceContents{}, contents...)}, nil
}

func (s *Server) handleToolsList(context.Context, json.RawMessage) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return protocol.ToolListResult{Tools: append([]protocol.Tool{}, s.tools...)}, nil
}

func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p protocol.CallToolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, protocol.NewError(protocol.InvalidParams, "invalid params", nil)
	}

	s.mu.Lock()
	fn, ok := s.toolFuncs[p.Name]
	s.mu.Unlock()
	if !ok {
		return nil, protocol.NewError(protocol.InvalidParams, "unknown tool: "+p.Name, nil)
	}
	return fn(ctx, p.Arguments)
}

// marshalResponse creates a JSON-RPC response.
func marshalResponse(id *protocol.RequestID, result interface{}, rpcErr *protocol.Error) ([]byte, error) {
	resp := protocol.Response{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      id,
		Error:   rpcErr,
	}

	if result != nil {
		resultBytes, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		resp.Result = resultBytes
	}

	return json.Marshal(resp)
}
