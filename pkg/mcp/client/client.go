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

// Package client implements the MCP client for connecting to MCP servers.
//
// The client is synchronous: each call sends one request and reads frames
// from the transport until the response carrying the same id arrives.
// Calls are serialized, so there is never more than one request in flight.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teradata-labs/schema-agent/pkg/mcp/protocol"
	"github.com/teradata-labs/schema-agent/pkg/mcp/transport"
	"go.uber.org/zap"
)

// DefaultRequestTimeout bounds a request whose context has no deadline.
const DefaultRequestTimeout = 30 * time.Second

// Client represents an MCP client connection to a server
type Client struct {
	transport      transport.Transport
	logger         *zap.Logger
	requestTimeout time.Duration
	onNotification NotificationHandler

	// callMu serializes requests; it is never held by Close.
	callMu sync.Mutex
	nextID int64

	mu                 sync.RWMutex
	initialized        bool
	serverInfo         protocol.Implementation
	serverCapabilities protocol.ServerCapabilities

	tools   map[string]protocol.Tool
	toolsMu sync.RWMutex

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NotificationHandler observes server notifications read while waiting for
// a response.
type NotificationHandler func(method string, params json.RawMessage)

// Config configures the MCP client
type Config struct {
	Transport transport.Transport
	Logger    *zap.Logger

	// RequestTimeout applies when the caller's context has no deadline.
	// Default: 30s.
	RequestTimeout time.Duration

	// OnNotification is optional.
	OnNotification NotificationHandler
}

// NewClient creates a new MCP client bound to one transport. The client
// owns the transport from here on; release it with Close.
func NewClient(config Config) (*Client, error) {
	if config.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}

	return &Client{
		transport:      config.Transport,
		logger:         config.Logger,
		requestTimeout: config.RequestTimeout,
		onNotification: config.OnNotification,
		tools:          make(map[string]protocol.Tool),
	}, nil
}

// Initialize performs the MCP handshake
func (c *Client) Initialize(ctx context.Context, clientInfo protocol.Implementation) (*protocol.InitializeResult, error) {
	c.mu.RLock()
	initialized := c.initialized
	c.mu.RUnlock()
	if initialized {
		return nil, fmt.Errorf("already initialized")
	}

	params := protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		ClientInfo:      clientInfo,
	}

	var result protocol.InitializeResult
	if err := c.call(ctx, protocol.MethodInitialize, params, &result); err != nil {
		return nil, err
	}

	if !protocol.IsSupportedProtocolVersion(result.ProtocolVersion) {
		return nil, &ProtocolError{
			Method:  protocol.MethodInitialize,
			Message: fmt.Sprintf("unsupported protocol version %q", result.ProtocolVersion),
		}
	}

	// Completes the handshake; notifications carry no id.
	if err := c.notify(ctx, protocol.MethodInitialized); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.initialized = true
	c.serverInfo = result.ServerInfo
	c.serverCapabilities = result.Capabilities
	c.mu.Unlock()

	c.logger.Info("MCP client initialized",
		zap.String("server", result.ServerInfo.Name),
		zap.String("version", result.ServerInfo.Version),
		zap.String("protocol", result.ProtocolVersion),
		zap.Bool("tools", result.Capabilities.Tools != nil),
		zap.Bool("resources", result.Capabilities.Resources != nil),
	)

	return &result, nil
}

// Ping sends a ping to check connection health
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, protocol.MethodPing, struct{}{}, nil)
}

// ServerInfo returns the server implementation info
func (c *Client) ServerInfo() protocol.Implementation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// ServerCapabilities returns the server capabilities
func (c *Client) ServerCapabilities() protocol.ServerCapabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverCapabilities
}

// IsInitialized returns whether the client is initialized
func (c *Client) IsInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// Close closes the transport. It is the only way to release the server
// process; later calls return the first result again without side effects.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if err := c.transport.Close(); err != nil {
			c.logger.Error("failed to close transport", zap.Error(err))
			c.closeErr = fmt.Errorf("close transport: %w", err)
		}
		c.logger.Info("MCP client closed")
	})
	return c.closeErr
}

// call sends one request and decodes the matching response into result.
// Transport errors are returned unmodified.
func (c *Client) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	c.callMu.Lock()
	defer c.callMu.Unlock()

	if c.closed.Load() {
		return ErrClientClosed
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal %s params: %w", method, err)
	}

	c.nextID++
	id := protocol.NewNumericRequestID(c.nextID)
	req := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  paramsJSON,
	}
	if err := protocol.ValidateRequest(req); err != nil {
		return err
	}

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	c.logger.Debug("sending request", zap.String("method", method), zap.Stringer("id", id))

	if err := c.transport.Send(ctx, reqJSON); err != nil {
		c.logger.Debug("send failed", zap.String("method", method), zap.Error(err))
		return err
	}

	msg, err := c.awaitResponse(ctx, method, id)
	if err != nil {
		return err
	}

	c.logger.Debug("received response",
		zap.String("method", method),
		zap.Stringer("id", id),
		zap.Duration("duration", time.Since(start)),
	)

	if msg.Error != nil {
		return &ProtocolError{
			Method:  method,
			Code:    msg.Error.Code,
			Message: msg.Error.Message,
			Err:     msg.Error,
		}
	}
	if err := protocol.ValidateResponse(msg); err != nil {
		return &ProtocolError{Method: method, Message: "invalid response", Err: err}
	}

	if result != nil {
		if err := json.Unmarshal(msg.Result, result); err != nil {
			return &ProtocolError{Method: method, Message: "failed to decode result", Err: err}
		}
	}
	return nil
}

// awaitResponse reads frames until the response to id arrives. Server
// requests are answered and notifications are passed to the handler on the
// way.
func (c *Client) awaitResponse(ctx context.Context, method string, id *protocol.RequestID) (*protocol.Message, error) {
	for {
		frame, err := c.transport.Receive(ctx)
		if err != nil {
			return nil, err
		}

		var msg protocol.Message
		if err := json.Unmarshal(frame, &msg); err != nil {
			return nil, &ProtocolError{Method: method, Message: "malformed message", Err: err}
		}

		switch {
		case msg.IsResponse():
			// A null id only comes with an error the server could not tie
			// to a request; ours is the only one outstanding.
			if msg.ID == nil || msg.ID.Equal(id) {
				return &msg, nil
			}
			c.logger.Warn("discarding response for unknown request",
				zap.String("method", method),
				zap.Stringer("expected", id),
				zap.Stringer("got", msg.ID),
			)
		case msg.IsRequest():
			if err := c.answerServerRequest(ctx, &msg); err != nil {
				return nil, err
			}
		case msg.IsNotification():
			c.logger.Debug("server notification", zap.String("method", msg.Method))
			if c.onNotification != nil {
				c.onNotification(msg.Method, msg.Params)
			}
		default:
			return nil, &ProtocolError{Method: method, Message: "unrecognized message"}
		}
	}
}

// answerServerRequest replies to a request initiated by the server. Only ping
// is supported; the client advertises no other capabilities.
func (c *Client) answerServerRequest(ctx context.Context, req *protocol.Message) error {
	resp := protocol.Response{JSONRPC: protocol.JSONRPCVersion, ID: req.ID}
	if req.Method == protocol.MethodPing {
		resp.Result = json.RawMessage(`{}`)
	} else {
		resp.Error = protocol.NewError(protocol.MethodNotFound, "method not found: "+req.Method, nil)
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	c.logger.Debug("answering server request", zap.String("method", req.Method))
	return c.transport.Send(ctx, data)
}

// notify sends a notification.
func (c *Client) notify(ctx context.Context, method string) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	data, err := json.Marshal(&protocol.Request{JSONRPC: protocol.JSONRPCVersion, Method: method})
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", method, err)
	}

	c.callMu.Lock()
	defer c.callMu.Unlock()
	return c.transport.Send(ctx, data)
}
