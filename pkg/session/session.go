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

// Package session runs one question end to end: launch the MCP server,
// assemble the schema, ask the model, shut everything down.
package session

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/schema-agent/internal/version"
	"github.com/teradata-labs/schema-agent/pkg/agent"
	"github.com/teradata-labs/schema-agent/pkg/docker"
	"github.com/teradata-labs/schema-agent/pkg/dsn"
	"github.com/teradata-labs/schema-agent/pkg/llm"
	"github.com/teradata-labs/schema-agent/pkg/llm/factory"
	"github.com/teradata-labs/schema-agent/pkg/mcp/adapter"
	"github.com/teradata-labs/schema-agent/pkg/mcp/client"
	"github.com/teradata-labs/schema-agent/pkg/mcp/protocol"
	"github.com/teradata-labs/schema-agent/pkg/mcp/transport"
	"github.com/teradata-labs/schema-agent/pkg/prompts"
	"github.com/teradata-labs/schema-agent/pkg/schema"
	"github.com/teradata-labs/schema-agent/pkg/shuttle"
)

// ServerConfig describes how to launch the MCP server.
type ServerConfig struct {
	Command string
	Args    []string
	Env     map[string]string
	Dir     string

	// ReadTimeout bounds each frame read. Zero waits for the context.
	ReadTimeout time.Duration
	// RequestTimeout bounds each request without a caller deadline.
	RequestTimeout time.Duration

	// Preflight checks the container runtime before launch. Only applies
	// when Command is docker.
	Preflight  bool
	Image      string // defaults to the image of a `docker run` argv
	Pull       bool
	DockerHost string

	// FrameLog, if set, receives every frame as "> " / "< " lines.
	FrameLog io.Writer
	// LogFrames mirrors every frame to the logger at debug level.
	LogFrames bool
}

// LLMConfig selects the model backend. Provider, when set, bypasses presets.
type LLMConfig struct {
	Preset   string
	Provider string
	Options  factory.Options
}

// Config configures a session.
type Config struct {
	// ID identifies the session in logs. Generated when empty.
	ID string

	Server ServerConfig
	LLM    LLMConfig

	// Input is the user's question.
	Input string

	// Template renders the user message; DefaultTemplate when nil.
	Template     *prompts.Template
	SystemPrompt string

	MaxIterations int

	// BridgeServerTools registers the server's own tools next to the
	// resource tools.
	BridgeServerTools bool
	ToolPrefix        string

	Logger *zap.Logger
}

// Deps replaces the parts of a session that talk to the outside world.
type Deps struct {
	// Transport is used instead of launching Server.Command.
	Transport transport.Transport
	// Provider is used instead of building one from Config.LLM.
	Provider llm.Provider
	// Preflight replaces docker.Preflight.
	Preflight func(ctx context.Context, cfg docker.PreflightConfig) (*docker.PreflightReport, error)
}

// Outcome is the result of Run.
type Outcome struct {
	SessionID string
	Server    protocol.Implementation
	Schema    *schema.Schema
	Prompt    string
	Result    *agent.Result
}

// Connection is an initialized client bound to its session.
type Connection struct {
	ID     string
	Client *client.Client
	Server protocol.Implementation

	logger *zap.Logger
}

// Close shuts the client and its transport down. Safe to call twice.
func (c *Connection) Close() error {
	err := c.Client.Close()
	if err != nil {
		c.logger.Debug("closing MCP client", zap.Error(err))
	}
	return err
}

// Open validates the server configuration, launches the server and
// completes the MCP handshake. The caller must Close the connection.
func Open(ctx context.Context, cfg Config, deps Deps) (*Connection, error) {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("session_id", cfg.ID))

	t := deps.Transport
	if t == nil {
		var err error
		t, err = launch(ctx, cfg.Server, deps, logger)
		if err != nil {
			return nil, err
		}
	}

	c, err := client.NewClient(client.Config{
		Transport:      t,
		Logger:         logger,
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	if err != nil {
		// The client never took ownership of the transport.
		if closeErr := t.Close(); closeErr != nil {
			logger.Debug("closing transport", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("create MCP client: %w", err)
	}

	initResult, err := c.Initialize(ctx, protocol.Implementation{Name: "schema-agent", Version: version.Get()})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize MCP session: %w", err)
	}

	return &Connection{ID: cfg.ID, Client: c, Server: initResult.ServerInfo, logger: logger}, nil
}

func launch(ctx context.Context, cfg ServerConfig, deps Deps, logger *zap.Logger) (transport.Transport, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("mcp.command is required")
	}

	conn, idx, err := dsn.Find(cfg.Args)
	if err != nil {
		return nil, fmt.Errorf("server argument %d: %w", idx, err)
	}
	fields := []zap.Field{
		zap.String("command", cfg.Command),
		zap.Strings("args", dsn.RedactArgs(cfg.Args)),
	}
	if conn != nil {
		fields = append(fields, zap.String("driver", conn.Driver), zap.String("database", conn.Database))
	}
	logger.Info("launching MCP server", fields...)

	if cfg.Preflight && docker.IsDockerCommand(cfg.Command) {
		image := cfg.Image
		if image == "" {
			image, _, _ = docker.ImageFromRunArgs(cfg.Args)
		}
		preflight := deps.Preflight
		if preflight == nil {
			preflight = docker.Preflight
		}
		report, err := preflight(ctx, docker.PreflightConfig{
			Host:   cfg.DockerHost,
			Image:  image,
			Pull:   cfg.Pull,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("container preflight: %w", err)
		}
		logger.Debug("container preflight passed",
			zap.String("docker_host", report.Host),
			zap.String("api_version", report.APIVersion),
			zap.String("image_id", report.ImageID),
			zap.Bool("pulled", report.Pulled),
		)
	}

	var sinks transport.MultiSink
	if cfg.FrameLog != nil {
		sinks = append(sinks, transport.NewWriterSink(cfg.FrameLog))
	}
	if cfg.LogFrames {
		sinks = append(sinks, transport.NewLogSink(logger))
	}
	var sink transport.FrameSink
	if len(sinks) > 0 {
		sink = sinks
	}

	return transport.NewStdioTransport(transport.StdioConfig{
		Command:     cfg.Command,
		Args:        cfg.Args,
		Env:         cfg.Env,
		Dir:         cfg.Dir,
		Logger:      logger,
		Sink:        sink,
		ReadTimeout: cfg.ReadTimeout,
	})
}

// Assemble opens a connection, assembles the schema and closes the
// connection.
func Assemble(ctx context.Context, cfg Config, deps Deps) (*schema.Schema, error) {
	conn, err := Open(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return schema.NewAssembler(conn.Client, schema.WithLogger(conn.logger)).Assemble(ctx)
}

// Run answers cfg.Input. Schema assembly failures abort before the model is
// called. The server is shut down on every path.
func Run(ctx context.Context, cfg Config, deps Deps) (*Outcome, error) {
	conn, err := Open(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	logger := conn.logger
	ctx = WithSessionID(ctx, conn.ID)

	s, err := schema.NewAssembler(conn.Client, schema.WithLogger(logger)).Assemble(ctx)
	if err != nil {
		return nil, fmt.Errorf("assemble schema: %w", err)
	}
	logger.Info("schema assembled",
		zap.Int("tables", s.Len()),
		zap.Int("schema_tokens", s.Tokens()),
	)

	registry, err := registerTools(ctx, conn, cfg, logger)
	if err != nil {
		return nil, err
	}

	tmpl := cfg.Template
	if tmpl == nil {
		tmpl = prompts.DefaultTemplate
	}
	prompt, err := tmpl.Apply(map[string]string{
		prompts.VarSchema: s.String(),
		prompts.VarInput:  cfg.Input,
	})
	if err != nil {
		return nil, err
	}

	provider, retries, err := resolveProvider(cfg.LLM, deps, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("model resolved",
		zap.String("provider", provider.Name()),
		zap.String("model", provider.Model()),
		zap.Bool("json_schema_response", llm.Supports(provider, llm.CapabilityJSONSchemaResponse)),
		zap.Int("max_retries", retries),
	)

	agentCfg := agent.DefaultConfig()
	agentCfg.SystemPrompt = cfg.SystemPrompt
	if cfg.MaxIterations > 0 {
		agentCfg.MaxIterations = cfg.MaxIterations
	}
	agentCfg.Retry.MaxRetries = retries

	result, err := agent.NewExecutor(provider, registry,
		agent.WithConfig(agentCfg),
		agent.WithLogger(logger),
	).Invoke(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("invoke agent: %w", err)
	}

	return &Outcome{
		SessionID: conn.ID,
		Server:    conn.Server,
		Schema:    s,
		Prompt:    prompt,
		Result:    result,
	}, nil
}

func registerTools(ctx context.Context, conn *Connection, cfg Config, logger *zap.Logger) (*shuttle.Registry, error) {
	registry := shuttle.NewRegistry()
	for _, tool := range adapter.ResourceTools(conn.Client) {
		if err := registry.Register(tool); err != nil {
			return nil, err
		}
	}

	if !cfg.BridgeServerTools || conn.Client.ServerCapabilities().Tools == nil {
		return registry, nil
	}

	tools, err := adapter.AdaptMCPTools(ctx, conn.Client, cfg.ToolPrefix, logger)
	if err != nil {
		return nil, err
	}
	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			logger.Warn("skipping server tool", zap.String("tool", tool.Name()), zap.Error(err))
		}
	}
	logger.Debug("tools registered", zap.Strings("tools", registry.List()))
	return registry, nil
}

// resolveProvider returns the provider and the number of retries its
// configuration asks for.
func resolveProvider(cfg LLMConfig, deps Deps, logger *zap.Logger) (llm.Provider, int, error) {
	opts := cfg.Options
	if opts.Logger == nil {
		opts.Logger = logger
	}

	if deps.Provider != nil {
		return deps.Provider, opts.MaxRetries, nil
	}

	if cfg.Provider != "" {
		provider, err := factory.New(cfg.Provider, opts)
		if err != nil {
			return nil, 0, err
		}
		return provider, opts.MaxRetries, nil
	}

	provider, resolved, err := factory.NewFromPreset(cfg.Preset, opts)
	if err != nil {
		return nil, 0, err
	}
	return provider, resolved.MaxRetries, nil
}
