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

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teradata-labs/schema-agent/internal/version"
	"github.com/teradata-labs/schema-agent/pkg/session"
)

// deps is replaced in tests to inject a transport and a model.
var deps session.Deps

// app carries the state shared by every subcommand.
type app struct {
	v        *viper.Viper
	cfgFile  string
	cfg      *Config
	logger   *zap.Logger
	closeLog func() error
}

func newRootCmd() *cobra.Command {
	_, cmd := newApp()
	return cmd
}

// newApp builds the command tree. Call app.close once Execute returns.
func newApp() (*app, *cobra.Command) {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "schema-agent",
		Short: "Answer questions about a database through its MCP server",
		Long: `schema-agent launches an MCP server for a database, reads the schema of
every table the server exposes and asks a language model to answer a
question with that schema in context.

Configuration is read from flags, SCHEMA_AGENT_* environment variables
and schema-agent.yaml in . or $HOME/.schema-agent.`,
		Version:       version.Get(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: ./schema-agent.yaml or $HOME/.schema-agent/schema-agent.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "log file (default: stderr)")

	flags.String("mcp-command", "docker", "command that starts the MCP server")
	flags.StringSlice("mcp-args", nil, "arguments for the MCP server command")
	flags.String("database-url", "", "database connection string appended to the server arguments")
	flags.Bool("preflight", false, "check the Docker daemon and image before launching")
	flags.Bool("pull", false, "pull the image during preflight when it is missing")
	flags.String("image", "", "image to check during preflight (default: taken from --mcp-args)")
	flags.String("docker-host", "", "Docker daemon address (default: DOCKER_HOST or a detected socket)")
	flags.Bool("log-frames", false, "log protocol frames at debug level")
	flags.String("frame-log", "", "append protocol frames to this file")
	flags.Bool("bridge-server-tools", true, "expose the server's own tools to the model")
	flags.String("tool-prefix", "", "prefix for bridged server tool names")

	flags.String("llm-preset", "", "model preset")
	flags.String("llm-provider", "", "provider (ollama, openai, anthropic); overrides the preset")
	flags.String("llm-model", "", "model name")
	flags.String("llm-base-url", "", "provider endpoint")
	flags.Float64("temperature", 0, "sampling temperature")
	flags.Int("max-iterations", 0, "maximum model turns")

	bindings := map[string]string{
		"log.level":               "log-level",
		"log.file":                "log-file",
		"mcp.command":             "mcp-command",
		"mcp.args":                "mcp-args",
		"database.url":            "database-url",
		"mcp.preflight":           "preflight",
		"mcp.pull":                "pull",
		"mcp.image":               "image",
		"mcp.docker_host":         "docker-host",
		"mcp.log_frames":          "log-frames",
		"mcp.frame_log":           "frame-log",
		"mcp.bridge_server_tools": "bridge-server-tools",
		"mcp.tool_prefix":         "tool-prefix",
		"llm.preset":              "llm-preset",
		"llm.provider":            "llm-provider",
		"llm.model":               "llm-model",
		"llm.base_url":            "llm-base-url",
		"agent.max_iterations":    "max-iterations",
	}
	for key, flag := range bindings {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(
		newAskCmd(a),
		newSchemaCmd(a),
		newResourcesCmd(a),
		newVersionCmd(),
	)
	return a, rootCmd
}

// close flushes the logger and releases the log file. Safe to call when
// no command ran and safe to call twice.
func (a *app) close() error {
	if a.closeLog == nil {
		return nil
	}
	closeLog := a.closeLog
	a.closeLog = nil
	return closeLog()
}

// load reads configuration and builds the logger.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := LoadConfig(a.v, a.cfgFile)
	if err != nil {
		return err
	}

	// A zero temperature is meaningful, so the flag only applies when given.
	if f := cmd.Flags().Lookup("temperature"); f != nil && f.Changed {
		t, err := cmd.Flags().GetFloat64("temperature")
		if err != nil {
			return err
		}
		cfg.LLM.Temperature = &t
	}

	logger, closeLog, err := buildLogger(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	a.closeLog = closeLog
	return nil
}

// sessionConfig builds the session configuration. The returned closer
// releases the frame log, if one was opened.
func (a *app) sessionConfig() (session.Config, func(), error) {
	cfg, err := a.cfg.SessionConfig(a.logger)
	if err != nil {
		return session.Config{}, nil, err
	}

	closer := func() {}
	if path := a.cfg.MCP.FrameLog; path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) // #nosec G304 -- frame log path from CLI flag
		if err != nil {
			return session.Config{}, nil, fmt.Errorf("open frame log %s: %w", path, err)
		}
		cfg.Server.FrameLog = f
		closer = func() { _ = f.Close() }
	}
	return cfg, closer, nil
}

func writeLine(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}
