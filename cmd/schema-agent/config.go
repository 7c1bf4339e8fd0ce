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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teradata-labs/schema-agent/pkg/docker"
	"github.com/teradata-labs/schema-agent/pkg/llm/factory"
	"github.com/teradata-labs/schema-agent/pkg/prompts"
	"github.com/teradata-labs/schema-agent/pkg/session"
)

const (
	// EnvPrefix prefixes every environment variable, e.g. SCHEMA_AGENT_LLM_PRESET.
	EnvPrefix = "SCHEMA_AGENT"
	// DefaultConfigFileName is the name of the config file
	DefaultConfigFileName = "schema-agent"
)

// Config holds all configuration for schema-agent.
// Priority: CLI flags > env vars > config file > defaults
type Config struct {
	MCP      MCPConfig      `mapstructure:"mcp"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Prompt   PromptConfig   `mapstructure:"prompt"`
	Log      LogConfig      `mapstructure:"log"`
}

// MCPConfig describes the MCP server to launch.
type MCPConfig struct {
	// Command and Args launch the server, e.g. docker run -i --rm mcp/postgres.
	// A Command containing spaces and no Args is split shell-style.
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`

	// Env holds KEY=VALUE entries added to the server's environment. A list
	// keeps key case, which viper folds for map keys.
	Env []string `mapstructure:"env"`
	Dir string   `mapstructure:"dir"`

	// Preflight pings the Docker daemon and checks the image before launch.
	Preflight  bool   `mapstructure:"preflight"`
	Image      string `mapstructure:"image"`
	Pull       bool   `mapstructure:"pull"`
	DockerHost string `mapstructure:"docker_host"`

	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// LogFrames mirrors protocol frames to the log at debug level.
	LogFrames bool `mapstructure:"log_frames"`
	// FrameLog appends protocol frames to this file.
	FrameLog string `mapstructure:"frame_log"`

	BridgeServerTools bool   `mapstructure:"bridge_server_tools"`
	ToolPrefix        string `mapstructure:"tool_prefix"`
}

// DatabaseConfig holds the connection string handed to the MCP server.
type DatabaseConfig struct {
	// URL is appended to mcp.args unless already present.
	URL string `mapstructure:"url"`
}

// LLMConfig selects the model. Provider bypasses Preset when set.
type LLMConfig struct {
	Preset       string        `mapstructure:"preset"`
	Provider     string        `mapstructure:"provider"`
	Model        string        `mapstructure:"model"`
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Temperature  *float64      `mapstructure:"temperature"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	MaxRetries   int           `mapstructure:"max_retries"`
	Timeout      time.Duration `mapstructure:"timeout"`
	LogRequests  bool          `mapstructure:"log_requests"`
	LogResponses bool          `mapstructure:"log_responses"`
}

// AgentConfig bounds the invocation loop.
type AgentConfig struct {
	MaxIterations int    `mapstructure:"max_iterations"`
	SystemPrompt  string `mapstructure:"system_prompt"`
}

// PromptConfig overrides the user message template.
type PromptConfig struct {
	// Template uses {{schema}} and {{input}}. Empty means the default.
	Template string `mapstructure:"template"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("mcp.command", "docker")
	v.SetDefault("mcp.args", []string{"run", "-i", "--rm", "mcp/postgres"})
	v.SetDefault("mcp.env", []string{})
	v.SetDefault("mcp.dir", "")
	v.SetDefault("mcp.preflight", false)
	v.SetDefault("mcp.pull", false)
	v.SetDefault("mcp.image", "")
	v.SetDefault("mcp.docker_host", "")
	v.SetDefault("mcp.read_timeout", 0)
	v.SetDefault("mcp.request_timeout", 30*time.Second)
	v.SetDefault("mcp.log_frames", false)
	v.SetDefault("mcp.frame_log", "")
	v.SetDefault("mcp.bridge_server_tools", true)
	v.SetDefault("mcp.tool_prefix", "")

	v.SetDefault("database.url", "")

	v.SetDefault("llm.preset", factory.DefaultPreset)
	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.max_tokens", 0)
	v.SetDefault("llm.max_retries", 0)
	v.SetDefault("llm.timeout", 0)
	v.SetDefault("llm.log_requests", false)
	v.SetDefault("llm.log_responses", false)
	// No default: an unset temperature keeps the preset's.
	_ = v.BindEnv("llm.temperature")

	v.SetDefault("agent.max_iterations", 10)
	v.SetDefault("agent.system_prompt", "")

	v.SetDefault("prompt.template", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// LoadConfig reads the config file (if any), the environment and bound
// flags into a Config.
func LoadConfig(v *viper.Viper, cfgFile string) (*Config, error) {
	// The prefix must be set before setDefaults binds llm.temperature.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".schema-agent"))
		}
		v.SetConfigName(DefaultConfigFileName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}
	return &config, nil
}

// normalize splits a one-string command and appends the database URL.
func (c *Config) normalize() error {
	if strings.ContainsAny(c.MCP.Command, " \t") && len(c.MCP.Args) == 0 {
		argv, err := docker.ParseCommand(c.MCP.Command)
		if err != nil {
			return fmt.Errorf("mcp.command: %w", err)
		}
		c.MCP.Command, c.MCP.Args = argv[0], argv[1:]
	}

	if c.Database.URL != "" {
		present := false
		for _, arg := range c.MCP.Args {
			if arg == c.Database.URL {
				present = true
				break
			}
		}
		if !present {
			c.MCP.Args = append(append([]string(nil), c.MCP.Args...), c.Database.URL)
		}
	}
	return nil
}

// SessionConfig converts the configuration for session.Run.
func (c *Config) SessionConfig(logger *zap.Logger) (session.Config, error) {
	env, err := parseEnv(c.MCP.Env)
	if err != nil {
		return session.Config{}, err
	}

	var tmpl *prompts.Template
	if c.Prompt.Template != "" {
		if tmpl, err = prompts.Parse(c.Prompt.Template); err != nil {
			return session.Config{}, fmt.Errorf("prompt.template: %w", err)
		}
	}

	return session.Config{
		Server: session.ServerConfig{
			Command:        c.MCP.Command,
			Args:           c.MCP.Args,
			Env:            env,
			Dir:            c.MCP.Dir,
			ReadTimeout:    c.MCP.ReadTimeout,
			RequestTimeout: c.MCP.RequestTimeout,
			Preflight:      c.MCP.Preflight,
			Image:          c.MCP.Image,
			Pull:           c.MCP.Pull,
			DockerHost:     c.MCP.DockerHost,
			LogFrames:      c.MCP.LogFrames,
		},
		LLM: session.LLMConfig{
			Preset:   c.LLM.Preset,
			Provider: c.LLM.Provider,
			Options: factory.Options{
				APIKey:       c.LLM.APIKey,
				Model:        c.LLM.Model,
				BaseURL:      c.LLM.BaseURL,
				Temperature:  c.LLM.Temperature,
				MaxTokens:    c.LLM.MaxTokens,
				MaxRetries:   c.LLM.MaxRetries,
				Timeout:      c.LLM.Timeout,
				LogRequests:  c.LLM.LogRequests,
				LogResponses: c.LLM.LogResponses,
				Logger:       logger,
			},
		},
		Template:          tmpl,
		SystemPrompt:      c.Agent.SystemPrompt,
		MaxIterations:     c.Agent.MaxIterations,
		BridgeServerTools: c.MCP.BridgeServerTools,
		ToolPrefix:        c.MCP.ToolPrefix,
		Logger:            logger,
	}, nil
}

// parseEnv splits KEY=VALUE entries. The value may be empty or contain "=".
func parseEnv(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("mcp.env: entry %q is not KEY=VALUE", entry)
		}
		env[key] = value
	}
	return env, nil
}
