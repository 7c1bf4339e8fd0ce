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

// Package factory builds llm.Provider values by backend id or preset name.
package factory

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/schema-agent/pkg/llm"
	"github.com/teradata-labs/schema-agent/pkg/llm/anthropic"
	"github.com/teradata-labs/schema-agent/pkg/llm/ollama"
	"github.com/teradata-labs/schema-agent/pkg/llm/openai"
)

// Options holds configuration common to every backend. Zero values select the
// backend's defaults.
type Options struct {
	APIKey       string
	Model        string
	BaseURL      string
	Temperature  *float64
	MaxTokens    int
	MaxRetries   int // consumed by the agent's retry loop, not by backends
	Timeout      time.Duration
	Capabilities []llm.Capability
	LogRequests  bool
	LogResponses bool
	Logger       *zap.Logger
}

// Builder creates a provider from options.
type Builder func(opts Options) (llm.Provider, error)

var (
	mu       sync.RWMutex
	builders = map[string]Builder{
		"ollama":    buildOllama,
		"openai":    buildOpenAI,
		"anthropic": buildAnthropic,
	}
)

// Register adds or replaces the builder for id.
func Register(id string, b Builder) {
	mu.Lock()
	defer mu.Unlock()
	builders[id] = b
}

// Providers returns the registered backend ids, sorted.
func Providers() []string {
	mu.RLock()
	defer mu.RUnlock()
	ids := make([]string, 0, len(builders))
	for id := range builders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// New creates the provider registered under id. When opts.Logger is set the
// provider is wrapped in an llm.InstrumentedProvider.
func New(id string, opts Options) (llm.Provider, error) {
	mu.RLock()
	b, ok := builders[id]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported provider: %s (known: %s)", id, strings.Join(Providers(), ", "))
	}

	provider, err := b(opts)
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", id, err)
	}
	if opts.Logger != nil {
		provider = llm.NewInstrumentedProvider(provider, opts.Logger, opts.LogRequests, opts.LogResponses)
	}
	return provider, nil
}

func buildOllama(opts Options) (llm.Provider, error) {
	endpoint := opts.BaseURL
	if endpoint == "" {
		endpoint = os.Getenv("OLLAMA_ENDPOINT")
	}
	if endpoint == "" {
		endpoint = ollama.DefaultEndpoint
	}

	model := opts.Model
	if model == "" {
		model = "qwen2.5:7b"
	}

	return ollama.NewClient(ollama.Config{
		Endpoint:     endpoint,
		Model:        model,
		MaxTokens:    opts.MaxTokens,
		Temperature:  opts.Temperature,
		Timeout:      opts.Timeout,
		Capabilities: opts.Capabilities,
		Logger:       opts.Logger,
	}), nil
}

func buildOpenAI(opts Options) (llm.Provider, error) {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key not configured (set llm.api_key or OPENAI_API_KEY)")
	}

	return openai.NewClient(openai.Config{
		APIKey:       apiKey,
		Model:        opts.Model,
		BaseURL:      opts.BaseURL,
		Timeout:      opts.Timeout,
		MaxTokens:    opts.MaxTokens,
		Temperature:  opts.Temperature,
		Capabilities: opts.Capabilities,
		Logger:       opts.Logger,
	}), nil
}

func buildAnthropic(opts Options) (llm.Provider, error) {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key not configured (set llm.api_key or ANTHROPIC_API_KEY)")
	}

	return anthropic.NewClient(anthropic.Config{
		APIKey:      apiKey,
		Model:       opts.Model,
		BaseURL:     opts.BaseURL,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Timeout:     opts.Timeout,
		Logger:      opts.Logger,
	}), nil
}
