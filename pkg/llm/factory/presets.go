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

package factory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/teradata-labs/schema-agent/pkg/llm"
)

// DefaultPreset is used when no preset or provider is configured.
const DefaultPreset = "ollama-qwen2.5-7b"

// Preset is a named backend configuration.
type Preset struct {
	Provider string
	Options  Options
}

func temperature(t float64) *float64 { return &t }

// Presets are the built-in model configurations.
var Presets = map[string]Preset{
	"openai-gpt-4o-mini": {
		Provider: "openai",
		Options: Options{
			Model:        "gpt-4o-mini",
			Temperature:  temperature(0),
			MaxRetries:   2,
			Capabilities: []llm.Capability{llm.CapabilityJSONSchemaResponse},
			LogResponses: true,
		},
	},
	"ollama-llama3.1-8b": {
		Provider: "ollama",
		Options: Options{
			Model:        "llama3.1",
			BaseURL:      "http://localhost:11434",
			Temperature:  temperature(0.5),
			MaxRetries:   2,
			Capabilities: []llm.Capability{llm.CapabilityJSONSchemaResponse},
			LogRequests:  true,
			LogResponses: true,
		},
	},
	"ollama-qwen2.5-7b": {
		Provider: "ollama",
		Options: Options{
			Model:        "qwen2.5:7b",
			BaseURL:      "http://localhost:11434",
			Temperature:  temperature(0),
			MaxRetries:   2,
			Capabilities: []llm.Capability{llm.CapabilityJSONSchemaResponse},
			LogRequests:  true,
			LogResponses: true,
		},
	},
}

// PresetNames returns the built-in preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolvePreset returns the preset with overrides applied. Non-zero override
// fields replace the preset's; the logging flags are OR-ed.
func ResolvePreset(name string, overrides Options) (Preset, error) {
	if name == "" {
		name = DefaultPreset
	}
	p, ok := Presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset: %s (known: %s)", name, strings.Join(PresetNames(), ", "))
	}

	opts := p.Options
	if overrides.APIKey != "" {
		opts.APIKey = overrides.APIKey
	}
	if overrides.Model != "" {
		opts.Model = overrides.Model
	}
	if overrides.BaseURL != "" {
		opts.BaseURL = overrides.BaseURL
	}
	if overrides.Temperature != nil {
		opts.Temperature = overrides.Temperature
	}
	if overrides.MaxTokens != 0 {
		opts.MaxTokens = overrides.MaxTokens
	}
	if overrides.MaxRetries != 0 {
		opts.MaxRetries = overrides.MaxRetries
	}
	if overrides.Timeout != 0 {
		opts.Timeout = overrides.Timeout
	}
	if len(overrides.Capabilities) > 0 {
		opts.Capabilities = overrides.Capabilities
	}
	opts.LogRequests = opts.LogRequests || overrides.LogRequests
	opts.LogResponses = opts.LogResponses || overrides.LogResponses
	opts.Logger = overrides.Logger

	return Preset{Provider: p.Provider, Options: opts}, nil
}

// NewFromPreset resolves a preset and builds its provider.
func NewFromPreset(name string, overrides Options) (llm.Provider, Options, error) {
	p, err := ResolvePreset(name, overrides)
	if err != nil {
		return nil, Options{}, err
	}
	provider, err := New(p.Provider, p.Options)
	if err != nil {
		return nil, Options{}, err
	}
	return provider, p.Options, nil
}
