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

package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/schema-agent/pkg/shuttle"
)

// InstrumentedProvider wraps any Provider and logs each call. Requests and
// responses are logged in full only when enabled; the summary line is
// always written at debug level.
type InstrumentedProvider struct {
	provider     Provider
	logger       *zap.Logger
	logRequests  bool
	logResponses bool
}

// NewInstrumentedProvider creates a new instrumented LLM provider.
func NewInstrumentedProvider(provider Provider, logger *zap.Logger, logRequests, logResponses bool) *InstrumentedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedProvider{
		provider:     provider,
		logger:       logger.With(zap.String("provider", provider.Name()), zap.String("model", provider.Model())),
		logRequests:  logRequests,
		logResponses: logResponses,
	}
}

// Name returns the underlying provider name.
func (p *InstrumentedProvider) Name() string {
	return p.provider.Name()
}

// Model returns the underlying model identifier.
func (p *InstrumentedProvider) Model() string {
	return p.provider.Model()
}

// Supports forwards to the wrapped provider.
func (p *InstrumentedProvider) Supports(capability Capability) bool {
	return Supports(p.provider, capability)
}

// Unwrap returns the wrapped provider.
func (p *InstrumentedProvider) Unwrap() Provider {
	return p.provider
}

// Chat forwards to the wrapped provider.
func (p *InstrumentedProvider) Chat(ctx context.Context, messages []Message, tools []shuttle.Tool) (*Response, error) {
	if p.logRequests {
		toolNames := make([]string, len(tools))
		for i, tool := range tools {
			toolNames[i] = tool.Name()
		}
		p.logger.Info("llm request",
			zap.Int("messages", len(messages)),
			zap.Strings("tools", toolNames),
			zap.Any("conversation", messages),
		)
	}

	start := time.Now()
	resp, err := p.provider.Chat(ctx, messages, tools)
	duration := time.Since(start)

	if err != nil {
		p.logger.Warn("llm call failed", zap.Duration("duration", duration), zap.Error(err))
		return nil, err
	}

	p.logger.Debug("llm call completed",
		zap.Duration("duration", duration),
		zap.String("stop_reason", resp.StopReason),
		zap.Int("tool_calls", len(resp.ToolCalls)),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
	)

	if p.logResponses {
		toolCalls := make([]string, len(resp.ToolCalls))
		for i, tc := range resp.ToolCalls {
			toolCalls[i] = tc.Name
		}
		p.logger.Info("llm response",
			zap.String("content", resp.Content),
			zap.Strings("tool_calls", toolCalls),
			zap.String("stop_reason", resp.StopReason),
		)
	}

	return resp, nil
}

var _ Provider = (*InstrumentedProvider)(nil)
