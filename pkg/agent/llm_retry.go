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

package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/schema-agent/pkg/llm"
	"github.com/teradata-labs/schema-agent/pkg/shuttle"
)

// chatWithRetry wraps LLM Chat calls with exponential backoff retry logic.
// Permanent failures (bad request, auth, malformed response) return at once.
func (e *Executor) chatWithRetry(ctx context.Context, messages []llm.Message, tools []shuttle.Tool) (*llm.Response, error) {
	retry := e.config.Retry
	if retry.MaxRetries <= 0 {
		return e.llm.Chat(ctx, messages, tools)
	}

	var lastErr error
	delay := retry.InitialDelay

	for attempt := 0; attempt <= retry.MaxRetries; attempt++ {
		response, err := e.llm.Chat(ctx, messages, tools)
		if err == nil {
			if attempt > 0 {
				e.logger.Info("llm retry succeeded", zap.Int("attempt", attempt+1))
			}
			return response, nil
		}

		lastErr = err

		// Don't retry on context cancellation or deadline exceeded
		if ctx.Err() != nil {
			return nil, fmt.Errorf("llm call failed (attempt %d/%d): %w (context cancelled)",
				attempt+1, retry.MaxRetries+1, err)
		}

		if !llm.IsTransient(err) {
			return nil, err
		}

		// If this is the last attempt, don't sleep
		if attempt >= retry.MaxRetries {
			break
		}

		e.logger.Warn("llm call failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", retry.MaxRetries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("llm call failed (attempt %d/%d): %w (context cancelled during retry)",
				attempt+1, retry.MaxRetries+1, ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * retry.Multiplier)
		if retry.MaxDelay > 0 && delay > retry.MaxDelay {
			delay = retry.MaxDelay
		}
	}

	e.logger.Error("llm retries exhausted",
		zap.Int("max_retries", retry.MaxRetries),
		zap.Error(lastErr),
	)

	return nil, fmt.Errorf("llm call failed after %d attempts: %w",
		retry.MaxRetries+1, lastErr)
}
