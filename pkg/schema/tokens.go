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

package schema

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenEncoding is the tiktoken encoding used for estimates. It is a close
// enough approximation for every supported backend.
const TokenEncoding = "cl100k_base"

// TokenCounter counts tokens with tiktoken, falling back to len/4 when the
// encoding cannot be loaded.
type TokenCounter struct {
	encoder *tiktoken.Tiktoken
	mu      sync.Mutex
}

var (
	defaultTokenCounter *TokenCounter
	counterInitOnce     sync.Once
)

// DefaultTokenCounter returns the shared counter, loading the encoding on
// first use.
func DefaultTokenCounter() *TokenCounter {
	counterInitOnce.Do(func() {
		tkm, err := tiktoken.GetEncoding(TokenEncoding)
		if err != nil {
			defaultTokenCounter = &TokenCounter{}
			return
		}
		defaultTokenCounter = &TokenCounter{encoder: tkm}
	})
	return defaultTokenCounter
}

// CountTokens returns the token count of text.
func (tc *TokenCounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if tc.encoder == nil {
		return len(text) / 4
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.encoder.Encode(text, nil, nil))
}
