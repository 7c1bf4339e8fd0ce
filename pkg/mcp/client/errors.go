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

package client

import (
	"errors"
	"fmt"
)

// ErrClientClosed is returned by every operation after Close.
var ErrClientClosed = errors.New("mcp client closed")

// ProtocolError reports a response that could not be decoded or that carried
// a JSON-RPC error, such as a read of an unknown resource.
type ProtocolError struct {
	Method  string
	Code    int // JSON-RPC error code, 0 when the response was malformed
	Message string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("mcp %s: server error %d: %s", e.Method, e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("mcp %s: %s: %v", e.Method, e.Message, e.Err)
	}
	return fmt.Sprintf("mcp %s: %s", e.Method, e.Message)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IsProtocolError reports whether err is or wraps a *ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
