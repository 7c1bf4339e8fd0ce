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

// Package transport implements the communication layer for MCP protocol.
//
// Messages are exchanged as newline-delimited frames. A frame is one JSON-RPC
// message without its trailing newline.
package transport

import (
	"context"
)

// Transport handles bidirectional message exchange with an MCP server.
type Transport interface {
	// Send sends one framed message.
	Send(ctx context.Context, message []byte) error

	// Receive blocks until one complete frame is available.
	Receive(ctx context.Context) ([]byte, error)

	// Close releases the underlying process or streams. Safe to call twice.
	Close() error
}

// Direction tells a FrameSink which way a frame travelled.
type Direction int

const (
	// Outbound frames were sent to the server.
	Outbound Direction = iota
	// Inbound frames were received from the server.
	Inbound
)

// String returns "send" or "recv".
func (d Direction) String() string {
	if d == Outbound {
		return "send"
	}
	return "recv"
}
