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
	"context"

	"github.com/teradata-labs/schema-agent/pkg/mcp/protocol"
	"go.uber.org/zap"
)

// ListResources returns the server's resources in the order it listed them.
// A server with no resources yields an empty slice.
func (c *Client) ListResources(ctx context.Context) ([]protocol.Resource, error) {
	var result protocol.ResourceListResult
	if err := c.call(ctx, protocol.MethodResourcesList, struct{}{}, &result); err != nil {
		return nil, err
	}

	// Only the first page is read.
	if result.NextCursor != "" {
		c.logger.Debug("resources/list has further pages", zap.String("cursor", result.NextCursor))
	}

	if result.Resources == nil {
		return []protocol.Resource{}, nil
	}
	return result.Resources, nil
}

// ReadResource reads a resource by URI and returns its content fragments in
// server order. An unknown uri yields a *ProtocolError.
func (c *Client) ReadResource(ctx context.Context, uri string) ([]protocol.ResourceContents, error) {
	if uri == "" {
		return nil, &ProtocolError{Method: protocol.MethodResourcesRead, Message: "resource uri is required"}
	}

	var result protocol.ReadResourceResult
	if err := c.call(ctx, protocol.MethodResourcesRead, protocol.ReadResourceParams{URI: uri}, &result); err != nil {
		return nil, err
	}

	if result.Contents == nil {
		return []protocol.ResourceContents{}, nil
	}
	return result.Contents, nil
}
