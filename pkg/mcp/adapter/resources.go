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

package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/teradata-labs/schema-agent/pkg/mcp/protocol"
	"github.com/teradata-labs/schema-agent/pkg/shuttle"
)

// Names of the resource tool handles.
const (
	ListResourcesToolName = "list_resources"
	ReadResourceToolName  = "read_resource"
)

// ResourceClient is the part of *client.Client the resource tools call.
type ResourceClient interface {
	ListResources(ctx context.Context) ([]protocol.Resource, error)
	ReadResource(ctx context.Context, uri string) ([]protocol.ResourceContents, error)
}

// ResourceTools returns the list_resources and read_resource handles bound
// to c.
func ResourceTools(c ResourceClient) []shuttle.Tool {
	return []shuttle.Tool{
		NewListResourcesTool(c),
		NewReadResourceTool(c),
	}
}

// ListResourcesTool lists the server's resources.
type ListResourcesTool struct {
	client ResourceClient
}

// NewListResourcesTool creates a list_resources handle.
func NewListResourcesTool(c ResourceClient) *ListResourcesTool {
	return &ListResourcesTool{client: c}
}

// Name implements shuttle.Tool
func (t *ListResourcesTool) Name() string { return ListResourcesToolName }

// Description implements shuttle.Tool
func (t *ListResourcesTool) Description() string {
	return "List the resources (database tables) the MCP server exposes. Returns uri, name and mimeType for each."
}

// InputSchema implements shuttle.Tool
func (t *ListResourcesTool) InputSchema() *shuttle.JSONSchema {
	return shuttle.NewObjectSchema("", map[string]*shuttle.JSONSchema{}, nil).Closed()
}

// Execute implements shuttle.Tool. Errors are returned unwrapped so the
// executor reports the client's own message to the model.
func (t *ListResourcesTool) Execute(ctx context.Context, _ map[string]interface{}) (*shuttle.Result, error) {
	resources, err := t.client.ListResources(ctx)
	if err != nil {
		return nil, err
	}

	listed := make([]map[string]string, 0, len(resources))
	for _, r := range resources {
		item := map[string]string{"uri": r.URI, "name": r.Name}
		if r.MimeType != "" {
			item["mimeType"] = r.MimeType
		}
		if r.Description != "" {
			item["description"] = r.Description
		}
		listed = append(listed, item)
	}

	return &shuttle.Result{
		Success:  true,
		Data:     listed,
		Metadata: map[string]interface{}{"count": len(resources)},
	}, nil
}

// ReadResourceTool reads one resource and returns its text content.
type ReadResourceTool struct {
	client ResourceClient
}

// NewReadResourceTool creates a read_resource handle.
func NewReadResourceTool(c ResourceClient) *ReadResourceTool {
	return &ReadResourceTool{client: c}
}

// Name implements shuttle.Tool
func (t *ReadResourceTool) Name() string { return ReadResourceToolName }

// Description implements shuttle.Tool
func (t *ReadResourceTool) Description() string {
	return "Read a resource by uri and return its text content, such as a table's column definitions."
}

// InputSchema implements shuttle.Tool
func (t *ReadResourceTool) InputSchema() *shuttle.JSONSchema {
	minLen := 1
	return shuttle.NewObjectSchema("", map[string]*shuttle.JSONSchema{
		"uri": shuttle.NewStringSchema("URI of the resource, as returned by list_resources").WithLength(&minLen, nil),
	}, []string{"uri"}).Closed()
}

// Execute implements shuttle.Tool. Binary fragments are skipped and counted
// in metadata.
func (t *ReadResourceTool) Execute(ctx context.Context, params map[string]interface{}) (*shuttle.Result, error) {
	uri, ok := params["uri"].(string)
	if !ok || uri == "" {
		return nil, fmt.Errorf("uri must be a non-empty string")
	}

	contents, err := t.client.ReadResource(ctx, uri)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	skipped := 0
	for _, c := range contents {
		if c.Kind() != protocol.ContentKindText {
			skipped++
			continue
		}
		text.WriteString(*c.Text)
	}

	return &shuttle.Result{
		Success: true,
		Data:    text.String(),
		Metadata: map[string]interface{}{
			"uri":            uri,
			"fragments":      len(contents),
			"skipped_binary": skipped,
		},
	}, nil
}
