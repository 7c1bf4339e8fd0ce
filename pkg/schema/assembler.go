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
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teradata-labs/schema-agent/pkg/mcp/protocol"
)

// ResourceSource lists and reads resources. *client.Client implements it.
type ResourceSource interface {
	ListResources(ctx context.Context) ([]protocol.Resource, error)
	ReadResource(ctx context.Context, uri string) ([]protocol.ResourceContents, error)
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the assembler's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Assembler builds a Schema from a ResourceSource.
type Assembler struct {
	source ResourceSource
	logger *zap.Logger
}

// NewAssembler creates an assembler reading from source.
func NewAssembler(source ResourceSource, opts ...Option) *Assembler {
	a := &Assembler{source: source, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble lists every resource, reads each one in discovery order and
// pairs names with texts by URI. The first error aborts assembly and no
// schema is returned.
func (a *Assembler) Assemble(ctx context.Context) (*Schema, error) {
	resources, err := a.source.ListResources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	a.logger.Debug("resources discovered", zap.Int("count", len(resources)))

	texts := make(map[string]string, len(resources))
	for _, r := range resources {
		if _, seen := texts[r.URI]; seen {
			continue
		}
		contents, err := a.source.ReadResource(ctx, r.URI)
		if err != nil {
			return nil, fmt.Errorf("read resource %q: %w", r.URI, err)
		}
		texts[r.URI] = joinText(contents)
		a.logger.Debug("resource read",
			zap.String("uri", r.URI),
			zap.String("name", r.Name),
			zap.Int("fragments", len(contents)),
		)
	}

	entries := make([]Entry, 0, len(resources))
	for _, r := range resources {
		entries = append(entries, Entry{URI: r.URI, Name: r.Name, Text: texts[r.URI]})
	}
	return &Schema{Entries: entries}, nil
}

// joinText concatenates text fragments in order. Binary fragments are
// dropped.
func joinText(contents []protocol.ResourceContents) string {
	var b strings.Builder
	for _, c := range contents {
		if c.Kind() == protocol.ContentKindText {
			b.WriteString(*c.Text)
		}
	}
	return b.String()
}
