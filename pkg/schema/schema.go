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

// Package schema turns the resources an MCP server exposes into the schema
// text handed to the model.
package schema

import "strings"

// Entry is one resource paired with the text of its contents.
type Entry struct {
	URI  string
	Name string
	Text string
}

// String renders the entry as "<name> = <text>\n\n".
func (e Entry) String() string {
	return e.Name + " = " + e.Text + "\n\n"
}

// Schema is the ordered list of entries, one per discovered resource.
type Schema struct {
	Entries []Entry
}

// String renders every entry in order. An empty schema renders "".
func (s *Schema) String() string {
	if s == nil {
		return ""
	}
	var b strings.Builder
	for _, e := range s.Entries {
		b.WriteString(e.String())
	}
	return b.String()
}

// Len returns the number of entries.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Entries)
}

// Tokens estimates the prompt cost of the rendered schema.
func (s *Schema) Tokens() int {
	return DefaultTokenCounter().CountTokens(s.String())
}
