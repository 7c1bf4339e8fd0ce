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

// Package prompts renders the user message sent to the model.
package prompts

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/MakeNowJust/heredoc"
)

// Variable names understood by DefaultTemplate.
const (
	VarSchema = "schema"
	VarInput  = "input"
)

// DefaultTemplate introduces the schema and then asks the question.
var DefaultTemplate = MustParse(heredoc.Doc(`
	You have access to the following tables:

	{{schema}}

	Answer the question using the tables above.

	{{input}}`))

// placeholder matches {{name}}, tolerating inner spaces and the Go template
// style {{.name}}.
var placeholder = regexp.MustCompile(`\{\{\s*\.?(\w+)\s*\}\}`)

// Template is a prompt with {{name}} placeholders.
type Template struct {
	text string
	vars []string
}

// Parse creates a template. A template without placeholders is allowed.
func Parse(text string) (*Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("prompt template is empty")
	}

	seen := make(map[string]bool)
	var vars []string
	for _, m := range placeholder.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			vars = append(vars, m[1])
		}
	}
	return &Template{text: text, vars: vars}, nil
}

// MustParse is Parse that panics on error.
func MustParse(text string) *Template {
	t, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return t
}

// Text returns the raw template.
func (t *Template) Text() string { return t.text }

// Variables returns placeholder names in order of first appearance.
func (t *Template) Variables() []string {
	return append([]string(nil), t.vars...)
}

// Apply substitutes every placeholder. Values are inserted verbatim, so
// multi-line schema text keeps its layout. A placeholder without a value is
// an error; unused values are ignored.
func (t *Template) Apply(values map[string]string) (string, error) {
	var missing []string
	for _, v := range t.vars {
		if _, ok := values[v]; !ok {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("prompt template: no value for %s", strings.Join(missing, ", "))
	}

	return placeholder.ReplaceAllStringFunc(t.text, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]
		return values[name]
	}), nil
}
