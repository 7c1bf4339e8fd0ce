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

package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplate_Apply(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]string
		want     string
	}{
		{
			name:     "Simple substitution",
			template: "Hello {{name}}!",
			vars:     map[string]string{"name": "World"},
			want:     "Hello World!",
		},
		{
			name:     "Repeated variable",
			template: "{{a}} and {{a}}",
			vars:     map[string]string{"a": "x"},
			want:     "x and x",
		},
		{
			name:     "Go template style and spacing",
			template: "{{.schema}} / {{ input }}",
			vars:     map[string]string{"schema": "s", "input": "i"},
			want:     "s / i",
		},
		{
			name:     "Multi-line values kept verbatim",
			template: "Tables:\n{{schema}}Q: {{input}}",
			vars:     map[string]string{"schema": "issues = id\n\n", "input": "How many?"},
			want:     "Tables:\nissues = id\n\nQ: How many?",
		},
		{
			name:     "Empty value",
			template: "[{{schema}}]",
			vars:     map[string]string{"schema": ""},
			want:     "[]",
		},
		{
			name:     "Extra values ignored",
			template: "static",
			vars:     map[string]string{"unused": "x"},
			want:     "static",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := Parse(tt.template)
			require.NoError(t, err)
			got, err := tmpl.Apply(tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTemplate_MissingValue(t *testing.T) {
	tmpl := MustParse("{{schema}} {{input}} {{extra}}")
	_, err := tmpl.Apply(map[string]string{"schema": ""})
	require.Error(t, err)
	assert.Equal(t, "prompt template: no value for extra, input", err.Error())
}

func TestTemplate_Variables(t *testing.T) {
	tmpl := MustParse("{{input}} {{schema}} {{input}}")
	assert.Equal(t, []string{"input", "schema"}, tmpl.Variables())
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse("  \n")
	assert.Error(t, err)
	assert.Panics(t, func() { MustParse("") })
}

func TestDefaultTemplate(t *testing.T) {
	assert.Equal(t, []string{VarSchema, VarInput}, DefaultTemplate.Variables())

	got, err := DefaultTemplate.Apply(map[string]string{
		VarSchema: "issues = id,title\n\nprojects = id,name\n\n",
		VarInput:  "How many open issues per project?",
	})
	require.NoError(t, err)
	assert.Equal(t, "You have access to the following tables:\n\n"+
		"issues = id,title\n\nprojects = id,name\n\n\n\n"+
		"Answer the question using the tables above.\n\n"+
		"How many open issues per project?", got)
}
