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

package shuttle

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// NormalizeSchema makes a schema acceptable to strict tool-calling APIs:
// object types get a non-nil properties map and missing types are inferred.
func NormalizeSchema(schema *JSONSchema) *JSONSchema {
	if schema == nil {
		return NewObjectSchema("", map[string]*JSONSchema{}, nil)
	}

	if schema.Type == "" {
		switch {
		case schema.Properties != nil:
			schema.Type = "object"
		case schema.Items != nil:
			schema.Type = "array"
		case len(schema.Enum) > 0:
			schema.Type = "string"
		}
	}

	if schema.Type == "object" {
		if schema.Properties == nil {
			schema.Properties = make(map[string]*JSONSchema)
		}
		for key, prop := range schema.Properties {
			schema.Properties[key] = NormalizeSchema(prop)
		}
	}

	if schema.Type == "array" && schema.Items != nil {
		schema.Items = NormalizeSchema(schema.Items)
	}

	return schema
}

// ValidateParams checks params against the tool's input schema. A tool
// without a schema accepts anything.
func ValidateParams(schema *JSONSchema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	if params == nil {
		params = map[string]interface{}{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(params),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid arguments: %s", strings.Join(msgs, "; "))
	}
	return nil
}
