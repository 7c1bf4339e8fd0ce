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

package protocol

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateArguments validates arguments against a JSON Schema document.
// An empty schema accepts anything.
func ValidateArguments(schema map[string]interface{}, arguments map[string]interface{}) error {
	if len(schema) == 0 {
		return nil
	}
	if arguments == nil {
		arguments = map[string]interface{}{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	argsLoader := gojsonschema.NewGoLoader(arguments)

	result, err := gojsonschema.Validate(schemaLoader, argsLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			errs[i] = e.String()
		}
		return fmt.Errorf("invalid arguments: %v", errs)
	}

	return nil
}

// ValidateToolArguments validates tool arguments against the tool's input schema.
func ValidateToolArguments(tool Tool, arguments map[string]interface{}) error {
	return ValidateArguments(tool.InputSchema, arguments)
}

// ValidateRequest validates a JSON-RPC request
func ValidateRequest(req *Request) error {
	if req.JSONRPC != JSONRPCVersion {
		return fmt.Errorf("invalid jsonrpc version: %s (expected %s)", req.JSONRPC, JSONRPCVersion)
	}

	if req.Method == "" {
		return fmt.Errorf("method is required")
	}

	return nil
}

// ValidateResponse validates a message classified as a response.
func ValidateResponse(msg *Message) error {
	if msg.JSONRPC != JSONRPCVersion {
		return fmt.Errorf("invalid jsonrpc version: %q (expected %s)", msg.JSONRPC, JSONRPCVersion)
	}

	hasResult := len(msg.Result) > 0
	hasError := msg.Error != nil
	if hasResult == hasError {
		return fmt.Errorf("response must have exactly one of result or error")
	}

	return nil
}
