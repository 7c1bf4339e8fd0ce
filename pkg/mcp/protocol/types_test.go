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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadResourceResult_ContentKinds(t *testing.T) {
	input := `{
		"contents": [
			{"uri": "postgres://db/issues/schema", "mimeType": "application/json", "text": "[{\"column_name\":\"id\"}]"},
			{"uri": "postgres://db/issues/schema", "mimeType": "image/png", "blob": "iVBORw0KGgo="},
			{"uri": "postgres://db/issues/schema", "text": ""}
		]
	}`

	var result ReadResourceResult
	require.NoError(t, json.Unmarshal([]byte(input), &result))
	require.Len(t, result.Contents, 3)

	assert.Equal(t, ContentKindText, result.Contents[0].Kind())
	assert.Equal(t, `[{"column_name":"id"}]`, *result.Contents[0].Text)

	assert.Equal(t, ContentKindBlob, result.Contents[1].Kind())
	assert.Nil(t, result.Contents[1].Text)

	// An empty text field is still text.
	assert.Equal(t, ContentKindText, result.Contents[2].Kind())
	assert.Equal(t, "", *result.Contents[2].Text)
}

func TestResourceContents_Constructors(t *testing.T) {
	data, err := json.Marshal(TextContents("t1", "text/plain", "id,title"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"uri":"t1","mimeType":"text/plain","text":"id,title"}`, string(data))

	data, err = json.Marshal(BlobContents("t1", "", "AAEC"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"uri":"t1","blob":"AAEC"}`, string(data))
}

func TestResourceListResult_Unmarshal(t *testing.T) {
	input := `{"resources":[
		{"uri":"postgres://db/issues/schema","name":"\"issues\" database schema","mimeType":"application/json"},
		{"uri":"postgres://db/projects/schema","name":"\"projects\" database schema"}
	]}`

	var result ResourceListResult
	require.NoError(t, json.Unmarshal([]byte(input), &result))
	require.Len(t, result.Resources, 2)
	assert.Equal(t, "postgres://db/issues/schema", result.Resources[0].URI)
	assert.Equal(t, `"projects" database schema`, result.Resources[1].Name)
}

func TestInitializeParams_Marshal(t *testing.T) {
	data, err := json.Marshal(InitializeParams{
		ProtocolVersion: ProtocolVersion,
		ClientInfo:      Implementation{Name: "schema-agent", Version: "0.1.0"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"protocolVersion": "2024-11-05",
		"capabilities": {},
		"clientInfo": {"name": "schema-agent", "version": "0.1.0"}
	}`, string(data))
}

func TestCallToolResult_Unmarshal(t *testing.T) {
	input := `{"content":[{"type":"text","text":"[{\"name\":\"bug\"}]"}],"isError":false}`

	var result CallToolResult
	require.NoError(t, json.Unmarshal([]byte(input), &result))
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)
	assert.False(t, result.IsError)
}
