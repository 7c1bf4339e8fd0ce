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

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/schema-agent/pkg/agent"
	"github.com/teradata-labs/schema-agent/pkg/session"
)

// askOutput is the JSON form of an answer.
type askOutput struct {
	SessionID  string                `json:"session_id"`
	Server     string                `json:"server,omitempty"`
	Response   string                `json:"response"`
	Answered   bool                  `json:"answered"`
	Turns      int                   `json:"turns"`
	ToolCalls  int                   `json:"tool_calls"`
	Tables     int                   `json:"tables"`
	StopReason string                `json:"stop_reason,omitempty"`
	Tools      []agent.ToolExecution `json:"tool_executions,omitempty"`
}

func newAskCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question using the database schema",
		Example: `  schema-agent ask "How many open issues does each project have?" \
    --mcp-args run,-i,--rm,mcp/postgres \
    --database-url postgresql://host.docker.internal:5432/tracker`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("unsupported output format: %s (use text or json)", output)
			}

			cfg, closeFrames, err := a.sessionConfig()
			if err != nil {
				return err
			}
			defer closeFrames()
			cfg.Input = strings.Join(args, " ")

			outcome, err := session.Run(cmd.Context(), cfg, deps)
			if err != nil {
				return err
			}

			response := outcome.Result.Response
			if strings.TrimSpace(response) == "" {
				response = agent.NoResponse
			}

			out := cmd.OutOrStdout()
			if output == "text" {
				writeLine(out, "%s", response)
				return nil
			}

			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(askOutput{
				SessionID:  outcome.SessionID,
				Server:     outcome.Server.Name,
				Response:   response,
				Answered:   outcome.Result.Answered,
				Turns:      outcome.Result.Turns,
				ToolCalls:  outcome.Result.ToolCalls,
				Tables:     outcome.Schema.Len(),
				StopReason: outcome.Result.StopReason,
				Tools:      outcome.Result.ToolExecutions,
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json)")
	return cmd
}
