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
	"github.com/spf13/cobra"

	"github.com/teradata-labs/schema-agent/pkg/session"
)

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the schema text the model would receive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeFrames, err := a.sessionConfig()
			if err != nil {
				return err
			}
			defer closeFrames()

			s, err := session.Assemble(cmd.Context(), cfg, deps)
			if err != nil {
				return err
			}

			_, _ = cmd.OutOrStdout().Write([]byte(s.String()))
			writeLine(cmd.ErrOrStderr(), "%d tables, ~%d tokens", s.Len(), s.Tokens())
			return nil
		},
	}
}
