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

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teradata-labs/schema-agent/pkg/session"
)

// resourceView is one listed resource.
type resourceView struct {
	URI         string `json:"uri" yaml:"uri"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty" yaml:"mimeType,omitempty"`
}

type resourcesView struct {
	Server    string         `json:"server" yaml:"server"`
	Version   string         `json:"version,omitempty" yaml:"version,omitempty"`
	Resources []resourceView `json:"resources" yaml:"resources"`
}

func newResourcesCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "resources",
		Short: "List the resources the MCP server exposes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "yaml" && output != "json" {
				return fmt.Errorf("unsupported output format: %s (use yaml or json)", output)
			}

			cfg, closeFrames, err := a.sessionConfig()
			if err != nil {
				return err
			}
			defer closeFrames()

			conn, err := session.Open(cmd.Context(), cfg, deps)
			if err != nil {
				return err
			}
			defer conn.Close()

			resources, err := conn.Client.ListResources(cmd.Context())
			if err != nil {
				return err
			}

			view := resourcesView{
				Server:    conn.Server.Name,
				Version:   conn.Server.Version,
				Resources: make([]resourceView, 0, len(resources)),
			}
			for _, r := range resources {
				view.Resources = append(view.Resources, resourceView{
					URI:         r.URI,
					Name:        r.Name,
					Description: r.Description,
					MimeType:    r.MimeType,
				})
			}

			out := cmd.OutOrStdout()
			if output == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(view); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format (yaml, json)")
	return cmd
}
