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

// schema-agent answers questions about a database exposed by an MCP server.
// It launches the server in a container, reads every table's schema from
// the server's resources, and hands the schema and the question to a
// tool-calling model.
//
// Usage:
//
//	schema-agent ask "Which projects have open issues?" \
//	  --mcp-args run,-i,--rm,mcp/postgres \
//	  --database-url postgresql://host.docker.internal:5432/tracker
//
// Configuration is read from flags, SCHEMA_AGENT_* environment variables and
// schema-agent.yaml, in that order of priority.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, rootCmd := newApp()
	err := rootCmd.ExecuteContext(ctx)
	_ = a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
