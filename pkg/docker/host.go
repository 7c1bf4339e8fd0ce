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

package docker

import (
	"os"
	"strings"
)

// DefaultDockerSocketPaths returns the default Docker socket paths for the current platform.
// Can be overridden via SCHEMA_AGENT_DOCKER_SOCKET_PATHS (comma-separated).
func DefaultDockerSocketPaths() []string {
	if paths := os.Getenv("SCHEMA_AGENT_DOCKER_SOCKET_PATHS"); paths != "" {
		return splitPaths(paths)
	}

	home := os.Getenv("HOME")
	if home == "" {
		if user := os.Getenv("USER"); user != "" {
			home = "/Users/" + user
		}
	}

	return []string{
		home + "/.orbstack/run/docker.sock", // OrbStack (macOS)
		home + "/.docker/run/docker.sock",   // Docker Desktop (macOS)
		"/var/run/docker.sock",              // Standard location (Linux)
	}
}

func splitPaths(s string) []string {
	var paths []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// detectDockerHost attempts to detect the Docker daemon socket location.
// It tries in order: DOCKER_HOST env var, the given socket paths (or the
// defaults when empty), then the standard Linux socket.
func detectDockerHost(socketPaths []string) string {
	if host := os.Getenv("DOCKER_HOST"); host != "" {
		return host
	}

	paths := socketPaths
	if len(paths) == 0 {
		paths = DefaultDockerSocketPaths()
	}

	for _, sock := range paths {
		if _, err := os.Stat(sock); err == nil {
			return "unix://" + sock
		}
	}

	return "unix:///var/run/docker.sock"
}
