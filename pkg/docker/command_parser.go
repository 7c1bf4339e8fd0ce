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
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// ParseCommand parses a command string into []string, handling shell-like quoting.
//
// Supports:
//   - Single quotes: 'no expansion'
//   - Double quotes: "allows spaces"
//   - Escaping: \"quote\" or \'quote\'
//   - Whitespace splitting
//
// Examples:
//   - "docker run -i --rm mcp/postgres" -> ["docker", "run", "-i", "--rm", "mcp/postgres"]
//   - "sh -c 'echo \"hi\"'" -> ["sh", "-c", "echo \"hi\""]
func ParseCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	var inSingleQuote, inDoubleQuote bool
	var escaped, quoted bool

	for _, ch := range command {
		if escaped {
			current.WriteRune(ch)
			escaped = false
			continue
		}

		if ch == '\\' && !inSingleQuote {
			escaped = true
			continue
		}

		if ch == '\'' && !inDoubleQuote {
			inSingleQuote = !inSingleQuote
			quoted = true
			continue
		}

		if ch == '"' && !inSingleQuote {
			inDoubleQuote = !inDoubleQuote
			quoted = true
			continue
		}

		if unicode.IsSpace(ch) && !inSingleQuote && !inDoubleQuote {
			if current.Len() > 0 || quoted {
				args = append(args, current.String())
				current.Reset()
				quoted = false
			}
			continue
		}

		current.WriteRune(ch)
	}

	if inSingleQuote {
		return nil, fmt.Errorf("unclosed single quote in command: %s", command)
	}
	if inDoubleQuote {
		return nil, fmt.Errorf("unclosed double quote in command: %s", command)
	}
	if escaped {
		return nil, fmt.Errorf("trailing backslash in command: %s", command)
	}

	if current.Len() > 0 || quoted {
		args = append(args, current.String())
	}

	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	return args, nil
}

// runFlagsWithValue are `docker run` flags that consume the next argument
// when written without '='.
var runFlagsWithValue = map[string]bool{
	"-e": true, "--env": true, "--env-file": true,
	"-v": true, "--volume": true, "--mount": true,
	"-p": true, "--publish": true,
	"-w": true, "--workdir": true,
	"-u": true, "--user": true,
	"-l": true, "--label": true,
	"--name": true, "--network": true, "--net": true,
	"--platform": true, "--entrypoint": true, "--pull": true,
	"--add-host": true, "--cpus": true, "-m": true, "--memory": true,
	"--hostname": true, "-h": true, "--restart": true,
}

// IsDockerCommand reports whether command is the docker CLI.
func IsDockerCommand(command string) bool {
	return strings.TrimSuffix(filepath.Base(command), ".exe") == "docker"
}

// ImageFromRunArgs returns the image reference of a `docker run` (or
// `docker container run`) argument list, and the arguments passed to the
// container after it. ok is false when args are not a run invocation.
func ImageFromRunArgs(args []string) (image string, containerArgs []string, ok bool) {
	i := 0
	if i < len(args) && args[i] == "container" {
		i++
	}
	if i >= len(args) || args[i] != "run" {
		return "", nil, false
	}
	i++

	for ; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			i++
			break
		}
		if !strings.HasPrefix(arg, "-") {
			break
		}
		if runFlagsWithValue[arg] {
			i++
		}
	}

	if i >= len(args) {
		return "", nil, false
	}
	return args[i], args[i+1:], true
}
