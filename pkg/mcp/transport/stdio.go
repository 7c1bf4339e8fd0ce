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

package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"time"

	"go.uber.org/zap"
)

// DefaultShutdownTimeout is how long Close waits for the server to exit
// after its stdin is closed before killing it.
const DefaultShutdownTimeout = 5 * time.Second

// StdioTransport implements Transport over the stdin/stdout of a subprocess,
// typically a container runtime such as `docker run -i --rm <image> ...`.
type StdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	framer          *lineFramer
	shutdownTimeout time.Duration
	logger          *zap.Logger
}

// StdioConfig configures the stdio transport
type StdioConfig struct {
	Command string            // Command to execute
	Args    []string          // Command arguments
	Env     map[string]string // Overlaid on the parent environment
	Dir     string            // Working directory
	Logger  *zap.Logger       // Logger for lifecycle events and server stderr

	// Sink, if set, receives a copy of every frame.
	Sink FrameSink

	// ReadTimeout bounds each Receive. Zero waits until ctx is done.
	ReadTimeout time.Duration

	// ShutdownTimeout overrides DefaultShutdownTimeout.
	ShutdownTimeout time.Duration
}

// NewStdioTransport starts the configured command and returns a transport
// speaking to it. Start failures are reported as *LaunchError.
func NewStdioTransport(config StdioConfig) (*StdioTransport, error) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}
	if config.Command == "" {
		return nil, &LaunchError{Err: errors.New("command is required")}
	}

	// #nosec G204 -- Intentional: MCP transport spawns server processes from trusted config
	cmd := exec.Command(config.Command, config.Args...)
	if config.Dir != "" {
		cmd.Dir = config.Dir
	}
	cmd.Env = mergeEnv(os.Environ(), config.Env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &LaunchError{Command: config.Command, Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, &LaunchError{Command: config.Command, Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, &LaunchError{Command: config.Command, Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, &LaunchError{Command: config.Command, Err: err}
	}

	t := &StdioTransport{
		cmd:             cmd,
		stdin:           stdin,
		stdout:          stdout,
		stderr:          stderr,
		framer:          newLineFramer(stdout, stdin, config.Sink, config.ReadTimeout),
		shutdownTimeout: config.ShutdownTimeout,
		logger:          config.Logger,
	}

	go t.monitorStderr()

	config.Logger.Info("MCP server started",
		zap.String("command", config.Command),
		zap.Int("args", len(config.Args)),
		zap.Int("pid", cmd.Process.Pid),
	)

	return t, nil
}

// mergeEnv overlays env on base. Keys are applied in sorted order so the
// result is deterministic; later entries win in exec.
func mergeEnv(base []string, env map[string]string) []string {
	out := make([]string, 0, len(base)+len(env))
	out = append(out, base...)
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// monitorStderr forwards the server's stderr to the logger.
func (s *StdioTransport) monitorStderr() {
	reader := bufio.NewReader(s.stderr)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			s.logger.Debug("MCP server stderr", zap.ByteString("line", trimFrame(line)))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				s.logger.Error("error reading stderr", zap.Error(err))
			}
			return
		}
	}
}

// Send implements Transport by writing one line to the server's stdin.
func (s *StdioTransport) Send(ctx context.Context, message []byte) error {
	return s.framer.write(ctx, message)
}

// Receive implements Transport by reading one line from the server's stdout.
func (s *StdioTransport) Receive(ctx context.Context) ([]byte, error) {
	return s.framer.read(ctx)
}

// Close closes the server's stdin and waits for it to exit, killing it
// after the shutdown timeout. Subsequent calls return nil.
func (s *StdioTransport) Close() error {
	if !s.framer.close() {
		return nil
	}

	pid := s.cmd.Process.Pid
	s.logger.Info("closing MCP server", zap.Int("pid", pid))

	// Close stdin to signal server to shutdown
	s.stdin.Close()

	done := make(chan error, 1)
	go func() {
		done <- s.cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Warn("MCP server exited with error", zap.Int("pid", pid), zap.Error(err))
		} else {
			s.logger.Info("MCP server exited cleanly", zap.Int("pid", pid))
		}
	case <-time.After(s.shutdownTimeout):
		s.logger.Warn("MCP server did not exit in time, killing process",
			zap.Int("pid", pid),
			zap.Duration("timeout", s.shutdownTimeout),
		)
		if err := s.cmd.Process.Kill(); err != nil {
			s.logger.Error("failed to kill process", zap.Error(err))
		}
		<-done
	}

	s.stdout.Close()
	s.stderr.Close()

	return nil
}

// Pid returns the server process id.
func (s *StdioTransport) Pid() int {
	return s.cmd.Process.Pid
}
