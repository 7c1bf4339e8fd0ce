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
	"io"
	"sync"

	"go.uber.org/zap"
)

// FrameSink receives a copy of every frame a transport sends or receives.
// Implementations must not retain or modify the frame.
type FrameSink interface {
	Frame(dir Direction, frame []byte)
}

// LogSink mirrors frames to a zap logger at debug level.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink that logs each frame.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Frame implements FrameSink.
func (s *LogSink) Frame(dir Direction, frame []byte) {
	s.logger.Debug("mcp frame",
		zap.Stringer("direction", dir),
		zap.ByteString("frame", frame),
	)
}

// WriterSink appends frames to a writer, one per line, prefixed with
// "> " for outbound and "< " for inbound frames.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Frame implements FrameSink. Write errors are dropped.
func (s *WriterSink) Frame(dir Direction, frame []byte) {
	prefix := "< "
	if dir == Outbound {
		prefix = "> "
	}

	line := make([]byte, 0, len(prefix)+len(frame)+1)
	line = append(line, prefix...)
	line = append(line, frame...)
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.w.Write(line)
}

// MultiSink fans a frame out to several sinks.
type MultiSink []FrameSink

// Frame implements FrameSink.
func (m MultiSink) Frame(dir Direction, frame []byte) {
	for _, s := range m {
		if s != nil {
			s.Frame(dir, frame)
		}
	}
}
