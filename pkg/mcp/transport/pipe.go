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
	"context"
	"errors"
	"io"
	"time"
)

// PipeTransport implements Transport over an arbitrary reader and writer,
// using the same newline framing as StdioTransport. It backs in-process
// servers and servers reached through already-open streams.
type PipeTransport struct {
	r      io.Reader
	w      io.Writer
	framer *lineFramer
}

// PipeConfig configures a PipeTransport.
type PipeConfig struct {
	Sink        FrameSink
	ReadTimeout time.Duration
}

// NewPipeTransport creates a transport reading frames from r and writing
// frames to w.
func NewPipeTransport(r io.Reader, w io.Writer, config PipeConfig) *PipeTransport {
	return &PipeTransport{
		r:      r,
		w:      w,
		framer: newLineFramer(r, w, config.Sink, config.ReadTimeout),
	}
}

// Send writes one frame followed by a newline.
func (t *PipeTransport) Send(ctx context.Context, message []byte) error {
	return t.framer.write(ctx, message)
}

// Receive reads the next non-empty frame.
func (t *PipeTransport) Receive(ctx context.Context) ([]byte, error) {
	return t.framer.read(ctx)
}

// Close marks the transport closed and closes the writer and reader when
// they implement io.Closer. Subsequent calls return nil.
func (t *PipeTransport) Close() error {
	if !t.framer.close() {
		return nil
	}
	var errs []error
	if c, ok := t.w.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := t.r.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
