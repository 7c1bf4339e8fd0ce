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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// ErrReadTimeout is wrapped by IOError when no frame arrives within the
// configured read timeout.
var ErrReadTimeout = errors.New("read timeout")

// readResult holds the result of a single line read from the reader.
type readResult struct {
	data []byte
	err  error
}

// lineFramer reads and writes newline-delimited frames.
//
// A persistent reader goroutine runs for the framer's lifetime so that a
// Receive cancelled through its context never loses a frame that is read
// afterwards.
type lineFramer struct {
	reader      *bufio.Reader
	writer      io.Writer
	sink        FrameSink
	readTimeout time.Duration

	writeMu sync.Mutex
	readCh  chan readResult
	once    sync.Once

	done      chan struct{}
	closeOnce sync.Once
}

func newLineFramer(r io.Reader, w io.Writer, sink FrameSink, readTimeout time.Duration) *lineFramer {
	return &lineFramer{
		// No Scanner: MCP servers can return arbitrarily large frames.
		reader:      bufio.NewReaderSize(r, 1024*1024),
		writer:      w,
		sink:        sink,
		readTimeout: readTimeout,
		readCh:      make(chan readResult, 1),
		done:        make(chan struct{}),
	}
}

func (f *lineFramer) startReader() {
	f.once.Do(func() {
		go func() {
			defer close(f.readCh)
			for {
				line, err := f.reader.ReadBytes('\n')
				select {
				case f.readCh <- readResult{data: line, err: err}:
				case <-f.done:
					return
				}
				if err != nil {
					return
				}
			}
		}()
	})
}

func (f *lineFramer) closed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// close marks the framer closed. Returns false if it was already closed.
func (f *lineFramer) close() bool {
	first := false
	f.closeOnce.Do(func() {
		close(f.done)
		first = true
	})
	return first
}

func (f *lineFramer) write(ctx context.Context, message []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if bytes.IndexByte(message, '\n') >= 0 {
		return fmt.Errorf("frame contains a newline")
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if f.closed() {
		return &IOError{Op: "send", Err: ErrClosed}
	}

	// One write per frame so a frame is never interleaved with another.
	frame := make([]byte, 0, len(message)+1)
	frame = append(frame, message...)
	frame = append(frame, '\n')
	if _, err := f.writer.Write(frame); err != nil {
		return &IOError{Op: "send", Err: err}
	}

	if f.sink != nil {
		f.sink.Frame(Outbound, message)
	}
	return nil
}

func (f *lineFramer) read(ctx context.Context) ([]byte, error) {
	if f.closed() {
		return nil, &IOError{Op: "receive", Err: ErrClosed}
	}
	f.startReader()

	var timeout <-chan time.Time
	if f.readTimeout > 0 {
		timer := time.NewTimer(f.readTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.done:
			return nil, &IOError{Op: "receive", Err: ErrClosed}
		case <-timeout:
			return nil, &IOError{Op: "receive", Err: ErrReadTimeout}
		case result, ok := <-f.readCh:
			if !ok {
				// Reader goroutine exited after delivering its error.
				return nil, &IOError{Op: "receive", Err: io.EOF}
			}
			if result.err != nil {
				err := result.err
				if errors.Is(err, io.EOF) && len(bytes.TrimSpace(result.data)) > 0 {
					err = io.ErrUnexpectedEOF
				}
				return nil, &IOError{Op: "receive", Err: err}
			}
			line := trimFrame(result.data)
			if len(line) == 0 {
				continue
			}
			if f.sink != nil {
				f.sink.Frame(Inbound, line)
			}
			return line, nil
		}
	}
}

// trimFrame strips the trailing newline and carriage return.
func trimFrame(line []byte) []byte {
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line
}
