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
	"bytes"
	"context"
	"errors"
	"io"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	frames []string
}

func (r *recordingSink) Frame(dir Direction, frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, dir.String()+" "+string(frame))
}

func (r *recordingSink) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.frames...)
}

func TestPipeTransport_SendReceive(t *testing.T) {
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"result":{}}` + "\n")
	var out bytes.Buffer

	tr := NewPipeTransport(in, &out, PipeConfig{})

	err := tr.Send(context.Background(), []byte(`{"jsonrpc":"2.0","method":"ping","id":1}`))
	require.NoError(t, err)
	assert.Equal(t, `{"jsonrpc":"2.0","method":"ping","id":1}`+"\n", out.String())

	msg, err := tr.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"jsonrpc":"2.0","id":1,"result":{}}`, string(msg))
}

func TestPipeTransport_ReceiveEOF(t *testing.T) {
	tr := NewPipeTransport(strings.NewReader(""), io.Discard, PipeConfig{})

	_, err := tr.Receive(context.Background())
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "receive", ioErr.Op)
	assert.ErrorIs(t, err, io.EOF)

	// Reader goroutine has exited; later reads keep failing the same way.
	_, err = tr.Receive(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestPipeTransport_PartialFrameIsUnexpectedEOF(t *testing.T) {
	tr := NewPipeTransport(strings.NewReader(`{"jsonrpc":"2.0","id":1`), io.Discard, PipeConfig{})

	_, err := tr.Receive(context.Background())
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestPipeTransport_ReceiveContextCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	tr := NewPipeTransport(pr, io.Discard, PipeConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Receive(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeTransport_CancelledReceiveDoesNotLoseFrame(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	tr := NewPipeTransport(pr, io.Discard, PipeConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tr.Receive(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	go func() {
		_, _ = pw.Write([]byte(`{"id":7}` + "\n"))
	}()

	msg, err := tr.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"id":7}`, string(msg))
}

func TestPipeTransport_ReadTimeout(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	tr := NewPipeTransport(pr, io.Discard, PipeConfig{ReadTimeout: 20 * time.Millisecond})

	_, err := tr.Receive(context.Background())
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.ErrorIs(t, err, ErrReadTimeout)
}

func TestPipeTransport_NoGoroutineLeak(t *testing.T) {
	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	baseline := runtime.NumGoroutine()

	pr, pw := io.Pipe()
	tr := NewPipeTransport(pr, io.Discard, PipeConfig{})

	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := tr.Receive(ctx)
		require.Error(t, err)
	}

	pw.Close()
	time.Sleep(100 * time.Millisecond)
	runtime.GC()

	current := runtime.NumGoroutine()
	assert.LessOrEqual(t, current, baseline+2,
		"baseline=%d current=%d", baseline, current)
}

func TestPipeTransport_SkipsEmptyLinesAndTrimsCRLF(t *testing.T) {
	in := strings.NewReader("\n\r\n" + `{"method":"ping"}` + "\r\n")
	tr := NewPipeTransport(in, io.Discard, PipeConfig{})

	msg, err := tr.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"method":"ping"}`, string(msg))
}

func TestPipeTransport_RejectsEmbeddedNewline(t *testing.T) {
	var out bytes.Buffer
	tr := NewPipeTransport(strings.NewReader(""), &out, PipeConfig{})

	err := tr.Send(context.Background(), []byte("{\n}"))
	require.Error(t, err)
	assert.Empty(t, out.String())
}

func TestPipeTransport_CloseIsIdempotent(t *testing.T) {
	pr, pw := io.Pipe()
	outR, outW := io.Pipe()
	defer outR.Close()

	tr := NewPipeTransport(pr, outW, PipeConfig{})

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	err := tr.Send(context.Background(), []byte("{}"))
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = tr.Receive(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	// The reader side was closed too.
	_, err = pw.Write([]byte("x"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestPipeTransport_SendBrokenPipe(t *testing.T) {
	tr := NewPipeTransport(strings.NewReader(""), failingWriter{}, PipeConfig{})

	err := tr.Send(context.Background(), []byte("{}"))
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "send", ioErr.Op)
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestPipeTransport_ConcurrentSends(t *testing.T) {
	var mu sync.Mutex
	var buf bytes.Buffer
	w := writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return buf.Write(p)
	})

	tr := NewPipeTransport(strings.NewReader(""), w, PipeConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = tr.Send(context.Background(), []byte(`{"id":`+string(rune('0'+i))+`}`))
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 10)
	for _, line := range lines {
		assert.Regexp(t, `^\{"id":\d\}$`, line)
	}
}

func TestPipeTransport_SinkMirrorsFrames(t *testing.T) {
	sink := &recordingSink{}
	in := strings.NewReader(`{"id":1,"result":{}}` + "\n")
	var out bytes.Buffer

	tr := NewPipeTransport(in, &out, PipeConfig{Sink: sink})

	require.NoError(t, tr.Send(context.Background(), []byte(`{"id":1,"method":"ping"}`)))
	msg, err := tr.Receive(context.Background())
	require.NoError(t, err)

	assert.Equal(t, `{"id":1,"result":{}}`, string(msg))
	assert.Equal(t, `{"id":1,"method":"ping"}`+"\n", out.String())
	assert.Equal(t, []string{
		`send {"id":1,"method":"ping"}`,
		`recv {"id":1,"result":{}}`,
	}, sink.all())
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
