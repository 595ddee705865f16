// Package stream consumes incremental model replies.
//
// A Reader hands out raw text chunks in arrival order and reports io.EOF when
// the reply is complete. Consume drives a Reader to the end, reporting every
// chunk together with the accumulated text seen so far.
package stream

import (
	"context"
	"errors"
	"io"
	"strings"
)

// Reader is a source of streamed text chunks.
// Recv returns io.EOF once the reply is complete.
type Reader interface {
	Recv() (string, error)
	Close() error
}

// Update is delivered to the consumer callback after every chunk
type Update struct {
	Chunk       string
	Accumulated string
}

// Consume reads r until EOF, calling onUpdate after each non-empty chunk.
// It returns the full accumulated text. The reader is always closed.
func Consume(ctx context.Context, r Reader, onUpdate func(Update)) (string, error) {
	defer r.Close()

	var acc strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return acc.String(), err
		}

		chunk, err := r.Recv()
		if chunk != "" {
			acc.WriteString(chunk)
			if onUpdate != nil {
				onUpdate(Update{Chunk: chunk, Accumulated: acc.String()})
			}
		}
		if errors.Is(err, io.EOF) {
			return acc.String(), nil
		}
		if err != nil {
			return acc.String(), err
		}
	}
}

// ChanReader adapts a producer goroutine to the Reader interface.
// The producer delivers chunks with Send and
// finishes with Finish.
type ChanReader struct {
	chunks chan string
	err    error
	cancel context.CancelFunc
}

// NewChanReader creates a reader with the given chunk buffer size.
// cancel, if non-nil, is invoked on Close to stop the producer.
func NewChanReader(buffer int, cancel context.CancelFunc) *ChanReader {
	return &ChanReader{
		chunks: make(chan string, buffer),
		cancel: cancel,
	}
}

// Send delivers a chunk, giving up if ctx ends first
func (c *ChanReader) Send(ctx context.Context, chunk string) bool {
	select {
	case c.chunks <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// Finish marks the stream complete. A nil err means a clean EOF.
// Finish must be called exactly once by the producer.
func (c *ChanReader) Finish(err error) {
	c.err = err
	close(c.chunks)
}

// Recv implements Reader
func (c *ChanReader) Recv() (string, error) {
	chunk, ok := <-c.chunks
	if ok {
		return chunk, nil
	}
	if c.err != nil {
		return "", c.err
	}
	return "", io.EOF
}

// Close implements Reader
func (c *ChanReader) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// StaticReader replays a fixed list of chunks, then EOF or Err
type StaticReader struct {
	Chunks []string
	Err    error
	pos    int
}

// Recv implements Reader
func (s *StaticReader) Recv() (string, error) {
	if s.pos < len(s.Chunks) {
		chunk := s.Chunks[s.pos]
		s.pos++
		return chunk, nil
	}
	if s.Err != nil {
		return "", s.Err
	}
	return "", io.EOF
}

// Close implements Reader
func (s *StaticReader) Close() error { return nil }
