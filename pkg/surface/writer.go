package surface

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// WriterSurface prints one line per notice, e.g.
//
//	[Stopwatch is running!] Running — 00:00:12
type WriterSurface struct {
	w io.Writer

	mu      sync.Mutex
	showing bool
	closed  bool
}

// NewWriterSurface writes to w.
func NewWriterSurface(w io.Writer) *WriterSurface {
	return &WriterSurface{w: w}
}

func (s *WriterSurface) ID() string { return "writer" }

func (s *WriterSurface) Show(_ context.Context, n Notice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, err := fmt.Fprintf(s.w, "[%s] %s\n", n.Title, n.Line); err != nil {
		return fmt.Errorf("write notice: %w", err)
	}
	s.showing = true
	return nil
}

func (s *WriterSurface) Dismiss(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.showing = false
	return nil
}

func (s *WriterSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
