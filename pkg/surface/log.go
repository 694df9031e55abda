package surface

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

// LogSurface writes notices to a logger.
type LogSurface struct {
	id     string
	logger *log.Logger

	mu      sync.Mutex
	showing bool
	closed  bool
}

// NewLogSurface logs through logger.
func NewLogSurface(id string, logger *log.Logger) *LogSurface {
	return &LogSurface{id: "log:" + id, logger: logger}
}

func (s *LogSurface) ID() string { return s.id }

func (s *LogSurface) Show(_ context.Context, n Notice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.showing = true
	s.logger.Info(n.Title, "kind", n.Kind, "status", n.Line)
	return nil
}

func (s *LogSurface) Dismiss(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.showing {
		s.showing = false
		s.logger.Info("surface dismissed", "surface", s.id)
	}
	return nil
}

func (s *LogSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
