package surface

import (
	"context"
	"sync"
)

// Update is a change to a ChannelSurface. Visible is false on dismiss.
type Update struct {
	Notice  Notice
	Visible bool
}

// ChannelSurface hands notices to a UI loop over a channel.
//
// Sends never block: when the reader falls behind, the oldest pending update
// is replaced by the newest, since only the latest notice matters.
type ChannelSurface struct {
	id string
	ch chan Update

	mu      sync.Mutex
	showing bool
	closed  bool
}

// NewChannelSurface creates a surface with room for buffer pending updates.
func NewChannelSurface(id string, buffer int) *ChannelSurface {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSurface{
		id: "channel:" + id,
		ch: make(chan Update, buffer),
	}
}

func (s *ChannelSurface) ID() string { return s.id }

// Updates is closed by Close.
func (s *ChannelSurface) Updates() <-chan Update {
	return s.ch
}

func (s *ChannelSurface) Show(_ context.Context, n Notice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.showing = true
	s.sendLocked(Update{Notice: n, Visible: true})
	return nil
}

func (s *ChannelSurface) Dismiss(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if !s.showing {
		return nil
	}
	s.showing = false
	s.sendLocked(Update{Visible: false})
	return nil
}

func (s *ChannelSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

func (s *ChannelSurface) sendLocked(u Update) {
	for {
		select {
		case s.ch <- u:
			return
		default:
		}
		// Full: discard the oldest pending update and retry.
		select {
		case <-s.ch:
		default:
		}
	}
}
