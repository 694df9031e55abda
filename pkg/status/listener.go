package status

import (
	"context"
	"fmt"
	"strings"

	"github.com/BYTE-6D65/clockapp/pkg/engine"
	"github.com/BYTE-6D65/clockapp/pkg/event"
)

// Update is one decoded tick or status event.
type Update struct {
	Type     UpdateType
	Snapshot engine.Snapshot
}

// Listener receives the updates of one engine kind.
type Listener struct {
	kind  engine.Kind
	sub   event.Subscription
	codec event.EventCodec
}

// Subscribe starts listening for kind on bus. Only updates published after
// Subscribe returns are delivered.
func Subscribe(ctx context.Context, bus event.Bus, kind engine.Kind) (*Listener, error) {
	sub, err := bus.Subscribe(ctx, event.Filter{
		Types:    []string{TickType(kind), StatusType(kind)},
		Metadata: map[string]string{"kind": string(kind)},
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s status: %w", kind, err)
	}

	return &Listener{
		kind:  kind,
		sub:   sub,
		codec: event.JSONCodec{},
	}, nil
}

// Kind returns the engine kind this listener follows.
func (l *Listener) Kind() engine.Kind {
	return l.kind
}

// Recv blocks until the next update, ctx is done, or the listener closes.
func (l *Listener) Recv(ctx context.Context) (Update, error) {
	select {
	case evt, ok := <-l.sub.Events():
		if !ok {
			return Update{}, ErrClosed
		}
		return l.decode(evt)
	case <-ctx.Done():
		return Update{}, ctx.Err()
	}
}

// Close unsubscribes.
func (l *Listener) Close() error {
	return l.sub.Close()
}

func (l *Listener) decode(evt event.Event) (Update, error) {
	var snap engine.Snapshot
	if err := evt.DecodePayload(&snap, l.codec); err != nil {
		return Update{}, fmt.Errorf("decode %s: %w", evt.Type, err)
	}

	typ := UpdateStatus
	if strings.HasSuffix(evt.Type, ".tick") {
		typ = UpdateTick
	}
	return Update{Type: typ, Snapshot: snap}, nil
}
