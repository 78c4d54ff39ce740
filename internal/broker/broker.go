// Package broker carries room broadcasts to every process that has
// subscribers for the room.
package broker

import (
	"context"

	"github.com/DoyleJ11/codeduel-backend/pkg/types"
)

// Groups is the local delivery side, implemented by hub.Hub.
type Groups interface {
	Publish(roomID string, msg types.Envelope, except string)
	Close(roomID string)
}

// Message is what travels between processes.
type Message struct {
	RoomID   string          `json:"roomId"`
	Except   string          `json:"except,omitempty"`
	Envelope *types.Envelope `json:"envelope,omitempty"`
	Close    bool            `json:"close,omitempty"`
}

func (m Message) deliver(g Groups) {
	if m.RoomID == "" {
		return
	}
	if m.Envelope != nil {
		g.Publish(m.RoomID, *m.Envelope, m.Except)
	}
	if m.Close {
		g.Close(m.RoomID)
	}
}

// Local delivers straight to this process's groups.
type Local struct {
	groups Groups
}

func NewLocal(g Groups) *Local { return &Local{groups: g} }

func (l *Local) Publish(_ context.Context, roomID string, env types.Envelope, except string) error {
	l.groups.Publish(roomID, env, except)
	return nil
}

func (l *Local) CloseRoom(_ context.Context, roomID string) error {
	l.groups.Close(roomID)
	return nil
}

func (l *Local) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (l *Local) Close() error { return nil }
