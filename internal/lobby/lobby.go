package lobby

import (
	"context"

	"github.com/DoyleJ11/codeduel-backend/pkg/types"
)

// Client is one subscribed connection. Send must not block; it returns false
// when the connection cannot take more frames.
type Client interface {
	ID() string
	Send(env types.Envelope) bool
}

type Msg interface{ isLobbyMsg() }

type Join struct {
	Client Client
}

func (Join) isLobbyMsg() {}

// Leave removes a client and reports how many remain.
type Leave struct {
	ClientID  string
	Remaining chan int
}

func (Leave) isLobbyMsg() {}

// Broadcast delivers Msg to every client except the one named by Except.
type Broadcast struct {
	Msg    types.Envelope
	Except string
}

func (Broadcast) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type View struct {
	NumClients int
	ClientIDs  []string
}

// Lobby is the multicast group of one room on this process.
type Lobby struct {
	inbox   chan Msg
	clients map[string]Client
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewLobby(parent context.Context) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	l := &Lobby{
		inbox:   make(chan Msg, 64), // Small buffer
		clients: make(map[string]Client),
		ctx:     ctx,
		cancel:  cancel,
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				l.clients[msg.Client.ID()] = msg.Client

			case Leave:
				delete(l.clients, msg.ClientID)
				if msg.Remaining != nil {
					msg.Remaining <- len(l.clients)
				}

			case Broadcast:
				l.broadcast(msg.Msg, msg.Except)

			case GetState:
				// test-only: reflect internal state without data races
				ids := make([]string, 0, len(l.clients))
				for id := range l.clients {
					ids = append(ids, id)
				}
				msg.Reply <- View{NumClients: len(l.clients), ClientIDs: ids}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) shutdown() {
	clear(l.clients)
	l.cancel()
}

func (l *Lobby) broadcast(env types.Envelope, except string) {
	for id, c := range l.clients {
		if id == except {
			continue
		}
		if !c.Send(env) {
			// Client is slow/full - drop them. They can resync later.
			delete(l.clients, id)
		}
	}
}

// Expose the inbox so tests or the hub can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done is closed once the lobby has stopped.
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }
