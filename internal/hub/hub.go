package hub

import (
	"context"

	"github.com/DoyleJ11/codeduel-backend/internal/lobby"
	"github.com/DoyleJ11/codeduel-backend/pkg/types"
)

type Client = lobby.Client

type HubMsg interface{ isHubMsg() }

type Subscribe struct {
	RoomID string
	Client Client
}

type Unsubscribe struct {
	RoomID   string
	ClientID string
}

type Publish struct {
	RoomID string
	Msg    types.Envelope
	Except string
}

// CloseRoom drops the room's group and every subscription in it.
type CloseRoom struct {
	RoomID string
}

type GetLobby struct {
	RoomID string
	Reply  chan *lobby.Lobby
}

type ShutdownHub struct{}

func (Subscribe) isHubMsg()   {}
func (Unsubscribe) isHubMsg() {}
func (Publish) isHubMsg()     {}
func (CloseRoom) isHubMsg()   {}
func (GetLobby) isHubMsg()    {}
func (ShutdownHub) isHubMsg() {}

// Hub owns the multicast groups of every room with a subscriber on this
// process. Groups are created by the first Subscribe and dropped when the
// last subscriber leaves or the room is closed.
type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) Subscribe(roomID string, c Client) {
	h.send(Subscribe{RoomID: roomID, Client: c})
}

func (h *Hub) Unsubscribe(roomID, clientID string) {
	h.send(Unsubscribe{RoomID: roomID, ClientID: clientID})
}

func (h *Hub) Publish(roomID string, msg types.Envelope, except string) {
	h.send(Publish{RoomID: roomID, Msg: msg, Except: except})
}

func (h *Hub) Close(roomID string) {
	h.send(CloseRoom{RoomID: roomID})
}

func (h *Hub) Shutdown() {
	h.send(ShutdownHub{})
}

func (h *Hub) send(m HubMsg) {
	select {
	case h.inbox <- m:
	case <-h.ctx.Done():
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Subscribe:
				lb := h.lobbies[msg.RoomID]
				if lb == nil {
					lb = lobby.NewLobby(h.ctx)
					h.lobbies[msg.RoomID] = lb
				}
				lb.Inbox() <- lobby.Join{Client: msg.Client}

			case Unsubscribe:
				lb := h.lobbies[msg.RoomID]
				if lb == nil {
					break
				}
				left := make(chan int, 1)
				lb.Inbox() <- lobby.Leave{ClientID: msg.ClientID, Remaining: left}
				select {
				case n := <-left:
					if n == 0 {
						lb.Inbox() <- lobby.Shutdown{}
						delete(h.lobbies, msg.RoomID)
					}
				case <-lb.Done():
					delete(h.lobbies, msg.RoomID)
				}

			case Publish:
				if lb := h.lobbies[msg.RoomID]; lb != nil {
					lb.Inbox() <- lobby.Broadcast{Msg: msg.Msg, Except: msg.Except}
				}

			case CloseRoom:
				if lb := h.lobbies[msg.RoomID]; lb != nil {
					lb.Inbox() <- lobby.Shutdown{}
					delete(h.lobbies, msg.RoomID)
				}

			case GetLobby:
				msg.Reply <- h.lobbies[msg.RoomID] // May be nil

			case ShutdownHub:
				for _, lb := range h.lobbies {
					lb.Inbox() <- lobby.Shutdown{}
				}
				clear(h.lobbies)
				h.cancel()
			}
		}
	}
}
