package hub

import (
	"context"
	"testing"
	"time"

	"github.com/DoyleJ11/codeduel-backend/internal/lobby"
	"github.com/DoyleJ11/codeduel-backend/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanClient struct {
	id  string
	out chan types.Envelope
}

func (c chanClient) ID() string { return c.id }

func (c chanClient) Send(env types.Envelope) bool {
	select {
	case c.out <- env:
		return true
	default:
		return false
	}
}

func getLobby(h *Hub, roomID string) *lobby.Lobby {
	reply := make(chan *lobby.Lobby, 1)
	h.Inbox() <- GetLobby{RoomID: roomID, Reply: reply}
	return <-reply
}

func TestHub_Subscribe_Get_SamePointer(t *testing.T) {
	h := NewHub(context.Background())
	defer h.Shutdown()

	h.Subscribe("ZED123", chanClient{id: "a", out: make(chan types.Envelope, 1)})
	lb1 := getLobby(h, "ZED123")

	h.Subscribe("ZED123", chanClient{id: "b", out: make(chan types.Envelope, 1)})
	lb2 := getLobby(h, "ZED123")

	if lb1 == nil || lb2 == nil || lb1 != lb2 {
		t.Fatalf("expected same lobby pointer")
	}
}

func TestHub_PublishReachesSubscribers(t *testing.T) {
	h := NewHub(context.Background())
	defer h.Shutdown()

	a := chanClient{id: "a", out: make(chan types.Envelope, 1)}
	b := chanClient{id: "b", out: make(chan types.Envelope, 1)}
	h.Subscribe("R", a)
	h.Subscribe("R", b)
	h.Publish("R", types.Envelope{Event: types.EventGameReset}, "")

	for _, c := range []chanClient{a, b} {
		select {
		case env := <-c.out:
			assert.Equal(t, types.EventGameReset, env.Event)
		case <-time.After(200 * time.Millisecond):
			t.Fatalf("client %s got nothing", c.id)
		}
	}
}

func TestHub_LastUnsubscribeDropsGroup(t *testing.T) {
	h := NewHub(context.Background())
	defer h.Shutdown()

	h.Subscribe("R", chanClient{id: "a", out: make(chan types.Envelope, 1)})
	require.NotNil(t, getLobby(h, "R"))

	h.Unsubscribe("R", "a")
	assert.Nil(t, getLobby(h, "R"))
}

func TestHub_CloseRoom(t *testing.T) {
	h := NewHub(context.Background())
	defer h.Shutdown()

	a := chanClient{id: "a", out: make(chan types.Envelope, 2)}
	h.Subscribe("R", a)
	lb := getLobby(h, "R")
	require.NotNil(t, lb)

	h.Close("R")
	assert.Nil(t, getLobby(h, "R"))

	select {
	case <-lb.Done():
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("lobby not shut down")
	}

	// Publishing to a closed room is a no-op.
	h.Publish("R", types.Envelope{Event: types.EventGameReset}, "")
	select {
	case env := <-a.out:
		t.Fatalf("unexpected delivery %+v", env)
	case <-time.After(50 * time.Millisecond):
	}
}
