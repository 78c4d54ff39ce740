package lobby

import (
	"context"
	"testing"
	"time"

	"github.com/DoyleJ11/codeduel-backend/pkg/types"
)

type chanClient struct {
	id  string
	out chan types.Envelope
}

func newChanClient(id string, buf int) *chanClient {
	return &chanClient{id: id, out: make(chan types.Envelope, buf)}
}

func (c *chanClient) ID() string { return c.id }

func (c *chanClient) Send(env types.Envelope) bool {
	select {
	case c.out <- env:
		return true
	default:
		return false
	}
}

// helper: receive one envelope with a timeout so tests never hang
func recvEnvelope(t *testing.T, ch <-chan types.Envelope, within time.Duration) types.Envelope {
	t.Helper()
	select {
	case env := <-ch:
		return env
	case <-time.After(within):
		t.Fatalf("timed out waiting for envelope")
		return types.Envelope{} // unreachable
	}
}

func recvNoEnvelope(t *testing.T, ch <-chan types.Envelope, within time.Duration) {
	t.Helper()
	select {
	case env := <-ch:
		t.Fatalf("expected no envelope within %v, but got: %+v", within, env)
	case <-time.After(within):
		// good: nothing delivered
	}
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func TestLobby_BroadcastSkipsExcept(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx)
	a := newChanClient("a", 2)
	b := newChanClient("b", 2)
	l.Inbox() <- Join{Client: a}
	l.Inbox() <- Join{Client: b}

	l.Inbox() <- Broadcast{Msg: types.Envelope{Event: types.EventPlayerJoinedRoom}, Except: "b"}

	got := recvEnvelope(t, a.out, 100*time.Millisecond)
	if got.Event != types.EventPlayerJoinedRoom {
		t.Fatalf("want %s, got %s", types.EventPlayerJoinedRoom, got.Event)
	}
	recvNoEnvelope(t, b.out, 50*time.Millisecond)

	l.Inbox() <- Shutdown{}
}

func TestLobby_DropSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx)
	slow := newChanClient("slow", 1)
	l.Inbox() <- Join{Client: slow}

	l.Inbox() <- Broadcast{Msg: types.Envelope{Event: types.EventGameReset}}
	l.Inbox() <- Broadcast{Msg: types.Envelope{Event: types.EventGameReset}}

	reply := make(chan View, 1)
	l.Inbox() <- GetState{Reply: reply}
	view := recvView(t, reply, 100*time.Millisecond)

	if view.NumClients != 0 {
		t.Fatalf("expected slow client to be dropped; NumClients=%d", view.NumClients)
	}
}

func TestLobby_LeaveReportsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx)
	l.Inbox() <- Join{Client: newChanClient("a", 1)}
	l.Inbox() <- Join{Client: newChanClient("b", 1)}

	left := make(chan int, 1)
	l.Inbox() <- Leave{ClientID: "a", Remaining: left}

	select {
	case n := <-left:
		if n != 1 {
			t.Fatalf("want 1 remaining, got %d", n)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timed out waiting for leave reply")
	}
}

func TestLobby_ShutdownClosesDone(t *testing.T) {
	l := NewLobby(context.Background())
	l.Inbox() <- Shutdown{}

	select {
	case <-l.Done():
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("lobby did not stop")
	}
}
