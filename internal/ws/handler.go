package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/DoyleJ11/codeduel-backend/internal/lobby"
	wire "github.com/DoyleJ11/codeduel-backend/internal/types"
	"github.com/DoyleJ11/codeduel-backend/pkg/types"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	outboxSize   = 32
	writeTimeout = 3 * time.Second
	pingInterval = 30 * time.Second
	readLimit    = 1 << 20 // submitted source code travels over the socket
)

// Coordinator is the game logic a connection feeds.
type Coordinator interface {
	Handle(ctx context.Context, cl lobby.Client, env types.Envelope)
	Disconnect(ctx context.Context, cl lobby.Client)
}

type Options struct {
	// OriginPatterns are host patterns allowed to open a socket from a
	// browser, e.g. "localhost:3000". Same-origin is always allowed.
	OriginPatterns []string
	Logger         *zap.Logger
	// Tracker, if set, counts connections until their disconnect cleanup
	// has run.
	Tracker *Tracker
}

// Tracker counts live connections. http.Server.Shutdown does not wait for
// hijacked connections, so the server waits on this before closing the
// stores the disconnect path writes to.
type Tracker struct {
	wg sync.WaitGroup
}

// Wait blocks until every tracked connection has finished, or ctx is done.
func (t *Tracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// client is one websocket connection as seen by the coordinator. Send never
// blocks; a full outbox means the frame is dropped.
type client struct {
	id  string
	out chan types.Envelope

	mu     sync.Mutex
	closed bool
}

func (c *client) ID() string { return c.id }

func (c *client) Send(env types.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.out <- env:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.out)
	}
}

func Handler(coord Coordinator, opts Options) http.HandlerFunc {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if opts.Tracker != nil {
			opts.Tracker.wg.Add(1)
			defer opts.Tracker.wg.Done()
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			logger.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		conn.SetReadLimit(readLimit)

		cl := &client{id: uuid.NewString(), out: make(chan types.Envelope, outboxSize)}
		log := logger.With(zap.String("conn_id", cl.id))
		log.Info("client connected", zap.String("remote_addr", r.RemoteAddr))

		// Finish the room bookkeeping even though the request is gone.
		defer func() {
			coord.Disconnect(context.WithoutCancel(r.Context()), cl)
			cl.close()
			log.Info("client disconnected")
		}()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go write(writeCtx, conn, cl, log)

		// Reader loop. Ends when the peer goes away or the server's base
		// context is cancelled on shutdown.
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read failed", zap.Error(err))
				}
				return
			}

			var env types.Envelope
			if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
				reply, _ := types.NewEnvelope(types.EventRoomError, wire.Error{Message: "Malformed message."})
				cl.Send(reply)
				continue
			}
			coord.Handle(r.Context(), cl, env)
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, cl *client, log *zap.Logger) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				log.Debug("ping failed", zap.Error(err))
				conn.Close(websocket.StatusGoingAway, "ping timeout")
				return
			}

		case env, ok := <-cl.out:
			if !ok {
				return
			}
			payload, err := json.Marshal(env)
			if err != nil {
				log.Error("encode frame", zap.String("event", env.Event), zap.Error(err))
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				log.Debug("write failed", zap.Error(err))
				return
			}
		}
	}
}
