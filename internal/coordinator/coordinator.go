// Package coordinator runs the room state machine for live connections.
//
// Every event follows the same path: load the room, validate and apply the
// command with match.Apply, commit with a compare-and-swap against the
// session store, then broadcast what changed. Slow collaborators (catalog,
// judge) are always called before the commit, never while a version is held.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/DoyleJ11/codeduel-backend/internal/catalog"
	"github.com/DoyleJ11/codeduel-backend/internal/judge"
	"github.com/DoyleJ11/codeduel-backend/internal/lobby"
	"github.com/DoyleJ11/codeduel-backend/internal/match"
	"github.com/DoyleJ11/codeduel-backend/internal/session"
	wire "github.com/DoyleJ11/codeduel-backend/internal/types"
	"github.com/DoyleJ11/codeduel-backend/pkg/types"
	"go.uber.org/zap"
)

var (
	ErrBadPayload       = errors.New("malformed event payload")
	ErrContention       = errors.New("coordinator: room kept changing, gave up committing")
	ErrJudgeUnavailable = errors.New("code judging is not configured on this server")
	ErrRoomIDExhausted  = errors.New("coordinator: could not allocate a free room id")
)

const (
	defaultCommitRetries = 8
	roomIDAttempts       = 10
)

type Client = lobby.Client

// Groups subscribes connections to a room's multicast group on this process.
type Groups interface {
	Subscribe(roomID string, c Client)
	Unsubscribe(roomID, clientID string)
}

// Broadcaster delivers to every connection subscribed to a room, on any process.
type Broadcaster interface {
	Publish(ctx context.Context, roomID string, env types.Envelope, except string) error
	CloseRoom(ctx context.Context, roomID string) error
}

type Grader interface {
	Grade(ctx context.Context, source string, languageID int, cases []catalog.TestCase) (judge.Verdict, error)
}

type Config struct {
	Store          session.Store
	Catalog        catalog.Catalog
	Grader         Grader // optional; submitCode is refused without one
	Groups         Groups
	Bus            Broadcaster
	Logger         *zap.Logger
	RoomCodeLength int
	CommitRetries  int
	NewRoomID      func() (string, error)
	Now            func() time.Time
}

type Coordinator struct {
	store     session.Store
	catalog   catalog.Catalog
	grader    Grader
	groups    Groups
	bus       Broadcaster
	logger    *zap.Logger
	retries   int
	newRoomID func() (string, error)
	now       func() time.Time

	judging sync.WaitGroup
}

func New(cfg Config) *Coordinator {
	c := &Coordinator{
		store:     cfg.Store,
		catalog:   cfg.Catalog,
		grader:    cfg.Grader,
		groups:    cfg.Groups,
		bus:       cfg.Bus,
		logger:    cfg.Logger,
		retries:   cfg.CommitRetries,
		newRoomID: cfg.NewRoomID,
		now:       cfg.Now,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.retries <= 0 {
		c.retries = defaultCommitRetries
	}
	if c.newRoomID == nil {
		n := cfg.RoomCodeLength
		if n <= 0 {
			n = DefaultRoomCodeLength
		}
		c.newRoomID = func() (string, error) { return GenerateCode(n) }
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Handle is the single entry point for client events. It is safe to call
// from many connections at once.
func (c *Coordinator) Handle(ctx context.Context, cl Client, env types.Envelope) {
	c.logger.Debug("event received", zap.String("conn_id", cl.ID()), zap.String("event", env.Event))

	switch env.Event {
	case types.EventCreateRoom:
		var req wire.CreateRoom
		if c.decode(cl, env, &req) {
			c.createRoom(ctx, cl, req)
		}

	case types.EventJoinRoom:
		var req wire.JoinRoom
		if c.decode(cl, env, &req) {
			c.joinRoom(ctx, cl, req)
		}

	case types.EventLeaveRoom:
		var req wire.RoomRef
		if c.decode(cl, env, &req) {
			if err := c.leave(ctx, cl, req.RoomID); err != nil {
				c.reject(cl, err)
			}
		}

	case types.EventStartGame:
		var req wire.RoomRef
		if c.decode(cl, env, &req) {
			c.startGame(ctx, cl, req.RoomID)
		}

	case types.EventSubmitSolution:
		var req wire.SubmitSolution
		if !c.decode(cl, env, &req) {
			break
		}
		passed, err := req.Passed()
		if err != nil {
			c.reject(cl, err)
			break
		}
		c.submit(ctx, cl, req.RoomID, match.Command{PassedTests: passed})

	case types.EventSubmitCode:
		var req wire.SubmitCode
		if c.decode(cl, env, &req) {
			c.submitCode(ctx, cl, req)
		}

	case types.EventGiveUp:
		var req wire.RoomRef
		if c.decode(cl, env, &req) {
			c.giveUp(ctx, cl, req.RoomID)
		}

	case types.EventResetGame:
		var req wire.RoomRef
		if c.decode(cl, env, &req) {
			c.resetGame(ctx, cl, req.RoomID)
		}

	case types.EventSyncRoom:
		var req wire.RoomRef
		if c.decode(cl, env, &req) {
			c.syncRoom(ctx, cl, req.RoomID)
		}

	default:
		c.reject(cl, match.ErrUnknownCommand)
	}
}

// Room returns the stored state of a room, for resync over HTTP.
func (c *Coordinator) Room(ctx context.Context, roomID string) (match.Room, error) {
	room, _, err := c.store.Get(ctx, roomID)
	if errors.Is(err, session.ErrNotFound) {
		return match.Room{}, match.ErrRoomNotFound
	}
	return room, err
}

// Wait blocks until every in-flight code judgement has been committed.
func (c *Coordinator) Wait() { c.judging.Wait() }

func (c *Coordinator) decode(cl Client, env types.Envelope, v any) bool {
	if len(env.Data) == 0 {
		c.reject(cl, ErrBadPayload)
		return false
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		c.reject(cl, ErrBadPayload)
		return false
	}
	return true
}

func (c *Coordinator) send(cl Client, event string, data any) {
	env, err := types.NewEnvelope(event, data)
	if err != nil {
		c.logger.Error("encode event", zap.String("event", event), zap.Error(err))
		return
	}
	if !cl.Send(env) {
		c.logger.Debug("unicast dropped", zap.String("conn_id", cl.ID()), zap.String("event", event))
	}
}

// broadcast is fire-and-forget; members that miss it can resync.
func (c *Coordinator) broadcast(ctx context.Context, roomID, event string, data any, except string) {
	env, err := types.NewEnvelope(event, data)
	if err != nil {
		c.logger.Error("encode event", zap.String("event", event), zap.Error(err))
		return
	}
	if err := c.bus.Publish(ctx, roomID, env, except); err != nil {
		c.logger.Error("broadcast failed", zap.String("room_id", roomID), zap.String("event", event), zap.Error(err))
	}
}

// reject reports err to the requesting connection only. Game-logic errors go
// out as roomError, everything else as serverError.
func (c *Coordinator) reject(cl Client, err error) {
	if match.IsValidation(err) || errors.Is(err, ErrBadPayload) {
		c.logger.Debug("event rejected", zap.String("conn_id", cl.ID()), zap.Error(err))
		c.send(cl, types.EventRoomError, wire.Error{Message: humanize(err)})
		return
	}

	c.logger.Error("event failed", zap.String("conn_id", cl.ID()), zap.Error(err))
	msg := "The server could not process your request. Please try again."
	if errors.Is(err, ErrJudgeUnavailable) {
		msg = humanize(ErrJudgeUnavailable)
	}
	c.send(cl, types.EventServerError, wire.Error{Message: msg})
}

func humanize(err error) string {
	msg := err.Error()
	if msg == "" {
		return msg
	}
	r := []rune(msg)
	r[0] = unicode.ToUpper(r[0])
	msg = string(r)
	if !strings.HasSuffix(msg, ".") {
		msg += "."
	}
	return msg
}
