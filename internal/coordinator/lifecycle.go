package coordinator

import (
	"context"
	"errors"

	"github.com/DoyleJ11/codeduel-backend/internal/match"
	"github.com/DoyleJ11/codeduel-backend/internal/session"
	wire "github.com/DoyleJ11/codeduel-backend/internal/types"
	"github.com/DoyleJ11/codeduel-backend/pkg/types"
	"go.uber.org/zap"
)

func (c *Coordinator) createRoom(ctx context.Context, cl Client, req wire.CreateRoom) {
	name, err := match.CleanName(req.PlayerName)
	if err != nil {
		c.reject(cl, err)
		return
	}
	if err := c.leaveOthers(ctx, cl, ""); err != nil {
		c.reject(cl, err)
		return
	}

	var room match.Room
	for attempt := 0; ; attempt++ {
		if attempt == roomIDAttempts {
			c.reject(cl, ErrRoomIDExhausted)
			return
		}
		id, err := c.newRoomID()
		if err != nil {
			c.reject(cl, err)
			return
		}
		room = match.NewRoom(id, cl.ID(), name)
		err = c.store.Create(ctx, room)
		if errors.Is(err, session.ErrExists) {
			c.logger.Debug("collision on room id, regenerating", zap.String("room_id", id))
			continue
		}
		if err != nil {
			c.reject(cl, err)
			return
		}
		break
	}

	if !c.subscribe(ctx, cl, room.ID) {
		c.reject(cl, match.ErrRoomNotFound)
		return
	}
	c.send(cl, types.EventRoomCreated, wire.RoomMembers{RoomID: room.ID, Players: room.Players})
	c.logger.Info("room created", zap.String("room_id", room.ID), zap.String("conn_id", cl.ID()), zap.String("player", name))
}

func (c *Coordinator) joinRoom(ctx context.Context, cl Client, req wire.JoinRoom) {
	name, err := match.CleanName(req.PlayerName)
	if err != nil {
		c.reject(cl, err)
		return
	}
	if req.RoomID == "" {
		c.reject(cl, match.ErrRoomNotFound)
		return
	}

	// Check the target first so a failed join does not cost the caller their
	// current seat.
	target, _, err := c.store.Get(ctx, req.RoomID)
	if errors.Is(err, session.ErrNotFound) {
		err = match.ErrRoomNotFound
	}
	if err == nil {
		err = match.CanJoin(target, cl.ID())
	}
	if err != nil {
		c.reject(cl, err)
		return
	}
	if err := c.leaveOthers(ctx, cl, req.RoomID); err != nil {
		c.reject(cl, err)
		return
	}

	events, room, err := c.commit(ctx, req.RoomID, match.Command{Type: match.CmdJoin, ConnID: cl.ID(), Name: name})
	if err != nil {
		c.reject(cl, err)
		return
	}

	if !c.subscribe(ctx, cl, room.ID) {
		c.reject(cl, match.ErrRoomNotFound)
		return
	}
	c.send(cl, types.EventRoomJoined, wire.RoomMembers{RoomID: room.ID, Players: room.Players})

	if match.ContainsEvent(events, match.EvtRejoined) {
		c.logger.Info("player rejoined", zap.String("room_id", room.ID), zap.String("conn_id", cl.ID()))
		return
	}
	c.logger.Info("player joined", zap.String("room_id", room.ID), zap.String("conn_id", cl.ID()), zap.String("player", name))
	c.announce(ctx, room, events)
}

// subscribe adds cl to the room's broadcast group and reports whether cl is
// still seated once the subscription is queued. If not, the subscription is
// dropped again so no group outlives its room.
func (c *Coordinator) subscribe(ctx context.Context, cl Client, roomID string) bool {
	c.groups.Subscribe(roomID, cl)
	room, _, err := c.store.Get(ctx, roomID)
	if err == nil && room.HasPlayer(cl.ID()) {
		return true
	}
	c.groups.Unsubscribe(roomID, cl.ID())
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		c.logger.Error("confirm subscription", zap.String("room_id", roomID), zap.String("conn_id", cl.ID()), zap.Error(err))
	}
	return false
}

// leave removes the caller from roomID. Leaving a room you are not in, or
// one that no longer exists, is a no-op.
func (c *Coordinator) leave(ctx context.Context, cl Client, roomID string) error {
	events, room, err := c.commit(ctx, roomID, match.Command{Type: match.CmdLeave, ConnID: cl.ID()})
	if roomID != "" {
		c.groups.Unsubscribe(roomID, cl.ID())
	}
	if errors.Is(err, match.ErrRoomNotFound) || errors.Is(err, match.ErrNotInRoom) {
		return nil
	}
	if err != nil {
		return err
	}

	c.logger.Info("player left", zap.String("room_id", roomID), zap.String("conn_id", cl.ID()), zap.Int("remaining", len(room.Players)))
	c.announce(ctx, room, events)
	return nil
}

// Disconnect cleans up after a connection that went away without leaving.
func (c *Coordinator) Disconnect(ctx context.Context, cl Client) {
	roomID, err := c.store.RoomOf(ctx, cl.ID())
	if errors.Is(err, session.ErrNotFound) {
		return
	}
	if err != nil {
		c.logger.Error("resolve room on disconnect", zap.String("conn_id", cl.ID()), zap.Error(err))
		return
	}
	if err := c.leave(ctx, cl, roomID); err != nil {
		c.logger.Error("leave on disconnect", zap.String("room_id", roomID), zap.String("conn_id", cl.ID()), zap.Error(err))
	}
}

// leaveOthers keeps a connection in at most one room.
func (c *Coordinator) leaveOthers(ctx context.Context, cl Client, keep string) error {
	roomID, err := c.store.RoomOf(ctx, cl.ID())
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if roomID == keep {
		return nil
	}
	return c.leave(ctx, cl, roomID)
}
