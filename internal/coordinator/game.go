package coordinator

import (
	"context"
	"errors"
	"strings"

	"github.com/DoyleJ11/codeduel-backend/internal/catalog"
	"github.com/DoyleJ11/codeduel-backend/internal/match"
	"github.com/DoyleJ11/codeduel-backend/internal/session"
	wire "github.com/DoyleJ11/codeduel-backend/internal/types"
	"github.com/DoyleJ11/codeduel-backend/pkg/types"
	"go.uber.org/zap"
)

func (c *Coordinator) startGame(ctx context.Context, cl Client, roomID string) {
	room, err := c.Room(ctx, roomID)
	if err != nil {
		c.reject(cl, err)
		return
	}
	if err := match.CanStart(room, cl.ID()); err != nil {
		c.reject(cl, err)
		return
	}

	problem, err := c.catalog.Random(ctx)
	if errors.Is(err, catalog.ErrNoProblems) {
		// Nobody in the room can play, so everyone hears about it.
		c.logger.Warn("catalog is empty", zap.String("room_id", roomID))
		c.broadcast(ctx, roomID, types.EventRoomError, wire.Error{Message: humanize(match.ErrNoProblemsAvailable)}, "")
		return
	}
	if err != nil {
		c.reject(cl, err)
		return
	}

	_, room, err = c.commit(ctx, roomID, match.Command{Type: match.CmdStart, ConnID: cl.ID(), Problem: problem.Ref()})
	if err != nil {
		c.reject(cl, err)
		return
	}

	c.logger.Info("game started",
		zap.String("room_id", roomID),
		zap.String("problem_id", problem.ID),
		zap.Int("round", room.Round),
	)
	c.broadcast(ctx, roomID, types.EventGameStarted, wire.GameStarted{Problem: problem}, "")
}

// submit records a self-reported or judged score. Submissions outside a
// running round are dropped without a reply.
func (c *Coordinator) submit(ctx context.Context, cl Client, roomID string, cmd match.Command) {
	cmd.Type = match.CmdSubmit
	cmd.ConnID = cl.ID()
	cmd.At = c.now()

	events, room, err := c.commit(ctx, roomID, cmd)
	switch {
	case errors.Is(err, match.ErrRoomNotFound),
		errors.Is(err, match.ErrNotInProgress),
		errors.Is(err, match.ErrNotInRoom):
		c.logger.Debug("submission ignored", zap.String("room_id", roomID), zap.String("conn_id", cl.ID()), zap.Error(err))
		return
	case err != nil:
		c.reject(cl, err)
		return
	}
	c.announce(ctx, room, events)
}

// submitCode grades source against the running problem in the background and
// then records the result as a submission for the round it was sent in.
func (c *Coordinator) submitCode(ctx context.Context, cl Client, req wire.SubmitCode) {
	room, _, err := c.store.Get(ctx, req.RoomID)
	if errors.Is(err, session.ErrNotFound) {
		return
	}
	if err != nil {
		c.reject(cl, err)
		return
	}
	if match.CanSubmit(room, cl.ID()) != nil {
		return
	}
	if c.grader == nil {
		c.reject(cl, ErrJudgeUnavailable)
		return
	}
	if strings.TrimSpace(req.SourceCode) == "" {
		c.reject(cl, ErrBadPayload)
		return
	}

	round, problemID := room.Round, room.ProblemID
	ctx = context.WithoutCancel(ctx)

	c.judging.Add(1)
	go func() {
		defer c.judging.Done()

		problem, err := c.catalog.ByID(ctx, problemID)
		if err != nil {
			c.reject(cl, err)
			return
		}
		verdict, err := c.grader.Grade(ctx, req.SourceCode, req.LanguageID, problem.TestCases)
		if err != nil {
			c.logger.Error("judge failed", zap.String("room_id", req.RoomID), zap.String("problem_id", problemID), zap.Error(err))
			c.reject(cl, ErrJudgeUnavailable)
			return
		}

		c.logger.Debug("submission judged",
			zap.String("room_id", req.RoomID),
			zap.String("conn_id", cl.ID()),
			zap.Int("passed", verdict.PassedCount),
			zap.Int("total", verdict.TotalCount),
		)
		c.send(cl, types.EventSubmissionResult, verdict)
		c.submit(ctx, cl, req.RoomID, match.Command{PassedTests: verdict.PassedCount, Round: round})
	}()
}

func (c *Coordinator) giveUp(ctx context.Context, cl Client, roomID string) {
	events, room, err := c.commit(ctx, roomID, match.Command{Type: match.CmdGiveUp, ConnID: cl.ID()})
	if err != nil {
		c.reject(cl, err)
		return
	}
	c.announce(ctx, room, events)
}

func (c *Coordinator) resetGame(ctx context.Context, cl Client, roomID string) {
	events, room, err := c.commit(ctx, roomID, match.Command{Type: match.CmdReset, ConnID: cl.ID()})
	if errors.Is(err, match.ErrRoomNotFound) {
		return
	}
	if err != nil {
		c.reject(cl, err)
		return
	}
	c.announce(ctx, room, events)
}

// syncRoom replies with the stored room, for clients that reconnect or
// suspect they missed a broadcast. Members are resubscribed on the way.
func (c *Coordinator) syncRoom(ctx context.Context, cl Client, roomID string) {
	room, err := c.Room(ctx, roomID)
	if err != nil {
		c.reject(cl, err)
		return
	}
	if room.HasPlayer(cl.ID()) {
		c.subscribe(ctx, cl, roomID)
	}
	c.send(cl, types.EventRoomState, wire.RoomState{Room: room})
}

// announce turns committed events into broadcasts, in the order they were
// produced.
func (c *Coordinator) announce(ctx context.Context, room match.Room, events []match.Event) {
	for _, e := range events {
		switch e.Type {
		case match.EvtPlayerJoined:
			c.broadcast(ctx, room.ID, types.EventPlayerJoinedRoom,
				wire.PlayerChange{Players: room.Players, PlayerName: e.PlayerName}, e.PlayerID)

		case match.EvtPlayerLeft:
			c.broadcast(ctx, room.ID, types.EventPlayerLeftRoom,
				wire.PlayerChange{Players: room.Players, PlayerName: e.PlayerName}, "")

		case match.EvtRoomEmptied:
			c.logger.Info("room deleted", zap.String("room_id", room.ID))
			c.closeRoom(ctx, room.ID)

		case match.EvtScoreUpdated:
			c.broadcast(ctx, room.ID, types.EventTestResultsUpdate,
				wire.TestResultsUpdate{PlayerID: e.PlayerID, PassedTests: e.PassedTests}, "")

		case match.EvtGameFinished:
			c.logger.Info("game finished",
				zap.String("room_id", room.ID),
				zap.String("winner_id", e.WinnerID),
				zap.String("reason", e.Reason),
			)
			c.broadcast(ctx, room.ID, types.EventGameFinished,
				wire.GameFinished{WinnerID: e.WinnerID, Reason: e.Reason}, "")

		case match.EvtPlayerGaveUp:
			c.logger.Info("player gave up", zap.String("room_id", room.ID), zap.String("conn_id", e.PlayerID))
			c.broadcast(ctx, room.ID, types.EventPlayerGaveUp,
				wire.PlayerGaveUp{Loser: e.PlayerName, Winner: e.WinnerName}, "")
			c.closeRoom(ctx, room.ID)

		case match.EvtGameReset:
			c.broadcast(ctx, room.ID, types.EventGameReset, nil, "")
		}
	}
}

func (c *Coordinator) closeRoom(ctx context.Context, roomID string) {
	if err := c.bus.CloseRoom(ctx, roomID); err != nil {
		c.logger.Error("close room group", zap.String("room_id", roomID), zap.Error(err))
	}
}
