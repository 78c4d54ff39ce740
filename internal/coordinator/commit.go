package coordinator

import (
	"context"
	"errors"

	"github.com/DoyleJ11/codeduel-backend/internal/match"
	"github.com/DoyleJ11/codeduel-backend/internal/session"
)

// commit applies cmd to the latest version of the room and writes it back
// with compare-and-swap. A conflicting writer makes us reload and re-validate
// against what they committed, so a decision is never made on stale state.
// A room left without players is deleted in the same step.
func (c *Coordinator) commit(ctx context.Context, roomID string, cmd match.Command) ([]match.Event, match.Room, error) {
	if roomID == "" {
		return nil, match.Room{}, match.ErrRoomNotFound
	}

	for attempt := 0; attempt < c.retries; attempt++ {
		room, version, err := c.store.Get(ctx, roomID)
		if errors.Is(err, session.ErrNotFound) {
			return nil, match.Room{}, match.ErrRoomNotFound
		}
		if err != nil {
			return nil, match.Room{}, err
		}

		events, next, err := match.Apply(room, cmd)
		if err != nil {
			return nil, room, err
		}
		if match.ContainsEvent(events, match.EvtRejoined) {
			return events, room, nil
		}

		if next.Empty() {
			err = c.store.Delete(ctx, roomID, version)
		} else {
			err = c.store.Swap(ctx, next, version)
		}
		switch {
		case errors.Is(err, session.ErrConflict):
			continue
		case errors.Is(err, session.ErrNotFound):
			return nil, match.Room{}, match.ErrRoomNotFound
		case err != nil:
			return nil, room, err
		}
		return events, next, nil
	}
	return nil, match.Room{}, ErrContention
}
