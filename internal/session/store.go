// Package session holds room records and the connection-to-room index.
//
// Every write is a compare-and-swap against the version returned by Get, so
// two coordinators (or two goroutines in one) racing on the same room cannot
// overwrite each other: the loser gets ErrConflict and must reload.
package session

import (
	"context"
	"errors"

	"github.com/DoyleJ11/codeduel-backend/internal/match"
)

var (
	ErrNotFound = errors.New("session: room not found")
	ErrExists   = errors.New("session: room already exists")
	ErrConflict = errors.New("session: room was modified concurrently")
)

// Version identifies one committed revision of a room.
type Version int64

type Store interface {
	// Get returns the room and its current version, or ErrNotFound.
	Get(ctx context.Context, roomID string) (match.Room, Version, error)
	// Create stores a brand-new room, failing with ErrExists on id collision.
	Create(ctx context.Context, room match.Room) error
	// Swap replaces the room iff it is still at version expected.
	Swap(ctx context.Context, room match.Room, expected Version) error
	// Delete removes the room iff it is still at version expected.
	Delete(ctx context.Context, roomID string, expected Version) error
	// RoomOf resolves which room a connection currently belongs to.
	RoomOf(ctx context.Context, connID string) (string, error)
	Close() error
}
