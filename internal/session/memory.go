package session

import (
	"context"
	"sync"

	"github.com/DoyleJ11/codeduel-backend/internal/match"
)

type entry struct {
	room    match.Room
	version Version
}

// MemoryStore is a single-process Store. Rooms are cloned on the way in and
// out so callers never share slices with the stored copy.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]entry
	index map[string]string // connID -> roomID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]entry),
		index: make(map[string]string),
	}
}

func (s *MemoryStore) Get(_ context.Context, roomID string) (match.Room, Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.rooms[roomID]
	if !ok {
		return match.Room{}, 0, ErrNotFound
	}
	return e.room.Clone(), e.version, nil
}

func (s *MemoryStore) Create(_ context.Context, room match.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return ErrExists
	}
	s.rooms[room.ID] = entry{room: room.Clone(), version: 1}
	s.reindex(room.ID, nil, room.MemberIDs())
	return nil
}

func (s *MemoryStore) Swap(_ context.Context, room match.Room, expected Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.rooms[room.ID]
	if !ok {
		return ErrNotFound
	}
	if e.version != expected {
		return ErrConflict
	}
	s.rooms[room.ID] = entry{room: room.Clone(), version: e.version + 1}
	s.reindex(room.ID, e.room.MemberIDs(), room.MemberIDs())
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, roomID string, expected Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	if e.version != expected {
		return ErrConflict
	}
	delete(s.rooms, roomID)
	s.reindex(roomID, e.room.MemberIDs(), nil)
	return nil
}

func (s *MemoryStore) RoomOf(_ context.Context, connID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roomID, ok := s.index[connID]
	if !ok {
		return "", ErrNotFound
	}
	return roomID, nil
}

func (s *MemoryStore) Close() error { return nil }

// Len reports how many rooms are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// reindex must be called with mu held.
func (s *MemoryStore) reindex(roomID string, before, after []string) {
	for _, id := range before {
		if s.index[id] == roomID {
			delete(s.index, id)
		}
	}
	for _, id := range after {
		s.index[id] = roomID
	}
}
