package session

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/DoyleJ11/codeduel-backend/internal/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore exercises the behaviour every Store must share.
func testStore(t *testing.T, s Store, prefix string) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		id := prefix + "create"
		require.NoError(t, s.Create(ctx, match.NewRoom(id, prefix+"c1", "Alice")))

		room, v, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, room.ID)
		assert.Equal(t, match.StatusWaiting, room.Status)
		assert.Len(t, room.Players, 1)
		assert.NotZero(t, v)

		roomID, err := s.RoomOf(ctx, prefix+"c1")
		require.NoError(t, err)
		assert.Equal(t, id, roomID)
	})

	t.Run("create collision", func(t *testing.T) {
		id := prefix + "dup"
		require.NoError(t, s.Create(ctx, match.NewRoom(id, prefix+"d1", "Alice")))
		assert.ErrorIs(t, s.Create(ctx, match.NewRoom(id, prefix+"d2", "Bob")), ErrExists)
	})

	t.Run("missing room", func(t *testing.T) {
		_, _, err := s.Get(ctx, prefix+"nope")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Swap(ctx, match.Room{ID: prefix + "nope"}, 1), ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, prefix+"nope", 1), ErrNotFound)
		_, err = s.RoomOf(ctx, prefix+"ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("swap is compare and set", func(t *testing.T) {
		id := prefix + "cas"
		require.NoError(t, s.Create(ctx, match.NewRoom(id, prefix+"s1", "Alice")))
		room, v, err := s.Get(ctx, id)
		require.NoError(t, err)

		joined := room.Clone()
		joined.Players = append(joined.Players, match.Player{ID: prefix + "s2", Name: "Bob"})
		require.NoError(t, s.Swap(ctx, joined, v))

		// A writer holding the old version loses.
		stale := room.Clone()
		stale.Status = match.StatusFinished
		assert.ErrorIs(t, s.Swap(ctx, stale, v), ErrConflict)

		got, v2, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Len(t, got.Players, 2)
		assert.Equal(t, match.StatusWaiting, got.Status)
		assert.Greater(t, v2, v)

		roomID, err := s.RoomOf(ctx, prefix+"s2")
		require.NoError(t, err)
		assert.Equal(t, id, roomID)

		// Removing a member drops its index entry.
		left := got.Clone()
		left.Players = left.Players[:1]
		require.NoError(t, s.Swap(ctx, left, v2))
		_, err = s.RoomOf(ctx, prefix+"s2")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete drops index", func(t *testing.T) {
		id := prefix + "del"
		require.NoError(t, s.Create(ctx, match.NewRoom(id, prefix+"x1", "Alice")))
		_, v, err := s.Get(ctx, id)
		require.NoError(t, err)

		assert.ErrorIs(t, s.Delete(ctx, id, v+1), ErrConflict)
		require.NoError(t, s.Delete(ctx, id, v))

		_, _, err = s.Get(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.RoomOf(ctx, prefix+"x1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent swaps commit once per version", func(t *testing.T) {
		id := prefix + "race"
		require.NoError(t, s.Create(ctx, match.NewRoom(id, prefix+"r1", "Alice")))
		room, v, err := s.Get(ctx, id)
		require.NoError(t, err)

		const writers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.Swap(ctx, room, v); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore(), "mem-")
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, match.NewRoom("R", "c1", "Alice")))

	room, _, err := s.Get(ctx, "R")
	require.NoError(t, err)
	room.Players[0].Name = "Mallory"

	again, _, err := s.Get(ctx, "R")
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.Players[0].Name)
	assert.Equal(t, 1, s.Len())
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("CODEDUEL_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CODEDUEL_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := OpenPool(ctx, url)
	require.NoError(t, err)

	s := NewPostgresStore(pool)
	defer s.Close()
	require.NoError(t, s.Migrate(ctx))

	_, err = pool.Exec(ctx, `DELETE FROM rooms WHERE id LIKE 'pg-%'`)
	require.NoError(t, err)

	testStore(t, s, "pg-")
}
