package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DoyleJ11/codeduel-backend/internal/match"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultTimeout = 10 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	version    BIGINT NOT NULL,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS room_members (
	conn_id TEXT PRIMARY KEY,
	room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS room_members_room_id_idx ON room_members (room_id);
`

// OpenPool connects to Postgres and verifies the connection.
func OpenPool(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// PostgresStore lets several coordinator processes share one room set. The
// version column implements compare-and-swap; room_members is the
// connection index and is rewritten in the same transaction as the room.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate session schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, roomID string) (match.Room, Version, error) {
	var (
		version int64
		state   []byte
	)
	err := s.pool.QueryRow(ctx, `SELECT version, state FROM rooms WHERE id = $1`, roomID).Scan(&version, &state)
	if errors.Is(err, pgx.ErrNoRows) {
		return match.Room{}, 0, ErrNotFound
	}
	if err != nil {
		return match.Room{}, 0, fmt.Errorf("get room %s: %w", roomID, err)
	}

	var room match.Room
	if err := json.Unmarshal(state, &room); err != nil {
		return match.Room{}, 0, fmt.Errorf("decode room %s: %w", roomID, err)
	}
	return room, Version(version), nil
}

func (s *PostgresStore) Create(ctx context.Context, room match.Room) error {
	state, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", room.ID, err)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO rooms (id, version, state) VALUES ($1, 1, $2) ON CONFLICT (id) DO NOTHING`,
			room.ID, state)
		if err != nil {
			return fmt.Errorf("insert room %s: %w", room.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrExists
		}
		return syncMembers(ctx, tx, room)
	})
}

func (s *PostgresStore) Swap(ctx context.Context, room match.Room, expected Version) error {
	state, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", room.ID, err)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE rooms SET state = $1, version = version + 1, updated_at = now() WHERE id = $2 AND version = $3`,
			state, room.ID, int64(expected))
		if err != nil {
			return fmt.Errorf("update room %s: %w", room.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return missOrConflict(ctx, tx, room.ID)
		}
		return syncMembers(ctx, tx, room)
	})
}

func (s *PostgresStore) Delete(ctx context.Context, roomID string, expected Version) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM rooms WHERE id = $1 AND version = $2`, roomID, int64(expected))
		if err != nil {
			return fmt.Errorf("delete room %s: %w", roomID, err)
		}
		if tag.RowsAffected() == 0 {
			return missOrConflict(ctx, tx, roomID)
		}
		return nil
	})
}

func (s *PostgresStore) RoomOf(ctx context.Context, connID string) (string, error) {
	var roomID string
	err := s.pool.QueryRow(ctx, `SELECT room_id FROM room_members WHERE conn_id = $1`, connID).Scan(&roomID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup connection %s: %w", connID, err)
	}
	return roomID, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func syncMembers(ctx context.Context, tx pgx.Tx, room match.Room) error {
	ids := room.MemberIDs()
	if _, err := tx.Exec(ctx,
		`DELETE FROM room_members WHERE room_id = $1 AND NOT (conn_id = ANY($2::text[]))`,
		room.ID, ids); err != nil {
		return fmt.Errorf("prune members of %s: %w", room.ID, err)
	}
	for _, id := range ids {
		if _, err := tx.Exec(ctx,
			`INSERT INTO room_members (conn_id, room_id) VALUES ($1, $2)
			 ON CONFLICT (conn_id) DO UPDATE SET room_id = EXCLUDED.room_id`,
			id, room.ID); err != nil {
			return fmt.Errorf("index member %s of %s: %w", id, room.ID, err)
		}
	}
	return nil
}

func missOrConflict(ctx context.Context, tx pgx.Tx, roomID string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)`, roomID).Scan(&exists); err != nil {
		return fmt.Errorf("check room %s: %w", roomID, err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}
