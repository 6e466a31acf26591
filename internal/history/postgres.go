package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists conversation history in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	cap  int
}

func NewPostgresStore(ctx context.Context, databaseURL string, turnCap int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if turnCap <= 0 {
		turnCap = 50
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool, cap: turnCap}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS history_turns (
			id TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_history_turns_user_created ON history_turns (user_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, userID int64, turn Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO history_turns (id, user_id, role, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		turn.ID, userID, turn.Role, turn.Content, turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}

	// Enforce the FIFO cap by dropping rows older than the newest cap turns.
	_, err = s.pool.Exec(ctx,
		`DELETE FROM history_turns WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM history_turns WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2
		)`,
		userID, s.cap,
	)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, userID int64) ([]Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, role, content, created_at FROM history_turns
		 WHERE user_id = $1 ORDER BY created_at ASC, id ASC LIMIT $2`,
		userID, s.cap,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var turn Turn
		if err := rows.Scan(&turn.ID, &turn.Role, &turn.Content, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		out = append(out, turn)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Clear(ctx context.Context, userID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM history_turns WHERE user_id = $1`, userID)
	return err
}

func (s *PostgresStore) PurgeIdle(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().UTC().Add(-olderThan)
	_, err := s.pool.Exec(ctx,
		`DELETE FROM history_turns WHERE user_id IN (
			SELECT user_id FROM history_turns GROUP BY user_id HAVING max(created_at) < $1
		)`,
		cutoff,
	)
	return err
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
