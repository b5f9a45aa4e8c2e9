package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/park285/cheese-session/internal/domain"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS session_games (
	id            BIGSERIAL PRIMARY KEY,
	session_id    TEXT NOT NULL UNIQUE,
	game_id       TEXT NOT NULL,
	mode          TEXT NOT NULL,
	white_name    TEXT NOT NULL,
	black_name    TEXT NOT NULL,
	result        TEXT NOT NULL,
	status        TEXT NOT NULL,
	moves_coord   JSONB NOT NULL,
	moves_san     JSONB NOT NULL,
	transcript    TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	ended_at      TIMESTAMPTZ NOT NULL,
	duration_ms   BIGINT NOT NULL,
	replay_count  INTEGER NOT NULL DEFAULT 0
)`

const selectColumns = `
	id, session_id, game_id, mode, white_name, black_name, result, status,
	moves_coord, moves_san, transcript, started_at, ended_at, duration_ms, replay_count`

type Postgres struct {
	db *sql.DB
}

var _ Repository = (*Postgres)(nil)

func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping archive db: %w", err)
	}
	return NewPostgres(db), nil
}

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("create session_games: %w", err)
	}
	return nil
}

func (p *Postgres) Insert(ctx context.Context, game *domain.ArchivedGame) (int64, error) {
	if game == nil {
		return 0, fmt.Errorf("nil archived game")
	}
	coords, err := json.Marshal(game.MovesCoord)
	if err != nil {
		return 0, fmt.Errorf("marshal moves_coord: %w", err)
	}
	sans, err := json.Marshal(game.MovesSAN)
	if err != nil {
		return 0, fmt.Errorf("marshal moves_san: %w", err)
	}

	const query = `
		INSERT INTO session_games (
			session_id, game_id, mode, white_name, black_name, result, status,
			moves_coord, moves_san, transcript, started_at, ended_at, duration_ms, replay_count
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9::jsonb, $10, $11, $12, $13, $14)
		ON CONFLICT (session_id) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err = p.db.QueryRowContext(ctx, query,
		game.SessionID,
		game.GameID,
		string(game.Mode),
		game.White,
		game.Black,
		game.Result,
		string(game.Status),
		coords,
		sans,
		game.Transcript,
		game.StartedAt,
		game.EndedAt,
		game.Duration.Milliseconds(),
		game.ReplayCount,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !id.Valid) {
		return 0, ErrDuplicateGame
	}
	if err != nil {
		return 0, classify("insert archived game", err)
	}
	game.ID = id.Int64
	return id.Int64, nil
}

func (p *Postgres) Recent(ctx context.Context, limit int) ([]*domain.ArchivedGame, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := p.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM session_games ORDER BY ended_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, classify("select archived games", err)
	}
	defer rows.Close()

	games := make([]*domain.ArchivedGame, 0, limit)
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (p *Postgres) Get(ctx context.Context, id int64) (*domain.ArchivedGame, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM session_games WHERE id = $1`, id)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	return g, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(s scanner) (*domain.ArchivedGame, error) {
	var (
		g          domain.ArchivedGame
		mode       string
		status     string
		coordsJSON []byte
		sansJSON   []byte
		durationMS sql.NullInt64
	)
	if err := s.Scan(
		&g.ID, &g.SessionID, &g.GameID, &mode, &g.White, &g.Black, &g.Result, &status,
		&coordsJSON, &sansJSON, &g.Transcript, &g.StartedAt, &g.EndedAt, &durationMS, &g.ReplayCount,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan archived game: %w", err)
	}
	g.Mode = domain.Mode(mode)
	g.Status = domain.Status(status)
	if durationMS.Valid {
		g.Duration = time.Duration(durationMS.Int64) * time.Millisecond
	}
	if err := json.Unmarshal(coordsJSON, &g.MovesCoord); err != nil {
		return nil, fmt.Errorf("unmarshal moves_coord: %w", err)
	}
	if err := json.Unmarshal(sansJSON, &g.MovesSAN); err != nil {
		return nil, fmt.Errorf("unmarshal moves_san: %w", err)
	}
	return &g, nil
}

// classify points at EnsureSchema when the table is missing.
func classify(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "42P01" {
		return fmt.Errorf("%s: table missing, run EnsureSchema: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
