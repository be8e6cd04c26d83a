package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tatianab/spyfall-agents/internal/models"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS games (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		location TEXT NOT NULL,
		config JSONB NOT NULL,
		players JSONB NOT NULL,
		player_count INTEGER NOT NULL,
		winner TEXT,
		reason TEXT,
		spy_name TEXT,
		spy_guess TEXT,
		spy_guess_correct BOOLEAN
	)`,
	`CREATE TABLE IF NOT EXISTS turns (
		game_id TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		idx INTEGER NOT NULL,
		asker TEXT NOT NULL,
		target TEXT NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		PRIMARY KEY (game_id, idx)
	)`,
	`CREATE TABLE IF NOT EXISTS votes (
		game_id TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		voter TEXT NOT NULL,
		target TEXT NOT NULL,
		reason TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS accusations (
		game_id TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		accuser TEXT NOT NULL,
		accused TEXT NOT NULL,
		reason TEXT,
		defense TEXT,
		yes_votes INTEGER NOT NULL,
		no_votes INTEGER NOT NULL,
		convicted BOOLEAN NOT NULL
	)`,
}

// PostgresRecorder stores games in Postgres through a connection pool.
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, url string) (*PostgresRecorder, error) {
	if url == "" {
		return nil, fmt.Errorf("postgres analytics needs a database URL")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &PostgresRecorder{pool: pool}, nil
}

func (r *PostgresRecorder) Close() {
	r.pool.Close()
}

func (r *PostgresRecorder) GameStarted(ctx context.Context, g GameStart) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO games (id, started_at, location, config, players, player_count) VALUES ($1, $2, $3, $4, $5, $6)`,
		g.ID, g.StartedAt, g.Location, g.Config, g.Players, len(g.Players))
	return err
}

func (r *PostgresRecorder) TurnCompleted(ctx context.Context, gameID string, index int, t models.Turn) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO turns (game_id, idx, asker, target, question, answer) VALUES ($1, $2, $3, $4, $5, $6)`,
		gameID, index, t.AskerName, t.TargetName, t.Question, t.Answer)
	return err
}

func (r *PostgresRecorder) VotesCast(ctx context.Context, gameID string, votes []models.Vote) error {
	batch := &pgx.Batch{}
	for _, v := range votes {
		batch.Queue(`INSERT INTO votes (game_id, voter, target, reason) VALUES ($1, $2, $3, $4)`,
			gameID, v.VoterName, v.TargetName, v.Reason)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

func (r *PostgresRecorder) AccusationMade(ctx context.Context, gameID string, a models.Accusation) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO accusations (game_id, accuser, accused, reason, defense, yes_votes, no_votes, convicted) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		gameID, a.AccuserName, a.AccusedName, a.Reason, a.Defense, a.YesVotes, a.NoVotes, a.Convicted)
	return err
}

func (r *PostgresRecorder) GameEnded(ctx context.Context, gameID string, res models.GameResult) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE games SET ended_at = $1, winner = $2, reason = $3, spy_name = $4, spy_guess = $5, spy_guess_correct = $6 WHERE id = $7`,
		time.Now(), string(res.Winner), res.Reason, res.SpyName, res.SpyGuess, res.SpyGuessCorrect, gameID)
	return err
}

func (r *PostgresRecorder) ListGames(ctx context.Context) ([]Summary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT g.id, g.started_at, g.location, g.player_count,
			(SELECT COUNT(*) FROM turns t WHERE t.game_id = g.id),
			COALESCE(g.winner, ''), COALESCE(g.reason, '')
		FROM games g
		ORDER BY g.started_at, g.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			s      Summary
			turns  int64
			winner string
		)
		if err := rows.Scan(&s.ID, &s.StartedAt, &s.Location, &s.Players, &turns, &winner, &s.Reason); err != nil {
			return nil, err
		}
		s.Turns = int(turns)
		s.Winner = models.Team(winner)
		out = append(out, s)
	}
	return out, rows.Err()
}
