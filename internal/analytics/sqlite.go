package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tatianab/spyfall-agents/internal/models"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS games (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		ended_at INTEGER,
		location TEXT NOT NULL,
		config TEXT NOT NULL,
		players TEXT NOT NULL,
		player_count INTEGER NOT NULL,
		winner TEXT,
		reason TEXT,
		spy_name TEXT,
		spy_guess TEXT,
		spy_guess_correct INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS turns (
		game_id TEXT NOT NULL REFERENCES games(id),
		idx INTEGER NOT NULL,
		asker TEXT NOT NULL,
		target TEXT NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		PRIMARY KEY (game_id, idx)
	)`,
	`CREATE TABLE IF NOT EXISTS votes (
		game_id TEXT NOT NULL REFERENCES games(id),
		voter TEXT NOT NULL,
		target TEXT NOT NULL,
		reason TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS accusations (
		game_id TEXT NOT NULL REFERENCES games(id),
		accuser TEXT NOT NULL,
		accused TEXT NOT NULL,
		reason TEXT,
		defense TEXT,
		yes_votes INTEGER NOT NULL,
		no_votes INTEGER NOT NULL,
		convicted INTEGER NOT NULL
	)`,
}

// SQLiteRecorder stores games in a SQLite database.
type SQLiteRecorder struct {
	db *sqlx.DB
}

// OpenSQLite opens (creating if needed) the database at path and its tables.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRecorder, error) {
	if path == "" {
		path = filepath.Join(models.DefaultSaveDir, "games.db")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
	}
	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; also keeps ":memory:" a single database
	db.SetMaxOpenConns(1)

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &SQLiteRecorder{db: db}, nil
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

func (r *SQLiteRecorder) GameStarted(ctx context.Context, g GameStart) error {
	config, err := json.Marshal(g.Config)
	if err != nil {
		return err
	}
	players, err := json.Marshal(g.Players)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO games (id, started_at, location, config, players, player_count) VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID, g.StartedAt.Unix(), g.Location, string(config), string(players), len(g.Players))
	return err
}

func (r *SQLiteRecorder) TurnCompleted(ctx context.Context, gameID string, index int, t models.Turn) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO turns (game_id, idx, asker, target, question, answer) VALUES (?, ?, ?, ?, ?, ?)`,
		gameID, index, t.AskerName, t.TargetName, t.Question, t.Answer)
	return err
}

func (r *SQLiteRecorder) VotesCast(ctx context.Context, gameID string, votes []models.Vote) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, v := range votes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO votes (game_id, voter, target, reason) VALUES (?, ?, ?, ?)`,
			gameID, v.VoterName, v.TargetName, v.Reason); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) AccusationMade(ctx context.Context, gameID string, a models.Accusation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accusations (game_id, accuser, accused, reason, defense, yes_votes, no_votes, convicted) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		gameID, a.AccuserName, a.AccusedName, a.Reason, a.Defense, a.YesVotes, a.NoVotes, a.Convicted)
	return err
}

func (r *SQLiteRecorder) GameEnded(ctx context.Context, gameID string, res models.GameResult) error {
	var correct sql.NullBool
	if res.SpyGuessCorrect != nil {
		correct = sql.NullBool{Bool: *res.SpyGuessCorrect, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE games SET ended_at = ?, winner = ?, reason = ?, spy_name = ?, spy_guess = ?, spy_guess_correct = ? WHERE id = ?`,
		time.Now().Unix(), string(res.Winner), res.Reason, res.SpyName, res.SpyGuess, correct, gameID)
	return err
}

type summaryRow struct {
	ID          string         `db:"id"`
	StartedAt   int64          `db:"started_at"`
	Location    string         `db:"location"`
	PlayerCount int            `db:"player_count"`
	Turns       int            `db:"turns"`
	Winner      sql.NullString `db:"winner"`
	Reason      sql.NullString `db:"reason"`
}

func (r *SQLiteRecorder) ListGames(ctx context.Context) ([]Summary, error) {
	var rows []summaryRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT g.id, g.started_at, g.location, g.player_count, g.winner, g.reason,
			(SELECT COUNT(*) FROM turns t WHERE t.game_id = g.id) AS turns
		FROM games g
		ORDER BY g.started_at, g.id`)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, len(rows))
	for i, row := range rows {
		out[i] = Summary{
			ID:        row.ID,
			StartedAt: time.Unix(row.StartedAt, 0),
			Location:  row.Location,
			Players:   row.PlayerCount,
			Turns:     row.Turns,
			Winner:    models.Team(row.Winner.String),
			Reason:    row.Reason.String,
		}
	}
	return out, nil
}
