package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tatianab/spyfall-agents/internal/models"
)

// FileRecorder keeps one YAML record per game under dir, rewritten at every lifecycle point.
type FileRecorder struct {
	dir string

	mu    sync.Mutex
	games map[string]*models.GameRecord
}

func NewFileRecorder(dir string) *FileRecorder {
	if dir == "" {
		dir = models.DefaultSaveDir
	}
	return &FileRecorder{dir: dir, games: make(map[string]*models.GameRecord)}
}

func (r *FileRecorder) Dir() string { return r.dir }

func (r *FileRecorder) update(gameID string, fn func(rec *models.GameRecord)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.games[gameID]
	if !ok {
		return fmt.Errorf("game %s was never started", gameID)
	}
	fn(rec)
	return rec.Save(r.dir)
}

func (r *FileRecorder) GameStarted(ctx context.Context, g GameStart) error {
	rec := &models.GameRecord{
		ID:        g.ID,
		StartedAt: g.StartedAt,
		Config:    g.Config,
		Location:  g.Location,
		Players:   g.Players,
	}
	r.mu.Lock()
	r.games[g.ID] = rec
	r.mu.Unlock()
	return r.update(g.ID, func(*models.GameRecord) {})
}

func (r *FileRecorder) TurnCompleted(ctx context.Context, gameID string, index int, turn models.Turn) error {
	return r.update(gameID, func(rec *models.GameRecord) {
		rec.Turns = append(rec.Turns, turn)
	})
}

func (r *FileRecorder) VotesCast(ctx context.Context, gameID string, votes []models.Vote) error {
	return r.update(gameID, func(rec *models.GameRecord) {
		rec.Votes = append(rec.Votes, votes...)
	})
}

func (r *FileRecorder) AccusationMade(ctx context.Context, gameID string, acc models.Accusation) error {
	return r.update(gameID, func(rec *models.GameRecord) {
		rec.Accusations = append(rec.Accusations, acc)
	})
}

// GameEnded writes the final record and forgets the game.
func (r *FileRecorder) GameEnded(ctx context.Context, gameID string, result models.GameResult) error {
	err := r.update(gameID, func(rec *models.GameRecord) {
		now := time.Now()
		rec.EndedAt = &now
		rec.Result = &result
	})
	r.mu.Lock()
	delete(r.games, gameID)
	r.mu.Unlock()
	return err
}

// Load reads a saved game.
func (r *FileRecorder) Load(id string) (*models.GameRecord, error) {
	return models.LoadRecord(r.dir, id)
}

func (r *FileRecorder) ListGames(ctx context.Context) ([]Summary, error) {
	ids, err := models.ListRecords(r.dir)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		rec, err := models.LoadRecord(r.dir, id)
		if err != nil {
			continue
		}
		s := Summary{ID: rec.ID, StartedAt: rec.StartedAt, Location: rec.Location, Players: len(rec.Players), Turns: len(rec.Turns)}
		if rec.Result != nil {
			s.Winner = rec.Result.Winner
			s.Reason = rec.Result.Reason
		}
		out = append(out, s)
	}
	return out, nil
}
