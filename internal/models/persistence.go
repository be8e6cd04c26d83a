package models

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSaveDir is where game records land when no directory is configured.
const DefaultSaveDir = "data/games"

const recordFile = "game.yaml"

// GameRecord is the persisted summary of one game.
type GameRecord struct {
	ID          string       `yaml:"id"`
	StartedAt   time.Time    `yaml:"started_at"`
	EndedAt     *time.Time   `yaml:"ended_at,omitempty"`
	Config      GameConfig   `yaml:"config"`
	Location    string       `yaml:"location"`
	Players     []Player     `yaml:"players"`
	Turns       []Turn       `yaml:"turns"`
	Votes       []Vote       `yaml:"votes,omitempty"`
	Accusations []Accusation `yaml:"accusations,omitempty"`
	Result      *GameResult  `yaml:"result,omitempty"`
}

// Save writes the record to <dir>/<id>/game.yaml, replacing any previous version.
func (r *GameRecord) Save(dir string) error {
	gameDir := filepath.Join(dir, r.ID)
	if err := os.MkdirAll(gameDir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	tmp := filepath.Join(gameDir, recordFile+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(gameDir, recordFile))
}

func LoadRecord(dir, id string) (*GameRecord, error) {
	data, err := os.ReadFile(filepath.Join(dir, id, recordFile))
	if err != nil {
		return nil, err
	}
	var rec GameRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRecords returns the ids of saved games, oldest first.
func ListRecords(dir string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []string{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type idTime struct {
		id  string
		mod time.Time
	}
	var found []idTime
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		// game.yaml marks a valid record
		info, err := os.Stat(filepath.Join(dir, entry.Name(), recordFile))
		if err != nil {
			continue
		}
		found = append(found, idTime{entry.Name(), info.ModTime()})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].mod.Before(found[j].mod) })

	ids := make([]string, 0, len(found))
	for _, f := range found {
		ids = append(ids, f.id)
	}
	return ids, nil
}
