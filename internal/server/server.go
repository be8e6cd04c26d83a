// Package server exposes games over HTTP: a JSON API, an SSE stream, a websocket
// stream and the input channel for the human seat.
package server

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tatianab/spyfall-agents/internal/analytics"
	"github.com/tatianab/spyfall-agents/internal/engine"
	"github.com/tatianab/spyfall-agents/internal/events"
	"github.com/tatianab/spyfall-agents/internal/llm"
	"github.com/tatianab/spyfall-agents/internal/locations"
	"github.com/tatianab/spyfall-agents/internal/models"
	"github.com/tatianab/spyfall-agents/internal/store"
)

type Options struct {
	Catalog  *locations.Catalog
	Recorder analytics.Recorder
	Settings engine.ProviderSettings
	// CheckKeys rejects a game before it starts, typically for missing API keys.
	CheckKeys     func(models.GameConfig) error
	ExposePrompts bool
	Logger        *zap.Logger
}

type Server struct {
	opts   Options
	logger *zap.Logger
	store  *store.GameStore

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.RWMutex
	live map[string]*liveGame
}

// liveGame is the streaming side of a stored game.
type liveGame struct {
	hub   *Hub
	input *WebInput
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Catalog == nil {
		opts.Catalog = locations.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = analytics.Nop{}
	}
	if opts.Settings == nil {
		opts.Settings = func(p llm.Provider) llm.Config { return llm.Config{Provider: p} }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		opts:   opts,
		logger: opts.Logger.Named("server"),
		store:  store.NewGameStore(),
		ctx:    ctx,
		cancel: cancel,
		live:   make(map[string]*liveGame),
	}
}

// StartGame validates cfg and runs a new game in the background.
func (s *Server) StartGame(cfg models.GameConfig) (*store.Game, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, errors.New("server is shutting down")
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Location != "" {
		if _, ok := s.opts.Catalog.Lookup(cfg.Location); !ok {
			return nil, engine.ErrUnknownLocation
		}
	}
	if s.opts.CheckKeys != nil {
		if err := s.opts.CheckKeys(cfg); err != nil {
			return nil, err
		}
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(s.ctx)
	game := store.NewGame(id, cfg, cancel)
	logger := s.logger.With(zap.String("game", id))
	hub := NewHub(logger, s.opts.ExposePrompts)
	sink := events.Multi{game, hub, events.NewLogSink(logger)}
	input := NewWebInput(cfg.HumanName, sink)

	eng := engine.New(engine.Options{
		GameID:      id,
		Config:      cfg,
		Catalog:     s.opts.Catalog,
		Controllers: engine.NewControllerFactory(s.opts.Settings, input, logger),
		Sink:        sink,
		Recorder:    s.opts.Recorder,
		Logger:      s.logger,
	})

	s.store.Set(game)
	s.mu.Lock()
	s.live[id] = &liveGame{hub: hub, input: input}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		res, err := eng.Run(ctx)
		cancelled := err != nil && ctx.Err() != nil
		if err != nil && !cancelled {
			logger.Error("game failed", zap.Error(err))
		}
		game.Finish(res, err, cancelled)
		hub.Publish(EventStatus, statusData{Status: game.Status(), Error: game.View().Error})
		hub.Close()
	}()

	logger.Info("game started", zap.Int("players", len(cfg.ResolveSlots())), zap.Int("rounds", cfg.Rounds))
	return game, nil
}

type statusData struct {
	Status store.Status `json:"status"`
	Error  string       `json:"error,omitempty"`
}

func (s *Server) liveGame(id string) (*liveGame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.live[id]
	if !ok {
		return nil, store.ErrGameNotFound
	}
	return l, nil
}

// DeleteGame cancels a game and forgets it.
func (s *Server) DeleteGame(id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.live, id)
	s.mu.Unlock()
	return nil
}

// Close cancels every game and waits for them to wind down.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}
