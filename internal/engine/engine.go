// Package engine runs one game of Spyfall from setup to scoring.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tatianab/spyfall-agents/internal/analytics"
	"github.com/tatianab/spyfall-agents/internal/controller"
	"github.com/tatianab/spyfall-agents/internal/events"
	"github.com/tatianab/spyfall-agents/internal/llm"
	"github.com/tatianab/spyfall-agents/internal/locations"
	"github.com/tatianab/spyfall-agents/internal/models"
	"github.com/tatianab/spyfall-agents/internal/rng"
)

// ErrUnknownLocation is returned by Run when the configured location is not in the catalog.
var ErrUnknownLocation = errors.New("unknown location")

const cleanupTimeout = 30 * time.Second

// Table is what a ControllerFactory needs to know about the game being set up.
type Table struct {
	Players   []*models.Player
	Locations []string
	Sink      events.Sink
}

// ControllerFactory builds the controller for one seat.
type ControllerFactory func(ctx context.Context, p *models.Player, slot models.Slot, t Table) (controller.Controller, error)

type Options struct {
	GameID      string
	Config      models.GameConfig
	Catalog     *locations.Catalog
	Controllers ControllerFactory
	Sink        events.Sink
	Recorder    analytics.Recorder
	Rand        *rng.Source
	Logger      *zap.Logger
}

type Engine struct {
	id       string
	cfg      models.GameConfig
	catalog  *locations.Catalog
	factory  ControllerFactory
	sink     events.Sink
	recorder analytics.Recorder
	rand     *rng.Source
	logger   *zap.Logger
}

func New(opts Options) *Engine {
	e := &Engine{
		id:       opts.GameID,
		cfg:      opts.Config.WithDefaults(),
		catalog:  opts.Catalog,
		factory:  opts.Controllers,
		sink:     events.OrNop(opts.Sink),
		recorder: opts.Recorder,
		rand:     opts.Rand,
		logger:   opts.Logger,
	}
	if e.id == "" {
		e.id = uuid.NewString()
	}
	if e.catalog == nil {
		e.catalog = locations.Default()
	}
	if e.recorder == nil {
		e.recorder = analytics.Nop{}
	}
	if e.rand == nil {
		if e.cfg.Seed != 0 {
			e.rand = rng.New(e.cfg.Seed)
		} else {
			e.rand = rng.NewRandom()
		}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.Named("engine").With(zap.String("game", e.id))
	return e
}

func (e *Engine) ID() string { return e.id }

// Run plays one game. Only setup configuration errors and context cancellation are
// returned; everything a player does wrong is absorbed with a fallback.
func (e *Engine) Run(ctx context.Context) (*models.GameResult, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	g, err := e.setup(ctx)
	if err != nil {
		return nil, err
	}
	defer g.cleanup(ctx)

	if err := g.ready(ctx); err != nil {
		return nil, err
	}

	early, err := g.questionRounds(ctx)
	if err != nil {
		return nil, err
	}
	if early.Ended {
		return g.finish(ctx, early.Winner, early.Reason, ""), nil
	}

	winner, reason, accusedID, err := g.voteAndVerdict(ctx)
	if err != nil {
		return nil, err
	}
	return g.finish(ctx, winner, reason, accusedID), nil
}

// game is the state of one Run. Only the Run goroutine writes to it.
type game struct {
	e           *Engine
	players     []*models.Player
	byID        map[string]*models.Player
	controllers map[string]controller.Controller
	pack        models.LocationPack
	spy         *models.Player
	names       []string
	startedAt   time.Time

	transcript     []models.Turn
	answered       map[string]bool
	usedAccusation map[string]bool
	unlocked       bool

	guessText    string
	guessCorrect *bool
}

func (e *Engine) setup(ctx context.Context) (*game, error) {
	slots := e.cfg.ResolveSlots()

	var pack models.LocationPack
	if e.cfg.Location != "" {
		p, ok := e.catalog.Lookup(e.cfg.Location)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLocation, e.cfg.Location)
		}
		pack = p
	} else {
		pack = e.catalog.Random(e.rand, len(slots)-1)
	}

	spyIndex := e.rand.IntN(len(slots))
	roles := append([]string(nil), pack.Roles...)
	e.rand.Shuffle(len(roles), func(i, j int) { roles[i], roles[j] = roles[j], roles[i] })
	if len(roles) < len(slots)-1 {
		e.sink.Warn(fmt.Sprintf("%s has only %d roles for %d civilians; some roles repeat", pack.Location, len(roles), len(slots)-1))
	}

	g := &game{
		e:              e,
		byID:           make(map[string]*models.Player, len(slots)),
		controllers:    make(map[string]controller.Controller, len(slots)),
		pack:           pack,
		names:          e.catalog.Names(),
		startedAt:      time.Now(),
		answered:       make(map[string]bool),
		usedAccusation: make(map[string]bool),
	}

	civilian := 0
	for i, slot := range slots {
		p := &models.Player{ID: fmt.Sprintf("p%d", i+1), IsHuman: slot.Human}
		if slot.Human {
			p.Name = e.cfg.HumanName
		} else {
			p.Name = fmt.Sprintf("%s-%d", llm.Provider(slot.Provider).Label(), i+1)
		}
		if i == spyIndex {
			p.Secret = models.SpySecret()
			g.spy = p
		} else {
			p.Secret = models.CivilianSecret(pack.Location, roles[civilian%len(roles)])
			civilian++
		}
		g.players = append(g.players, p)
		g.byID[p.ID] = p
	}

	table := Table{Players: g.players, Locations: g.names, Sink: e.sink}
	for i, p := range g.players {
		c, err := e.factory(ctx, p, slots[i], table)
		if err != nil {
			g.cleanup(ctx)
			return nil, fmt.Errorf("set up %s: %w", p.Name, err)
		}
		g.controllers[p.ID] = c
	}

	snapshot := make([]models.Player, len(g.players))
	for i, p := range g.players {
		snapshot[i] = *p
	}
	e.sink.GameInfo(events.GameInfo{
		GameID:   e.id,
		Location: pack.Location,
		SpyID:    g.spy.ID,
		SpyName:  g.spy.Name,
		Players:  snapshot,
		Config:   e.cfg,
	})
	g.record(func() error {
		return e.recorder.GameStarted(ctx, analytics.GameStart{
			ID:        e.id,
			StartedAt: g.startedAt,
			Config:    e.cfg,
			Location:  pack.Location,
			Players:   snapshot,
		})
	})
	e.logger.Info("game set up",
		zap.String("location", pack.Location),
		zap.Int("players", len(g.players)),
		zap.Int("rounds", e.cfg.Rounds))
	e.sink.Log(fmt.Sprintf("A new game begins with %s. %d rounds of questions.", joinNames(g.players), e.cfg.Rounds))
	return g, nil
}

// ready blocks until every controller has finished initializing.
func (g *game) ready(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, p := range g.players {
		c := g.controllers[p.ID]
		eg.Go(func() error { return c.Ready(ctx) })
	}
	return eg.Wait()
}

// cleanup closes every controller concurrently. Failures are logged and dropped.
func (g *game) cleanup(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	errs := make([]error, len(g.players))
	var eg errgroup.Group
	for i, p := range g.players {
		c, ok := g.controllers[p.ID]
		if !ok {
			continue
		}
		eg.Go(func() error {
			if err := c.Close(ctx); err != nil {
				errs[i] = fmt.Errorf("close %s: %w", p.Name, err)
			}
			return nil
		})
	}
	eg.Wait()

	if err := multierr.Combine(errs...); err != nil {
		g.e.logger.Warn("cleanup", zap.Error(err))
	}
}

func (g *game) view() controller.View {
	return controller.View{Players: g.players, Transcript: g.transcript, Locations: g.names}
}

func (g *game) ctrl(p *models.Player) controller.Controller {
	return g.controllers[p.ID]
}

func (g *game) log(format string, args ...any) {
	g.e.sink.Log(fmt.Sprintf(format, args...))
}

func (g *game) emit(kind events.Kind, data any) {
	g.e.sink.Event(events.NewEvent(kind, data))
}

func (g *game) record(fn func() error) {
	if err := fn(); err != nil {
		g.e.logger.Warn("analytics", zap.Error(err))
	}
}

func (g *game) others(selfID string) []*models.Player {
	out := make([]*models.Player, 0, len(g.players)-1)
	for _, p := range g.players {
		if p.ID != selfID {
			out = append(out, p)
		}
	}
	return out
}

func (g *game) finish(ctx context.Context, winner models.Team, reason, accusedID string) *models.GameResult {
	res := &models.GameResult{
		Winner:          winner,
		Reason:          reason,
		SpyID:           g.spy.ID,
		SpyName:         g.spy.Name,
		Location:        g.pack.Location,
		AccusedID:       accusedID,
		SpyGuess:        g.guessText,
		SpyGuessCorrect: g.guessCorrect,
		Turns:           len(g.transcript),
	}
	if winner == models.TeamSpy {
		g.log("The spy wins! %s", reason)
	} else {
		g.log("The civilians win! %s", reason)
	}
	g.log("%s was the spy. The location was %s.", g.spy.Name, g.pack.Location)
	g.emit(events.KindGameOver, *res)
	g.record(func() error { return g.e.recorder.GameEnded(ctx, g.e.id, *res) })
	g.e.logger.Info("game over", zap.String("winner", string(winner)), zap.String("reason", reason))
	return res
}

func joinNames(players []*models.Player) string {
	s := ""
	for i, p := range players {
		switch {
		case i == 0:
		case i == len(players)-1:
			s += " and "
		default:
			s += ", "
		}
		s += p.Name
	}
	return s
}
