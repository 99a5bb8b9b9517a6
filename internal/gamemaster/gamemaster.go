// Package gamemaster keeps a controller running for every active cash game
// in the store.
package gamemaster

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/cardroom/internal/controller"
	"github.com/lox/cardroom/internal/handhistory"
	"github.com/lox/cardroom/internal/holdem"
	"github.com/lox/cardroom/internal/randutil"
	"github.com/lox/cardroom/internal/scheduler"
	"github.com/lox/cardroom/internal/store"
	"github.com/lox/cardroom/internal/table"
)

// Store lists the configured cash games.
type Store interface {
	LoadCashGames(ctx context.Context) ([]store.CashGame, error)
}

// Observer is started in its own goroutine for every controller the
// gamemaster starts.
type Observer func(ctx context.Context, c *controller.Controller)

// Gamemaster reconciles the registry with the store.
type Gamemaster struct {
	store     Store
	registry  *controller.Registry
	scheduler *scheduler.Scheduler
	cfg       controller.Config
	interval  time.Duration
	clock     quartz.Clock
	recorder  handhistory.Recorder
	observers []Observer
	logger    *log.Logger
}

type Option func(*Gamemaster)

func WithInterval(d time.Duration) Option {
	return func(g *Gamemaster) { g.interval = d }
}

func WithClock(clock quartz.Clock) Option {
	return func(g *Gamemaster) { g.clock = clock }
}

func WithRecorder(r handhistory.Recorder) Option {
	return func(g *Gamemaster) { g.recorder = r }
}

func WithObserver(o Observer) Option {
	return func(g *Gamemaster) { g.observers = append(g.observers, o) }
}

func WithLogger(logger *log.Logger) Option {
	return func(g *Gamemaster) { g.logger = logger }
}

func New(st Store, registry *controller.Registry, cfg controller.Config, opts ...Option) *Gamemaster {
	g := &Gamemaster{
		store:    st,
		registry: registry,
		cfg:      cfg,
		interval: 5 * time.Second,
		clock:    quartz.NewReal(),
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.WithPrefix("gamemaster")
	g.scheduler = scheduler.New(scheduler.WithClock(g.clock), scheduler.WithLogger(g.logger))
	return g
}

// Build creates the controller for a stored cash game.
func Build(game store.CashGame, cfg controller.Config, logger *log.Logger, opts ...controller.Option) (*controller.Controller, error) {
	if game.Variant != holdem.Variant {
		return nil, fmt.Errorf("cash game %s: unsupported variant %q", game.Name, game.Variant)
	}

	seed := randutil.Seed(game.Seed)
	logger.Debug("Seeding cash game", "table", game.Name, "seed", seed)
	g, err := holdem.New(holdem.Settings{
		Ante:       game.Ante,
		SmallBlind: game.SmallBlind,
		BigBlind:   game.BigBlind,
		MinBet:     game.MinBet,
	}, holdem.WithRand(randutil.New(seed)))
	if err != nil {
		return nil, fmt.Errorf("cash game %s: %w", game.Name, err)
	}

	policy := table.RatHolingReject
	if game.AllowRatHoling {
		policy = table.RatHolingAllow
	}
	t, err := table.New(g, table.Config{
		SeatCount:        game.SeatCount,
		MinStartingStack: game.MinStartingStack,
		MaxStartingStack: game.MaxStartingStack,
		RatHoling:        policy,
		Rand:             randutil.New(seed + 1),
		Logger:           logger.With("table", game.Name),
	})
	if err != nil {
		return nil, fmt.Errorf("cash game %s: %w", game.Name, err)
	}

	opts = append([]controller.Option{controller.WithLogger(logger)}, opts...)
	return controller.New(game.Name, t, cfg, opts...), nil
}

// Reconcile starts controllers for active games that are not running and
// stops those whose game was deactivated or removed.
func (g *Gamemaster) Reconcile(ctx context.Context) error {
	games, err := g.store.LoadCashGames(ctx)
	if err != nil {
		return fmt.Errorf("load cash games: %w", err)
	}

	wanted := make(map[string]bool)
	for _, game := range games {
		if !game.Active {
			continue
		}
		wanted[game.Name] = true
		if _, ok := g.registry.Lookup(game.Name); ok {
			continue
		}
		if err := g.start(ctx, game); err != nil {
			g.logger.Error("Failed to start cash game", "table", game.Name, "error", err)
		}
	}

	for _, name := range g.registry.Names() {
		if wanted[name] {
			continue
		}
		if _, err := g.registry.Stop(name); err != nil {
			g.logger.Warn("Failed to stop cash game", "table", name, "error", err)
			continue
		}
		g.logger.Info("Stopped cash game", "table", name)
	}
	return nil
}

func (g *Gamemaster) start(ctx context.Context, game store.CashGame) error {
	opts := []controller.Option{controller.WithClock(g.clock)}
	if g.recorder != nil {
		opts = append(opts, controller.WithRecorder(g.recorder))
	}
	c, err := Build(game, g.cfg, g.logger, opts...)
	if err != nil {
		return err
	}
	if err := g.registry.Start(ctx, game.Name, c); err != nil {
		return err
	}
	for _, observe := range g.observers {
		go observe(ctx, c)
	}
	g.logger.Info("Started cash game", "table", game.Name, "seats", game.SeatCount,
		"stakes", fmt.Sprintf("%d/%d", game.SmallBlind, game.BigBlind))
	return nil
}

// Run reconciles immediately and then every interval until ctx is
// cancelled, then stops every controller.
func (g *Gamemaster) Run(ctx context.Context) error {
	var tick func()
	tick = func() {
		if err := g.Reconcile(ctx); err != nil {
			g.logger.Error("Reconcile failed", "error", err)
		}
		g.scheduler.Schedule(g.interval, tick)
	}
	g.scheduler.Schedule(0, tick)

	err := g.scheduler.Run(ctx)
	g.registry.StopAll()
	return err
}

// Stop ends Run.
func (g *Gamemaster) Stop() {
	g.scheduler.Stop()
}
