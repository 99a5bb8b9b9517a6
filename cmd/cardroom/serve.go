package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/cardroom/internal/auth"
	"github.com/lox/cardroom/internal/config"
	"github.com/lox/cardroom/internal/controller"
	"github.com/lox/cardroom/internal/gamemaster"
	"github.com/lox/cardroom/internal/handhistory"
	"github.com/lox/cardroom/internal/natsbus"
	"github.com/lox/cardroom/internal/server"
	"github.com/lox/cardroom/internal/store"
)

// ServeCmd runs the server, the gamemaster and every configured table.
type ServeCmd struct {
	Config   string `short:"c" default:"cardroom.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" help:"Server address to bind to (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	Database string `help:"SQLite database path (overrides config)"`
	NATS     string `name:"nats" help:"NATS URL to publish frames to (overrides config)"`
}

func (c *ServeCmd) load() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.Database != "" {
		cfg.Server.Database = c.Database
	}
	if c.NATS != "" {
		cfg.NATS = &config.NATSSettings{URL: c.NATS}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *ServeCmd) Run() error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	addr := cfg.Address()
	if c.Addr != "" {
		addr = c.Addr
	}
	logger := newLogger(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Server.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, game := range cfg.CashGames {
		if err := st.SaveCashGame(ctx, game.Record()); err != nil {
			return err
		}
	}

	timing, err := cfg.Controller()
	if err != nil {
		return err
	}
	interval, err := cfg.ReconcileInterval()
	if err != nil {
		return err
	}

	recorder := handhistory.Multi{
		handhistory.NewFileRecorder(cfg.Server.HandHistoryDir, logger),
		handhistory.NewStoreRecorder(st),
	}
	opts := []gamemaster.Option{
		gamemaster.WithLogger(logger),
		gamemaster.WithInterval(interval),
		gamemaster.WithRecorder(recorder),
	}
	if cfg.NATS != nil {
		bus, closeBus, err := natsbus.Connect(cfg.NATS.URL, logger)
		if err != nil {
			return err
		}
		defer closeBus()
		opts = append(opts, gamemaster.WithObserver(bus.Relay))
		logger.Info("Publishing frames to NATS", "url", cfg.NATS.URL)
	}

	registry := controller.NewRegistry(logger)
	gm := gamemaster.New(st, registry, timing, opts...)
	srv := server.NewServer(addr, registry, validator(cfg, logger), logger)

	logger.Info("Starting cardroom", "addr", addr, "tables", len(cfg.CashGames), "database", cfg.Server.Database)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := gm.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func validator(cfg *config.Config, logger *log.Logger) auth.Validator {
	if cfg.Server.AuthURL == "" {
		logger.Warn("No auth_url configured, trusting the user query parameter")
		return auth.NewQueryValidator()
	}
	return auth.NewHTTPValidator(cfg.Server.AuthURL, cfg.Server.AuthSecret)
}
