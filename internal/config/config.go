// Package config loads the cardroom HCL configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/cardroom/internal/controller"
	"github.com/lox/cardroom/internal/holdem"
	"github.com/lox/cardroom/internal/store"
)

// Config is the complete cardroom configuration.
type Config struct {
	Server    *ServerSettings  `hcl:"server,block"`
	Timing    *TimingSettings  `hcl:"timing,block"`
	NATS      *NATSSettings    `hcl:"nats,block"`
	CashGames []CashGameConfig `hcl:"cash_game,block"`
}

// ServerSettings contains process-level settings.
type ServerSettings struct {
	Address           string `hcl:"address,optional"`
	Port              int    `hcl:"port,optional"`
	LogLevel          string `hcl:"log_level,optional"`
	Database          string `hcl:"database,optional"`
	HandHistoryDir    string `hcl:"hand_history_dir,optional"`
	ReconcileInterval string `hcl:"reconcile_interval,optional"`
	AuthURL           string `hcl:"auth_url,optional"`
	AuthSecret        string `hcl:"auth_secret,optional"`
}

// TimingSettings holds the table timeouts as Go duration strings.
type TimingSettings struct {
	TimeBank          string `hcl:"time_bank,optional"`
	TimeBankIncrement string `hcl:"time_bank_increment,optional"`
	Construction      string `hcl:"state_construction_timeout,optional"`
	Destruction       string `hcl:"state_destruction_timeout,optional"`
	Idle              string `hcl:"idle_timeout,optional"`
	StandingPat       string `hcl:"standing_pat_timeout,optional"`
	Betting           string `hcl:"betting_timeout,optional"`
	Showdown          string `hcl:"hole_cards_showing_or_mucking_timeout,optional"`
	SitOutOnTimeout   *bool  `hcl:"sit_out_on_timeout,optional"`
}

// NATSSettings enables publishing frames to NATS.
type NATSSettings struct {
	URL string `hcl:"url"`
}

// CashGameConfig defines one cash-game table.
type CashGameConfig struct {
	Name             string `hcl:"name,label"`
	SeatCount        int    `hcl:"seat_count,optional"`
	Ante             int    `hcl:"ante,optional"`
	SmallBlind       int    `hcl:"small_blind"`
	BigBlind         int    `hcl:"big_blind"`
	MinBet           int    `hcl:"min_bet,optional"`
	MinStartingStack int    `hcl:"min_starting_stack,optional"`
	MaxStartingStack int    `hcl:"max_starting_stack,optional"`
	AllowRatHoling   bool   `hcl:"allow_rat_holing,optional"`
	Seed             int64  `hcl:"seed,optional"`
	Disabled         bool   `hcl:"disabled,optional"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{
		CashGames: []CashGameConfig{
			{Name: "main", SmallBlind: 1, BigBlind: 2},
		},
	}
	c.applyDefaults()
	return c
}

// Load reads filename, falling back to Default when it does not exist.
func Load(filename string) (*Config, error) {
	src, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(src, filename)
}

// Parse decodes HCL source and applies defaults.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var c Config
	if diags := gohcl.DecodeBody(file.Body, nil, &c); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Server == nil {
		c.Server = &ServerSettings{}
	}
	s := c.Server
	if s.Address == "" {
		s.Address = "localhost"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.Database == "" {
		s.Database = "cardroom.db"
	}
	if s.HandHistoryDir == "" {
		s.HandHistoryDir = "hands"
	}
	if s.ReconcileInterval == "" {
		s.ReconcileInterval = "5s"
	}

	if c.Timing == nil {
		c.Timing = &TimingSettings{}
	}

	for i := range c.CashGames {
		g := &c.CashGames[i]
		if g.SeatCount == 0 {
			g.SeatCount = 6
		}
		if g.MinBet == 0 {
			g.MinBet = g.BigBlind
		}
		if g.MinStartingStack == 0 {
			g.MinStartingStack = g.BigBlind * 50 // 50 big blinds
		}
		if g.MaxStartingStack == 0 {
			g.MaxStartingStack = g.BigBlind * 200
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if _, err := c.ReconcileInterval(); err != nil {
		return err
	}
	if _, err := c.Controller(); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, g := range c.CashGames {
		if seen[g.Name] {
			return fmt.Errorf("cash game %s: defined more than once", g.Name)
		}
		seen[g.Name] = true
		if g.SeatCount < 2 {
			return fmt.Errorf("cash game %s: seat count must be at least 2", g.Name)
		}
		if _, err := holdem.New(g.Settings()); err != nil {
			return fmt.Errorf("cash game %s: %w", g.Name, err)
		}
		if g.MinStartingStack <= 0 || g.MinStartingStack > g.MaxStartingStack {
			return fmt.Errorf("cash game %s: starting stack range %d-%d is invalid", g.Name, g.MinStartingStack, g.MaxStartingStack)
		}
	}
	return nil
}

// Address returns host:port to listen on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// ReconcileInterval returns how often the gamemaster syncs with the store.
func (c *Config) ReconcileInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Server.ReconcileInterval)
	if err != nil {
		return 0, fmt.Errorf("reconcile_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("reconcile_interval must be positive, got %s", d)
	}
	return d, nil
}

// Controller returns the table timings, starting from
// controller.DefaultConfig for anything left unset.
func (c *Config) Controller() (controller.Config, error) {
	cfg := controller.DefaultConfig()
	t := c.Timing
	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"time_bank", t.TimeBank, &cfg.TimeBank},
		{"time_bank_increment", t.TimeBankIncrement, &cfg.TimeBankIncrement},
		{"state_construction_timeout", t.Construction, &cfg.StateConstructionTimeout},
		{"state_destruction_timeout", t.Destruction, &cfg.StateDestructionTimeout},
		{"idle_timeout", t.Idle, &cfg.IdleTimeout},
		{"standing_pat_timeout", t.StandingPat, &cfg.StandingPatTimeout},
		{"betting_timeout", t.Betting, &cfg.BettingTimeout},
		{"hole_cards_showing_or_mucking_timeout", t.Showdown, &cfg.HoleCardsShowingOrMuckingTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return controller.Config{}, fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}
	if t.SitOutOnTimeout != nil {
		cfg.SitOutOnTimeout = *t.SitOutOnTimeout
	}
	if err := cfg.Validate(); err != nil {
		return controller.Config{}, err
	}
	return cfg, nil
}

// Settings returns the betting structure of the game.
func (g CashGameConfig) Settings() holdem.Settings {
	return holdem.Settings{
		Ante:       g.Ante,
		SmallBlind: g.SmallBlind,
		BigBlind:   g.BigBlind,
		MinBet:     g.MinBet,
	}
}

// Record converts the definition into its stored form.
func (g CashGameConfig) Record() store.CashGame {
	return store.CashGame{
		Name:             g.Name,
		Variant:          holdem.Variant,
		SeatCount:        g.SeatCount,
		Ante:             g.Ante,
		SmallBlind:       g.SmallBlind,
		BigBlind:         g.BigBlind,
		MinBet:           g.MinBet,
		MinStartingStack: g.MinStartingStack,
		MaxStartingStack: g.MaxStartingStack,
		AllowRatHoling:   g.AllowRatHoling,
		Seed:             g.Seed,
		Active:           !g.Disabled,
	}
}
