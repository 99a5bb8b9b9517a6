package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/cardroom/internal/controller"
	"github.com/lox/cardroom/internal/holdem"
)

const sample = `
server {
  port               = 9090
  log_level          = "debug"
  database           = "/tmp/cardroom.db"
  reconcile_interval = "1s"
}

timing {
  time_bank          = "20s"
  betting_timeout    = "10s"
  sit_out_on_timeout = false
}

nats {
  url = "nats://localhost:4222"
}

cash_game "main" {
  small_blind = 1
  big_blind   = 2
}

cash_game "deep" {
  seat_count         = 9
  ante               = 1
  small_blind        = 5
  big_blind          = 10
  min_starting_stack = 400
  max_starting_stack = 4000
  allow_rat_holing   = true
  disabled           = true
}
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample), "cardroom.hcl")
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "localhost:9090", c.Address())
	assert.Equal(t, "debug", c.Server.LogLevel)
	assert.Equal(t, "hands", c.Server.HandHistoryDir)
	require.NotNil(t, c.NATS)
	assert.Equal(t, "nats://localhost:4222", c.NATS.URL)

	interval, err := c.ReconcileInterval()
	require.NoError(t, err)
	assert.Equal(t, time.Second, interval)

	cfg, err := c.Controller()
	require.NoError(t, err)
	want := controller.DefaultConfig()
	want.TimeBank = 20 * time.Second
	want.BettingTimeout = 10 * time.Second
	want.SitOutOnTimeout = false
	assert.Equal(t, want, cfg)

	require.Len(t, c.CashGames, 2)
	main := c.CashGames[0]
	assert.Equal(t, 6, main.SeatCount)
	assert.Equal(t, 2, main.MinBet)
	assert.Equal(t, 100, main.MinStartingStack)
	assert.Equal(t, 400, main.MaxStartingStack)

	deep := c.CashGames[1].Record()
	assert.Equal(t, holdem.Variant, deep.Variant)
	assert.Equal(t, 9, deep.SeatCount)
	assert.Equal(t, 1, deep.Ante)
	assert.True(t, deep.AllowRatHoling)
	assert.False(t, deep.Active)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.hcl"))
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	assert.Equal(t, "localhost:8080", c.Address())
	require.Len(t, c.CashGames, 1)
	assert.Equal(t, "main", c.CashGames[0].Name)

	cfg, err := c.Controller()
	require.NoError(t, err)
	assert.Equal(t, controller.DefaultConfig(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cardroom.hcl")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, c.CashGames, 2)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`cash_game "x" {`), "bad.hcl")
	assert.ErrorContains(t, err, "failed to parse")

	_, err = Parse([]byte(`cash_game "x" { small_blind = 1 }`), "bad.hcl")
	assert.ErrorContains(t, err, "failed to decode")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"bad port", `server { port = 70000 }`, "invalid port"},
		{"bad interval", `server { reconcile_interval = "soon" }`, "reconcile_interval"},
		{"bad duration", `timing { betting_timeout = "10" }`, "betting_timeout"},
		{"negative duration", `timing { idle_timeout = "-1s" }`, "idle timeout"},
		{"duplicate", `
cash_game "a" {
  small_blind = 1
  big_blind   = 2
}
cash_game "a" {
  small_blind = 1
  big_blind   = 2
}`, "more than once"},
		{"blinds", `
cash_game "a" {
  small_blind = 3
  big_blind   = 2
}`, "cash game a"},
		{"stacks", `
cash_game "a" {
  small_blind        = 1
  big_blind          = 2
  min_starting_stack = 500
  max_starting_stack = 100
}`, "starting stack range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse([]byte(tt.src), "test.hcl")
			require.NoError(t, err)
			assert.ErrorContains(t, c.Validate(), tt.want)
		})
	}
}
