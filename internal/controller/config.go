package controller

import (
	"fmt"
	"time"
)

// Config holds the timing rules of a table.
type Config struct {
	// TimeBank is both the initial and the maximum time bank per user.
	TimeBank time.Duration
	// TimeBankIncrement is credited to every seated user after each hand.
	TimeBankIncrement time.Duration

	StateConstructionTimeout         time.Duration
	StateDestructionTimeout          time.Duration
	IdleTimeout                      time.Duration
	StandingPatTimeout               time.Duration
	BettingTimeout                   time.Duration
	HoleCardsShowingOrMuckingTimeout time.Duration

	// SitOutOnTimeout sits a player out after their betting turn times out.
	SitOutOnTimeout bool
}

// DefaultConfig returns the timings used when none are configured.
func DefaultConfig() Config {
	return Config{
		TimeBank:                         30 * time.Second,
		TimeBankIncrement:                5 * time.Second,
		StateConstructionTimeout:         3 * time.Second,
		StateDestructionTimeout:          3 * time.Second,
		IdleTimeout:                      5 * time.Minute,
		StandingPatTimeout:               15 * time.Second,
		BettingTimeout:                   15 * time.Second,
		HoleCardsShowingOrMuckingTimeout: 5 * time.Second,
		SitOutOnTimeout:                  true,
	}
}

// Validate rejects negative durations.
func (c Config) Validate() error {
	durations := map[string]time.Duration{
		"time bank":                  c.TimeBank,
		"time bank increment":        c.TimeBankIncrement,
		"state construction timeout": c.StateConstructionTimeout,
		"state destruction timeout":  c.StateDestructionTimeout,
		"idle timeout":               c.IdleTimeout,
		"standing pat timeout":       c.StandingPatTimeout,
		"betting timeout":            c.BettingTimeout,
		"showdown timeout":           c.HoleCardsShowingOrMuckingTimeout,
	}
	for name, d := range durations {
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, d)
		}
	}
	return nil
}
