package handhistory

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/cardroom/internal/engine"
	"github.com/lox/cardroom/internal/holdem"
	"github.com/lox/cardroom/internal/phh"
	"github.com/lox/cardroom/internal/randutil"
	"github.com/lox/cardroom/internal/store"
	"github.com/lox/cardroom/internal/table"
)

var quiet = log.NewWithOptions(io.Discard, log.Options{})

// finishedTable returns a heads-up table whose hand ended with a preflop fold.
func finishedTable(t *testing.T) *table.Table {
	t.Helper()
	game, err := holdem.New(holdem.Settings{Ante: 1, SmallBlind: 1, BigBlind: 2}, holdem.WithRand(randutil.New(8)))
	require.NoError(t, err)
	tb, err := table.New(game, table.Config{
		SeatCount: 6, MinStartingStack: 50, MaxStartingStack: 500,
		Rand: randutil.New(8), Logger: quiet,
	})
	require.NoError(t, err)
	require.NoError(t, tb.Join("alice", 1))
	require.NoError(t, tb.Join("bob", 4))
	require.NoError(t, tb.BuyRebuyTopOffOrRatHole("alice", 100))
	require.NoError(t, tb.BuyRebuyTopOffOrRatHole("bob", 100))
	require.NoError(t, tb.ConstructState())

	s := tb.State()
	for s.Status() {
		if s.CanFold() {
			require.NoError(t, s.Fold())
			continue
		}
		require.NoError(t, dealer(s))
	}
	return tb
}

func dealer(s engine.State) error {
	switch {
	case s.CanPostAnte():
		return s.PostAnte()
	case s.CanCollectBets():
		return s.CollectBets()
	case s.CanPostBlindOrStraddle():
		return s.PostBlindOrStraddle()
	case s.CanDealHole():
		return s.DealHole()
	case s.CanPushChips():
		return s.PushChips()
	case s.CanPullChips():
		return s.PullChips()
	}
	return errors.New("dealer stuck")
}

func TestBuild(t *testing.T) {
	tb := finishedTable(t)
	started := time.Date(2024, 6, 1, 20, 30, 0, 0, time.UTC)

	hand, err := Build("main", tb, "hand-7", started)
	require.NoError(t, err)

	assert.Equal(t, "NT", hand.Variant)
	assert.Equal(t, "main", hand.Table)
	assert.Equal(t, 6, hand.SeatCount)
	assert.ElementsMatch(t, []string{"alice", "bob"}, hand.Players)
	assert.ElementsMatch(t, []int{2, 5}, hand.Seats)
	assert.Equal(t, []int{1, 1}, hand.Antes)
	assert.Equal(t, []int{1, 2}, hand.BlindsOrStraddles)
	assert.Equal(t, []int{100, 100}, hand.StartingStacks)
	assert.Equal(t, []int{102, 98}, hand.FinishingStacks)
	assert.Equal(t, []int{2, 0}, hand.Winnings)
	assert.Equal(t, "p2 f", hand.Actions[len(hand.Actions)-1])
	assert.Equal(t, "20:30:00", hand.Time)
	assert.Equal(t, 2024, hand.Year)

	require.NoError(t, tb.DestroyState())
	_, err = Build("main", tb, "hand-8", started)
	assert.Error(t, err)
}

func TestFileRecorder(t *testing.T) {
	dir := t.TempDir()
	r := NewFileRecorder(dir, quiet)
	hand, err := Build("main", finishedTable(t), "hand-1", time.Now())
	require.NoError(t, err)

	require.NoError(t, r.RecordHand(context.Background(), hand))
	path := filepath.Join(dir, "main", "hand-1.phh")
	assert.Equal(t, path, r.Path(hand))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	decoded, err := phh.DecodeBytes(data)
	require.NoError(t, err)
	assert.Equal(t, hand.Actions, decoded.Actions)

	escaped := &phh.HandHistory{Table: "../etc", HandID: "../../passwd"}
	assert.Equal(t, filepath.Join(dir, "etc", "passwd.phh"), r.Path(escaped))
}

type failingRecorder struct{}

func (failingRecorder) RecordHand(context.Context, *phh.HandHistory) error {
	return errors.New("disk full")
}

func TestMultiRecordsEverywhere(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "hands.db"))
	require.NoError(t, err)
	defer s.Close()

	hand, err := Build("main", finishedTable(t), "hand-2", time.Now())
	require.NoError(t, err)

	err = Multi{failingRecorder{}, NewStoreRecorder(s)}.RecordHand(context.Background(), hand)
	assert.ErrorContains(t, err, "disk full")

	records, err := s.HandHistories(context.Background(), "main", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "hand-2", records[0].HandID)
}
