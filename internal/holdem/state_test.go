package holdem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/cardroom/internal/engine"
	"github.com/lox/cardroom/internal/randutil"
)

// runDealer performs dealer operations until a player is due or the hand ends.
func runDealer(t *testing.T, s engine.State) {
	t.Helper()
	for s.Status() && s.TurnIndex() < 0 {
		switch {
		case s.CanPostAnte():
			require.NoError(t, s.PostAnte())
		case s.CanCollectBets():
			require.NoError(t, s.CollectBets())
		case s.CanPostBlindOrStraddle():
			require.NoError(t, s.PostBlindOrStraddle())
		case s.CanBurnCard():
			require.NoError(t, s.BurnCard())
		case s.CanDealBoard():
			require.NoError(t, s.DealBoard())
		case s.CanDealHole():
			require.NoError(t, s.DealHole())
		case s.CanKillHand():
			require.NoError(t, s.KillHand())
		case s.CanPushChips():
			require.NoError(t, s.PushChips())
		case s.CanPullChips():
			require.NoError(t, s.PullChips())
		default:
			t.Fatal("dealer has nothing to do")
		}
	}
}

func newTestGame(t *testing.T, settings Settings, opts ...Option) *Game {
	t.Helper()
	g, err := New(settings, opts...)
	require.NoError(t, err)
	return g
}

func cards(t *testing.T, raw string) []engine.Card {
	t.Helper()
	c, err := engine.ParseCards(raw)
	require.NoError(t, err)
	return c
}

func TestNewValidatesSettings(t *testing.T) {
	_, err := New(Settings{SmallBlind: 1})
	assert.Error(t, err)
	_, err = New(Settings{SmallBlind: 3, BigBlind: 2})
	assert.Error(t, err)

	g, err := New(Settings{SmallBlind: 1, BigBlind: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, g.Settings().MinBet)
	assert.True(t, g.ButtonStatus())
	assert.Equal(t, []int{1, 2}, g.Descriptor().BlindsOrStraddles)
}

func TestNewStateRejectsBadStacks(t *testing.T) {
	g := newTestGame(t, Settings{SmallBlind: 1, BigBlind: 2})

	_, err := g.NewState([]int{100}, 1)
	assert.Error(t, err)
	_, err = g.NewState([]int{100, 100}, 3)
	assert.Error(t, err)
	_, err = g.NewState([]int{100, 0}, 2)
	assert.Error(t, err)
}

func TestHeadsUpFoldPreflop(t *testing.T) {
	g := newTestGame(t, Settings{SmallBlind: 1, BigBlind: 2}, WithRand(randutil.New(1)))
	s, err := g.NewState([]int{200, 200}, 2)
	require.NoError(t, err)

	runDealer(t, s)
	// Heads-up the button (last index) posts the small blind and acts first.
	assert.Equal(t, []int{2, 1}, s.Bets())
	require.Equal(t, 1, s.TurnIndex())
	assert.Equal(t, 1, s.CheckingOrCallingAmount())
	require.True(t, s.CanFold())
	require.NoError(t, s.Fold())

	runDealer(t, s)
	assert.False(t, s.Status())
	assert.Equal(t, []int{201, 199}, s.Stacks())
	assert.Contains(t, s.Actions(), "p2 f")
}

func TestShowdownMucksBeatenHands(t *testing.T) {
	deck := cards(t, "As Kd 7c Ah Kc 2d 3s 9h 8d 4c 3h Jc 3d 5s")
	g := newTestGame(t, Settings{SmallBlind: 1, BigBlind: 2}, WithDeck(deck))
	s, err := g.NewState([]int{100, 100, 100}, 3)
	require.NoError(t, err)

	runDealer(t, s)
	assert.Equal(t, 2, s.TurnIndex(), "first to act preflop sits after the big blind")
	for s.ActorIndex() >= 0 {
		require.NoError(t, s.CheckOrCall())
		runDealer(t, s)
	}
	require.True(t, s.CanShowOrMuckHoleCards())
	assert.Equal(t, cards(t, "9h8d4cJc5s"), s.BoardCards())

	for s.CanShowOrMuckHoleCards() {
		require.NoError(t, s.ShowOrMuckHoleCards(engine.DiscloseAuto))
	}
	assert.Equal(t, []bool{true, true}, s.HoleCardStatuses(0))
	assert.Equal(t, []bool{false, false}, s.HoleCardStatuses(1))
	assert.Contains(t, s.Actions(), "p1 sm AsAh")
	assert.Contains(t, s.Actions(), "p2 sm -")

	runDealer(t, s)
	assert.False(t, s.Status())
	assert.Equal(t, []int{104, 98, 98}, s.Stacks())
}

func TestLastContenderCannotMuck(t *testing.T) {
	deck := cards(t, "2c 3d 7h 8s 4c 5d 6h 9s Ts Jd")
	g := newTestGame(t, Settings{SmallBlind: 1, BigBlind: 2}, WithDeck(deck))
	s, err := g.NewState([]int{10, 10}, 2)
	require.NoError(t, err)

	runDealer(t, s)
	require.NoError(t, s.CompleteBetOrRaiseTo(10))
	require.NoError(t, s.CheckOrCall())
	runDealer(t, s)

	for s.CanShowOrMuckHoleCards() {
		require.NoError(t, s.ShowOrMuckHoleCards(engine.DiscloseMuck))
	}
	runDealer(t, s)
	assert.False(t, s.Status())
	assert.Equal(t, 20, s.Stacks()[0]+s.Stacks()[1])
	assert.Contains(t, s.Actions(), "p1 sm -")
	assert.Contains(t, s.Actions(), "p2 sm 3d8s")
}

func TestRaiseBounds(t *testing.T) {
	g := newTestGame(t, Settings{SmallBlind: 1, BigBlind: 2}, WithRand(randutil.New(3)))
	s, err := g.NewState([]int{200, 200}, 2)
	require.NoError(t, err)
	runDealer(t, s)

	require.True(t, s.CanCompleteBetOrRaiseTo())
	assert.Equal(t, 4, s.MinCompletionBetOrRaiseToAmount())
	assert.Equal(t, 200, s.MaxCompletionBetOrRaiseToAmount())
	assert.Error(t, s.VerifyCompletionBetOrRaiseTo(3))
	assert.Error(t, s.VerifyCompletionBetOrRaiseTo(201))

	require.NoError(t, s.CompleteBetOrRaiseTo(6))
	require.Equal(t, 0, s.TurnIndex())
	assert.Equal(t, 10, s.MinCompletionBetOrRaiseToAmount())
	assert.True(t, s.CanFold())
}

func TestAllInRunsOutTheBoard(t *testing.T) {
	g := newTestGame(t, Settings{Ante: 1, SmallBlind: 1, BigBlind: 2}, WithRand(randutil.New(9)))
	s, err := g.NewState([]int{50, 80}, 2)
	require.NoError(t, err)
	runDealer(t, s)

	require.NoError(t, s.CompleteBetOrRaiseTo(s.MaxCompletionBetOrRaiseToAmount()))
	require.NoError(t, s.CheckOrCall())
	runDealer(t, s)

	require.True(t, s.CanShowOrMuckHoleCards())
	assert.Len(t, s.BoardCards(), 5)
	for s.CanShowOrMuckHoleCards() {
		require.NoError(t, s.ShowOrMuckHoleCards(engine.DiscloseShow))
	}
	runDealer(t, s)
	assert.False(t, s.Status())
	assert.Equal(t, 130, s.Stacks()[0]+s.Stacks()[1])
}

func TestComputePots(t *testing.T) {
	pots := computePots([]int{50, 100, 100}, []bool{true, true, true})
	assert.Equal(t, []engine.Pot{
		{Amount: 150, PlayerIndices: []int{0, 1, 2}},
		{Amount: 100, PlayerIndices: []int{1, 2}},
	}, pots)

	pots = computePots([]int{30, 100, 60}, []bool{true, false, true})
	assert.Equal(t, []engine.Pot{
		{Amount: 90, PlayerIndices: []int{0, 2}},
		{Amount: 100, PlayerIndices: []int{2}},
	}, pots)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "", Describe(cards(t, "AsAh"), nil))
	assert.Equal(t, "Pair", Describe(cards(t, "AsAh"), cards(t, "9h8d4cJc5s")))
}
