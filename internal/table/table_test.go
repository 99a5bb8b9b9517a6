package table

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/cardroom/internal/engine"
	"github.com/lox/cardroom/internal/holdem"
	"github.com/lox/cardroom/internal/randutil"
)

func newTestTable(t *testing.T, seats int, opts ...holdem.Option) *Table {
	t.Helper()
	return newTestTableWithPolicy(t, seats, RatHolingReject, opts...)
}

func newTestTableWithPolicy(t *testing.T, seats int, policy RatHoling, opts ...holdem.Option) *Table {
	t.Helper()
	game, err := holdem.New(holdem.Settings{SmallBlind: 1, BigBlind: 2}, opts...)
	require.NoError(t, err)
	tb, err := New(game, Config{
		SeatCount:        seats,
		MinStartingStack: 10,
		MaxStartingStack: 1000,
		RatHoling:        policy,
		Rand:             randutil.New(11),
		Logger:           log.NewWithOptions(io.Discard, log.Options{}),
	})
	require.NoError(t, err)
	return tb
}

func seatAndFund(t *testing.T, tb *Table, user string, seat, amount int) {
	t.Helper()
	require.NoError(t, tb.Join(user, seat))
	require.NoError(t, tb.BuyRebuyTopOffOrRatHole(user, amount))
}

// play finishes the live hand: players fold when they can, otherwise check
// or call, and show or muck automatically.
func play(t *testing.T, tb *Table) {
	t.Helper()
	s := tb.State()
	for s.Status() {
		switch {
		case s.CanFold():
			require.NoError(t, s.Fold())
		case s.CanCheckOrCall():
			require.NoError(t, s.CheckOrCall())
		case s.CanShowOrMuckHoleCards():
			require.NoError(t, s.ShowOrMuckHoleCards(engine.DiscloseAuto))
		default:
			dealerStep(t, s)
		}
	}
}

func dealerStep(t *testing.T, s engine.State) {
	t.Helper()
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

func TestJoinRejections(t *testing.T) {
	tb := newTestTable(t, 2)
	require.NoError(t, tb.Join("alice", 0))

	tests := []struct {
		name   string
		user   string
		seat   int
		reason error
	}{
		{"system user", "", 1, ErrSystemUser},
		{"already seated", "alice", 1, ErrUserAlreadySeated},
		{"seat out of range", "bob", 2, ErrInvalidSeat},
		{"seat occupied", "bob", 0, ErrSeatOccupied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tb.VerifyJoin(tt.user, tt.seat)
			assert.ErrorIs(t, err, tt.reason)
			var tableErr *Error
			assert.ErrorAs(t, err, &tableErr)
			assert.False(t, tb.CanJoin(tt.user, tt.seat))
		})
	}

	require.NoError(t, tb.Join("bob", -1))
	assert.ErrorIs(t, tb.VerifyJoin("carol", -1), ErrTableFull)
	assert.Equal(t, []string{"alice", "bob"}, tb.Users())

	seat, ok := tb.SeatOf("bob")
	require.True(t, ok)
	assert.Equal(t, 1, seat.Index)
	assert.True(t, seat.Active)
	assert.True(t, seat.Waiting)
	assert.Nil(t, seat.StartingStack)
}

func TestSitOutAndBeBack(t *testing.T) {
	tb := newTestTable(t, 2)
	require.NoError(t, tb.Join("alice", 0))

	assert.ErrorIs(t, tb.VerifyBeBack("alice"), ErrAlreadyActive)
	require.NoError(t, tb.SitOut("alice"))
	assert.ErrorIs(t, tb.VerifySitOut("alice"), ErrAlreadyInactive)
	assert.ErrorIs(t, tb.VerifyBuyRebuyTopOffOrRatHole("alice", 100), ErrInactiveUser)
	require.NoError(t, tb.BeBack("alice"))
	assert.ErrorIs(t, tb.VerifySitOut("bob"), ErrUserNotSeated)
}

func TestBuyInBounds(t *testing.T) {
	tb := newTestTable(t, 2)
	require.NoError(t, tb.Join("alice", 0))

	assert.ErrorIs(t, tb.VerifyBuyRebuyTopOffOrRatHole("alice", 9), ErrBelowMinimum)
	assert.ErrorIs(t, tb.VerifyBuyRebuyTopOffOrRatHole("alice", 1001), ErrAboveMaximum)
	require.NoError(t, tb.BuyRebuyTopOffOrRatHole("alice", 200))
	assert.ErrorIs(t, tb.VerifyBuyRebuyTopOffOrRatHole("alice", 150), ErrRatHoling)
	require.NoError(t, tb.BuyRebuyTopOffOrRatHole("alice", 300))

	allow := newTestTableWithPolicy(t, 2, RatHolingAllow)
	seatAndFund(t, allow, "alice", 0, 200)
	require.NoError(t, allow.BuyRebuyTopOffOrRatHole("alice", 150))
	stack, ok := allow.CurrentStack("alice")
	require.True(t, ok)
	assert.Equal(t, 150, stack)
}

func TestConstructStateNeedsTwoReadySeats(t *testing.T) {
	tb := newTestTable(t, 6)
	assert.ErrorIs(t, tb.VerifyConstructState(), ErrNotEnoughPlayers)

	seatAndFund(t, tb, "alice", 0, 200)
	require.NoError(t, tb.Join("bob", 3))
	assert.False(t, tb.CanConstructState(), "bob has no chips")

	require.NoError(t, tb.BuyRebuyTopOffOrRatHole("bob", 200))
	require.True(t, tb.CanConstructState())
	require.NoError(t, tb.ConstructState())
	assert.ErrorIs(t, tb.VerifyConstructState(), ErrStateExists)

	indices := map[int]bool{}
	for _, seat := range tb.Seats() {
		if seat.Occupied() {
			require.NotNil(t, seat.PlayerIndex)
			indices[*seat.PlayerIndex] = true
			assert.Nil(t, seat.StartingStack)
			assert.False(t, seat.Waiting)
		} else {
			assert.Nil(t, seat.PlayerIndex)
		}
	}
	assert.Equal(t, map[int]bool{0: true, 1: true}, indices)
	assert.Equal(t, []int{200, 200}, tb.State().StartingStacks())

	button, ok := tb.ButtonSeat()
	require.True(t, ok)
	assert.Equal(t, 1, *button.PlayerIndex, "the button acts last")

	assert.ErrorIs(t, tb.VerifyLeave("alice"), ErrPlayerInHand)
	assert.ErrorIs(t, tb.VerifyDestroyState(), ErrStateActive)
	assert.ErrorIs(t, tb.VerifyChangeGame(tb.Game()), ErrStateExists)
}

func TestButtonRotates(t *testing.T) {
	tb := newTestTable(t, 4)
	seatAndFund(t, tb, "alice", 0, 200)
	seatAndFund(t, tb, "bob", 1, 200)
	seatAndFund(t, tb, "carol", 3, 200)

	occupied := []int{0, 1, 3}
	require.NoError(t, tb.ConstructState())
	prev := tb.Button().SeatIndex
	require.Contains(t, occupied, prev)

	for range 5 {
		play(t, tb)
		require.NoError(t, tb.DestroyState())
		require.NoError(t, tb.ConstructState())

		next := tb.Button().SeatIndex
		want := occupied[0]
		for _, i := range occupied {
			if i > prev {
				want = i
				break
			}
		}
		assert.Equal(t, want, next)
		prev = next
	}
}

func TestWaitingSeatDealtInOnceButtonPasses(t *testing.T) {
	tb := newTestTable(t, 6)
	seatAndFund(t, tb, "alice", 0, 200)
	seatAndFund(t, tb, "bob", 3, 200)
	require.NoError(t, tb.ConstructState())
	first := tb.Button().SeatIndex

	play(t, tb)
	require.NoError(t, tb.DestroyState())
	seatAndFund(t, tb, "carol", 5, 200)
	require.NoError(t, tb.ConstructState())

	carol, _ := tb.SeatOf("carol")
	if first == 3 {
		// The button moved past seat 5 to seat 0.
		assert.Equal(t, 0, tb.Button().SeatIndex)
		assert.NotNil(t, carol.PlayerIndex)
		assert.False(t, carol.Waiting)
	} else {
		assert.Equal(t, 3, tb.Button().SeatIndex)
		assert.Nil(t, carol.PlayerIndex)
		assert.True(t, carol.Waiting)
	}
}

func TestButtonResetsWhenAnchorLeaves(t *testing.T) {
	tb := newTestTable(t, 4)
	seatAndFund(t, tb, "alice", 0, 200)
	seatAndFund(t, tb, "bob", 1, 200)
	seatAndFund(t, tb, "carol", 2, 200)
	require.NoError(t, tb.ConstructState())
	play(t, tb)
	require.NoError(t, tb.DestroyState())

	anchor, _ := tb.ButtonSeat()
	require.NoError(t, tb.Leave(anchor.User))
	seatAndFund(t, tb, "dave", 3, 200)
	require.NoError(t, tb.ConstructState())

	// A fresh draw clears every wait, so the newcomer is dealt in at once.
	dave, _ := tb.SeatOf("dave")
	assert.NotNil(t, dave.PlayerIndex)
	assert.Equal(t, 3, tb.State().PlayerCount())
}

type buttonless struct {
	*holdem.Game
}

func (buttonless) ButtonStatus() bool { return false }

func TestButtonlessGameDealsInSeatOrder(t *testing.T) {
	tb := newTestTable(t, 3)
	game, ok := tb.Game().(*holdem.Game)
	require.True(t, ok)
	require.NoError(t, tb.ChangeGame(buttonless{game}))

	seatAndFund(t, tb, "alice", 2, 100)
	seatAndFund(t, tb, "bob", 0, 300)
	require.NoError(t, tb.ConstructState())

	assert.Equal(t, -1, tb.Button().SeatIndex)
	bob, _ := tb.SeatOf("bob")
	alice, _ := tb.SeatOf("alice")
	assert.Equal(t, 0, *bob.PlayerIndex)
	assert.Equal(t, 1, *alice.PlayerIndex)
	assert.Equal(t, []int{300, 100}, tb.State().StartingStacks())
}

func TestDestroyStateSettlesStacks(t *testing.T) {
	tb := newTestTable(t, 2)
	seatAndFund(t, tb, "alice", 0, 100)
	seatAndFund(t, tb, "bob", 1, 100)
	require.NoError(t, tb.ConstructState())

	s := tb.State()
	for s.TurnIndex() < 0 {
		dealerStep(t, s)
	}
	bigBlind, _ := tb.SeatOfPlayer(0)
	smallBlind, _ := tb.SeatOfPlayer(1)

	// Top-ups during a hand are measured against the in-hand stack.
	stack, _ := tb.CurrentStack(bigBlind.User)
	assert.Equal(t, 98, stack)
	require.NoError(t, tb.BuyRebuyTopOffOrRatHole(bigBlind.User, 100))
	assert.ErrorIs(t, tb.VerifyBuyRebuyTopOffOrRatHole(smallBlind.User, 50), ErrRatHoling)

	play(t, tb)
	require.NoError(t, tb.DestroyState())
	assert.Nil(t, tb.State())

	bb, _ := tb.SeatOf(bigBlind.User)
	sb, _ := tb.SeatOf(smallBlind.User)
	assert.Nil(t, bb.PlayerIndex)
	assert.Equal(t, 101, *bb.StartingStack, "a pending stack below the settled stack is ignored")
	assert.Equal(t, 99, *sb.StartingStack)
	assert.ErrorIs(t, tb.VerifyDestroyState(), ErrNoState)
}

func TestDestroyStateBustsEmptyStacks(t *testing.T) {
	deck, err := engine.ParseCards("As 7c Ah 2d 3s Kd Qc 9h 3h 8s 3d 4c")
	require.NoError(t, err)
	tb := newTestTable(t, 2, holdem.WithDeck(deck))
	seatAndFund(t, tb, "alice", 0, 100)
	seatAndFund(t, tb, "bob", 1, 100)
	require.NoError(t, tb.ConstructState())

	s := tb.State()
	for s.TurnIndex() < 0 {
		dealerStep(t, s)
	}
	require.NoError(t, s.CompleteBetOrRaiseTo(100))
	require.NoError(t, s.CheckOrCall())
	play(t, tb)

	winner, _ := tb.SeatOfPlayer(0)
	loser, _ := tb.SeatOfPlayer(1)
	require.NoError(t, tb.DestroyState())

	w, _ := tb.SeatOf(winner.User)
	l, _ := tb.SeatOf(loser.User)
	assert.Equal(t, 200, *w.StartingStack)
	assert.Nil(t, l.StartingStack)
	assert.False(t, l.ReadyOrPostable())
	assert.False(t, tb.CanConstructState())
}
