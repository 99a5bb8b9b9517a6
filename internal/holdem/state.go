package holdem

import (
	"fmt"
	"slices"

	"github.com/lox/cardroom/internal/engine"
)

type phase int

const (
	phaseAntes phase = iota
	phaseAnteCollection
	phaseBlinds
	phaseHoleDealing
	phaseBetting
	phaseCollection
	phaseBoard
	phaseShowdown
	phaseKilling
	phasePushing
	phasePulling
	phaseDone
)

const (
	holeCardCount = 2
	lastStreet    = 3
)

// State is one hand of hold'em.
type State struct {
	settings Settings
	n        int
	deck     []engine.Card

	startingStacks []int
	stacks         []int
	bets           []int
	contributions  []int
	folded         []bool
	mucked         []bool
	killed         []bool
	pending        []bool
	hole           [][]engine.Card
	shown          []bool

	board  []engine.Card
	burned []engine.Card
	street int
	burnt  bool

	phase     phase
	cursor    int
	actor     int
	lastRaise int
	aggressor int

	showdownOrder []int
	showdownPos   int

	pots    []engine.Pot
	winners [][]int

	actions []string
}

var _ engine.State = (*State)(nil)

func newState(settings Settings, deck []engine.Card, startingStacks []int) *State {
	n := len(startingStacks)
	s := &State{
		settings:       settings,
		n:              n,
		deck:           deck,
		startingStacks: slices.Clone(startingStacks),
		stacks:         slices.Clone(startingStacks),
		bets:           make([]int, n),
		contributions:  make([]int, n),
		folded:         make([]bool, n),
		mucked:         make([]bool, n),
		killed:         make([]bool, n),
		pending:        make([]bool, n),
		hole:           make([][]engine.Card, n),
		shown:          make([]bool, n),
		actor:          -1,
		aggressor:      -1,
	}
	if settings.Ante > 0 {
		s.phase = phaseAntes
	} else {
		s.phase = phaseBlinds
	}
	return s
}

func (s *State) Status() bool     { return s.phase != phaseDone }
func (s *State) PlayerCount() int { return s.n }

func (s *State) TurnIndex() int {
	if s.phase == phaseBetting {
		return s.actor
	}
	return s.ShowdownIndex()
}

func (s *State) ActorIndex() int {
	if s.phase == phaseBetting {
		return s.actor
	}
	return -1
}

// StanderPatOrDiscarderIndex is always -1: hold'em has no draws.
func (s *State) StanderPatOrDiscarderIndex() int { return -1 }

func (s *State) ShowdownIndex() int {
	if s.phase == phaseShowdown {
		return s.showdownOrder[s.showdownPos]
	}
	return -1
}

func (s *State) StartingStacks() []int     { return slices.Clone(s.startingStacks) }
func (s *State) Bets() []int               { return slices.Clone(s.bets) }
func (s *State) Stacks() []int             { return slices.Clone(s.stacks) }
func (s *State) BoardCards() []engine.Card { return slices.Clone(s.board) }
func (s *State) Actions() []string         { return slices.Clone(s.actions) }

func (s *State) HoleCards(player int) []engine.Card {
	if player < 0 || player >= s.n {
		return nil
	}
	return slices.Clone(s.hole[player])
}

func (s *State) HoleCardStatuses(player int) []bool {
	if player < 0 || player >= s.n {
		return nil
	}
	statuses := make([]bool, len(s.hole[player]))
	for i := range statuses {
		statuses[i] = s.shown[player]
	}
	return statuses
}

// Pots returns the collected pots. While chips are being pushed only the
// pots not yet awarded are returned.
func (s *State) Pots() []engine.Pot {
	switch s.phase {
	case phasePushing:
		return clonePots(s.pots)
	case phasePulling, phaseDone:
		return nil
	}
	return computePots(s.contributions, s.contenders())
}

// Forced bets and dealing.

func (s *State) CanPostAnte() bool { return s.phase == phaseAntes }

func (s *State) PostAnte() error {
	if !s.CanPostAnte() {
		return engine.ErrIllegal
	}
	s.move(s.cursor, s.settings.Ante)
	s.cursor++
	if s.cursor == s.n {
		s.cursor = 0
		s.phase = phaseAnteCollection
	}
	return nil
}

func (s *State) CanCollectBets() bool {
	return s.phase == phaseAnteCollection || s.phase == phaseCollection
}

func (s *State) CollectBets() error {
	if !s.CanCollectBets() {
		return engine.ErrIllegal
	}
	if s.phase == phaseAnteCollection {
		s.collect(false)
		s.phase = phaseBlinds
		return nil
	}
	s.collect(true)
	s.afterCollection()
	return nil
}

func (s *State) blindOrder() []int {
	if s.n == 2 {
		return []int{1, 0}
	}
	return []int{0, 1}
}

func (s *State) bigBlindIndex() int {
	return s.blindOrder()[1]
}

func (s *State) CanPostBlindOrStraddle() bool { return s.phase == phaseBlinds }

func (s *State) PostBlindOrStraddle() error {
	if !s.CanPostBlindOrStraddle() {
		return engine.ErrIllegal
	}
	blinds := []int{s.settings.SmallBlind, s.settings.BigBlind}
	s.move(s.blindOrder()[s.cursor], blinds[s.cursor])
	s.cursor++
	if s.cursor == len(blinds) {
		s.cursor = 0
		s.phase = phaseHoleDealing
	}
	return nil
}

func (s *State) CanDealHole() bool {
	return s.phase == phaseHoleDealing && len(s.deck) > 0
}

// DealHole deals one hole card, going round the table once per card.
func (s *State) DealHole() error {
	if !s.CanDealHole() {
		return engine.ErrIllegal
	}
	player := s.cursor % s.n
	card := s.draw()
	s.hole[player] = append(s.hole[player], card)
	s.actions = append(s.actions, fmt.Sprintf("d dh p%d %s", player+1, card))
	s.cursor++
	if s.cursor == holeCardCount*s.n {
		s.cursor = 0
		s.startBetting()
	}
	return nil
}

func (s *State) CanBurnCard() bool {
	return s.phase == phaseBoard && !s.burnt && len(s.deck) > 0
}

func (s *State) BurnCard() error {
	if !s.CanBurnCard() {
		return engine.ErrIllegal
	}
	s.burned = append(s.burned, s.draw())
	s.burnt = true
	return nil
}

func (s *State) CanDealBoard() bool {
	return s.phase == phaseBoard && s.burnt && len(s.deck) >= s.boardCount()
}

func (s *State) boardCount() int {
	if s.street == 0 {
		return 3
	}
	return 1
}

func (s *State) DealBoard() error {
	if !s.CanDealBoard() {
		return engine.ErrIllegal
	}
	cards := make([]engine.Card, 0, 3)
	for range s.boardCount() {
		cards = append(cards, s.draw())
	}
	s.board = append(s.board, cards...)
	s.actions = append(s.actions, "d db "+engine.JoinCards(cards))
	s.street++
	s.burnt = false
	s.startBetting()
	return nil
}

// Betting.

func (s *State) CanStandPatOrDiscard(...engine.Card) bool { return false }

func (s *State) StandPatOrDiscard(...engine.Card) error { return engine.ErrIllegal }

func (s *State) CanPostBringIn() bool { return false }
func (s *State) PostBringIn() error   { return engine.ErrIllegal }
func (s *State) BringIn() int         { return 0 }

// CompletionStatus is always false: hold'em has no bring-in to complete.
func (s *State) CompletionStatus() bool { return false }

func (s *State) CanFold() bool {
	return s.ActorIndex() >= 0 && s.bets[s.actor] < s.maxBet()
}

func (s *State) Fold() error {
	if !s.CanFold() {
		return engine.ErrIllegal
	}
	a := s.actor
	s.folded[a] = true
	s.actions = append(s.actions, fmt.Sprintf("p%d f", a+1))
	if s.remaining() == 1 {
		clear(s.pending)
		s.endBetting()
		return nil
	}
	s.advance(a)
	return nil
}

func (s *State) CanCheckOrCall() bool { return s.ActorIndex() >= 0 }

func (s *State) CheckingOrCallingAmount() int {
	if s.ActorIndex() < 0 {
		return 0
	}
	return min(s.maxBet()-s.bets[s.actor], s.stacks[s.actor])
}

func (s *State) CheckOrCall() error {
	if !s.CanCheckOrCall() {
		return engine.ErrIllegal
	}
	a := s.actor
	s.move(a, s.CheckingOrCallingAmount())
	s.actions = append(s.actions, fmt.Sprintf("p%d cc", a+1))
	s.advance(a)
	return nil
}

// CanCompleteBetOrRaiseTo requires chips beyond a call and an opponent who
// could still respond.
func (s *State) CanCompleteBetOrRaiseTo() bool {
	if s.ActorIndex() < 0 {
		return false
	}
	a := s.actor
	if s.stacks[a] <= s.maxBet()-s.bets[a] {
		return false
	}
	for i := range s.n {
		if i != a && s.canAct(i) {
			return true
		}
	}
	return false
}

func (s *State) MinCompletionBetOrRaiseToAmount() int {
	if !s.CanCompleteBetOrRaiseTo() {
		return 0
	}
	return min(s.maxBet()+s.lastRaise, s.MaxCompletionBetOrRaiseToAmount())
}

func (s *State) MaxCompletionBetOrRaiseToAmount() int {
	if !s.CanCompleteBetOrRaiseTo() {
		return 0
	}
	return s.stacks[s.actor] + s.bets[s.actor]
}

func (s *State) VerifyCompletionBetOrRaiseTo(amount int) error {
	if !s.CanCompleteBetOrRaiseTo() {
		return engine.ErrIllegal
	}
	lo, hi := s.MinCompletionBetOrRaiseToAmount(), s.MaxCompletionBetOrRaiseToAmount()
	if amount < lo {
		return fmt.Errorf("holdem: bet or raise to %d is below the minimum of %d", amount, lo)
	}
	if amount > hi {
		return fmt.Errorf("holdem: bet or raise to %d exceeds the maximum of %d", amount, hi)
	}
	return nil
}

func (s *State) CompleteBetOrRaiseTo(amount int) error {
	if err := s.VerifyCompletionBetOrRaiseTo(amount); err != nil {
		return err
	}
	a := s.actor
	if raise := amount - s.maxBet(); raise >= s.lastRaise {
		s.lastRaise = raise
	}
	s.move(a, amount-s.bets[a])
	s.aggressor = a
	s.actions = append(s.actions, fmt.Sprintf("p%d cbr %d", a+1, amount))
	for i := range s.n {
		if i != a && s.canAct(i) {
			s.pending[i] = true
		}
	}
	s.advance(a)
	return nil
}

// Showdown.

func (s *State) CanShowOrMuckHoleCards() bool { return s.phase == phaseShowdown }

func (s *State) ShowOrMuckHoleCards(d engine.Disclosure) error {
	if !s.CanShowOrMuckHoleCards() {
		return engine.ErrIllegal
	}
	i := s.ShowdownIndex()
	show := d == engine.DiscloseShow || (d == engine.DiscloseAuto && s.CanWinNow(i))
	if !show && s.unmucked() == 1 {
		show = true
	}
	if show {
		s.shown[i] = true
		s.actions = append(s.actions, fmt.Sprintf("p%d sm %s", i+1, engine.JoinCards(s.hole[i])))
	} else {
		s.mucked[i] = true
		s.actions = append(s.actions, fmt.Sprintf("p%d sm -", i+1))
	}

	s.showdownPos++
	if s.showdownPos < len(s.showdownOrder) {
		return nil
	}
	if s.awaitingKill() {
		s.phase = phaseKilling
	} else {
		s.preparePots()
	}
	return nil
}

// CanWinNow reports whether player would win or tie at least one pot they
// are eligible for against every hand shown so far.
func (s *State) CanWinNow(player int) bool {
	if player < 0 || player >= s.n || s.folded[player] || s.mucked[player] {
		return false
	}
	if len(s.hole[player])+len(s.board) < 5 {
		return true
	}
	rank := evaluate(s.hole[player], s.board)
	for _, pot := range computePots(s.contributions, s.contenders()) {
		if !slices.Contains(pot.PlayerIndices, player) {
			continue
		}
		beaten := false
		for _, j := range pot.PlayerIndices {
			if j != player && s.shown[j] && evaluate(s.hole[j], s.board) < rank {
				beaten = true
				break
			}
		}
		if !beaten {
			return true
		}
	}
	return false
}

// Settlement.

func (s *State) awaitingKill() bool {
	for i := range s.n {
		if s.mucked[i] && !s.killed[i] {
			return true
		}
	}
	return false
}

func (s *State) CanKillHand() bool {
	return s.phase == phaseKilling && s.awaitingKill()
}

func (s *State) KillHand() error {
	if !s.CanKillHand() {
		return engine.ErrIllegal
	}
	for i := range s.n {
		if s.mucked[i] && !s.killed[i] {
			s.killed[i] = true
			break
		}
	}
	if !s.awaitingKill() {
		s.preparePots()
	}
	return nil
}

func (s *State) CanPushChips() bool { return s.phase == phasePushing && len(s.pots) > 0 }

// PushChips awards the next pot to its winners. Odd chips go to the winners
// in seat order.
func (s *State) PushChips() error {
	if !s.CanPushChips() {
		return engine.ErrIllegal
	}
	pot, winners := s.pots[0], s.winners[0]
	s.pots, s.winners = s.pots[1:], s.winners[1:]

	share, odd := pot.Amount/len(winners), pot.Amount%len(winners)
	for k, w := range winners {
		s.bets[w] += share
		if k < odd {
			s.bets[w]++
		}
	}
	if len(s.pots) == 0 {
		s.phase = phasePulling
		s.finishIfSettled()
	}
	return nil
}

func (s *State) CanPullChips() bool {
	return s.phase == phasePulling && slices.ContainsFunc(s.bets, func(b int) bool { return b > 0 })
}

func (s *State) PullChips() error {
	if !s.CanPullChips() {
		return engine.ErrIllegal
	}
	for i, bet := range s.bets {
		if bet > 0 {
			s.stacks[i] += bet
			s.bets[i] = 0
			break
		}
	}
	s.finishIfSettled()
	return nil
}

// Internals.

func (s *State) draw() engine.Card {
	card := s.deck[0]
	s.deck = s.deck[1:]
	return card
}

func (s *State) move(player, amount int) {
	amount = min(amount, s.stacks[player])
	s.stacks[player] -= amount
	s.bets[player] += amount
}

func (s *State) maxBet() int {
	return slices.Max(s.bets)
}

func (s *State) canAct(i int) bool {
	return !s.folded[i] && s.stacks[i] > 0
}

func (s *State) remaining() int {
	count := 0
	for i := range s.n {
		if !s.folded[i] {
			count++
		}
	}
	return count
}

func (s *State) unmucked() int {
	count := 0
	for i := range s.n {
		if !s.folded[i] && !s.mucked[i] {
			count++
		}
	}
	return count
}

func (s *State) contenders() []bool {
	contenders := make([]bool, s.n)
	for i := range s.n {
		contenders[i] = !s.folded[i] && !s.mucked[i]
	}
	return contenders
}

func (s *State) startBetting() {
	s.phase = phaseBetting
	s.lastRaise = s.settings.MinBet
	s.aggressor = -1

	able := 0
	for i := range s.n {
		s.pending[i] = s.canAct(i)
		if s.pending[i] {
			able++
		}
	}
	if able <= 1 {
		for i := range s.n {
			s.pending[i] = s.pending[i] && s.bets[i] < s.maxBet()
		}
	}

	first := 0
	if s.street == 0 {
		first = (s.bigBlindIndex() + 1) % s.n
	}
	s.actor = s.nextPending(first)
	if s.actor < 0 {
		s.endBetting()
	}
}

func (s *State) nextPending(from int) int {
	for k := range s.n {
		i := (from + k) % s.n
		if s.pending[i] {
			return i
		}
	}
	return -1
}

func (s *State) advance(actor int) {
	s.pending[actor] = false
	s.actor = s.nextPending(actor + 1)
	if s.actor < 0 {
		s.endBetting()
	}
}

func (s *State) endBetting() {
	s.actor = -1
	if slices.ContainsFunc(s.bets, func(b int) bool { return b > 0 }) {
		s.phase = phaseCollection
		return
	}
	s.afterCollection()
}

// collect moves bets into contributions, first returning any uncalled part
// of the largest bet.
func (s *State) collect(refund bool) {
	if refund {
		top := s.maxBet()
		leader, second := -1, 0
		for i, bet := range s.bets {
			switch {
			case bet == top && leader < 0:
				leader = i
			case bet == top:
				second = top
			default:
				second = max(second, bet)
			}
		}
		if leader >= 0 && second < top {
			s.stacks[leader] += top - second
			s.bets[leader] = second
		}
	}
	for i, bet := range s.bets {
		s.contributions[i] += bet
		s.bets[i] = 0
	}
}

func (s *State) afterCollection() {
	switch {
	case s.remaining() == 1:
		s.preparePots()
	case s.street == lastStreet:
		s.startShowdown()
	default:
		s.phase = phaseBoard
	}
}

func (s *State) startShowdown() {
	start := 0
	if s.aggressor >= 0 && !s.folded[s.aggressor] {
		start = s.aggressor
	}
	s.showdownOrder = s.showdownOrder[:0]
	for k := range s.n {
		i := (start + k) % s.n
		if !s.folded[i] {
			s.showdownOrder = append(s.showdownOrder, i)
		}
	}
	s.showdownPos = 0
	s.phase = phaseShowdown
}

func (s *State) preparePots() {
	contenders := s.contenders()
	s.pots = computePots(s.contributions, contenders)
	s.winners = make([][]int, len(s.pots))
	for k, pot := range s.pots {
		s.winners[k] = s.bestOf(pot.PlayerIndices)
	}
	clear(s.contributions)
	s.phase = phasePushing
	if len(s.pots) == 0 {
		s.phase = phasePulling
		s.finishIfSettled()
	}
}

func (s *State) bestOf(players []int) []int {
	if len(players) == 1 || len(s.board) < 3 {
		return players[:1]
	}
	best := []int(nil)
	bestRank := int32(0)
	for _, i := range players {
		rank := evaluate(s.hole[i], s.board)
		switch {
		case best == nil || rank < bestRank:
			best, bestRank = []int{i}, rank
		case rank == bestRank:
			best = append(best, i)
		}
	}
	return best
}

func (s *State) finishIfSettled() {
	if !s.CanPullChips() {
		s.phase = phaseDone
	}
}

// computePots splits contributions into a main pot and side pots. Chips
// contributed above the highest contender level go to the last pot.
func computePots(contributions []int, contenders []bool) []engine.Pot {
	var levels []int
	for i, c := range contributions {
		if contenders[i] && c > 0 && !slices.Contains(levels, c) {
			levels = append(levels, c)
		}
	}
	slices.Sort(levels)

	var pots []engine.Pot
	total, accounted, prev := 0, 0, 0
	for _, c := range contributions {
		total += c
	}
	for _, level := range levels {
		amount := 0
		var eligible []int
		for i, c := range contributions {
			amount += min(c, level) - min(c, prev)
			if contenders[i] && c >= level {
				eligible = append(eligible, i)
			}
		}
		prev = level
		accounted += amount
		if n := len(pots); n > 0 && slices.Equal(pots[n-1].PlayerIndices, eligible) {
			pots[n-1].Amount += amount
			continue
		}
		pots = append(pots, engine.Pot{Amount: amount, PlayerIndices: eligible})
	}
	if total > accounted {
		if n := len(pots); n > 0 {
			pots[n-1].Amount += total - accounted
		} else if eligible := contenderIndices(contenders); len(eligible) > 0 {
			pots = append(pots, engine.Pot{Amount: total, PlayerIndices: eligible})
		}
	}
	return pots
}

func contenderIndices(contenders []bool) []int {
	var indices []int
	for i, ok := range contenders {
		if ok {
			indices = append(indices, i)
		}
	}
	return indices
}

func clonePots(pots []engine.Pot) []engine.Pot {
	out := make([]engine.Pot, len(pots))
	for i, p := range pots {
		out[i] = engine.Pot{Amount: p.Amount, PlayerIndices: slices.Clone(p.PlayerIndices)}
	}
	return out
}
