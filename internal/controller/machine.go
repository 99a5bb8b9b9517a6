package controller

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/cardroom/internal/engine"
	"github.com/lox/cardroom/internal/frame"
	"github.com/lox/cardroom/internal/handhistory"
	"github.com/lox/cardroom/internal/handid"
	"github.com/lox/cardroom/internal/phh"
	"github.com/lox/cardroom/internal/table"
)

var (
	// ErrInvariant reports that the table and engine disagree. The
	// controller stops when it happens.
	ErrInvariant = errors.New("controller invariant violated")
	// ErrTerminated is returned by Handle once the controller is shutting down.
	ErrTerminated = errors.New("controller terminated")

	ErrMalformedAction  = errors.New("malformed action")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNoHand           = errors.New("no hand in progress")
	ErrNotInHand        = errors.New("not dealt into this hand")
	ErrNotYourTurn      = errors.New("not your turn")
)

type turnKind int

const (
	turnNone turnKind = iota
	turnStandingPat
	turnBetting
	turnShowdown
)

func (k turnKind) String() string {
	switch k {
	case turnStandingPat:
		return "standing pat"
	case turnBetting:
		return "betting"
	case turnShowdown:
		return "showdown"
	default:
		return "none"
	}
}

// turnKey identifies one engine position. Any mutation of the hand changes
// it, so a deadline armed under an old key can never act on a new turn.
type turnKey struct {
	hand int
	step int
}

type turn struct {
	key      turnKey
	kind     turnKind
	user     string
	start    time.Time
	deadline time.Time
}

// machine is the single-threaded core of a controller. It owns the table,
// the deadlines and the time banks; only the Run goroutine touches it.
type machine struct {
	name   string
	table  *table.Table
	cfg    Config
	clock  quartz.Clock
	logger *log.Logger

	hand      int
	step      int
	handID    string
	handStart time.Time

	construction time.Time
	destruction  time.Time
	idle         map[string]time.Time
	turn         *turn
	banks        map[string]time.Duration

	frames     []frame.Set
	notice     *Notice
	records    []*phh.HandHistory
	terminated bool
}

func newMachine(name string, t *table.Table, cfg Config, clock quartz.Clock, logger *log.Logger) *machine {
	return &machine{
		name:   name,
		table:  t,
		cfg:    cfg,
		clock:  clock,
		logger: logger,
		idle:   make(map[string]time.Time),
		banks:  make(map[string]time.Duration),
	}
}

func invariant(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}

// bank returns the user's time bank, granting the full bank on first use.
func (m *machine) bank(user string) time.Duration {
	b, ok := m.banks[user]
	if !ok {
		b = m.cfg.TimeBank
		m.banks[user] = b
	}
	return b
}

// apply performs one queued action. Rejections become a notice for the
// submitting user; only invariant violations are returned.
func (m *machine) apply(e event) error {
	err := m.dispatch(e.user, e.action)
	switch {
	case err == nil:
		m.appendFrames()
	case errors.Is(err, ErrInvariant):
		return err
	case e.user == "":
		m.logger.Warn("Rejected system action", "action", e.action, "error", err)
	default:
		m.logger.Debug("Rejected action", "user", e.user, "action", e.action, "error", err)
		m.notice = &Notice{Users: []string{e.user}, Message: err.Error()}
	}
	return nil
}

func (m *machine) dispatch(user, action string) error {
	tokens := engine.StripComment(strings.Fields(action))
	if len(tokens) == 0 {
		return fmt.Errorf("empty action: %w", ErrMalformedAction)
	}

	name, args := tokens[0], tokens[1:]
	switch name {
	case "terminate":
		if user != "" {
			return fmt.Errorf("terminate: %w", ErrPermissionDenied)
		}
		if len(args) != 0 {
			return fmt.Errorf("terminate takes no arguments: %w", ErrMalformedAction)
		}
		m.terminated = true
		return nil

	case "j", "join":
		if len(args) != 1 {
			return fmt.Errorf("join needs a seat: %w", ErrMalformedAction)
		}
		seat, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid seat %q: %w", args[0], ErrMalformedAction)
		}
		return m.table.Join(user, seat)

	case "l", "leave":
		if len(args) != 0 {
			return fmt.Errorf("leave takes no arguments: %w", ErrMalformedAction)
		}
		return m.table.Leave(user)

	case "s", "sit-out":
		if len(args) != 0 {
			return fmt.Errorf("sit-out takes no arguments: %w", ErrMalformedAction)
		}
		return m.table.SitOut(user)

	case "b", "be-back":
		if len(args) != 0 {
			return fmt.Errorf("be-back takes no arguments: %w", ErrMalformedAction)
		}
		return m.table.BeBack(user)

	case "brtr", "buy-rebuy-top-off-or-rat-hole":
		if len(args) != 1 {
			return fmt.Errorf("buy-in needs an amount: %w", ErrMalformedAction)
		}
		amount, err := engine.ParseValue(args[0])
		if err != nil {
			return fmt.Errorf("%v: %w", err, ErrMalformedAction)
		}
		return m.table.BuyRebuyTopOffOrRatHole(user, amount)
	}

	return m.act(user, tokens)
}

// act applies an engine action for the turn holder.
func (m *machine) act(user string, tokens []string) error {
	seat, ok := m.table.SeatOf(user)
	if !ok {
		return &table.Error{Op: tokens[0], User: user, Reason: table.ErrUserNotSeated}
	}
	state := m.table.State()
	if state == nil {
		return ErrNoHand
	}
	if seat.PlayerIndex == nil {
		return ErrNotInHand
	}
	if *seat.PlayerIndex != state.TurnIndex() {
		return ErrNotYourTurn
	}
	if err := engine.Apply(state, tokens); err != nil {
		if errors.Is(err, engine.ErrContract) {
			return fmt.Errorf("%w: %v", ErrInvariant, err)
		}
		return err
	}
	m.step++
	return nil
}

// settle runs passes until nothing changes, then drops bookkeeping for
// users who are no longer seated.
func (m *machine) settle() error {
	now := m.clock.Now()
	for {
		changed, err := m.pass(now)
		if err != nil {
			return err
		}
		if !changed {
			break
		}
	}
	m.syncTurn(now)
	m.prune()
	return nil
}

func (m *machine) pass(now time.Time) (bool, error) {
	steps := []func(time.Time) (bool, error){
		m.expireIdle,
		m.constructState,
		m.destroyState,
		m.forceInactive,
		m.advanceDealer,
		m.expireTurn,
	}
	changed := false
	for _, step := range steps {
		ok, err := step(now)
		if err != nil {
			return false, err
		}
		if ok {
			m.appendFrames()
			changed = true
		}
	}
	return changed, nil
}

// expireIdle removes users who sat unfunded or sitting out for IdleTimeout.
func (m *machine) expireIdle(now time.Time) (bool, error) {
	changed := false
	for _, user := range m.table.Users() {
		seat, _ := m.table.SeatOf(user)
		if seat.Playing() || seat.ReadyOrPostable() || !m.table.CanLeave(user) {
			delete(m.idle, user)
			continue
		}
		deadline, ok := m.idle[user]
		if !ok {
			deadline = now.Add(m.cfg.IdleTimeout)
			m.idle[user] = deadline
		}
		if now.Before(deadline) {
			continue
		}
		delete(m.idle, user)
		if err := m.table.Leave(user); err != nil {
			return false, invariant("idle leave: %v", err)
		}
		m.logger.Info("Removed idle user", "user", user, "seat", seat.Index)
		changed = true
	}
	return changed, nil
}

func (m *machine) constructState(now time.Time) (bool, error) {
	if !m.table.CanConstructState() {
		m.construction = time.Time{}
		return false, nil
	}
	if m.construction.IsZero() {
		m.construction = now.Add(m.cfg.StateConstructionTimeout)
	}
	if now.Before(m.construction) {
		return false, nil
	}

	m.construction = time.Time{}
	if err := m.table.ConstructState(); err != nil {
		return false, invariant("construct state: %v", err)
	}
	m.hand++
	m.step = 0
	m.handID = handid.New()
	m.handStart = now
	m.logger.Info("Hand started", "hand", m.handID, "players", m.table.State().PlayerCount())
	return true, nil
}

func (m *machine) destroyState(now time.Time) (bool, error) {
	if !m.table.CanDestroyState() {
		m.destruction = time.Time{}
		return false, nil
	}
	if m.destruction.IsZero() {
		m.destruction = now.Add(m.cfg.StateDestructionTimeout)
	}
	if now.Before(m.destruction) {
		return false, nil
	}

	m.destruction = time.Time{}
	for _, user := range m.table.Users() {
		m.banks[user] = min(m.bank(user)+m.cfg.TimeBankIncrement, m.cfg.TimeBank)
	}
	record, err := handhistory.Build(m.name, m.table, m.handID, m.handStart)
	if err != nil {
		m.logger.Error("Failed to build hand history", "hand", m.handID, "error", err)
	} else {
		m.records = append(m.records, record)
	}
	if err := m.table.DestroyState(); err != nil {
		return false, invariant("destroy state: %v", err)
	}
	m.logger.Info("Hand finished", "hand", m.handID)
	return true, nil
}

// forceInactive acts for a turn holder who is sitting out.
func (m *machine) forceInactive(time.Time) (bool, error) {
	state := m.table.State()
	seat, ok := m.table.TurnSeat()
	if state == nil || !ok || seat.Active {
		return false, nil
	}

	var err error
	switch {
	case state.CanStandPatOrDiscard():
		err = state.StandPatOrDiscard()
	case state.CanPostBringIn():
		err = state.PostBringIn()
	case state.CanFold():
		err = state.Fold()
	case state.CanCheckOrCall():
		err = state.CheckOrCall()
	case state.CanShowOrMuckHoleCards():
		err = state.ShowOrMuckHoleCards(engine.DiscloseAuto)
	default:
		return false, invariant("no forced action for inactive user %s", seat.User)
	}
	if err != nil {
		return false, invariant("forced action for %s: %v", seat.User, err)
	}
	m.step++
	m.logger.Debug("Acted for inactive user", "user", seat.User)
	return true, nil
}

// advanceDealer performs the next dealer operation, if any.
func (m *machine) advanceDealer(time.Time) (bool, error) {
	state := m.table.State()
	if state == nil {
		return false, nil
	}

	var (
		op   func() error
		name string
	)
	switch {
	case state.CanPostAnte():
		op, name = state.PostAnte, "post ante"
	case state.CanCollectBets():
		op, name = state.CollectBets, "collect bets"
	case state.CanPostBlindOrStraddle():
		op, name = state.PostBlindOrStraddle, "post blind"
	case state.CanBurnCard():
		op, name = state.BurnCard, "burn card"
	case state.CanDealBoard():
		op, name = state.DealBoard, "deal board"
	case state.CanDealHole():
		op, name = state.DealHole, "deal hole"
	case state.CanKillHand():
		op, name = state.KillHand, "kill hand"
	case state.CanPushChips():
		op, name = state.PushChips, "push chips"
	case state.CanPullChips():
		op, name = state.PullChips, "pull chips"
	default:
		return false, nil
	}
	if err := op(); err != nil {
		return false, invariant("%s: %v", name, err)
	}
	m.step++
	return true, nil
}

// currentTurn reports what the engine is waiting for and from whom.
func (m *machine) currentTurn() (turnKind, string) {
	state := m.table.State()
	if state == nil {
		return turnNone, ""
	}
	seat, ok := m.table.TurnSeat()
	if !ok {
		return turnNone, ""
	}
	switch {
	case state.StanderPatOrDiscarderIndex() >= 0 && state.CanStandPatOrDiscard():
		return turnStandingPat, seat.User
	case state.ActorIndex() >= 0:
		return turnBetting, seat.User
	case state.CanShowOrMuckHoleCards():
		return turnShowdown, seat.User
	}
	return turnNone, ""
}

// syncTurn closes a turn whose key no longer matches the engine and arms a
// deadline for the turn now in force.
func (m *machine) syncTurn(now time.Time) {
	kind, user := m.currentTurn()
	key := turnKey{hand: m.hand, step: m.step}
	if m.turn != nil && (m.turn.key != key || m.turn.kind != kind || m.turn.user != user) {
		m.closeTurn(now)
	}
	if m.turn != nil || kind == turnNone {
		return
	}

	t := &turn{key: key, kind: kind, user: user, start: now}
	switch kind {
	case turnStandingPat:
		t.deadline = now.Add(m.cfg.StandingPatTimeout)
	case turnBetting:
		t.deadline = now.Add(m.cfg.BettingTimeout + m.bank(user))
	case turnShowdown:
		t.deadline = now.Add(m.cfg.HoleCardsShowingOrMuckingTimeout)
	}
	m.turn = t
}

// closeTurn ends the turn in force, charging any betting time beyond
// BettingTimeout to the user's bank.
func (m *machine) closeTurn(now time.Time) {
	t := m.turn
	m.turn = nil
	if t == nil || t.kind != turnBetting {
		return
	}
	bank := m.bank(t.user)
	debit := min(max(now.Sub(t.start)-m.cfg.BettingTimeout, 0), bank)
	m.banks[t.user] = bank - debit
}

// expireTurn forces the default action once the turn deadline passes.
func (m *machine) expireTurn(now time.Time) (bool, error) {
	m.syncTurn(now)
	t := m.turn
	if t == nil || now.Before(t.deadline) {
		return false, nil
	}

	state := m.table.State()
	var err error
	switch t.kind {
	case turnStandingPat:
		err = state.StandPatOrDiscard()
	case turnBetting:
		switch {
		case state.CanFold():
			err = state.Fold()
		case state.CanCheckOrCall():
			err = state.CheckOrCall()
		case state.CanPostBringIn():
			err = state.PostBringIn()
		default:
			return false, invariant("no timeout action for %s", t.user)
		}
	case turnShowdown:
		err = state.ShowOrMuckHoleCards(engine.DiscloseAuto)
	}
	if err != nil {
		return false, invariant("timeout action for %s: %v", t.user, err)
	}
	m.closeTurn(now)
	m.step++
	m.logger.Info("Turn timed out", "user", t.user, "turn", t.kind)

	if t.kind == turnBetting && m.cfg.SitOutOnTimeout && m.table.CanSitOut(t.user) {
		if err := m.table.SitOut(t.user); err != nil {
			return false, invariant("sit out %s: %v", t.user, err)
		}
		m.logger.Info("Sat out after timeout", "user", t.user)
	}
	return true, nil
}

// prune drops bookkeeping for users who left and grants banks to newcomers.
func (m *machine) prune() {
	seated := make(map[string]bool)
	for _, user := range m.table.Users() {
		seated[user] = true
		m.bank(user)
	}
	for user := range m.banks {
		if !seated[user] {
			delete(m.banks, user)
		}
	}
	for user := range m.idle {
		if !seated[user] {
			delete(m.idle, user)
		}
	}
}

// nextDeadline returns the soonest armed deadline.
func (m *machine) nextDeadline() (time.Time, bool) {
	var next time.Time
	consider := func(t time.Time) {
		if !t.IsZero() && (next.IsZero() || t.Before(next)) {
			next = t
		}
	}
	consider(m.construction)
	consider(m.destruction)
	for _, t := range m.idle {
		consider(t)
	}
	if m.turn != nil {
		consider(m.turn.deadline)
	}
	return next, !next.IsZero()
}

func (m *machine) appendFrames() {
	m.syncTurn(m.clock.Now())
	var ts frame.Timestamps
	if m.turn != nil {
		ts = frame.Timestamps{m.turn.start, m.turn.deadline}
	}
	m.frames = append(m.frames, frame.FromTable(m.table, ts))
}

// flush returns the output accumulated since the last flush.
func (m *machine) flush() (Update, []*phh.HandHistory) {
	u := Update{Frames: m.frames, Notice: m.notice}
	records := m.records
	m.frames, m.notice, m.records = nil, nil, nil
	return u, records
}

func (m *machine) timeBanks() map[string]time.Duration {
	return maps.Clone(m.banks)
}
