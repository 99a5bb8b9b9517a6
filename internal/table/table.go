// Package table tracks who sits where at a card table and decides when a
// hand can be dealt. Every mutating operation X comes as VerifyX, CanX and X:
// VerifyX explains a rejection, CanX reports it as a bool and X performs the
// operation after verifying it.
package table

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/lox/cardroom/internal/engine"
	"github.com/lox/cardroom/internal/randutil"
)

// RatHoling selects how the table treats a stack lower than the one the
// occupant already has.
type RatHoling int

const (
	// RatHolingReject refuses buy-ins below the current stack and keeps the
	// settled stack at the end of a hand.
	RatHolingReject RatHoling = iota
	// RatHolingAllow accepts lower stacks with a warning.
	RatHolingAllow
)

// Config describes a table.
type Config struct {
	SeatCount        int
	MinStartingStack int
	MaxStartingStack int
	RatHoling        RatHoling
	Rand             *rand.Rand
	Logger           *log.Logger
}

// Table owns the seats, the button and the live hand.
type Table struct {
	game      engine.Game
	seats     []Seat
	button    Button
	minStack  int
	maxStack  int
	ratHoling RatHoling
	rng       *rand.Rand
	logger    *log.Logger
	state     engine.State
}

// New returns an empty table.
func New(game engine.Game, cfg Config) (*Table, error) {
	if game == nil {
		return nil, errors.New("table: game is required")
	}
	if cfg.SeatCount < 2 {
		return nil, fmt.Errorf("table: need at least two seats, got %d", cfg.SeatCount)
	}
	if cfg.MinStartingStack <= 0 || cfg.MaxStartingStack < cfg.MinStartingStack {
		return nil, fmt.Errorf("table: invalid starting stack range [%d, %d]", cfg.MinStartingStack, cfg.MaxStartingStack)
	}
	if cfg.Rand == nil {
		cfg.Rand = randutil.NewFromTime()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	seats := make([]Seat, cfg.SeatCount)
	for i := range seats {
		seats[i].Index = i
	}
	return &Table{
		game:      game,
		seats:     seats,
		button:    Button{SeatIndex: -1},
		minStack:  cfg.MinStartingStack,
		maxStack:  cfg.MaxStartingStack,
		ratHoling: cfg.RatHoling,
		rng:       cfg.Rand,
		logger:    cfg.Logger.WithPrefix("table"),
	}, nil
}

// Read helpers.

func (t *Table) SeatCount() int             { return len(t.seats) }
func (t *Table) Game() engine.Game          { return t.game }
func (t *Table) State() engine.State        { return t.state }
func (t *Table) Button() Button             { return t.button }
func (t *Table) MinStartingStack() int      { return t.minStack }
func (t *Table) MaxStartingStack() int      { return t.maxStack }
func (t *Table) RatHolingPolicy() RatHoling { return t.ratHoling }

// Seats returns a copy of every seat.
func (t *Table) Seats() []Seat {
	seats := make([]Seat, len(t.seats))
	for i, seat := range t.seats {
		seats[i] = seat.Clone()
	}
	return seats
}

// Seat returns a copy of seat i.
func (t *Table) Seat(i int) (Seat, bool) {
	if i < 0 || i >= len(t.seats) {
		return Seat{}, false
	}
	return t.seats[i].Clone(), true
}

// SeatOf returns a copy of the seat user occupies.
func (t *Table) SeatOf(user string) (Seat, bool) {
	i := t.seatIndexOf(user)
	if i < 0 {
		return Seat{}, false
	}
	return t.seats[i].Clone(), true
}

// Users returns the seated users in seat order.
func (t *Table) Users() []string {
	var users []string
	for _, seat := range t.seats {
		if seat.Occupied() {
			users = append(users, seat.User)
		}
	}
	return users
}

// EmptySeatIndices returns the vacant seats in order.
func (t *Table) EmptySeatIndices() []int {
	var indices []int
	for i, seat := range t.seats {
		if !seat.Occupied() {
			indices = append(indices, i)
		}
	}
	return indices
}

// ButtonSeat returns the anchor seat, if any.
func (t *Table) ButtonSeat() (Seat, bool) {
	return t.Seat(t.button.SeatIndex)
}

// TurnSeat returns the seat of the player the engine is waiting on.
func (t *Table) TurnSeat() (Seat, bool) {
	if t.state == nil {
		return Seat{}, false
	}
	return t.SeatOfPlayer(t.state.TurnIndex())
}

// SeatOfPlayer returns the seat dealt in at player index p.
func (t *Table) SeatOfPlayer(p int) (Seat, bool) {
	if p < 0 {
		return Seat{}, false
	}
	for _, seat := range t.seats {
		if seat.PlayerIndex != nil && *seat.PlayerIndex == p {
			return seat.Clone(), true
		}
	}
	return Seat{}, false
}

// CurrentStack is the pending stack of user, or their stack in the live
// hand when none is pending.
func (t *Table) CurrentStack(user string) (int, bool) {
	i := t.seatIndexOf(user)
	if i < 0 {
		return 0, false
	}
	seat := t.seats[i]
	switch {
	case seat.StartingStack != nil:
		return *seat.StartingStack, true
	case seat.PlayerIndex != nil && t.state != nil:
		return t.state.Stacks()[*seat.PlayerIndex], true
	}
	return 0, false
}

func (t *Table) seatIndexOf(user string) int {
	if user == "" {
		return -1
	}
	return slices.IndexFunc(t.seats, func(s Seat) bool { return s.User == user })
}

func (t *Table) seated(op, user string) (*Seat, error) {
	i := t.seatIndexOf(user)
	if i < 0 {
		return nil, reject(op, user, ErrUserNotSeated)
	}
	return &t.seats[i], nil
}

// Game changing.

func (t *Table) VerifyChangeGame(game engine.Game) error {
	if game == nil {
		return errors.New("change game: game is required")
	}
	if t.state != nil {
		return reject("change game", "", ErrStateExists)
	}
	return nil
}

func (t *Table) CanChangeGame(game engine.Game) bool {
	return t.VerifyChangeGame(game) == nil
}

func (t *Table) ChangeGame(game engine.Game) error {
	if err := t.VerifyChangeGame(game); err != nil {
		return err
	}
	t.game = game
	return nil
}

// Hand lifecycle.

func (t *Table) VerifyConstructState() error {
	if t.state != nil {
		return reject("construct state", "", ErrStateExists)
	}
	step := t.previewButton(func(candidates []int) int { return candidates[0] })
	if len(step.order) < 2 {
		return reject("construct state", "", ErrNotEnoughPlayers)
	}
	return nil
}

func (t *Table) CanConstructState() bool {
	return t.VerifyConstructState() == nil
}

// ConstructState moves the button and deals a new hand to the ready seats.
func (t *Table) ConstructState() error {
	if err := t.VerifyConstructState(); err != nil {
		return err
	}

	step := t.previewButton(func(candidates []int) int {
		return candidates[t.rng.IntN(len(candidates))]
	})
	stacks := make([]int, len(step.order))
	for p, i := range step.order {
		stacks[p] = *t.seats[i].StartingStack
	}
	state, err := t.game.NewState(stacks, len(stacks))
	if err != nil {
		return fmt.Errorf("construct state: %w", err)
	}

	t.applyButton(step)
	for p, i := range step.order {
		t.seats[i].PlayerIndex = intPtr(p)
		t.seats[i].StartingStack = nil
	}
	t.state = state
	t.logger.Debug("Dealt hand", "players", len(stacks), "button", t.button.SeatIndex)
	return nil
}

func (t *Table) VerifyDestroyState() error {
	if t.state == nil {
		return reject("destroy state", "", ErrNoState)
	}
	if t.state.Status() {
		return reject("destroy state", "", ErrStateActive)
	}
	return nil
}

func (t *Table) CanDestroyState() bool {
	return t.VerifyDestroyState() == nil
}

// DestroyState settles the finished hand back into the seats' pending
// stacks. Seats left with nothing are unfunded until they buy in again.
func (t *Table) DestroyState() error {
	if err := t.VerifyDestroyState(); err != nil {
		return err
	}

	stacks := t.state.Stacks()
	for i := range t.seats {
		seat := &t.seats[i]
		if seat.PlayerIndex != nil {
			settled := stacks[*seat.PlayerIndex]
			switch {
			case seat.StartingStack == nil:
				seat.StartingStack = intPtr(settled)
			case *seat.StartingStack < settled && t.ratHoling == RatHolingReject:
				t.logger.Warn("Ignoring rat-holing stack", "user", seat.User, "pending", *seat.StartingStack, "settled", settled)
				seat.StartingStack = intPtr(settled)
			case *seat.StartingStack < settled:
				t.logger.Warn("Rat-holing", "user", seat.User, "pending", *seat.StartingStack, "settled", settled)
			}
		}
		seat.PlayerIndex = nil
		if seat.StartingStack != nil && *seat.StartingStack == 0 {
			seat.StartingStack = nil
		}
	}
	t.state = nil
	return nil
}

// Seating.

// VerifyJoin checks that user may take seat i. A negative i asks whether any
// seat is free.
func (t *Table) VerifyJoin(user string, i int) error {
	const op = "join"
	if user == "" {
		return reject(op, user, ErrSystemUser)
	}
	if t.seatIndexOf(user) >= 0 {
		return reject(op, user, ErrUserAlreadySeated)
	}
	if i < 0 {
		if len(t.EmptySeatIndices()) == 0 {
			return reject(op, user, ErrTableFull)
		}
		return nil
	}
	if i >= len(t.seats) {
		return reject(op, user, ErrInvalidSeat)
	}
	if t.seats[i].Occupied() {
		return reject(op, user, ErrSeatOccupied)
	}
	return nil
}

func (t *Table) CanJoin(user string, i int) bool {
	return t.VerifyJoin(user, i) == nil
}

// Join seats user at i, or at the first vacant seat when i is negative.
// New occupants wait for the button before being dealt in.
func (t *Table) Join(user string, i int) error {
	if err := t.VerifyJoin(user, i); err != nil {
		return err
	}
	if i < 0 {
		i = t.EmptySeatIndices()[0]
	}
	t.seats[i] = Seat{Index: i, User: user, Active: true, Waiting: true}
	return nil
}

func (t *Table) VerifyLeave(user string) error {
	seat, err := t.seated("leave", user)
	if err != nil {
		return err
	}
	if seat.Playing() {
		return reject("leave", user, ErrPlayerInHand)
	}
	return nil
}

func (t *Table) CanLeave(user string) bool {
	return t.VerifyLeave(user) == nil
}

func (t *Table) Leave(user string) error {
	if err := t.VerifyLeave(user); err != nil {
		return err
	}
	t.seats[t.seatIndexOf(user)].clear()
	return nil
}

func (t *Table) VerifySitOut(user string) error {
	seat, err := t.seated("sit out", user)
	if err != nil {
		return err
	}
	if !seat.Active {
		return reject("sit out", user, ErrAlreadyInactive)
	}
	return nil
}

func (t *Table) CanSitOut(user string) bool {
	return t.VerifySitOut(user) == nil
}

func (t *Table) SitOut(user string) error {
	if err := t.VerifySitOut(user); err != nil {
		return err
	}
	t.seats[t.seatIndexOf(user)].Active = false
	return nil
}

func (t *Table) VerifyBeBack(user string) error {
	seat, err := t.seated("be back", user)
	if err != nil {
		return err
	}
	if seat.Active {
		return reject("be back", user, ErrAlreadyActive)
	}
	return nil
}

func (t *Table) CanBeBack(user string) bool {
	return t.VerifyBeBack(user) == nil
}

func (t *Table) BeBack(user string) error {
	if err := t.VerifyBeBack(user); err != nil {
		return err
	}
	t.seats[t.seatIndexOf(user)].Active = true
	return nil
}

// VerifyBuyRebuyTopOffOrRatHole checks a new pending stack for user.
func (t *Table) VerifyBuyRebuyTopOffOrRatHole(user string, amount int) error {
	const op = "buy-in"
	seat, err := t.seated(op, user)
	if err != nil {
		return err
	}
	if !seat.Active {
		return reject(op, user, ErrInactiveUser)
	}
	if amount < t.minStack {
		return reject(op, user, ErrBelowMinimum)
	}
	if amount > t.maxStack {
		return reject(op, user, ErrAboveMaximum)
	}
	if current, ok := t.CurrentStack(user); ok && amount < current && t.ratHoling == RatHolingReject {
		return reject(op, user, ErrRatHoling)
	}
	return nil
}

func (t *Table) CanBuyRebuyTopOffOrRatHole(user string, amount int) bool {
	return t.VerifyBuyRebuyTopOffOrRatHole(user, amount) == nil
}

func (t *Table) BuyRebuyTopOffOrRatHole(user string, amount int) error {
	if err := t.VerifyBuyRebuyTopOffOrRatHole(user, amount); err != nil {
		return err
	}
	if current, ok := t.CurrentStack(user); ok && amount < current {
		t.logger.Warn("Rat-holing", "user", user, "current", current, "amount", amount)
	}
	t.seats[t.seatIndexOf(user)].StartingStack = intPtr(amount)
	return nil
}
