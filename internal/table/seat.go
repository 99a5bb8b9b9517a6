package table

// Seat is one chair at the table.
type Seat struct {
	Index int
	User  string

	// PlayerIndex is the occupant's index in the live hand, nil when not
	// dealt in.
	PlayerIndex *int

	Active  bool
	Waiting bool

	// StartingStack is the stack the occupant brings to the next hand. It is
	// consumed when a hand is dealt and refilled with the settled stack
	// afterwards.
	StartingStack *int
}

// Occupied reports whether a user sits in the seat.
func (s Seat) Occupied() bool {
	return s.User != ""
}

// Playing reports whether the occupant is dealt into the live hand.
func (s Seat) Playing() bool {
	return s.PlayerIndex != nil
}

// ReadyOrPostable reports whether the occupant is present and funded.
func (s Seat) ReadyOrPostable() bool {
	return s.Occupied() && s.Active && s.StartingStack != nil && *s.StartingStack > 0
}

// Ready reports whether the occupant would be dealt into the next hand.
func (s Seat) Ready() bool {
	return s.ReadyOrPostable() && !s.Waiting
}

// Clone returns a copy that shares no pointers with s.
func (s Seat) Clone() Seat {
	s.PlayerIndex = cloneInt(s.PlayerIndex)
	s.StartingStack = cloneInt(s.StartingStack)
	return s
}

func (s *Seat) clear() {
	*s = Seat{Index: s.Index}
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func intPtr(v int) *int {
	return &v
}
