package table

// Button marks the anchor seat the deal order rotates from. SeatIndex is -1
// when there is no anchor.
type Button struct {
	SeatIndex int
	User      string
}

// buttonStep is the outcome of moving the button, computed without touching
// the table.
type buttonStep struct {
	anchor  int
	order   []int
	waiting []bool
}

// previewButton computes the next anchor and deal order. pick chooses the
// anchor among the ready-or-postable seats when there is no valid anchor.
func (t *Table) previewButton(pick func([]int) int) buttonStep {
	n := len(t.seats)
	waiting := make([]bool, n)
	for i, seat := range t.seats {
		waiting[i] = seat.Waiting
	}
	ready := func(i int) bool {
		return t.seats[i].ReadyOrPostable() && !waiting[i]
	}

	if !t.game.ButtonStatus() {
		clear(waiting)
		var order []int
		for i := range t.seats {
			if ready(i) {
				order = append(order, i)
			}
		}
		return buttonStep{anchor: -1, order: order, waiting: waiting}
	}

	anchor := t.button.SeatIndex
	if anchor >= 0 && (t.button.User == "" || t.seats[anchor].User != t.button.User) {
		anchor = -1
	}

	if anchor >= 0 {
		next := -1
		for k := 1; k <= 2*n; k++ {
			i := (anchor + k) % n
			if ready(i) {
				next = i
				break
			}
			waiting[i] = false
		}
		anchor = next
	}

	if anchor < 0 {
		var candidates []int
		for i, seat := range t.seats {
			if seat.ReadyOrPostable() {
				candidates = append(candidates, i)
			}
		}
		if len(candidates) == 0 {
			return buttonStep{anchor: -1, waiting: waiting}
		}
		anchor = pick(candidates)
		clear(waiting)
	}

	var order []int
	for k := 1; k <= n; k++ {
		i := (anchor + k) % n
		if ready(i) {
			order = append(order, i)
		}
	}
	return buttonStep{anchor: anchor, order: order, waiting: waiting}
}

func (t *Table) applyButton(step buttonStep) {
	for i := range t.seats {
		t.seats[i].Waiting = step.waiting[i]
	}
	if step.anchor < 0 {
		t.button = Button{SeatIndex: -1}
		return
	}
	t.button = Button{SeatIndex: step.anchor, User: t.seats[step.anchor].User}
}
