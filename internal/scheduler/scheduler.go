// Package scheduler runs delayed callbacks on a single goroutine.
package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// ID identifies a scheduled callback.
type ID uint64

type entry struct {
	id    ID
	at    time.Time
	seq   uint64
	fn    func()
	index int
}

type entries []*entry

func (h entries) Len() int { return len(h) }

func (h entries) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}

func (h entries) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entries) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entries) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Scheduler holds pending callbacks ordered by due time. Callbacks scheduled
// for the same instant run in the order they were scheduled.
type Scheduler struct {
	clock  quartz.Clock
	logger *log.Logger

	mu      sync.Mutex
	pending entries
	byID    map[ID]*entry
	next    uint64

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

type Option func(*Scheduler)

func WithClock(clock quartz.Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:  quartz.NewReal(),
		logger: log.Default(),
		byID:   make(map[ID]*entry),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithPrefix("scheduler")
	return s
}

// Schedule runs fn once d has elapsed. A non-positive d runs fn on the next
// turn of the loop.
func (s *Scheduler) Schedule(d time.Duration, fn func()) ID {
	s.mu.Lock()
	s.next++
	e := &entry{id: ID(s.next), at: s.clock.Now().Add(d), seq: s.next, fn: fn}
	heap.Push(&s.pending, e)
	s.byID[e.id] = e
	s.mu.Unlock()

	s.signal()
	return e.id
}

// Cancel removes a pending callback and reports whether it was pending.
func (s *Scheduler) Cancel(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&s.pending, e.index)
	delete(s.byID, id)
	return true
}

// Len returns the number of pending callbacks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop makes Run return. Pending callbacks are discarded.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run executes callbacks as they fall due until Stop is called or ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		s.runDue(s.clock.Now())

		if err := s.wait(ctx); err != nil {
			return err
		}
		select {
		case <-s.stop:
			s.logger.Debug("Scheduler stopped", "pending", s.Len())
			return nil
		default:
		}
	}
}

func (s *Scheduler) wait(ctx context.Context) error {
	var expired <-chan time.Time
	if at, ok := s.nextDue(); ok {
		timer := s.clock.NewTimer(at.Sub(s.clock.Now()), "scheduler")
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stop:
	case <-s.wake:
	case <-expired:
	}
	return nil
}

func (s *Scheduler) nextDue() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return time.Time{}, false
	}
	return s.pending[0].at, true
}

// runDue runs every callback due at or before now.
func (s *Scheduler) runDue(now time.Time) int {
	ran := 0
	for {
		s.mu.Lock()
		if len(s.pending) == 0 || s.pending[0].at.After(now) {
			s.mu.Unlock()
			return ran
		}
		e := heap.Pop(&s.pending).(*entry)
		delete(s.byID, e.id)
		s.mu.Unlock()

		e.fn()
		ran++
	}
}
