// Package controller runs a live table. One goroutine per table applies
// queued user actions, fires deadlines, drives the dealer and publishes the
// resulting frames.
package controller

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/cardroom/internal/frame"
	"github.com/lox/cardroom/internal/handhistory"
	"github.com/lox/cardroom/internal/phh"
	"github.com/lox/cardroom/internal/table"
)

// Controller owns one table. Handle and the read accessors are safe for
// concurrent use; Run must be called exactly once.
type Controller struct {
	name     string
	m        *machine
	queue    *queue[event]
	hub      *hub
	clock    quartz.Clock
	logger   *log.Logger
	recorder handhistory.Recorder

	mu     sync.RWMutex
	frames frame.Set
	banks  map[string]time.Duration

	done chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

func WithClock(clock quartz.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithRecorder receives every completed hand. Recording happens off the
// loop goroutine.
func WithRecorder(r handhistory.Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// New returns a controller for t. The controller takes ownership of t.
func New(name string, t *table.Table, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		name:   name,
		queue:  newQueue[event](),
		clock:  quartz.NewReal(),
		logger: log.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithPrefix("controller").With("table", name)
	c.hub = newHub(c.logger)
	c.m = newMachine(name, t, cfg, c.clock, c.logger)
	return c
}

func (c *Controller) Name() string { return c.name }

// Handle queues an action from user. The empty user is the system.
func (c *Controller) Handle(user, action string) error {
	terminate := user == "" && action == "terminate"
	if !c.queue.push(event{user: user, action: action}, terminate) {
		return ErrTerminated
	}
	return nil
}

// Terminate asks the loop to stop after the actions queued before it.
func (c *Controller) Terminate() error {
	return c.Handle("", "terminate")
}

// Subscribe returns a stream of updates and a function that cancels the
// subscription. The channel is closed when the controller stops or the
// subscriber falls too far behind.
func (c *Controller) Subscribe() (<-chan Update, func()) {
	return c.hub.subscribe()
}

// Frames returns the latest frame set.
func (c *Controller) Frames() frame.Set {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frames
}

// TimeBanks returns the time bank of every seated user.
func (c *Controller) TimeBanks() map[string]time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.banks)
}

// Done is closed when Run returns.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Run drives the table until terminated, the context is cancelled or an
// invariant is violated. Once Run returns, Handle reports ErrTerminated.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	defer c.hub.close()
	defer c.queue.close()

	records := newQueue[*phh.HandHistory]()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.record(context.WithoutCancel(ctx), records)
	}()
	defer func() {
		records.close()
		wg.Wait()
	}()

	c.logger.Info("Controller started")
	c.m.appendFrames()
	c.publish(records)

	for !c.m.terminated {
		e, ok := c.queue.pop()
		if !ok {
			if err := c.wait(ctx); err != nil {
				c.logger.Info("Controller cancelled")
				return err
			}
			e, ok = c.queue.pop()
		}
		if ok {
			if err := c.m.apply(e); err != nil {
				return c.fail(err)
			}
		}
		if err := c.m.settle(); err != nil {
			return c.fail(err)
		}
		c.publish(records)
	}

	c.logger.Info("Controller terminated")
	return nil
}

// wait blocks until an action is queued or the nearest deadline passes.
func (c *Controller) wait(ctx context.Context) error {
	var expired <-chan time.Time
	if deadline, ok := c.m.nextDeadline(); ok {
		d := deadline.Sub(c.clock.Now())
		if d <= 0 {
			return nil
		}
		timer := c.clock.NewTimer(d, "controller", "deadline")
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.queue.ready:
	case <-expired:
	}
	return nil
}

func (c *Controller) publish(records *queue[*phh.HandHistory]) {
	u, finished := c.m.flush()

	c.mu.Lock()
	if n := len(u.Frames); n > 0 {
		c.frames = u.Frames[n-1]
	}
	c.banks = c.m.timeBanks()
	c.mu.Unlock()

	for _, hand := range finished {
		records.push(hand, false)
	}
	if len(u.Frames) > 0 || u.Notice != nil {
		c.hub.publish(u)
	}
}

func (c *Controller) fail(err error) error {
	c.logger.Error("Table unavailable", "error", err)
	c.hub.publish(Update{
		Notice:      &Notice{Users: c.m.table.Users(), Message: "table unavailable"},
		Unavailable: true,
	})
	return err
}

// record passes completed hands to the recorder until records is closed and
// drained. A slow recorder only grows the backlog; the loop never waits.
func (c *Controller) record(ctx context.Context, records *queue[*phh.HandHistory]) {
	for {
		hand, ok := records.pop()
		if !ok {
			if records.drained() {
				return
			}
			<-records.ready
			continue
		}
		if c.recorder == nil {
			continue
		}
		if err := c.recorder.RecordHand(ctx, hand); err != nil {
			c.logger.Error("Failed to record hand", "hand", hand.HandID, "error", err)
		}
	}
}

// IsStopped reports whether err is an ordinary shutdown rather than a
// failure.
func IsStopped(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}
