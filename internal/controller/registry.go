package controller

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	ErrAlreadyRunning = errors.New("controller already running")
	ErrNotRunning     = errors.New("controller not running")
)

type running struct {
	c      *Controller
	cancel context.CancelFunc
}

// Registry tracks the running controllers by name.
type Registry struct {
	mu      sync.RWMutex
	running map[string]*running
	logger  *log.Logger
}

func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{
		running: make(map[string]*running),
		logger:  logger.WithPrefix("registry"),
	}
}

// Start runs c under name until it stops or ctx is cancelled.
func (r *Registry) Start(ctx context.Context, name string, c *Controller) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.running[name]; ok {
		return fmt.Errorf("%s: %w", name, ErrAlreadyRunning)
	}

	ctx, cancel := context.WithCancel(ctx)
	entry := &running{c: c, cancel: cancel}
	r.running[name] = entry

	go func() {
		defer cancel()
		err := c.Run(ctx)
		if !IsStopped(err) {
			r.logger.Error("Controller failed", "table", name, "error", err)
		}

		r.mu.Lock()
		if r.running[name] == entry {
			delete(r.running, name)
		}
		r.mu.Unlock()
	}()
	r.logger.Info("Started controller", "table", name)
	return nil
}

// Stop terminates the named controller and waits for it to finish.
func (r *Registry) Stop(name string) (*Controller, error) {
	r.mu.Lock()
	entry, ok := r.running[name]
	delete(r.running, name)
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotRunning)
	}

	if err := entry.c.Terminate(); err != nil {
		entry.cancel()
	}
	<-entry.c.Done()
	entry.cancel()
	r.logger.Info("Stopped controller", "table", name)
	return entry.c, nil
}

// Lookup returns the controller running under name.
func (r *Registry) Lookup(name string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.running[name]
	if !ok {
		return nil, false
	}
	return entry.c, true
}

// Names returns the running controller names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.running))
	for name := range r.running {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// StopAll stops every running controller.
func (r *Registry) StopAll() {
	for _, name := range r.Names() {
		if _, err := r.Stop(name); err != nil {
			r.logger.Warn("Failed to stop controller", "table", name, "error", err)
		}
	}
}
