// Package shutdown coordinates stopping the dashboard's long-lived
// components within a bounded time.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout is the default graceful shutdown timeout.
const DefaultTimeout = 30 * time.Second

// ErrTimeout is returned when components are still stopping at the deadline.
var ErrTimeout = errors.New("shutdown timeout exceeded")

// Component is something that can be stopped gracefully.
type Component interface {
	Name() string
	Shutdown(ctx context.Context) error
}

// Func adapts a plain function to Component.
type Func struct {
	name string
	fn   func(ctx context.Context) error
}

// NewFunc creates a named Component from fn.
func NewFunc(name string, fn func(ctx context.Context) error) *Func {
	return &Func{name: name, fn: fn}
}

// Name returns the component name.
func (f *Func) Name() string { return f.name }

// Shutdown calls the wrapped function.
func (f *Func) Shutdown(ctx context.Context) error { return f.fn(ctx) }

// Coordinator stops registered components in reverse registration order.
type Coordinator struct {
	timeout time.Duration
	logger  *slog.Logger

	mu         sync.Mutex
	components []Component
	once       sync.Once
	err        error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout sets the shutdown timeout. Non-positive values are ignored.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator creates a new shutdown coordinator.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a component. Later registrations are stopped first, so
// register dependencies before their dependents.
func (c *Coordinator) Register(component Component) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components = append(c.components, component)
	c.logger.Debug("registered shutdown component", "name", component.Name())
}

// Shutdown stops every component, one at a time, under a single deadline.
// It runs once; later calls return the first result.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.once.Do(func() {
		c.err = c.shutdown(ctx)
	})
	return c.err
}

func (c *Coordinator) shutdown(ctx context.Context) error {
	c.logger.Info("initiating graceful shutdown", "timeout", c.timeout)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.mu.Lock()
	components := make([]Component, len(c.components))
	copy(components, c.components)
	c.mu.Unlock()

	var errs []error
	for i := len(components) - 1; i >= 0; i-- {
		comp := components[i]
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%s: %w", comp.Name(), ErrTimeout))
			continue
		}

		if err := comp.Shutdown(ctx); err != nil {
			if ctx.Err() != nil {
				err = fmt.Errorf("%w: %v", ErrTimeout, err)
			}
			c.logger.Error("component shutdown error", "name", comp.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", comp.Name(), err))
			continue
		}
		c.logger.Info("component shutdown complete", "name", comp.Name())
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	c.logger.Info("all components shut down successfully")
	return nil
}

// ExitCode maps a Shutdown result to a process exit code.
func ExitCode(err error) int {
	if err != nil {
		return 1
	}
	return 0
}
