package shutdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) component(name string, delay time.Duration, err error) Component {
	return NewFunc(name, func(ctx context.Context) error {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		r.mu.Lock()
		r.order = append(r.order, name)
		r.mu.Unlock()
		return err
	})
}

func TestShutdownReverseOrder(t *testing.T) {
	rec := &recorder{}
	c := NewCoordinator(WithTimeout(time.Second))
	c.Register(rec.component("notifications", 0, nil))
	c.Register(rec.component("api", 0, nil))

	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if len(rec.order) != 2 || rec.order[0] != "api" || rec.order[1] != "notifications" {
		t.Errorf("order = %v, want [api notifications]", rec.order)
	}
	if ExitCode(nil) != 0 {
		t.Error("ExitCode(nil) != 0")
	}
}

func TestShutdownCollectsErrors(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")
	c := NewCoordinator(WithTimeout(time.Second))
	c.Register(rec.component("a", 0, nil))
	c.Register(rec.component("b", 0, boom))

	err := c.Shutdown(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}
	if len(rec.order) != 2 {
		t.Errorf("a failing component must not stop the rest: %v", rec.order)
	}
	if ExitCode(err) != 1 {
		t.Error("ExitCode should be 1 on failure")
	}
}

func TestShutdownRunsOnce(t *testing.T) {
	rec := &recorder{}
	c := NewCoordinator()
	c.Register(rec.component("api", 0, nil))

	c.Shutdown(context.Background())
	c.Shutdown(context.Background())

	if len(rec.order) != 1 {
		t.Errorf("component stopped %d times, want 1", len(rec.order))
	}
}

// **Property 1: Shutdown honours its deadline**
// *For any* component slower than the timeout, Shutdown SHALL return
// ErrTimeout shortly after the deadline instead of waiting for it.
func TestPropertyShutdownDeadline(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	genTimeout := gen.Int64Range(10, 50).Map(func(ms int64) time.Duration {
		return time.Duration(ms) * time.Millisecond
	})

	properties.Property("slow components time out", prop.ForAll(
		func(timeout time.Duration) bool {
			rec := &recorder{}
			c := NewCoordinator(WithTimeout(timeout))
			c.Register(rec.component("queue", 0, nil))
			c.Register(rec.component("api", 10*time.Second, nil))

			start := time.Now()
			err := c.Shutdown(context.Background())
			elapsed := time.Since(start)

			return errors.Is(err, ErrTimeout) && elapsed < timeout+500*time.Millisecond
		},
		genTimeout,
	))

	properties.TestingRun(t)
}
