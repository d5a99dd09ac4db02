package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// MockPinger is a mock implementation of the Pinger interface for testing.
type MockPinger struct {
	ShouldFail   bool
	Unconfigured bool
	Pings        int
}

func (m *MockPinger) Ping(ctx context.Context) error {
	m.Pings++
	if m.ShouldFail {
		return errors.New("mock ping failed")
	}
	return nil
}

func (m *MockPinger) Configured() bool { return !m.Unconfigured }

// SlowMockPinger is a mock pinger that introduces configurable delay.
type SlowMockPinger struct {
	Delay time.Duration
}

func (m *SlowMockPinger) Ping(ctx context.Context) error {
	select {
	case <-time.After(m.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// **Property 1: Health Check Reports Jenkins Connectivity**
// *For any* health check request, the response components SHALL include the
// jenkins component, and the overall status SHALL follow it.
func TestPropertyHealthCheckJenkinsVerification(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	genVersion := gen.RegexMatch("v?[0-9]+\\.[0-9]+\\.[0-9]+")

	properties.Property("component status matches ping result", prop.ForAll(
		func(version string, healthy bool) bool {
			checker := NewChecker(version)
			checker.Register("jenkins", &MockPinger{ShouldFail: !healthy})

			response := checker.Check(context.Background())

			status, ok := response.Components["jenkins"]
			if !ok {
				t.Log("Response missing 'jenkins' component")
				return false
			}

			want := StatusHealthy
			if !healthy {
				want = StatusUnhealthy
			}
			if status.Status != want || response.Status != want {
				t.Logf("component %s overall %s, want %s", status.Status, response.Status, want)
				return false
			}
			return response.Version == version
		},
		genVersion,
		gen.Bool(),
	))

	properties.Property("HTTP status reflects overall health", prop.ForAll(
		func(version string, healthy bool) bool {
			checker := NewChecker(version)
			checker.Register("jenkins", &MockPinger{ShouldFail: !healthy})

			rr := httptest.NewRecorder()
			checker.Handler()(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			var response map[string]any
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				t.Logf("Failed to decode response: %v", err)
				return false
			}
			if _, ok := response["components"].(map[string]any)["jenkins"]; !ok {
				return false
			}

			if healthy {
				return rr.Code == http.StatusOK
			}
			return rr.Code == http.StatusServiceUnavailable
		},
		genVersion,
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestUnconfiguredComponentIsDegraded(t *testing.T) {
	pinger := &MockPinger{Unconfigured: true}
	checker := NewChecker("dev")
	checker.Register("jenkins", pinger)

	response := checker.Check(context.Background())

	if response.Status != StatusDegraded {
		t.Errorf("Status = %s, want degraded", response.Status)
	}
	if response.Components["jenkins"].Message != "credentials not configured" {
		t.Errorf("Message = %q", response.Components["jenkins"].Message)
	}
	if pinger.Pings != 0 {
		t.Errorf("unconfigured component was pinged %d times", pinger.Pings)
	}

	rr := httptest.NewRecorder()
	checker.Handler()(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("degraded status code = %d, want 200", rr.Code)
	}
}

func TestNilPingerIsUnhealthy(t *testing.T) {
	checker := NewChecker("dev")
	checker.Register("jenkins", nil)

	if got := checker.Check(context.Background()).Status; got != StatusUnhealthy {
		t.Errorf("Status = %s, want unhealthy", got)
	}
}

func TestNoComponentsIsHealthy(t *testing.T) {
	response := NewChecker("dev").Check(context.Background())
	if response.Status != StatusHealthy || len(response.Components) != 0 {
		t.Errorf("response = %+v", response)
	}
}

// **Property 2: Health Check Response Time**
// *For any* slow component, the check SHALL return within the configured timeout.
func TestPropertyHealthCheckResponseTime(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	genFastDelay := gen.Int64Range(0, 20).Map(func(ms int64) time.Duration {
		return time.Duration(ms) * time.Millisecond
	})

	properties.Property("fast components are healthy", prop.ForAll(
		func(delay time.Duration) bool {
			checker := NewChecker("dev")
			checker.Register("jenkins", &SlowMockPinger{Delay: delay})
			checker.SetTimeout(time.Second)

			return checker.Check(context.Background()).Components["jenkins"].Status == StatusHealthy
		},
		genFastDelay,
	))

	properties.Property("slow components time out as unhealthy", prop.ForAll(
		func(version string) bool {
			checker := NewChecker(version)
			checker.Register("jenkins", &SlowMockPinger{Delay: 10 * time.Second})
			checker.SetTimeout(50 * time.Millisecond)

			start := time.Now()
			response := checker.Check(context.Background())
			if time.Since(start) > 500*time.Millisecond {
				return false
			}
			return response.Components["jenkins"].Status == StatusUnhealthy
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
