package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func breakerCall(cb *CircuitBreaker, err error) error {
	_, got := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		return 0, err
	})
	return got
}

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := NewCircuitBreaker("tavily", CircuitBreakerConfig{})

	if got := cb.State(); got != CircuitClosed {
		t.Errorf("State() = %v, want %v", got, CircuitClosed)
	}

	val, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("ExecuteVal() error = %v", err)
	}
	if val != "ok" {
		t.Errorf("ExecuteVal() = %q, want %q", val, "ok")
	}
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker("tavily", CircuitBreakerConfig{FailureThreshold: 3})
	boom := errors.New("upstream down")

	for i := 0; i < 3; i++ {
		if err := breakerCall(cb, boom); !errors.Is(err, boom) {
			t.Fatalf("call %d error = %v, want %v", i, err, boom)
		}
	}

	if got := cb.State(); got != CircuitOpen {
		t.Errorf("State() after 3 failures = %v, want %v", got, CircuitOpen)
	}

	// Open circuit rejects without invoking the function.
	called := false
	_, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		called = true
		return 0, nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("ExecuteVal() error = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("function was invoked while the circuit was open")
	}
}

func TestCircuitBreaker_StaysClosedBelowThreshold(t *testing.T) {
	cb := NewCircuitBreaker("scrapegraph", CircuitBreakerConfig{FailureThreshold: 3})
	boom := errors.New("upstream down")

	_ = breakerCall(cb, boom)
	_ = breakerCall(cb, boom)

	if got := cb.State(); got != CircuitClosed {
		t.Errorf("State() = %v, want %v", got, CircuitClosed)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("scrapegraph", CircuitBreakerConfig{FailureThreshold: 3})
	boom := errors.New("upstream down")

	_ = breakerCall(cb, boom)
	_ = breakerCall(cb, boom)
	_ = breakerCall(cb, nil)
	_ = breakerCall(cb, boom)
	_ = breakerCall(cb, boom)

	// Four failures total, but never three in a row.
	if got := cb.State(); got != CircuitClosed {
		t.Errorf("State() = %v, want %v", got, CircuitClosed)
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("anthropic", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Second,
	})
	cb.nowFunc = func() time.Time { return now }

	_ = breakerCall(cb, errors.New("upstream down"))
	if got := cb.State(); got != CircuitOpen {
		t.Fatalf("State() = %v, want %v", got, CircuitOpen)
	}

	now = now.Add(9 * time.Second)
	if err := breakerCall(cb, nil); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("before timeout: error = %v, want ErrCircuitOpen", err)
	}

	now = now.Add(2 * time.Second)
	if got := cb.State(); got != CircuitHalfOpen {
		t.Errorf("State() after timeout = %v, want %v", got, CircuitHalfOpen)
	}
}

func TestCircuitBreaker_TrialSuccessCloses(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("anthropic", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Second,
	})
	cb.nowFunc = func() time.Time { return now }

	_ = breakerCall(cb, errors.New("upstream down"))
	now = now.Add(11 * time.Second)

	if err := breakerCall(cb, nil); err != nil {
		t.Fatalf("trial request error = %v", err)
	}
	if got := cb.State(); got != CircuitClosed {
		t.Errorf("State() after successful trial request = %v, want %v", got, CircuitClosed)
	}
}

func TestCircuitBreaker_TrialFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("tavily", CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     10 * time.Second,
	})
	cb.nowFunc = func() time.Time { return now }

	boom := errors.New("upstream down")
	for i := 0; i < 3; i++ {
		_ = breakerCall(cb, boom)
	}
	now = now.Add(11 * time.Second)

	// The trial request fails, so the circuit reopens without waiting for
	// the threshold again.
	if err := breakerCall(cb, boom); !errors.Is(err, boom) {
		t.Fatalf("trial request error = %v, want %v", err, boom)
	}
	if err := breakerCall(cb, nil); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("after failed trial request: error = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_ConcurrentCalls(t *testing.T) {
	cb := NewCircuitBreaker("tavily", CircuitBreakerConfig{FailureThreshold: 50})
	boom := errors.New("upstream down")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = breakerCall(cb, boom)
			} else {
				_ = breakerCall(cb, nil)
			}
		}(i)
	}
	wg.Wait()

	if got := cb.State(); got != CircuitClosed {
		t.Errorf("State() = %v, want %v", got, CircuitClosed)
	}
}

func TestServiceBreakers_OnePerService(t *testing.T) {
	sb := NewServiceBreakers(CircuitBreakerConfig{FailureThreshold: 2})

	tavily := sb.Get("tavily")
	if again := sb.Get("tavily"); again != tavily {
		t.Error("Get() returned a different breaker for the same service")
	}
	if other := sb.Get("anthropic"); other == tavily {
		t.Error("Get() shared one breaker across services")
	}
}

func TestServiceBreakers_IsolatesFailures(t *testing.T) {
	sb := NewServiceBreakers(CircuitBreakerConfig{FailureThreshold: 1})

	_ = breakerCall(sb.Get("tavily"), errors.New("upstream down"))

	if got := sb.Get("tavily").State(); got != CircuitOpen {
		t.Errorf("tavily State() = %v, want %v", got, CircuitOpen)
	}
	if got := sb.Get("anthropic").State(); got != CircuitClosed {
		t.Errorf("anthropic State() = %v, want %v", got, CircuitClosed)
	}
}
