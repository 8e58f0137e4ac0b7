package polling

import (
	"testing"
	"time"
)

func testPolicy() Policy {
	return Policy{
		Default: 30 * time.Second,
		Minimum: time.Second,
		Ceiling: 60 * time.Second,
		Factor:  2,
	}
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}

func TestExpectedInterval(t *testing.T) {
	p := testPolicy()

	tests := []struct {
		name     string
		ttl      *time.Duration
		expected time.Duration
	}{
		{"no ttl falls back to default", nil, 30 * time.Second},
		{"ttl wins over default", durationPtr(5 * time.Second), 5 * time.Second},
		{"ttl above ceiling is clamped", durationPtr(10 * time.Minute), 60 * time.Second},
		{"zero ttl is raised to minimum", durationPtr(0), time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.ExpectedInterval(State{TTL: tt.ttl})
			if got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestInitial(t *testing.T) {
	p := testPolicy()

	s := p.Initial(nil)
	if s.Interval != 30*time.Second {
		t.Errorf("Expected initial interval 30s, got %v", s.Interval)
	}

	s = p.Initial(durationPtr(5 * time.Second))
	if s.Interval != 5*time.Second {
		t.Errorf("Expected initial interval 5s, got %v", s.Interval)
	}
	if s.TTL == nil || *s.TTL != 5*time.Second {
		t.Errorf("Expected ttl to be carried, got %v", s.TTL)
	}
}

func TestOnFailureBackoffBoundedByCeiling(t *testing.T) {
	p := testPolicy()
	s := State{Interval: 10 * time.Second}

	expected := []time.Duration{20 * time.Second, 40 * time.Second, 60 * time.Second, 60 * time.Second}
	for i, want := range expected {
		s = p.OnFailure(s)
		if s.Interval != want {
			t.Fatalf("Failure %d: expected %v, got %v", i+1, want, s.Interval)
		}
	}
}

func TestOnFailureFromZeroInterval(t *testing.T) {
	p := testPolicy()

	s := p.OnFailure(State{TTL: durationPtr(5 * time.Second)})
	if s.Interval != 10*time.Second {
		t.Errorf("Expected 10s, got %v", s.Interval)
	}
}

func TestOnSuccessResetsBackoff(t *testing.T) {
	p := testPolicy()
	s := State{Interval: 60 * time.Second, TTL: durationPtr(5 * time.Second)}

	s = p.OnSuccess(s)
	if s.Interval != 5*time.Second {
		t.Fatalf("Expected reset to 5s, got %v", s.Interval)
	}

	s = p.OnSuccess(s)
	if s.Interval != 5*time.Second {
		t.Errorf("Expected interval to stay at 5s, got %v", s.Interval)
	}
}

func TestOnSuccessDoesNotShrinkInterval(t *testing.T) {
	p := testPolicy()
	s := State{Interval: 3 * time.Second, TTL: durationPtr(5 * time.Second)}

	s = p.OnSuccess(s)
	if s.Interval != 3*time.Second {
		t.Errorf("Expected interval to stay at 3s, got %v", s.Interval)
	}
}

func TestFailureThenSuccess(t *testing.T) {
	p := testPolicy()
	s := p.Initial(nil)

	s = p.OnFailure(s)
	if s.Interval != 60*time.Second {
		t.Fatalf("Expected 60s after failure, got %v", s.Interval)
	}

	s = p.OnSuccess(s)
	if s.Interval != 30*time.Second {
		t.Errorf("Expected default 30s after success, got %v", s.Interval)
	}
}

func TestValidate(t *testing.T) {
	if err := testPolicy().Validate(); err != nil {
		t.Fatalf("Expected valid policy, got: %v", err)
	}

	invalid := []Policy{
		{Default: time.Minute, Minimum: time.Second, Ceiling: time.Hour, Factor: 1},
		{Default: time.Minute, Minimum: 0, Ceiling: time.Hour, Factor: 2},
		{Default: time.Minute, Minimum: time.Hour, Ceiling: time.Minute, Factor: 2},
		{Default: 0, Minimum: time.Second, Ceiling: time.Hour, Factor: 2},
		{Default: time.Minute, Minimum: 500 * time.Millisecond, Ceiling: time.Hour, Factor: 2},
		{Default: time.Minute, Minimum: 1500 * time.Millisecond, Ceiling: time.Hour, Factor: 2},
		{Default: time.Minute, Minimum: time.Second, Ceiling: time.Hour + time.Millisecond, Factor: 2},
	}
	for i, p := range invalid {
		if err := p.Validate(); err == nil {
			t.Errorf("Policy %d: expected validation error", i)
		}
	}
}
