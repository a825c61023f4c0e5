package reconnect

import (
	"testing"
	"time"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	if p.BaseDelay != 3*time.Second {
		t.Errorf("BaseDelay = %v, want 3s", p.BaseDelay)
	}
	if p.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", p.MaxAttempts)
	}
}

func TestPolicy_DelayIsLinear(t *testing.T) {
	p := DefaultPolicy()

	var prev time.Duration
	for a := 1; a <= p.MaxAttempts; a++ {
		got := p.Delay(a)
		want := p.BaseDelay * time.Duration(a)
		if got != want {
			t.Errorf("Delay(%d) = %v, want %v", a, got, want)
		}
		if got <= prev {
			t.Errorf("Delay(%d) = %v, not greater than Delay(%d) = %v", a, got, a-1, prev)
		}
		prev = got
	}
}

func TestPolicy_DelayBelowOne(t *testing.T) {
	p := DefaultPolicy()

	for _, a := range []int{0, -1, -10} {
		if got := p.Delay(a); got != 0 {
			t.Errorf("Delay(%d) = %v, want 0", a, got)
		}
	}
}

func TestPolicy_Exhausted(t *testing.T) {
	tests := []struct {
		attempt int
		want    bool
	}{
		{0, false},
		{1, false},
		{4, false},
		{5, true},
		{6, true},
	}

	p := DefaultPolicy()
	for _, tt := range tests {
		if got := p.Exhausted(tt.attempt); got != tt.want {
			t.Errorf("Exhausted(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestPolicy_Total(t *testing.T) {
	// 3000 + 6000 + 9000 + 12000 + 15000 ms
	if got := DefaultPolicy().Total(); got != 45*time.Second {
		t.Errorf("Total() = %v, want 45s", got)
	}

	custom := Policy{BaseDelay: 10 * time.Millisecond, MaxAttempts: 3}
	if got := custom.Total(); got != 60*time.Millisecond {
		t.Errorf("Total() = %v, want 60ms", got)
	}
}
