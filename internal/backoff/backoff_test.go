package backoff

import (
	"math/rand"
	"testing"
)

func TestFixedDelay(t *testing.T) {
	s := Strategy{Policy: PolicyFixed, BaseSeconds: 5, MaxSeconds: 60}
	for attempts := 0; attempts < 6; attempts++ {
		if d := s.Delay(attempts, nil); d != 5 {
			t.Errorf("attempts=%d delay=%d, want 5", attempts, d)
		}
	}
}

func TestFixedDelayCappedByMax(t *testing.T) {
	s := Strategy{Policy: PolicyFixed, BaseSeconds: 90, MaxSeconds: 60}
	if d := s.Delay(1, nil); d != 60 {
		t.Errorf("delay=%d, want 60", d)
	}
}

func TestLinearDelay(t *testing.T) {
	s := Strategy{Policy: PolicyLinear, BaseSeconds: 3, MaxSeconds: 10}
	cases := []struct {
		attempts int
		want     int
	}{
		{0, 3},
		{1, 3},
		{2, 6},
		{3, 9},
		{4, 10}, // capped
	}
	for _, tc := range cases {
		if d := s.Delay(tc.attempts, nil); d != tc.want {
			t.Errorf("attempts=%d delay=%d, want %d", tc.attempts, d, tc.want)
		}
	}
}

func TestExponentialDelay(t *testing.T) {
	s := Strategy{Policy: PolicyExponential, BaseSeconds: 2, MaxSeconds: 30}
	cases := []struct {
		attempts int
		want     int
	}{
		{0, 2},
		{1, 4},
		{2, 8},
		{3, 16},
		{4, 30}, // capped
		{10, 30},
	}
	for _, tc := range cases {
		if d := s.Delay(tc.attempts, nil); d != tc.want {
			t.Errorf("attempts=%d delay=%d, want %d", tc.attempts, d, tc.want)
		}
	}
}

func TestEqualJitterStaysInUpperHalf(t *testing.T) {
	s := Strategy{Policy: PolicyExpEqualJitter, BaseSeconds: 2, MaxSeconds: 64}
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		attempts := i % 6
		ceiling := capped(2, 64, attempts)
		d := s.Delay(attempts, rng)
		if d < ceiling/2 || d > ceiling {
			t.Fatalf("attempts=%d delay=%d outside [%d,%d]", attempts, d, ceiling/2, ceiling)
		}
	}
}

func TestFullJitterStaysInRange(t *testing.T) {
	s := Strategy{Policy: PolicyExpFullJitter, BaseSeconds: 2, MaxSeconds: 64}
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		attempts := i % 6
		ceiling := capped(2, 64, attempts)
		d := s.Delay(attempts, rng)
		if d < 0 || d > ceiling {
			t.Fatalf("attempts=%d delay=%d outside [0,%d]", attempts, d, ceiling)
		}
	}
}

func TestUnknownPolicyFallsBackToFullJitter(t *testing.T) {
	s := Strategy{Policy: "bogus", BaseSeconds: 2, MaxSeconds: 8}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		d := s.Delay(2, rng)
		if d < 0 || d > 8 {
			t.Fatalf("delay=%d outside [0,8]", d)
		}
	}
}

func TestDefaultsForInvalidInputs(t *testing.T) {
	s := Strategy{Policy: PolicyFixed}
	if d := s.Delay(-3, nil); d != 1 {
		t.Errorf("delay=%d, want 1", d)
	}
}
