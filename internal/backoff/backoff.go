package backoff

import (
	"math"
	"math/rand"
)

// Supported policy names. Unknown names fall back to exp_full_jitter.
const (
	PolicyFixed          = "fixed"
	PolicyLinear         = "linear"
	PolicyExponential    = "exponential"
	PolicyExpEqualJitter = "exp_equal_jitter"
	PolicyExpFullJitter  = "exp_full_jitter"
)

// Strategy describes how retry delays grow between attempts.
type Strategy struct {
	Policy      string
	BaseSeconds int
	MaxSeconds  int
}

// Delay returns the wait in seconds before retrying after the given number
// of failed attempts. attempts is expected to be >= 0.
func (s Strategy) Delay(attempts int, rng *rand.Rand) int {
	if attempts < 0 {
		attempts = 0
	}
	base := s.BaseSeconds
	if base <= 0 {
		base = 1
	}
	max := s.MaxSeconds
	if max <= 0 {
		max = base
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	switch s.Policy {
	case PolicyFixed:
		return minInt(base, max)
	case PolicyLinear:
		return minInt(base*maxInt(1, attempts), max)
	case PolicyExponential:
		return capped(base, max, attempts)
	case PolicyExpEqualJitter:
		ceiling := capped(base, max, attempts)
		half := ceiling / 2
		return half + rng.Intn(half+1)
	default: // exp_full_jitter
		ceiling := capped(base, max, attempts)
		if ceiling <= 0 {
			return 0
		}
		return rng.Intn(ceiling + 1)
	}
}

func capped(base, max, attempts int) int {
	return minInt(int(float64(base)*math.Pow(2, float64(attempts))), max)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
