package numerics

import (
	"math"
	"testing"
)

func TestNextPow2(t *testing.T) {
	cases := map[int]int{0: 1, 1: 1, 2: 2, 3: 4, 5: 8, 16: 16, 17: 32}
	for in, want := range cases {
		if got := NextPow2(in); got != want {
			t.Errorf("NextPow2(%d) = %d, want %d", in, got, want)
		}
	}
}

// TestForwardInverseRoundTrip exercises invariant 4 of §8: fft then ifft
// on a real signal, zero-padded to the next power of two, returns the
// original samples within 1e-10 absolute.
func TestForwardInverseRoundTrip(t *testing.T) {
	n := 37
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(0.3*float64(i)) + 0.5*math.Cos(0.7*float64(i))
	}

	padded := NextPow2(n)
	half := Forward(x)
	y := Inverse(half, padded)

	for i := 0; i < n; i++ {
		if diff := math.Abs(y[i] - x[i]); diff > 1e-10 {
			t.Errorf("sample %d: got %.12f want %.12f (diff %.2e)", i, y[i], x[i], diff)
		}
	}
}

func TestForwardHalfSpectrumLength(t *testing.T) {
	x := make([]float64, 10)
	half := Forward(x)
	n := NextPow2(len(x))
	if len(half) != n/2 {
		t.Fatalf("half spectrum length = %d, want %d", len(half), n/2)
	}
}
