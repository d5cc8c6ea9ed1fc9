package numerics

import (
	"fmt"
	"sort"

	"github.com/arkottke/sigmaspectra"
)

// epsilon bounds how far outside [x[0], x[n-1]] a query may fall before it
// is treated as out of range, per §4.1 ("more than machine epsilon"):
// float64 machine epsilon, 2^-52.
const epsilon = 0x1p-52

// Spline is a natural cubic spline interpolant over strictly increasing x.
type Spline struct {
	x, y    []float64
	b, c, d []float64
}

// NewSpline fits a natural cubic spline (zero second derivative at both
// endpoints) through the given strictly increasing x and paired y.
func NewSpline(x, y []float64) (*Spline, error) {
	n := len(x)
	if n < 2 || len(y) != n {
		return nil, fmt.Errorf("%w: spline requires at least 2 matched points", sigmaspectra.ErrInvalidInput)
	}
	for i := 1; i < n; i++ {
		if x[i] <= x[i-1] {
			return nil, fmt.Errorf("%w: spline x must be strictly increasing", sigmaspectra.ErrInvalidInput)
		}
	}

	h := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		h[i] = x[i+1] - x[i]
	}

	alpha := make([]float64, n)
	for i := 1; i < n-1; i++ {
		alpha[i] = 3*(y[i+1]-y[i])/h[i] - 3*(y[i]-y[i-1])/h[i-1]
	}

	l := make([]float64, n)
	mu := make([]float64, n)
	z := make([]float64, n)
	l[0] = 1

	for i := 1; i < n-1; i++ {
		l[i] = 2*(x[i+1]-x[i-1]) - h[i-1]*mu[i-1]
		mu[i] = h[i] / l[i]
		z[i] = (alpha[i] - h[i-1]*z[i-1]) / l[i]
	}
	l[n-1] = 1

	c := make([]float64, n)
	b := make([]float64, n)
	d := make([]float64, n)

	for j := n - 2; j >= 0; j-- {
		c[j] = z[j] - mu[j]*c[j+1]
		b[j] = (y[j+1]-y[j])/h[j] - h[j]*(c[j+1]+2*c[j])/3
		d[j] = (c[j+1] - c[j]) / (3 * h[j])
	}

	return &Spline{x: append([]float64(nil), x...), y: append([]float64(nil), y...), b: b, c: c, d: d}, nil
}

// At evaluates the spline at xq, returning ErrOutOfRange if xq falls
// outside [x[0], x[n-1]] by more than machine epsilon.
func (s *Spline) At(xq float64) (float64, error) {
	n := len(s.x)
	lo, hi := s.x[0], s.x[n-1]
	if xq < lo-epsilon || xq > hi+epsilon {
		return 0, fmt.Errorf("%w: %g outside [%g, %g]", sigmaspectra.ErrOutOfRange, xq, lo, hi)
	}

	// clamp a hair inside the domain so boundary floating error doesn't
	// push the search past the last segment.
	if xq < lo {
		xq = lo
	}
	if xq > hi {
		xq = hi
	}

	i := sort.SearchFloat64s(s.x, xq) - 1
	if i < 0 {
		i = 0
	}
	if i > n-2 {
		i = n - 2
	}

	dx := xq - s.x[i]
	return s.y[i] + s.b[i]*dx + s.c[i]*dx*dx + s.d[i]*dx*dx*dx, nil
}
