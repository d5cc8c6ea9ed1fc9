package numerics

import "math"

// LnFactorial returns an approximation of ln(n!) via Ramanujan's formula,
// usable for n up to a few hundred. It is accurate to a handful of
// significant figures, which is adequate for the informational trial-count
// estimates it feeds (§4.1, §9 Open Question 3) and is not used on any
// correctness-affecting path.
func LnFactorial(n float64) float64 {
	if n <= 1 {
		return 0
	}
	term := 8*n*n*n + 4*n*n + n + 1.0/30.0
	return 0.5*math.Log(math.Pi) + n*math.Log(n/math.E) + math.Log(term)/6
}

// Factorial returns the Ramanujan approximation of n!.
func Factorial(n float64) float64 {
	return math.Exp(LnFactorial(n))
}

// Binomial returns an approximation of C(n, k), the number of k-combinations
// of n items, via LnFactorial. Used only to estimate seed_count for ETA
// display (§4.6, §9 Open Question 3); not exact for large n.
func Binomial(n, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	ln := LnFactorial(float64(n)) - LnFactorial(float64(k)) - LnFactorial(float64(n-k))
	return math.Exp(ln)
}
