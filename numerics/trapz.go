package numerics

// CumTrapz computes the cumulative trapezoidal integral of f sampled at a
// uniform step dt, with an optional linear scale applied to each sample
// (e.g. g-to-cm/s^2 conversion). G[0] = 0; G[i] = G[i-1] + scale*dt*
// (f[i]+f[i-1])/2.
func CumTrapz(f []float64, dt, scale float64) []float64 {
	g := make([]float64, len(f))
	for i := 1; i < len(f); i++ {
		g[i] = g[i-1] + scale*dt*(f[i]+f[i-1])/2
	}
	return g
}
