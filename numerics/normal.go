package numerics

import "gonum.org/v1/gonum/stat/distuv"

// standardNormal is the N(0,1) distribution used for the centroid
// calculation in the suite package. gonum's CDF/Quantile comfortably
// clear the 1e-6 tail accuracy §4.1 requires.
var standardNormal = distuv.Normal{Mu: 0, Sigma: 1}

// StdNormalCDF returns Phi(x), the standard normal cumulative distribution
// function.
func StdNormalCDF(x float64) float64 {
	return standardNormal.CDF(x)
}

// StdNormalQuantile returns Phi^-1(p), the standard normal inverse CDF,
// for p in (0, 1).
func StdNormalQuantile(p float64) float64 {
	return standardNormal.Quantile(p)
}

// StdNormalPDF returns phi(x), the standard normal density. The centroid
// integration in the suite package uses StdNormalCDF and StdNormalQuantile,
// not this function.
func StdNormalPDF(x float64) float64 {
	return standardNormal.Prob(x)
}
