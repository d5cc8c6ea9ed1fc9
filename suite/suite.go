// Package suite implements Suite (C5): the running ln-average aggregate,
// the shifted-RMSE error metric, membership validity, and the per-motion
// scalar finalization that matches a suite's realized ln-sigma(T) to a
// target ln-sigma(T).
package suite

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/arkottke/sigmaspectra"
	"github.com/arkottke/sigmaspectra/motion"
	"github.com/arkottke/sigmaspectra/numerics"
	"github.com/arkottke/sigmaspectra/target"
)

// centroidSlices is the number of trapezoid slices used to integrate each
// member's probability-weighted normal centroid (§4.5 step 2).
const centroidSlices = 20

// epsMin bounds the outermost probability slice away from 0 and 1 so the
// standard-normal quantile stays finite (§4.5 step 2).
const epsMin = 1e-6

// Suite is an ordered accumulation of motions with a running ln-average
// response spectrum, finalized scalars, and realized ln-sigma (§3, §4.5).
type Suite struct {
	members []motion.Motion
	lnAvg   []float64

	scalars []float64
	lnStd   []float64

	medianRMSE   float64
	medianMaxPct float64
	stdevRMSE    float64
	sigmaInf     float64

	rank    int
	enabled bool
}

// New returns an empty suite.
func New() *Suite {
	return &Suite{enabled: true}
}

// Members returns the suite's motions in their current order: insertion
// order until ComputeScalars re-sorts alphabetically by name (§5).
func (s *Suite) Members() []motion.Motion { return s.members }

// LnAvg returns the running (or, after ComputeScalars, finalized)
// per-period ln-average.
func (s *Suite) LnAvg() []float64 { return s.lnAvg }

func (s *Suite) Scalars() []float64      { return s.scalars }
func (s *Suite) LnStd() []float64        { return s.lnStd }
func (s *Suite) MedianRMSE() float64     { return s.medianRMSE }

// SetMedianRMSE records a provisional median RMSE against a target ahead of
// ComputeScalars, so a retention structure comparing candidates mid-search
// has a meaningful ranking signal rather than the zero value (§4.6 Best-K
// maintenance). ComputeScalars overwrites this with the final, post-scaling
// value.
func (s *Suite) SetMedianRMSE(rmse float64) { s.medianRMSE = rmse }
func (s *Suite) MedianMaxPct() float64   { return s.medianMaxPct }
func (s *Suite) StdevRMSE() float64      { return s.stdevRMSE }
func (s *Suite) SigmaInf() float64       { return s.sigmaInf }
func (s *Suite) Rank() int               { return s.rank }
func (s *Suite) SetRank(r int)           { s.rank = r }
func (s *Suite) Enabled() bool           { return s.enabled }
func (s *Suite) SetEnabled(enabled bool) { s.enabled = enabled }
func (s *Suite) Len() int                { return len(s.members) }

// Contains reports whether m is already a member of s, by identity.
func (s *Suite) Contains(m motion.Motion) bool {
	return lo.ContainsBy(s.members, func(mem motion.Motion) bool { return mem == m })
}

// IsAddable reports whether m may be appended to s: m is not Disabled, is
// not already a member, and (if onePerStation) no current member shares
// m's station (§4.5).
func (s *Suite) IsAddable(m motion.Motion, onePerStation bool) bool {
	if m.Flag() == motion.Disabled {
		return false
	}
	if s.Contains(m) {
		return false
	}
	if onePerStation && lo.SomeBy(s.members, func(mem motion.Motion) bool { return mem.Station() == m.Station() }) {
		return false
	}
	return true
}

// Append adds m to the suite and updates the running ln-average in place
// (§4.5): the first motion sets ln_avg = M.ln_sa; thereafter ln_avg[j] <-
// ln_avg[j]*(n-1)/n + M.ln_sa[j]/n.
func (s *Suite) Append(m motion.Motion) {
	n := len(s.members) + 1
	if len(s.lnAvg) == 0 {
		s.lnAvg = append([]float64(nil), m.LnSa()...)
	} else {
		BlendInPlace(s.lnAvg, n, m.LnSa())
	}
	s.members = append(s.members, m)
}

// BlendInPlace updates current (length P, the running ln-average for a
// suite about to reach size n) with the contribution of add, the n-th
// member's ln_sa. It mutates current; the search engine prices a
// hypothetical addition through Blend, which applies it to a copy.
func BlendInPlace(current []float64, n int, add []float64) {
	for j := range current {
		current[j] = current[j]*float64(n-1)/float64(n) + add[j]/float64(n)
	}
}

// Blend returns the hypothetical ln-average if add were appended to a
// suite of size n-1 with running average current, without mutating
// current.
func Blend(current []float64, n int, add []float64) []float64 {
	if n == 1 {
		return append([]float64(nil), add...)
	}
	out := append([]float64(nil), current...)
	BlendInPlace(out, n, add)
	return out
}

// MedianError computes the optimally-vertically-shifted RMSE between vec
// and ref in log space, and the corresponding maximum percent error in
// linear space (§4.5): with d[j] = ref[j]-vec[j] and c = mean(d),
// rmse = sqrt(mean_j (c+vec[j]-ref[j])^2).
func MedianError(vec, ref []float64) (rmse, maxPct float64) {
	n := len(vec)
	d := make([]float64, n)
	for j := range vec {
		d[j] = ref[j] - vec[j]
	}
	c := floats.Sum(d) / float64(n)

	sqDiff := make([]float64, n)
	for j := range vec {
		diff := c + vec[j] - ref[j]
		sqDiff[j] = diff * diff

		pct := 100 * math.Abs(math.Exp(c+vec[j])-math.Exp(ref[j])) / math.Exp(ref[j])
		if pct > maxPct {
			maxPct = pct
		}
	}
	rmse = math.Sqrt(floats.Sum(sqDiff) / float64(n))
	return rmse, maxPct
}

// IdentityKey returns an order-independent fingerprint of the suite's
// membership, used by the search engine to detect duplicate suites
// regardless of growth order (§4.6).
func (s *Suite) IdentityKey() string {
	names := make([]string, len(s.members))
	for i, m := range s.members {
		names[i] = m.Event() + "/" + m.Station() + "/" + m.Name()
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

// Validate reports whether a finished suite of the given target size
// satisfies the library-wide constraints of §4.5: exact size, at least
// minRequested Requested members, every Required motion present, and (if
// onePerStation) distinct stations.
func (s *Suite) Validate(size, minRequested int, required []motion.Motion, onePerStation bool) error {
	if len(s.members) != size {
		return fmt.Errorf("%w: suite has %d members, want %d", sigmaspectra.ErrInvalidInput, len(s.members), size)
	}

	requestedCount := lo.CountBy(s.members, func(m motion.Motion) bool { return m.Flag() == motion.Requested })
	if requestedCount < minRequested {
		return fmt.Errorf("%w: suite has %d requested members, want at least %d", sigmaspectra.ErrInvalidInput, requestedCount, minRequested)
	}

	for _, req := range required {
		if !s.Contains(req) {
			return fmt.Errorf("%w: suite is missing required motion %s", sigmaspectra.ErrInvalidInput, req.Name())
		}
	}

	if onePerStation {
		stations := lo.Map(s.members, func(m motion.Motion, _ int) string { return m.Station() })
		if len(lo.Uniq(stations)) != len(stations) {
			return fmt.Errorf("%w: suite has more than one motion per station", sigmaspectra.ErrInvalidInput)
		}
	}

	return nil
}

// ComputeScalars finalizes per-motion scalars against tgt, following the
// five-step procedure of §4.5: sort by avg ln-Sa, assign each motion a
// normal-distribution centroid, choose a sigma-inflation factor by 1-D
// line search, assign scalars and realized ln-std at that factor, then
// re-sort alphabetically by name for stable output.
func (s *Suite) ComputeScalars(tgt *target.Spectrum) error {
	m := len(s.members)
	if m == 0 {
		return fmt.Errorf("%w: cannot compute scalars for an empty suite", sigmaspectra.ErrInvalidInput)
	}

	sorted := append([]motion.Motion(nil), s.members...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].AvgLnSa() < sorted[j].AvgLnSa() })

	centroids := centroidsFor(m)

	lnSigmaTarget := tgt.LnSigma()
	fixSigma := lo.ContainsBy(lnSigmaTarget, func(v float64) bool { return v == 0 })

	var bestSigma, bestObjective float64
	var bestScalars, bestLnAvg, bestLnStd []float64

	if fixSigma {
		bestSigma = 1.0
		bestScalars, bestLnAvg, bestLnStd, bestObjective = evaluateSigma(bestSigma, sorted, centroids, tgt)
	} else {
		bestObjective = math.Inf(1)
		for i := 10; i <= 299; i++ {
			sigma := float64(i) / 100.0
			scalars, lnAvg, lnStd, objective := evaluateSigma(sigma, sorted, centroids, tgt)
			if objective < bestObjective {
				bestObjective = objective
				bestSigma = sigma
				bestScalars, bestLnAvg, bestLnStd = scalars, lnAvg, lnStd
			}
		}
	}

	type assignment struct {
		mot    motion.Motion
		scalar float64
	}
	assignments := make([]assignment, m)
	for i := range sorted {
		assignments[i] = assignment{sorted[i], bestScalars[i]}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].mot.Name() < assignments[j].mot.Name() })

	finalMembers := make([]motion.Motion, m)
	finalScalars := make([]float64, m)
	for i, a := range assignments {
		finalMembers[i] = a.mot
		finalScalars[i] = a.scalar
	}

	s.members = finalMembers
	s.scalars = finalScalars
	s.lnAvg = bestLnAvg
	s.lnStd = bestLnStd
	s.sigmaInf = bestSigma
	s.stdevRMSE = bestObjective
	s.medianRMSE, s.medianMaxPct = MedianError(bestLnAvg, tgt.LnSa())

	return nil
}

// ScaleMotions applies each member's finalized scalar via Motion.ScaleBy.
// Call only after ComputeScalars.
func (s *Suite) ScaleMotions() {
	for i, m := range s.members {
		m.ScaleBy(s.scalars[i])
	}
}

// UnscaleMotions restores every member's prev_scale to 1 via ScaleBy(1),
// undoing a prior ScaleMotions. Since suites borrow rather than own their
// motions (§9 DESIGN NOTES), two ranked suites may share a member; a
// driver exporting one suite at a time should Unscale before exporting
// the next so a later suite's export isn't skewed by an earlier suite's
// scale left in place on a shared motion.
func (s *Suite) UnscaleMotions() {
	for _, m := range s.members {
		m.ScaleBy(1)
	}
}

// centroidsFor returns the m probability-weighted normal centroids for a
// suite of size m, computed over the m equal (except for the outermost
// epsMin-bounded) probability slices of §4.5 step 2.
func centroidsFor(m int) []float64 {
	q := make([]float64, m+1)
	q[0] = epsMin
	q[m] = 1 - epsMin
	for i := 1; i < m; i++ {
		q[i] = float64(i) / float64(m)
	}

	centroids := make([]float64, m)
	for i := 0; i < m; i++ {
		centroids[i] = centroidSlice(q[i], q[i+1])
	}
	return centroids
}

// centroidSlice evaluates the conditional mean of a standard normal over
// [Phi^-1(qLo), Phi^-1(qHi)] by 20-slice trapezoid integration of
// (u_L+u_R)/2 * (Phi(u_R)-Phi(u_L)), summed over slices and normalized by
// the slice probability mass (§4.5 step 2).
func centroidSlice(qLo, qHi float64) float64 {
	uA := numerics.StdNormalQuantile(qLo)
	uB := numerics.StdNormalQuantile(qHi)
	du := (uB - uA) / float64(centroidSlices)

	integral := 0.0
	for k := 0; k < centroidSlices; k++ {
		uL := uA + float64(k)*du
		uR := uA + float64(k+1)*du
		integral += (uL + uR) / 2 * (numerics.StdNormalCDF(uR) - numerics.StdNormalCDF(uL))
	}
	return integral / (qHi - qLo)
}

// evaluateSigma assigns scalars to the avg-ln-Sa-sorted members at the
// given sigma-inflation factor, recomputes ln_avg and ln_std from the
// scaled members, and returns the ln-sigma RMSE objective of §4.5 step 4.
func evaluateSigma(sigmaInf float64, sorted []motion.Motion, centroids []float64, tgt *target.Spectrum) (scalars, lnAvg, lnStd []float64, objective float64) {
	m := len(sorted)
	p := len(tgt.Period())

	targetLnSa := tgt.LnSa()
	targetLnSigma := tgt.LnSigma()

	scalars = make([]float64, m)
	scaledLnSa := make([][]float64, m)
	for i, mo := range sorted {
		sum := 0.0
		scaled := make([]float64, p)
		for j := 0; j < p; j++ {
			sum += targetLnSa[j] + sigmaInf*targetLnSigma[j]*centroids[i] - mo.LnSa()[j]
		}
		lnS := sum / float64(p)
		scalars[i] = math.Exp(lnS)
		for j := 0; j < p; j++ {
			scaled[j] = mo.LnSa()[j] + lnS
		}
		scaledLnSa[i] = scaled
	}

	lnAvg = make([]float64, p)
	lnStd = make([]float64, p)
	column := make([]float64, m)
	for j := 0; j < p; j++ {
		for i := 0; i < m; i++ {
			column[i] = scaledLnSa[i][j]
		}
		mu, sigma := stat.MeanStdDev(column, nil)
		lnAvg[j] = mu
		if m > 1 {
			lnStd[j] = sigma
		}
	}

	sqDiff := make([]float64, p)
	for j := 0; j < p; j++ {
		d := lnStd[j] - targetLnSigma[j]
		sqDiff[j] = d * d
	}
	objective = math.Sqrt(floats.Sum(sqDiff) / float64(p))

	return scalars, lnAvg, lnStd, objective
}
