// Package search implements the combinatorial seed-plus-greedy-growth
// suite search (C6): lexicographic seed enumeration, greedy growth against
// the target spectrum, a worst-of-best-K retention heap, and cooperative
// progress/cancellation.
package search

import (
	"container/heap"
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond"

	"github.com/arkottke/sigmaspectra"
	"github.com/arkottke/sigmaspectra/motion"
	"github.com/arkottke/sigmaspectra/numerics"
	"github.com/arkottke/sigmaspectra/suite"
	"github.com/arkottke/sigmaspectra/target"
)

// Params bundles the search engine's combinatorial and constraint
// parameters (§4.6).
type Params struct {
	SeedSize     int  // k
	SuiteSize    int  // m
	KeepCount    int  // K
	OnePerStation bool
	MinRequested int
}

// Progress is the {percent, eta, log_line} tuple streamed to the driver
// (§4.6, §9 DESIGN NOTES: replaces the source's signal-based emission with
// an explicit callback).
type Progress struct {
	Percent int
	ETA     time.Duration
	Log     string
}

// ProgressFunc receives progress notifications. It must never block the
// engine for long and must never be the cause of a compute failure (§7).
type ProgressFunc func(Progress)

// Engine runs the seed-plus-greedy-growth search of §4.6 over a fixed
// candidate list.
type Engine struct {
	candidates []motion.Motion
	required   []motion.Motion
	params     Params
	target     *target.Spectrum

	cancelled atomic.Bool
}

// New constructs an Engine over candidates, validating the parameter
// ranges §7 requires (k<1, K<1, m<1, k>m, m>n are InvalidInput).
func New(candidates []motion.Motion, params Params, tgt *target.Spectrum) (*Engine, error) {
	n := len(candidates)
	if params.SeedSize < 1 || params.KeepCount < 1 || params.SuiteSize < 1 {
		return nil, fmt.Errorf("%w: seed size, suite size, and keep count must be >= 1", sigmaspectra.ErrInvalidInput)
	}
	if params.SeedSize > params.SuiteSize {
		return nil, fmt.Errorf("%w: seed size must not exceed suite size", sigmaspectra.ErrInvalidInput)
	}
	if params.SuiteSize > n {
		return nil, fmt.Errorf("%w: suite size must not exceed candidate count", sigmaspectra.ErrInvalidInput)
	}

	var required []motion.Motion
	for _, m := range candidates {
		if m.Flag() == motion.Required {
			required = append(required, m)
		}
	}

	return &Engine{candidates: candidates, required: required, params: params, target: tgt}, nil
}

// Cancel requests cooperative cancellation. Safe to call concurrently with
// Run.
func (e *Engine) Cancel() { e.cancelled.Store(true) }

// EstimatedCounts returns the informational seed_count and trial_count of
// §4.6, approximated via the Ramanujan factorial and ignoring
// one_per_station/min_requested per §9 DESIGN NOTES. Used only for ETA.
func (e *Engine) EstimatedCounts() (seedCount, trialCount float64) {
	disabled := 0
	for _, m := range e.candidates {
		if m.Flag() == motion.Disabled {
			disabled++
		}
	}
	n := float64(len(e.candidates)) - float64(disabled)

	seedCount = numerics.Binomial(int(n), e.params.SeedSize)

	sum := 0.0
	for i := 0; i < e.params.SuiteSize; i++ {
		sum += n - float64(i)
	}
	if sum == 0 {
		sum = 1
	}
	trialCount = seedCount * sum
	return seedCount, trialCount
}

// Run enumerates seeds in lexicographic order, grows each into a
// candidate suite, retains the best-K by median RMSE, and returns them
// finalized (scalars computed, sorted by median RMSE ascending). Returns
// ErrCancelled if Cancel was called, or ErrNoSuitesFound if enumeration
// completes with zero valid suites (§4.6, §7).
func (e *Engine) Run(progress ProgressFunc) ([]*suite.Suite, error) {
	n := len(e.candidates)
	k := e.params.SeedSize

	seed := make([]int, k)
	for i := range seed {
		seed[i] = i
	}

	best := newBestK(e.params.KeepCount)
	start := time.Now()

	total, _ := e.EstimatedCounts()
	processed := 0.0
	lastPercent := -1

	for seed[0] <= n-k {
		if e.cancelled.Load() {
			return nil, sigmaspectra.ErrCancelled
		}

		if !seedHasDisabled(e.candidates, seed) {
			s, err := e.growSeed(seed)
			if err != nil {
				return nil, err
			}
			if s != nil {
				best.offer(s)
			}
			processed++
		}

		if progress != nil && total > 0 {
			percent := int(100 * processed / total)
			if percent > 100 {
				percent = 100
			}
			if percent != lastPercent {
				lastPercent = percent
				elapsed := time.Since(start)
				var eta time.Duration
				if processed > 0 {
					eta = time.Duration(float64(elapsed) * (total - processed) / processed)
				}
				progress(Progress{Percent: percent, ETA: eta, Log: fmt.Sprintf("seed %v", seed)})
			}
		}

		if !incrementSeed(seed, n, k) {
			break
		}
	}

	return e.finalize(best)
}

// growSeed builds a fresh suite from the seed indices and grows it to
// SuiteSize by greedy minimum-RMSE addition, aborting (nil, nil) if
// growth stalls before reaching SuiteSize (§4.6).
func (e *Engine) growSeed(seed []int) (*suite.Suite, error) {
	s := suite.New()
	for _, idx := range seed {
		s.Append(e.candidates[idx])
	}

	for s.Len() < e.params.SuiteSize {
		if e.cancelled.Load() {
			return nil, sigmaspectra.ErrCancelled
		}

		best, ok := e.bestGrowthCandidate(s)
		if !ok {
			return nil, nil
		}
		s.Append(best)
	}

	if err := s.Validate(e.params.SuiteSize, e.params.MinRequested, e.required, e.params.OnePerStation); err != nil {
		return nil, nil
	}

	rmse, _ := suite.MedianError(s.LnAvg(), e.target.LnSa())
	s.SetMedianRMSE(rmse)
	return s, nil
}

// bestGrowthCandidate picks the addable motion whose hypothetical
// one-step ln_avg blend minimizes median RMSE against the target, ties
// broken by lowest candidate-list index (§4.6).
func (e *Engine) bestGrowthCandidate(s *suite.Suite) (motion.Motion, bool) {
	targetLnSa := e.target.LnSa()
	n := s.Len() + 1

	bestRMSE := 0.0
	var best motion.Motion
	found := false

	for _, m := range e.candidates {
		if !s.IsAddable(m, e.params.OnePerStation) {
			continue
		}
		trial := suite.Blend(s.LnAvg(), n, m.LnSa())
		rmse, _ := suite.MedianError(trial, targetLnSa)
		if !found || rmse < bestRMSE {
			found = true
			bestRMSE = rmse
			best = m
		}
	}

	return best, found
}

// finalize sorts the retained best-K by median RMSE ascending, computes
// final scalars for each, and returns ErrNoSuitesFound if none survived
// (§4.6 final pass).
func (e *Engine) finalize(best *bestK) ([]*suite.Suite, error) {
	suites := best.sorted()
	if len(suites) == 0 {
		return nil, sigmaspectra.ErrNoSuitesFound
	}
	for _, s := range suites {
		if err := s.ComputeScalars(e.target); err != nil {
			return nil, err
		}
	}

	sort.Slice(suites, func(i, j int) bool { return suites[i].MedianRMSE() < suites[j].MedianRMSE() })
	return suites, nil
}

// incrementSeed advances seed to the next lexicographic tuple following
// the rule of §4.6: find the largest i with seed[i] < n-k+i, increment
// it, and reset every later index to a consecutive run. Returns false
// once seed[0] would exceed n-k, signalling enumeration is complete.
func incrementSeed(seed []int, n, k int) bool {
	i := k - 1
	for i >= 0 && seed[i] >= n-k+i {
		i--
	}
	if i < 0 {
		return false
	}
	seed[i]++
	for j := i + 1; j < k; j++ {
		seed[j] = seed[j-1] + 1
	}
	return true
}

func seedHasDisabled(candidates []motion.Motion, seed []int) bool {
	for _, idx := range seed {
		if candidates[idx].Flag() == motion.Disabled {
			return true
		}
	}
	return false
}

// RunParallel partitions the seed space into disjoint lexicographic
// ranges sized for a pond worker pool, runs each range's enumeration
// independently, and merges the per-range best-K sets (§5: "a plausible
// parallelization partitions the seed space into disjoint lexicographic
// ranges and merges per-worker best-K heaps"). Grounded in the teacher's
// fixed-size pool fan-out over independent units of work.
func (e *Engine) RunParallel(ctx context.Context, workers int, progress ProgressFunc) ([]*suite.Suite, error) {
	n := len(e.candidates)
	k := e.params.SeedSize

	ranges := partitionSeedRanges(n, k, workers)
	pool := pond.New(workers, 0, pond.MinWorkers(workers), pond.Context(ctx))
	defer pool.StopAndWait()

	var mu sync.Mutex
	merged := newBestK(e.params.KeepCount)
	var firstErr error
	var processed int64

	total, _ := e.EstimatedCounts()
	start := time.Now()

	for _, r := range ranges {
		r := r
		pool.Submit(func() {
			local, n := e.runRange(ctx, r)
			mu.Lock()
			defer mu.Unlock()
			processed += n
			if local.err != nil && firstErr == nil {
				firstErr = local.err
				return
			}
			for _, s := range local.suites {
				merged.offer(s)
			}
			if progress != nil && total > 0 {
				pct := int(100 * float64(processed) / total)
				if pct > 100 {
					pct = 100
				}
				elapsed := time.Since(start)
				var eta time.Duration
				if processed > 0 {
					eta = time.Duration(float64(elapsed) * (total - float64(processed)) / float64(processed))
				}
				progress(Progress{Percent: pct, ETA: eta, Log: "worker range merged"})
			}
		})
	}

	pool.StopAndWait()

	if firstErr != nil {
		return nil, firstErr
	}
	return e.finalize(merged)
}

type rangeResult struct {
	suites []*suite.Suite
	err    error
}

// runRange enumerates only the seeds whose first index lies in [lo, hi),
// honoring both the context and the shared cancellation flag.
func (e *Engine) runRange(ctx context.Context, r seedRange) (rangeResult, int64) {
	n := len(e.candidates)
	k := e.params.SeedSize
	best := newBestK(e.params.KeepCount)

	seed := make([]int, k)
	for i := range seed {
		seed[i] = r.lo + i
	}

	var processed int64
	for seed[0] < r.hi {
		select {
		case <-ctx.Done():
			return rangeResult{err: sigmaspectra.ErrCancelled}, processed
		default:
		}
		if e.cancelled.Load() {
			return rangeResult{err: sigmaspectra.ErrCancelled}, processed
		}

		if !seedHasDisabled(e.candidates, seed) {
			s, err := e.growSeed(seed)
			if err != nil {
				return rangeResult{err: err}, processed
			}
			if s != nil {
				best.offer(s)
			}
			processed++
		}

		if !incrementSeed(seed, n, k) {
			break
		}
	}

	return rangeResult{suites: best.sorted()}, processed
}

type seedRange struct{ lo, hi int }

// partitionSeedRanges splits [0, n-k] — the valid range of seed[0] — into
// up to workers contiguous chunks.
func partitionSeedRanges(n, k, workers int) []seedRange {
	span := n - k + 1
	if span < 1 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > span {
		workers = span
	}

	chunk := span / workers
	rem := span % workers

	ranges := make([]seedRange, 0, workers)
	lo := 0
	for i := 0; i < workers; i++ {
		size := chunk
		if i < rem {
			size++
		}
		hi := lo + size
		ranges = append(ranges, seedRange{lo: lo, hi: hi})
		lo = hi
	}
	return ranges
}

// bestK is the worst-of-best-K retention structure of §4.6, backed by a
// max-heap on median_rmse so the worst member is found in O(1) and
// evicted in O(log K).
type bestK struct {
	k     int
	items []*suite.Suite
	seen  map[string]bool
}

func newBestK(k int) *bestK {
	return &bestK{k: k, seen: make(map[string]bool)}
}

// offer inserts candidate if it is not a duplicate (by order-independent
// membership identity) and either the set has room or candidate beats the
// current worst (§4.6 Best-K maintenance).
func (b *bestK) offer(candidate *suite.Suite) {
	key := candidate.IdentityKey()
	if b.seen[key] {
		return
	}

	if len(b.items) < b.k {
		b.seen[key] = true
		heap.Push(b, candidate)
		return
	}

	worst := b.items[0]
	if candidate.MedianRMSE() < worst.MedianRMSE() {
		delete(b.seen, worst.IdentityKey())
		b.seen[key] = true
		heap.Pop(b)
		heap.Push(b, candidate)
	}
}

// sorted returns the retained suites ordered by median_rmse ascending.
func (b *bestK) sorted() []*suite.Suite {
	out := append([]*suite.Suite(nil), b.items...)
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].MedianRMSE() < out[i].MedianRMSE() {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

// heap.Interface: max-heap on median_rmse, so items[0] is always the
// current worst kept suite.
func (b *bestK) Len() int { return len(b.items) }
func (b *bestK) Less(i, j int) bool {
	return b.items[i].MedianRMSE() > b.items[j].MedianRMSE()
}
func (b *bestK) Swap(i, j int) { b.items[i], b.items[j] = b.items[j], b.items[i] }
func (b *bestK) Push(x any)    { b.items = append(b.items, x.(*suite.Suite)) }
func (b *bestK) Pop() any {
	old := b.items
	n := len(old)
	item := old[n-1]
	b.items = old[:n-1]
	return item
}
