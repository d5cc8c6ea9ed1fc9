// Package sigmaspectra selects and scales suites of recorded ground-motion
// time histories so that their geometric-mean response spectrum and
// across-suite logarithmic standard deviation jointly match a target
// spectrum. The subpackages implement the numerics (numerics), the motion
// data model (motion), the target spectrum (target), suite aggregation and
// scaling (suite), the combinatorial search engine (search), and the
// directory-driven library/driver plus export writers (library). This root
// package only carries the sentinel errors shared across all of them.
package sigmaspectra

import "errors"

// Sentinel error kinds. Call sites wrap these with fmt.Errorf("%w: ...", Err...)
// to attach detail; callers match with errors.Is.
var (
	// ErrInvalidInput signals a malformed target spectrum or an
	// out-of-range parameter (k<1, K<1, m<1, k>m, m>n, ...).
	ErrInvalidInput = errors.New("sigmaspectra: invalid input")

	// ErrIoError signals a missing or malformed AT2 file. The driver
	// logs and skips the record; it does not abort the load.
	ErrIoError = errors.New("sigmaspectra: io error")

	// ErrOutOfRange signals an interpolation query outside the defined
	// domain of the interpolant.
	ErrOutOfRange = errors.New("sigmaspectra: out of range")

	// ErrCancelled signals a cooperative stop requested mid-search.
	ErrCancelled = errors.New("sigmaspectra: cancelled")

	// ErrNoSuitesFound signals that enumeration completed but zero
	// valid suites met the constraints.
	ErrNoSuitesFound = errors.New("sigmaspectra: no suites found")
)
