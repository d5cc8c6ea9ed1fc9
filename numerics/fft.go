// Package numerics provides the small set of free-standing numerical
// routines shared by the motion, target, suite, and search packages: a
// real-input FFT/IFFT pair, cumulative trapezoid integration, natural
// cubic spline interpolation, the standard-normal CDF/quantile, and a
// factorial/binomial-coefficient approximation used only for informational
// trial counts.
package numerics

import (
	"math"
	"math/cmplx"
)

// NextPow2 returns the smallest power of two greater than or equal to n.
// n<=1 returns 1.
func NextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// fft computes the unnormalized discrete Fourier transform of a via
// recursive radix-2 Cooley-Tukey. len(a) must be a power of two.
func fft(a []complex128) []complex128 {
	n := len(a)
	if n == 1 {
		return []complex128{a[0]}
	}

	even := make([]complex128, n/2)
	odd := make([]complex128, n/2)
	for i := 0; i < n/2; i++ {
		even[i] = a[2*i]
		odd[i] = a[2*i+1]
	}

	fe := fft(even)
	fo := fft(odd)

	out := make([]complex128, n)
	for k := 0; k < n/2; k++ {
		angle := -2 * math.Pi * float64(k) / float64(n)
		twiddle := cmplx.Rect(1, angle) * fo[k]
		out[k] = fe[k] + twiddle
		out[k+n/2] = fe[k] - twiddle
	}
	return out
}

// Forward computes the real-input FFT of x, zero-padding to the next power
// of two n, and returns the half-complex array of length n/2 specified by
// §4.1: Half[0] is the real DC bin, Half[n/2-1] is the real Nyquist bin,
// and Half[k] for 0<k<n/2-1 is the complex bin (re[k], im[k]). Grounded
// byte-for-byte in original_source/source/Motion.cpp's fft (fas.resize(n/2),
// fas[0]=DC, fas[size-1]=Nyquist).
func Forward(x []float64) []complex128 {
	n := NextPow2(len(x))
	a := make([]complex128, n)
	for i, v := range x {
		a[i] = complex(v, 0)
	}

	full := fft(a)

	half := make([]complex128, n/2)
	half[0] = complex(real(full[0]), 0)
	for k := 1; k < len(half)-1; k++ {
		half[k] = full[k]
	}
	half[len(half)-1] = complex(real(full[n/2]), 0)

	return half
}

// Inverse reconstructs a real signal of length n from its half-complex
// array half, where len(half) must equal n/2 (§4.1; original_source's ifft
// derives n as 2*fas.size() from the same convention). half[0] is the real
// DC bin and half[len(half)-1] is the real Nyquist bin.
func Inverse(half []complex128, n int) []float64 {
	full := make([]complex128, n)
	full[0] = complex(real(half[0]), 0)
	full[n/2] = complex(real(half[len(half)-1]), 0)
	for k := 1; k < len(half)-1; k++ {
		full[k] = half[k]
		full[n-k] = cmplx.Conj(half[k])
	}

	conjIn := make([]complex128, n)
	for i, v := range full {
		conjIn[i] = cmplx.Conj(v)
	}
	out := fft(conjIn)

	result := make([]float64, n)
	for i, v := range out {
		result[i] = real(v) / float64(n)
	}
	return result
}
