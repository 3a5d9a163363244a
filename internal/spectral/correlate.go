package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// CorrelateValid returns the valid-mode cross-correlation of x against the template y:
// out[k] = sum_j x[k+j]*y[j] for k in [0, len(x)-len(y)]. It is nil when y is longer than x.
func CorrelateValid(x, y []float64) []float64 {
	if len(y) == 0 || len(y) > len(x) {
		return nil
	}
	n := nextPow2(len(x))

	xc := make([]complex128, n)
	for i, v := range x {
		xc[i] = complex(v, 0)
	}
	yc := make([]complex128, n)
	for i, v := range y {
		yc[i] = complex(v, 0)
	}

	X := fft.FFT(xc)
	Y := fft.FFT(yc)
	for i := range X {
		X[i] *= cmplx.Conj(Y[i])
	}
	r := fft.IFFT(X)

	out := make([]float64, len(x)-len(y)+1)
	for k := range out {
		out[k] = real(r[k])
	}
	return out
}

// ArgMax returns the index and value of the first maximum in v, or -1 for empty input.
func ArgMax(v []float64) (int, float64) {
	if len(v) == 0 {
		return -1, 0
	}
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best, v[best]
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
