package spectral

import (
	"errors"
	"math"

	"github.com/mjibson/go-dsp/fft"
)

var (
	ErrWindowLength = errors.New("window length must equal windowSize")
	ErrShortInput   = errors.New("input shorter than window size")
)

// Hamming returns a symmetric Hamming window of length n.
func Hamming(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// Hann returns a periodic Hann window of length n, the form used for spectral analysis.
func Hann(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// FFTReal wraps the go-dsp FFT and returns a complex spectrum.
func FFTReal(frame []float64) []complex128 {
	return fft.FFTReal(frame)
}

// PowerSpectrum returns |X[k]|^2 for the n/2+1 non-negative frequency bins.
func PowerSpectrum(spectrum []complex128) []float64 {
	bins := len(spectrum)/2 + 1
	if bins > len(spectrum) {
		bins = len(spectrum)
	}
	p := make([]float64, bins)
	for i := 0; i < bins; i++ {
		re, im := real(spectrum[i]), imag(spectrum[i])
		p[i] = re*re + im*im
	}
	return p
}

// STFT computes a time-major power spectrogram: spectrogram[frame][bin].
// With center set, the signal is zero-padded by windowSize/2 on both sides so that
// frame t is centred on sample t*hopSize.
func STFT(samples []float64, windowSize, hopSize int, window []float64, center bool) ([][]float64, error) {
	if len(window) != windowSize {
		return nil, ErrWindowLength
	}
	if hopSize <= 0 {
		return nil, errors.New("hop size must be positive")
	}
	if center {
		padded := make([]float64, len(samples)+2*(windowSize/2))
		copy(padded[windowSize/2:], samples)
		samples = padded
	}
	if len(samples) < windowSize {
		return nil, ErrShortInput
	}

	spectrogram := make([][]float64, 0, 1+(len(samples)-windowSize)/hopSize)
	frame := make([]float64, windowSize)
	for start := 0; start+windowSize <= len(samples); start += hopSize {
		for i := 0; i < windowSize; i++ {
			frame[i] = samples[start+i] * window[i]
		}
		spectrogram = append(spectrogram, PowerSpectrum(FFTReal(frame)))
	}
	return spectrogram, nil
}
