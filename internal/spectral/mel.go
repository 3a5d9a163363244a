package spectral

import (
	"math"
)

// MelConfig describes a mel power spectrogram.
type MelConfig struct {
	SampleRate int
	NFFT       int
	HopLength  int
	NMels      int
	FMin       float64
	FMax       float64 // 0 means SampleRate/2
}

func DefaultMelConfig(sampleRate int) MelConfig {
	return MelConfig{
		SampleRate: sampleRate,
		NFFT:       2048,
		HopLength:  512,
		NMels:      128,
	}
}

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melFSp       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSp
)

var melLogStep = math.Log(6.4) / 27.0

func HzToMel(hz float64) float64 {
	if hz < melMinLogHz {
		return hz / melFSp
	}
	return melMinLogMel + math.Log(hz/melMinLogHz)/melLogStep
}

func MelToHz(mel float64) float64 {
	if mel < melMinLogMel {
		return mel * melFSp
	}
	return melMinLogHz * math.Exp(melLogStep*(mel-melMinLogMel))
}

// MelFilterBank builds nMels triangular filters over nFFT/2+1 FFT bins, area-normalised.
func MelFilterBank(sampleRate, nFFT, nMels int, fMin, fMax float64) [][]float64 {
	if fMax <= 0 {
		fMax = float64(sampleRate) / 2
	}
	bins := nFFT/2 + 1

	fftFreqs := make([]float64, bins)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * float64(sampleRate) / float64(nFFT)
	}

	minMel, maxMel := HzToMel(fMin), HzToMel(fMax)
	melF := make([]float64, nMels+2)
	for i := range melF {
		melF[i] = MelToHz(minMel + (maxMel-minMel)*float64(i)/float64(nMels+1))
	}

	weights := make([][]float64, nMels)
	for m := 0; m < nMels; m++ {
		row := make([]float64, bins)
		lowerW := melF[m+1] - melF[m]
		upperW := melF[m+2] - melF[m+1]
		enorm := 2.0 / (melF[m+2] - melF[m])
		for k, f := range fftFreqs {
			lower := (f - melF[m]) / lowerW
			upper := (melF[m+2] - f) / upperW
			if w := math.Min(lower, upper); w > 0 {
				row[k] = w * enorm
			}
		}
		weights[m] = row
	}
	return weights
}

// MelSpectrogram returns a mel-major power spectrogram: mel[band][frame].
func MelSpectrogram(samples []float64, cfg MelConfig) ([][]float64, error) {
	power, err := STFT(samples, cfg.NFFT, cfg.HopLength, Hann(cfg.NFFT), true)
	if err != nil {
		return nil, err
	}
	bank := MelFilterBank(cfg.SampleRate, cfg.NFFT, cfg.NMels, cfg.FMin, cfg.FMax)

	mel := make([][]float64, len(bank))
	for m, filter := range bank {
		row := make([]float64, len(power))
		for t, frame := range power {
			var acc float64
			for k, w := range filter {
				if w != 0 {
					acc += w * frame[k]
				}
			}
			row[t] = acc
		}
		mel[m] = row
	}
	return mel, nil
}

// Flatten concatenates rows in order.
func Flatten(m [][]float64) []float64 {
	n := 0
	for _, row := range m {
		n += len(row)
	}
	out := make([]float64, 0, n)
	for _, row := range m {
		out = append(out, row...)
	}
	return out
}

// CosineSimilarity compares the common prefix of a and b. It is 0 when either norm is 0.
func CosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
