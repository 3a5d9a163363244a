package media

import "math"

// ZScore returns (x-mean)/(std+eps) using the population standard deviation.
func ZScore(x []float64, eps float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))

	var variance float64
	for _, v := range x {
		d := v - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(x)))

	for i, v := range x {
		out[i] = (v - mean) / (std + eps)
	}
	return out
}

// RMSNormalize scales x to unit root-mean-square. Silent input is returned unchanged.
func RMSNormalize(x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	if len(x) == 0 {
		return out
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(x)))
	if rms == 0 {
		return out
	}
	for i := range out {
		out[i] /= rms
	}
	return out
}

// PadTo zero-pads x to n samples. Longer input is returned as is.
func PadTo(x []float64, n int) []float64 {
	if len(x) >= n {
		return x
	}
	out := make([]float64, n)
	copy(out, x)
	return out
}

// Resample converts x from rate `from` to rate `to` by linear interpolation.
func Resample(x []float64, from, to int) []float64 {
	if from == to || from <= 0 || to <= 0 || len(x) == 0 {
		return x
	}
	n := int(math.Round(float64(len(x)) * float64(to) / float64(from)))
	out := make([]float64, n)
	step := float64(from) / float64(to)
	last := len(x) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = x[last]
			continue
		}
		frac := pos - float64(j)
		out[i] = x[j]*(1-frac) + x[j+1]*frac
	}
	return out
}
