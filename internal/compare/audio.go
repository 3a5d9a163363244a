package compare

import (
	"github.com/himanishpuri/ReelDNA/internal/media"
	"github.com/himanishpuri/ReelDNA/internal/spectral"
)

// CompareAudio computes the cosine similarity of the mel power spectrograms of two
// clips after RMS normalisation. Any failure yields (false, 0).
func (c *Comparator) CompareAudio(a, b string) (bool, float64) {
	sim, err := c.audioSimilarity(a, b)
	if err != nil {
		c.log.Warnf("Error comparing audio: %v", err)
		return false, 0
	}
	return sim >= c.cfg.AudioSimilarityThreshold, sim
}

func (c *Comparator) audioSimilarity(a, b string) (float64, error) {
	ya, err := c.load(a)
	if err != nil {
		return 0, err
	}
	yb, err := c.load(b)
	if err != nil {
		return 0, err
	}
	return SignalSimilarity(ya, yb, c.cfg.AudioSampleRate)
}

func (c *Comparator) load(path string) ([]float64, error) {
	samples, rate, err := media.ReadWav(path)
	if err != nil {
		return nil, err
	}
	return media.Resample(samples, rate, c.cfg.AudioSampleRate), nil
}

// SignalSimilarity compares two mono signals sampled at sampleRate.
func SignalSimilarity(a, b []float64, sampleRate int) (float64, error) {
	a = media.RMSNormalize(a)
	b = media.RMSNormalize(b)

	n := max(len(a), len(b))
	a = media.PadTo(a, n)
	b = media.PadTo(b, n)

	cfg := spectral.DefaultMelConfig(sampleRate)
	ma, err := spectral.MelSpectrogram(a, cfg)
	if err != nil {
		return 0, err
	}
	mb, err := spectral.MelSpectrogram(b, cfg)
	if err != nil {
		return 0, err
	}
	return spectral.CosineSimilarity(spectral.Flatten(ma), spectral.Flatten(mb)), nil
}
