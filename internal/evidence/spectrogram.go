// Package evidence renders spectrogram images of matched audio samples.
package evidence

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"path/filepath"

	"github.com/eligwz/spectrogram"

	"github.com/himanishpuri/ReelDNA/internal/media"
	"github.com/himanishpuri/ReelDNA/pkg/logger"
	"github.com/himanishpuri/ReelDNA/pkg/models"
	"github.com/himanishpuri/ReelDNA/pkg/utils"
)

var ErrEmptyAudio = errors.New("audio clip has no samples")

type Config struct {
	Width  int
	Height int
}

func DefaultConfig() Config {
	return Config{Width: 1024, Height: 256}
}

// Renderer draws FFT magnitude spectrograms as PNG files.
type Renderer struct {
	cfg Config
	log logger.Interface
}

func NewRenderer(cfg Config, log logger.Interface) *Renderer {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg = DefaultConfig()
	}
	return &Renderer{cfg: cfg, log: log}
}

// Render writes the spectrogram of a WAV clip to out.
func (r *Renderer) Render(wavPath, out string) error {
	samples, rate, err := media.ReadWav(wavPath)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyAudio, wavPath)
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, r.cfg.Width, r.cfg.Height))
	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	// Hamming window, FFT, magnitude, linear scale
	spectrogram.Drawfft(img, samples, uint32(rate), uint32(r.cfg.Height), false, false, true, false)

	if err := utils.MakeDir(filepath.Dir(out)); err != nil {
		return err
	}
	if err := spectrogram.SavePng(img, out); err != nil {
		return fmt.Errorf("failed to save spectrogram %s: %w", out, err)
	}
	return nil
}

// Pair is the rendered evidence for one matched index.
type Pair struct {
	Index     int    `json:"index"`
	Reference string `json:"reference"`
	Recorded  string `json:"recorded"`
}

// RenderMatches renders reference and recorded spectrograms for every record
// whose audio matched. Clips that fail to render are logged and skipped.
func (r *Renderer) RenderMatches(records []models.ComparisonRecord, reference, recorded []models.Sample, dir string) []Pair {
	var pairs []Pair
	for _, rec := range records {
		if !rec.AudioMatch {
			continue
		}
		ref, ok1 := models.SampleByIndex(reference, rec.Index)
		got, ok2 := models.SampleByIndex(recorded, rec.Index)
		if !ok1 || !ok2 {
			continue
		}

		p := Pair{
			Index:     rec.Index,
			Reference: filepath.Join(dir, fmt.Sprintf("spectrogram_%02d_ref.png", rec.Index)),
			Recorded:  filepath.Join(dir, fmt.Sprintf("spectrogram_%02d_rec.png", rec.Index)),
		}
		if err := r.Render(ref.Audio, p.Reference); err != nil {
			r.log.Warnf("Evidence for sample %d skipped: %v", rec.Index, err)
			continue
		}
		if err := r.Render(got.Audio, p.Recorded); err != nil {
			r.log.Warnf("Evidence for sample %d skipped: %v", rec.Index, err)
			continue
		}
		pairs = append(pairs, p)
	}
	r.log.Infof("Rendered %d evidence spectrogram pairs into %s", len(pairs), dir)
	return pairs
}
