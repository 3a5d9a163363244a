package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// AudioExtractor is the part of the extraction adapter needed to load clips.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, video string, start, duration float64, sampleRate int, out string) error
}

// ClipLoader extracts a segment of a video's audio track into a scratch directory and
// decodes it. Scratch files are named from the caller's key, so concurrent loads with
// distinct keys never collide.
type ClipLoader struct {
	extractor AudioExtractor
	dir       string
}

func NewClipLoader(extractor AudioExtractor, scratchDir string) *ClipLoader {
	return &ClipLoader{extractor: extractor, dir: scratchDir}
}

// LoadClip returns mono samples of video between start and start+duration at sampleRate.
func (l *ClipLoader) LoadClip(ctx context.Context, video string, start, duration float64, sampleRate int, key string) ([]float64, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(l.dir, key+".wav")
	defer os.Remove(path)

	if err := l.extractor.ExtractAudio(ctx, video, start, duration, sampleRate, path); err != nil {
		return nil, fmt.Errorf("extract %s [%.2fs +%.2fs]: %w", filepath.Base(video), start, duration, err)
	}

	samples, rate, err := ReadWav(path)
	if err != nil {
		return nil, err
	}
	return Resample(samples, rate, sampleRate), nil
}
