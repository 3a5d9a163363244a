package sampler

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/ReelDNA/pkg/logger"
	"github.com/himanishpuri/ReelDNA/pkg/models"
)

// Extractor writes single frames and mono WAV clips taken from a video.
type Extractor interface {
	ExtractFrame(ctx context.Context, video string, at float64, out string) error
	ExtractAudio(ctx context.Context, video string, start, duration float64, sampleRate int, out string) error
}

type Config struct {
	NumSamples          int
	AudioDuration       float64
	MinTimestampOffset  float64
	MaxTimestampOffset  float64
	ShortVideoThreshold float64
	RelativeAnchors     []float64
	AnchorTimes         []float64
	AnchorDuration      float64
	AudioSampleRate     int
	ScreenshotFormat    string
	Workers             int
}

func DefaultConfig() Config {
	return Config{
		NumSamples:          15,
		AudioDuration:       180,
		MinTimestampOffset:  60,
		MaxTimestampOffset:  60,
		ShortVideoThreshold: 900,
		RelativeAnchors:     []float64{0.15, 0.50, 0.85},
		AnchorTimes:         []float64{300, 600, 900},
		AnchorDuration:      10,
		AudioSampleRate:     22050,
		ScreenshotFormat:    "png",
		Workers:             2,
	}
}

type Sampler struct {
	ex  Extractor
	cfg Config
	log logger.Interface
}

func New(ex Extractor, cfg Config, log logger.Interface) *Sampler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ScreenshotFormat == "" {
		cfg.ScreenshotFormat = "png"
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Sampler{ex: ex, cfg: cfg, log: log}
}

// ReferenceResult is what the reference stage produces before it is persisted.
type ReferenceResult struct {
	Timestamps []float64
	Samples    []models.Sample
	Anchors    []models.Anchor
	SampleRun  Summary
	AnchorRun  Summary
}

func (s *Sampler) screenshotPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("screenshot_%02d.%s", index, s.cfg.ScreenshotFormat))
}

func audioPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("audio_%02d.wav", index))
}

// Reference draws random timestamps over the reference video, extracts a frame and an
// audio clip for each, then extracts the alignment anchors. Failed samples are dropped
// and reported in the summaries.
func (s *Sampler) Reference(ctx context.Context, video string, duration float64, dir string, rng *rand.Rand) (*ReferenceResult, error) {
	timestamps := RandomTimestamps(rng, duration, s.cfg.NumSamples, s.cfg.MinTimestampOffset, s.cfg.MaxTimestampOffset)
	s.log.Infof("Generated %d reference timestamps %v", len(timestamps), timestamps)

	jobs := make([]job, len(timestamps))
	for i, ts := range timestamps {
		jobs[i] = job{index: i, at: ts, clip: s.cfg.AudioDuration}
	}
	samples, sum, err := s.extractAll(ctx, video, dir, "reference samples", jobs)
	if err != nil {
		return nil, err
	}

	anchorTimes := PlanAnchors(duration, s.cfg.ShortVideoThreshold, s.cfg.AnchorTimes, s.cfg.RelativeAnchors)
	if duration < s.cfg.ShortVideoThreshold {
		s.log.Infof("Video is short (%.0fs), using relative anchors %v", duration, anchorTimes)
	}
	anchors, anchorSum, err := s.extractAnchors(ctx, video, dir, anchorTimes)
	if err != nil {
		return nil, err
	}

	return &ReferenceResult{
		Timestamps: timestamps,
		Samples:    samples,
		Anchors:    anchors,
		SampleRun:  sum,
		AnchorRun:  anchorSum,
	}, nil
}

// Recorded re-projects each reference sample onto the recorded timeline using offset
// and extracts the matching frame and clip. Samples whose projection falls outside the
// recording are dropped; the clip length is clamped to what remains of the recording.
func (s *Sampler) Recorded(ctx context.Context, video string, duration, offset float64, reference []models.Sample, dir string) ([]models.Sample, Summary, error) {
	var jobs []job
	var skipped []Outcome
	for _, ref := range reference {
		at, ok := Project(ref.Timestamp, offset, duration)
		if !ok {
			s.log.Warnf("Skipping sample %d: reference %.0fs maps to %.0fs outside recording (%.0fs)", ref.Index, ref.Timestamp, at, duration)
			skipped = append(skipped, Outcome{Index: ref.Index, Timestamp: at, Err: ErrOutOfRange})
			continue
		}
		clip := ClipDuration(s.cfg.AudioDuration, duration, at)
		if clip <= 0 {
			skipped = append(skipped, Outcome{Index: ref.Index, Timestamp: at, Err: ErrNoAudioLeft})
			continue
		}
		jobs = append(jobs, job{index: ref.Index, at: at, clip: clip})
	}

	samples, sum, err := s.extractAll(ctx, video, dir, "recorded samples", jobs)
	if err != nil {
		return nil, Summary{}, err
	}
	sum.Outcomes = mergeOutcomes(sum.Outcomes, skipped)
	return samples, sum, nil
}

type job struct {
	index int
	at    float64
	clip  float64
}

func (s *Sampler) extractAll(ctx context.Context, video, dir, stage string, jobs []job) ([]models.Sample, Summary, error) {
	outcomes := make([]Outcome, len(jobs))
	produced := make([]*models.Sample, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, j := range jobs {
		g.Go(func() error {
			sample, err := s.extractOne(gctx, video, dir, j)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			outcomes[i] = Outcome{Index: j.index, Timestamp: j.at, Err: err}
			if err != nil {
				s.log.Warnf("Sample %d at %.2fs failed: %v", j.index, j.at, err)
				return nil
			}
			produced[i] = &sample
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Summary{}, err
	}

	var samples []models.Sample
	for _, p := range produced {
		if p != nil {
			samples = append(samples, *p)
		}
	}
	sum := Summary{Stage: stage, Outcomes: outcomes}
	s.log.Infof("%s", sum)
	return samples, sum, nil
}

func (s *Sampler) extractOne(ctx context.Context, video, dir string, j job) (models.Sample, error) {
	shot := s.screenshotPath(dir, j.index)
	if err := s.ex.ExtractFrame(ctx, video, j.at, shot); err != nil {
		return models.Sample{}, fmt.Errorf("%w: %v", ErrFrameExtract, err)
	}
	clip := audioPath(dir, j.index)
	if err := s.ex.ExtractAudio(ctx, video, j.at, j.clip, s.cfg.AudioSampleRate, clip); err != nil {
		return models.Sample{}, fmt.Errorf("%w: %v", ErrAudioExtract, err)
	}
	return models.Sample{Index: j.index, Timestamp: j.at, Screenshot: shot, Audio: clip}, nil
}

func (s *Sampler) extractAnchors(ctx context.Context, video, dir string, times []float64) ([]models.Anchor, Summary, error) {
	sum := Summary{Stage: "anchors"}
	var anchors []models.Anchor
	for i, t := range times {
		if err := ctx.Err(); err != nil {
			return nil, Summary{}, err
		}
		path := filepath.Join(dir, fmt.Sprintf("anchor_%d.wav", int(t)))
		err := s.ex.ExtractAudio(ctx, video, t, s.cfg.AnchorDuration, s.cfg.AudioSampleRate, path)
		sum.Outcomes = append(sum.Outcomes, Outcome{Index: i, Timestamp: t, Err: err})
		if err != nil {
			s.log.Warnf("Failed to extract anchor at %.0fs: %v", t, err)
			continue
		}
		anchors = append(anchors, models.Anchor{Timestamp: t, Audio: path})
	}
	s.log.Infof("%s", sum)
	return anchors, sum, nil
}

func mergeOutcomes(done, skipped []Outcome) []Outcome {
	out := make([]Outcome, 0, len(done)+len(skipped))
	out = append(out, done...)
	out = append(out, skipped...)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
