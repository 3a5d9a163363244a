package align

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/ReelDNA/internal/media"
	"github.com/himanishpuri/ReelDNA/internal/spectral"
	"github.com/himanishpuri/ReelDNA/pkg/logger"
)

// ClipLoader returns mono samples of a video's audio between start and start+duration.
// key names the scratch file and must be unique per concurrent call.
type ClipLoader interface {
	LoadClip(ctx context.Context, video string, start, duration float64, sampleRate int, key string) ([]float64, error)
}

type Config struct {
	AnchorTimes    []float64 // fallback anchors when the caller supplies none
	AnchorDuration float64   // seconds of reference audio per anchor
	SearchWindow   float64   // seconds searched on each side of the anchor
	SampleRate     int
	LowConfidence  float64 // NormalisedPeak below which an estimate is flagged
	Epsilon        float64
	Workers        int
}

func DefaultConfig() Config {
	return Config{
		AnchorTimes:    []float64{300, 600, 900},
		AnchorDuration: 10,
		SearchWindow:   60,
		SampleRate:     8000,
		LowConfidence:  0.1,
		Epsilon:        1e-6,
		Workers:        3,
	}
}

var ErrRegionTooShort = errors.New("search region shorter than anchor clip")

// AnchorEstimate is the outcome of locating one anchor in the recorded video.
type AnchorEstimate struct {
	Anchor         float64 `json:"anchor"`
	Offset         float64 `json:"offset"`
	MatchTime      float64 `json:"match_time"`
	Peak           float64 `json:"peak"`
	NormalisedPeak float64 `json:"normalised_peak"` // Peak / anchor samples, about 1 for an exact match
	LowConfidence  bool    `json:"low_confidence"`
	OK             bool    `json:"ok"`
	Error          string  `json:"error,omitempty"`
}

// Result is the consensus offset plus the per-anchor evidence behind it.
// A recorded timestamp is ref_t - Offset.
type Result struct {
	Offset    float64          `json:"offset"`
	Used      int              `json:"used"`
	Estimates []AnchorEstimate `json:"estimates"`
	Warnings  []string         `json:"warnings,omitempty"`
}

type Synchronizer struct {
	loader ClipLoader
	cfg    Config
	log    logger.Interface
}

func New(loader ClipLoader, cfg Config, log logger.Interface) *Synchronizer {
	def := DefaultConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.AnchorDuration <= 0 {
		cfg.AnchorDuration = def.AnchorDuration
	}
	if cfg.SearchWindow <= 0 {
		cfg.SearchWindow = def.SearchWindow
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = def.Epsilon
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Synchronizer{loader: loader, cfg: cfg, log: log}
}

// EstimateOffset locates each anchor of the reference inside the recorded video and
// returns the median of the successful per-anchor offsets. Anchors that cannot be
// loaded are skipped; when none succeed the offset is 0 and a warning is recorded.
// Only context cancellation is returned as an error.
func (s *Synchronizer) EstimateOffset(ctx context.Context, refVideo, recVideo string, anchors []float64) (Result, error) {
	if len(anchors) == 0 {
		s.log.Warnf("No anchors supplied, falling back to configured anchors %v", s.cfg.AnchorTimes)
		anchors = s.cfg.AnchorTimes
	}
	s.log.Infof("Syncing audio using %d anchors %v", len(anchors), anchors)

	estimates := make([]AnchorEstimate, len(anchors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, t := range anchors {
		g.Go(func() error {
			est, err := s.FindOffset(gctx, refVideo, recVideo, t, i)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				est = AnchorEstimate{Anchor: t, Error: err.Error()}
			}
			estimates[i] = est
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{Estimates: estimates}
	var offsets []float64
	for _, est := range estimates {
		if !est.OK {
			s.log.Warnf("Anchor %.2fs not found: %s", est.Anchor, est.Error)
			continue
		}
		s.log.Infof("Anchor %.2fs found offset %.2fs (normalised peak %.4f, raw peak %.1f)",
			est.Anchor, est.Offset, est.NormalisedPeak, est.Peak)
		if est.LowConfidence {
			msg := fmt.Sprintf("anchor %.2fs has low confidence: normalised peak %.4f below %g, match may be false",
				est.Anchor, est.NormalisedPeak, s.cfg.LowConfidence)
			s.log.Warnf("Low confidence: %s", msg)
			res.Warnings = append(res.Warnings, msg)
		}
		offsets = append(offsets, est.Offset)
	}

	if len(offsets) == 0 {
		msg := "no anchor could be located in the recorded video, assuming offset 0"
		s.log.Warnf("Audio sync failed: %s", msg)
		res.Warnings = append(res.Warnings, msg)
		return res, nil
	}

	res.Offset = Median(offsets)
	res.Used = len(offsets)
	s.log.Infof("Consensus offset %.2fs from %d/%d anchors", res.Offset, res.Used, len(anchors))
	return res, nil
}

// FindOffset estimates the offset implied by a single anchor at time t.
func (s *Synchronizer) FindOffset(ctx context.Context, refVideo, recVideo string, t float64, slot int) (AnchorEstimate, error) {
	ref, err := s.loader.LoadClip(ctx, refVideo, t, s.cfg.AnchorDuration, s.cfg.SampleRate, fmt.Sprintf("anchor_%02d_ref", slot))
	if err != nil {
		return AnchorEstimate{}, err
	}
	if len(ref) == 0 {
		return AnchorEstimate{}, errors.New("empty reference clip")
	}

	searchStart := t - s.cfg.SearchWindow
	if searchStart < 0 {
		searchStart = 0
	}
	searchEnd := t + s.cfg.SearchWindow
	rec, err := s.loader.LoadClip(ctx, recVideo, searchStart, searchEnd-searchStart, s.cfg.SampleRate, fmt.Sprintf("anchor_%02d_rec", slot))
	if err != nil {
		return AnchorEstimate{}, err
	}

	est, err := Locate(ref, rec, t, searchStart, s.cfg.SampleRate, s.cfg.Epsilon)
	if err != nil {
		return AnchorEstimate{}, err
	}
	est.LowConfidence = est.NormalisedPeak < s.cfg.LowConfidence
	return est, nil
}

// Locate finds ref inside rec, where rec starts at searchStart seconds of the recorded
// timeline and ref was taken at anchor seconds of the reference timeline.
func Locate(ref, rec []float64, anchor, searchStart float64, sampleRate int, eps float64) (AnchorEstimate, error) {
	if len(rec) < len(ref) {
		return AnchorEstimate{}, fmt.Errorf("%w (%d < %d samples)", ErrRegionTooShort, len(rec), len(ref))
	}

	corr := spectral.CorrelateValid(media.ZScore(rec, eps), media.ZScore(ref, eps))
	peakIdx, peak := spectral.ArgMax(corr)

	matchTime := searchStart + float64(peakIdx)/float64(sampleRate)
	return AnchorEstimate{
		Anchor:         anchor,
		Offset:         anchor - matchTime,
		MatchTime:      matchTime,
		Peak:           peak,
		NormalisedPeak: peak / float64(len(ref)),
		OK:             true,
	}, nil
}

// Median returns the median of v, averaging the middle pair for even lengths.
func Median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sorted := make([]float64, len(v))
	copy(sorted, v)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
