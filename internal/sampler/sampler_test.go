package sampler

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/ReelDNA/pkg/logger"
	"github.com/himanishpuri/ReelDNA/pkg/models"
)

func TestRandomTimestamps(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ts := RandomTimestamps(rng, 7200, 15, 60, 60)
	require.Len(t, ts, 15)
	for i, v := range ts {
		assert.GreaterOrEqual(t, v, 60.0)
		assert.LessOrEqual(t, v, 7140.0)
		assert.InDelta(t, math.Round(v*100)/100, v, 1e-9, "rounded to 10ms")
		if i > 0 {
			assert.LessOrEqual(t, ts[i-1], v)
		}
	}

	again := RandomTimestamps(rand.New(rand.NewSource(42)), 7200, 15, 60, 60)
	assert.Equal(t, ts, again, "same seed gives same plan")
}

func TestRandomTimestampsShortVideoUsesFullRange(t *testing.T) {
	ts := RandomTimestamps(rand.New(rand.NewSource(1)), 100, 50, 60, 60)
	for _, v := range ts {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
	below60 := 0
	for _, v := range ts {
		if v < 60 {
			below60++
		}
	}
	assert.Greater(t, below60, 0)
}

func TestPlanAnchors(t *testing.T) {
	fixed := []float64{300, 600, 900}
	rel := []float64{0.15, 0.50, 0.85}

	assert.Equal(t, []float64{300, 600, 900}, PlanAnchors(7200, 900, fixed, rel))
	assert.Equal(t, []float64{105, 350, 595}, PlanAnchors(700, 900, fixed, rel))
	assert.Equal(t, []float64{300, 600}, PlanAnchors(900, 900, fixed, rel), "anchor at the end is dropped")
	assert.Equal(t, []float64{1, 5, 8}, PlanAnchors(10.5, 900, fixed, rel))
	assert.Empty(t, PlanAnchors(0, 900, fixed, rel))
}

func TestProject(t *testing.T) {
	at, ok := Project(100, 10, 200)
	assert.True(t, ok)
	assert.Equal(t, 90.0, at)

	_, ok = Project(5, 10, 200)
	assert.False(t, ok, "before the recording starts")

	_, ok = Project(250, 10, 200)
	assert.False(t, ok, "after the recording ends")

	_, ok = Project(210, 10, 200)
	assert.True(t, ok, "the last instant is still inside")

	at, ok = Project(100, -5, 200)
	assert.True(t, ok)
	assert.Equal(t, 105.0, at)
}

func TestClipDuration(t *testing.T) {
	assert.Equal(t, 180.0, ClipDuration(180, 1000, 100))
	assert.Equal(t, 110.0, ClipDuration(180, 200, 90))
}

type call struct {
	kind     string
	at       float64
	duration float64
	out      string
}

type fakeExtractor struct {
	mu        sync.Mutex
	calls     []call
	failFrame map[float64]bool
}

func (f *fakeExtractor) ExtractFrame(ctx context.Context, video string, at float64, out string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{kind: "frame", at: at, out: out})
	if f.failFrame[at] {
		return errors.New("decoder error")
	}
	return nil
}

func (f *fakeExtractor) ExtractAudio(ctx context.Context, video string, start, duration float64, sampleRate int, out string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{kind: "audio", at: start, duration: duration, out: out})
	return nil
}

func (f *fakeExtractor) audioCalls() map[float64]call {
	out := map[float64]call{}
	for _, c := range f.calls {
		if c.kind == "audio" {
			out[c.at] = c
		}
	}
	return out
}

func TestReferenceSampling(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	planned := RandomTimestamps(rand.New(rand.NewSource(3)), 7200, 15, 60, 60)

	ex := &fakeExtractor{failFrame: map[float64]bool{planned[4]: true}}
	s := New(ex, DefaultConfig(), logger.Discard())
	dir := t.TempDir()

	res, err := s.Reference(context.Background(), "ref.mp4", 7200, dir, rng)
	require.NoError(t, err)

	assert.Equal(t, planned, res.Timestamps)
	assert.Len(t, res.Samples, 14)
	assert.Equal(t, "reference samples: processed 14 of 15", res.SampleRun.String())
	require.Len(t, res.SampleRun.Failures(), 1)
	assert.Equal(t, 4, res.SampleRun.Failures()[0].Index)
	assert.ErrorIs(t, res.SampleRun.Failures()[0].Err, ErrFrameExtract)

	_, err = models.NewSampleSet(res.Samples...)
	assert.NoError(t, err, "reference samples form a valid set")
	for _, smp := range res.Samples {
		assert.NotEqual(t, 4, smp.Index)
	}
	first := res.Samples[0]
	assert.Equal(t, filepath.Join(dir, "screenshot_00.png"), first.Screenshot)
	assert.Equal(t, filepath.Join(dir, "audio_00.wav"), first.Audio)

	require.Len(t, res.Anchors, 3)
	assert.Equal(t, filepath.Join(dir, "anchor_300.wav"), res.Anchors[0].Audio)
	assert.Equal(t, 10.0, ex.audioCalls()[300].duration)
	assert.Equal(t, 180.0, ex.audioCalls()[first.Timestamp].duration)
}

func TestRecordedSampling(t *testing.T) {
	ref := []models.Sample{
		{Index: 0, Timestamp: 5},    // before the recording starts
		{Index: 1, Timestamp: 100},  // plenty of audio left
		{Index: 2, Timestamp: 1100}, // near the end, clip clamped
		{Index: 3, Timestamp: 1500}, // after the recording ends
	}
	ex := &fakeExtractor{}
	s := New(ex, DefaultConfig(), logger.Discard())

	samples, sum, err := s.Recorded(context.Background(), "rec.mp4", 1200, 10, ref, t.TempDir())
	require.NoError(t, err)

	require.Len(t, samples, 2)
	assert.Equal(t, 1, samples[0].Index)
	assert.Equal(t, 90.0, samples[0].Timestamp)
	assert.Equal(t, 2, samples[1].Index)
	assert.Equal(t, 1090.0, samples[1].Timestamp)

	assert.Equal(t, "recorded samples: processed 2 of 4", sum.String())
	fails := sum.Failures()
	require.Len(t, fails, 2)
	assert.Equal(t, 0, fails[0].Index)
	assert.ErrorIs(t, fails[0].Err, ErrOutOfRange)
	assert.Equal(t, 3, fails[1].Index)

	calls := ex.audioCalls()
	assert.Equal(t, 180.0, calls[90].duration)
	assert.InDelta(t, 110.0, calls[1090].duration, 1e-9)
}

func TestRecordedSamplingCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(&fakeExtractor{}, DefaultConfig(), logger.Discard())
	_, _, err := s.Recorded(ctx, "rec.mp4", 1200, 0, []models.Sample{{Index: 0, Timestamp: 100}}, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnmapped(t *testing.T) {
	ref := []models.Sample{{Index: 0, Timestamp: 100}, {Index: 1, Timestamp: 200}}
	s := New(&fakeExtractor{}, DefaultConfig(), logger.Discard())

	// an offset that pushes every sample past a short recording
	samples, sum, err := s.Recorded(context.Background(), "rec.mp4", 50, -500, ref, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, samples)
	assert.True(t, sum.Unmapped())

	ex := &fakeExtractor{failFrame: map[float64]bool{100: true, 200: true}}
	samples, sum, err = New(ex, DefaultConfig(), logger.Discard()).
		Recorded(context.Background(), "rec.mp4", 1200, 0, ref, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, samples)
	assert.False(t, sum.Unmapped(), "extraction failures are not unmapped samples")

	assert.False(t, Summary{}.Unmapped())
	assert.True(t, Summary{Outcomes: []Outcome{{Err: ErrNoAudioLeft}, {Err: ErrOutOfRange}}}.Unmapped())
}
