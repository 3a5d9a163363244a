package session

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/himanishpuri/ReelDNA/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMetadata(t *testing.T) *models.SessionMetadata {
	t.Helper()
	meta, err := models.NewSessionMetadata("sess-1", "/videos/movie.mp4", 7200, 180,
		[]float64{70, 95.5},
		[]models.Sample{
			{Index: 0, Timestamp: 70, Screenshot: "reference/screenshot_00.png", Audio: "reference/audio_00.wav"},
			{Index: 1, Timestamp: 95.5, Screenshot: "reference/screenshot_01.png", Audio: "reference/audio_01.wav"},
		},
		[]models.Anchor{{Timestamp: 300, Audio: "reference/anchor_300.wav"}},
	)
	require.NoError(t, err)
	return meta
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "session"))
	require.NoError(t, s.Init())
	assert.False(t, s.Exists())

	meta := testMetadata(t)
	require.NoError(t, s.Save(ctx, meta))
	assert.True(t, s.Exists())

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, meta.Samples, got.Samples)
	assert.Equal(t, meta.Anchors, got.Anchors)
	assert.Equal(t, meta.ReferenceDuration, got.ReferenceDuration)
}

func TestLoadMissing(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoMetadata)
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, os.WriteFile(s.MetadataPath(), []byte("{not json"), 0o644))
	_, err := s.Load(context.Background())
	assert.Error(t, err)

	dup := `{"original_video":"a.mp4","samples":[{"index":0,"timestamp":1},{"index":0,"timestamp":2}]}`
	require.NoError(t, os.WriteFile(s.MetadataPath(), []byte(dup), 0o644))
	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, models.ErrDuplicateIndex)
}

func TestSaveFailsWhileLocked(t *testing.T) {
	dir := t.TempDir()
	s := New(dir).WithLockTimeout(150 * time.Millisecond)

	held := flock.New(s.MetadataPath() + ".lock")
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock()

	err = s.Save(context.Background(), testMetadata(t))
	assert.ErrorIs(t, err, ErrLocked)
}

func TestVerdictExportIsFinite(t *testing.T) {
	s := New(t.TempDir())
	v := models.Verdict{TotalSamples: 3, AvgAudioSimilarity: math.NaN(), Rule: "insufficient_evidence"}
	require.NoError(t, s.SaveVerdict(v))

	got, err := s.LoadVerdict()
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.AvgAudioSimilarity)
	assert.Equal(t, []float64{}, got.MatchedTimestamps)
	assert.Equal(t, "insufficient_evidence", got.Rule)
}

func TestCleanKeepsMetadata(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())
	require.NoError(t, s.Init())
	require.NoError(t, s.Save(ctx, testMetadata(t)))
	require.NoError(t, os.WriteFile(filepath.Join(s.RecordedDir(), "screenshot_00.png"), []byte("x"), 0o644))
	require.NoError(t, s.SaveVerdict(models.Verdict{}))

	require.NoError(t, s.Clean())
	entries, err := os.ReadDir(s.RecordedDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.True(t, s.Exists())
	_, err = os.Stat(s.ResultsPath())
	assert.True(t, os.IsNotExist(err))
}

func TestRunStoreIsNested(t *testing.T) {
	s := New("/data/session")
	run := s.Run("abc")
	assert.Equal(t, filepath.Join("/data/session", RunsDir, "abc"), run.Dir())
	assert.Equal(t, filepath.Join("/data/session", RunsDir, "abc", RecordedDir), run.RecordedDir())
}
