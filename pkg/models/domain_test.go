package models

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSampleSetRejectsDuplicateIndex(t *testing.T) {
	_, err := NewSampleSet(
		Sample{Index: 0, Timestamp: 61},
		Sample{Index: 0, Timestamp: 70},
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateIndex))
}

func TestNewSampleSetRejectsUnsorted(t *testing.T) {
	_, err := NewSampleSet(
		Sample{Index: 0, Timestamp: 80},
		Sample{Index: 1, Timestamp: 70},
	)
	assert.ErrorIs(t, err, ErrUnsortedTimestamps)

	_, err = NewSampleSet(Sample{Index: 0, Timestamp: -1})
	assert.ErrorIs(t, err, ErrNegativeTimestamp)
}

func TestNewSampleSetCopiesInput(t *testing.T) {
	in := []Sample{{Index: 3, Timestamp: 1}}
	set, err := NewSampleSet(in...)
	require.NoError(t, err)
	in[0].Timestamp = 99
	assert.Equal(t, 1.0, set[0].Timestamp)
}

func TestSessionMetadataRoundTrip(t *testing.T) {
	meta, err := NewSessionMetadata("s1", "/videos/ref.mp4", 7200, 180,
		[]float64{61.5, 120.25},
		[]Sample{
			{Index: 0, Timestamp: 61.5, Screenshot: "ref/screenshot_00.png", Audio: "ref/audio_00.wav"},
			{Index: 1, Timestamp: 120.25, Screenshot: "ref/screenshot_01.png", Audio: "ref/audio_01.wav"},
		},
		[]Anchor{{Timestamp: 300, Audio: "ref/anchor_300.wav"}, {Timestamp: 600, Audio: "ref/anchor_600.wav"}},
	)
	require.NoError(t, err)

	withRec, err := meta.WithRecorded("/videos/cam.mp4", 7000, 10.2, []Sample{
		{Index: 1, Timestamp: 110.05, Screenshot: "rec/screenshot_01.png", Audio: "rec/audio_01.wav"},
	})
	require.NoError(t, err)
	assert.Empty(t, meta.RecordedSamples, "original metadata must stay untouched")

	data, err := json.Marshal(withRec)
	require.NoError(t, err)

	var decoded SessionMetadata
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NoError(t, decoded.Validate())

	assert.Equal(t, withRec.Samples, decoded.Samples)
	assert.Equal(t, withRec.Anchors, decoded.Anchors)
	assert.Equal(t, withRec.RecordedSamples, decoded.RecordedSamples)
	assert.Equal(t, withRec.Offset, decoded.Offset)
	assert.True(t, withRec.CreatedAt.Equal(decoded.CreatedAt))
}

func TestValidateDetectsTamperedFile(t *testing.T) {
	raw := `{"original_video":"ref.mp4","samples":[{"index":1,"timestamp":5},{"index":1,"timestamp":6}]}`
	var m SessionMetadata
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.ErrorIs(t, m.Validate(), ErrDuplicateIndex)
}

func TestSampleByIndex(t *testing.T) {
	set := []Sample{{Index: 2, Timestamp: 1}, {Index: 7, Timestamp: 2}}
	s, ok := SampleByIndex(set, 7)
	assert.True(t, ok)
	assert.Equal(t, 2.0, s.Timestamp)
	_, ok = SampleByIndex(set, 3)
	assert.False(t, ok)
}

func TestVerdictSanitize(t *testing.T) {
	v := Verdict{
		ImageMatchPercentage: math.NaN(),
		AvgAudioSimilarity:   math.Inf(1),
		AvgImageDistance:     12,
		Records:              []ComparisonRecord{{Index: 0, AudioSimilarity: math.NaN()}},
	}.Sanitize()

	assert.Equal(t, 0.0, v.ImageMatchPercentage)
	assert.Equal(t, 0.0, v.AvgAudioSimilarity)
	assert.Equal(t, 12.0, v.AvgImageDistance)
	assert.Equal(t, 0.0, v.Records[0].AudioSimilarity)
	assert.NotNil(t, v.MatchedTimestamps)

	_, err := json.Marshal(v)
	assert.NoError(t, err)
}
