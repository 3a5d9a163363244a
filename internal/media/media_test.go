package media

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func sine(freq float64, sr int, seconds float64) []float64 {
	n := int(float64(sr) * seconds)
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sr))
	}
	return out
}

func TestWavRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	in := sine(440, 8000, 0.5)

	if err := WriteWav(path, in, 8000); err != nil {
		t.Fatalf("WriteWav: %v", err)
	}
	out, sr, err := ReadWav(path)
	if err != nil {
		t.Fatalf("ReadWav: %v", err)
	}
	if sr != 8000 {
		t.Errorf("sample rate = %d, want 8000", sr)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if math.Abs(in[i]-out[i]) > 1.0/math.MaxInt16+1e-9 {
			t.Fatalf("sample %d: got %f want %f", i, out[i], in[i])
		}
	}
}

func TestReadWavDownmixesStereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, 8000, 16, 2, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: 8000},
		Data:           []int{16384, 0, -16384, -16384, 8192, 8192},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	out, _, err := ReadWav(path)
	if err != nil {
		t.Fatalf("ReadWav: %v", err)
	}
	want := []float64{0.25, -0.5, 0.25}
	if len(out) != len(want) {
		t.Fatalf("len = %d, want %d", len(out), len(want))
	}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-9 {
			t.Errorf("frame %d = %f, want %f", i, out[i], want[i])
		}
	}
}

func TestReadWavRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, []byte("definitely not riff"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ReadWav(path); !errors.Is(err, ErrInvalidWAV) {
		t.Errorf("expected ErrInvalidWAV, got %v", err)
	}
}

func TestZScore(t *testing.T) {
	z := ZScore([]float64{1, 2, 3, 4, 5}, 1e-6)
	var mean, sq float64
	for _, v := range z {
		mean += v
		sq += v * v
	}
	mean /= float64(len(z))
	if math.Abs(mean) > 1e-9 {
		t.Errorf("mean = %f, want 0", mean)
	}
	if std := math.Sqrt(sq / float64(len(z))); math.Abs(std-1) > 1e-5 {
		t.Errorf("std = %f, want 1", std)
	}

	flat := ZScore([]float64{3, 3, 3}, 1e-6)
	for _, v := range flat {
		if v != 0 {
			t.Errorf("constant input should map to zeros, got %v", flat)
		}
	}
}

func TestRMSNormalize(t *testing.T) {
	out := RMSNormalize([]float64{2, -2, 2, -2})
	for _, v := range out {
		if math.Abs(math.Abs(v)-1) > 1e-12 {
			t.Errorf("expected unit magnitude, got %v", out)
		}
	}
	silent := RMSNormalize([]float64{0, 0})
	if silent[0] != 0 || silent[1] != 0 {
		t.Errorf("silence must stay silent, got %v", silent)
	}
}

func TestPadTo(t *testing.T) {
	out := PadTo([]float64{1, 2}, 4)
	if len(out) != 4 || out[1] != 2 || out[3] != 0 {
		t.Errorf("PadTo = %v", out)
	}
	if got := PadTo([]float64{1, 2, 3}, 2); len(got) != 3 {
		t.Errorf("PadTo must not truncate, got %v", got)
	}
}

func TestResample(t *testing.T) {
	in := sine(100, 8000, 1)
	out := Resample(in, 8000, 16000)
	if len(out) != 16000 {
		t.Fatalf("len = %d, want 16000", len(out))
	}
	for i := 0; i < len(in)-1; i++ {
		if math.Abs(out[2*i]-in[i]) > 1e-12 {
			t.Fatalf("even output sample %d should equal input %d", 2*i, i)
		}
	}
	if same := Resample(in, 8000, 8000); &same[0] != &in[0] {
		t.Error("identical rates should return the input")
	}
}

func TestParseProbe(t *testing.T) {
	raw := []byte(`{
		"format": {"filename": "/v/movie.mp4", "duration": "7261.480000", "format_name": "mov,mp4"},
		"streams": [
			{"codec_type": "video", "width": 1920, "height": 1080},
			{"codec_type": "audio", "sample_rate": "48000"}
		]
	}`)
	info, err := parseProbe("/v/movie.mp4", raw)
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if info.DurationSec != 7261.48 || !info.HasVideo || !info.HasAudio || info.Width != 1920 || info.SampleRate != 48000 {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestParseProbeFallsBackToStreamDuration(t *testing.T) {
	raw := []byte(`{"format": {}, "streams": [{"codec_type": "video", "duration": "12.5"}]}`)
	info, err := parseProbe("clip.webm", raw)
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if info.DurationSec != 12.5 {
		t.Errorf("duration = %f", info.DurationSec)
	}

	_, err = parseProbe("empty.mp4", []byte(`{"format": {"duration": "N/A"}}`))
	if !errors.Is(err, ErrNoDuration) {
		t.Errorf("expected ErrNoDuration, got %v", err)
	}
}

type toneExtractor struct {
	calls []string
}

func (e *toneExtractor) ExtractAudio(ctx context.Context, video string, start, duration float64, sampleRate int, out string) error {
	e.calls = append(e.calls, out)
	// Always write at 16 kHz so the loader has to resample.
	return WriteWav(out, sine(200, 16000, duration), 16000)
}

func TestClipLoader(t *testing.T) {
	dir := t.TempDir()
	ex := &toneExtractor{}
	loader := NewClipLoader(ex, filepath.Join(dir, "scratch"))

	samples, err := loader.LoadClip(context.Background(), "movie.mp4", 10, 0.5, 8000, "anchor00_ref")
	if err != nil {
		t.Fatalf("LoadClip: %v", err)
	}
	if len(samples) != 4000 {
		t.Errorf("len = %d, want 4000", len(samples))
	}
	if len(ex.calls) != 1 || filepath.Base(ex.calls[0]) != "anchor00_ref.wav" {
		t.Errorf("unexpected scratch path %v", ex.calls)
	}
	if _, err := os.Stat(ex.calls[0]); !os.IsNotExist(err) {
		t.Errorf("scratch file should be removed, stat err = %v", err)
	}
}
