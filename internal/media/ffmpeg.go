package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/ReelDNA/pkg/utils"
)

// FFmpeg extracts frames and audio clips by shelling out to the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
	Timeout     time.Duration // applied when the caller's context has no deadline
}

func NewFFmpeg(ffmpegPath, ffprobePath string, timeout time.Duration) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &FFmpeg{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, Timeout: timeout}
}

// CheckTools verifies that both binaries can be executed.
func (f *FFmpeg) CheckTools(ctx context.Context) error {
	for _, bin := range []string{f.FFmpegPath, f.FFprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found in PATH: %w", bin, err)
		}
		if err := exec.CommandContext(ctx, bin, "-version").Run(); err != nil {
			return fmt.Errorf("%s -version: %w", bin, err)
		}
	}
	return nil
}

func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	info, err := Probe(ctx, f.FFprobePath, path)
	if err != nil {
		return 0, err
	}
	return info.DurationSec, nil
}

// ExtractFrame writes the frame at `at` seconds to out. The image format follows out's extension.
func (f *FFmpeg) ExtractFrame(ctx context.Context, video string, at float64, out string) error {
	return f.run(ctx, out, []string{
		"-ss", formatSeconds(at),
		"-i", video,
		"-frames:v", "1",
		"-q:v", "2",
	})
}

// ExtractAudio writes a mono 16-bit PCM WAV clip of `duration` seconds starting at `start`.
func (f *FFmpeg) ExtractAudio(ctx context.Context, video string, start, duration float64, sampleRate int, out string) error {
	if sampleRate <= 0 {
		sampleRate = 22050
	}
	return f.run(ctx, out, []string{
		"-ss", formatSeconds(start),
		"-i", video,
		"-t", formatSeconds(duration),
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
	})
}

func (f *FFmpeg) run(ctx context.Context, out string, args []string) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	if err := utils.MakeDir(filepath.Dir(out)); err != nil {
		return err
	}

	ext := filepath.Ext(out)
	tmpPath := strings.TrimSuffix(out, ext) + ".tmp" + ext
	defer os.Remove(tmpPath)

	full := append([]string{"-y", "-v", "error"}, args...)
	full = append(full, tmpPath)
	cmd := exec.CommandContext(ctx, f.FFmpegPath, full...)

	if output, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg failed: %w (%s)", err, strings.TrimSpace(string(output)))
	}

	if fi, err := os.Stat(tmpPath); err != nil || fi.Size() == 0 {
		return fmt.Errorf("ffmpeg produced no output for %s", filepath.Base(out))
	}

	return utils.MoveFile(tmpPath, out)
}

func formatSeconds(s float64) string {
	if s < 0 {
		s = 0
	}
	return strconv.FormatFloat(s, 'f', 3, 64)
}
