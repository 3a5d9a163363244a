package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

// Info is the subset of ffprobe output the pipeline relies on.
type Info struct {
	Filename    string
	DurationSec float64
	Format      string
	HasVideo    bool
	HasAudio    bool
	Width       int
	Height      int
	SampleRate  int
}

type ffprobeOutput struct {
	Format struct {
		Filename string `json:"filename"`
		Duration string `json:"duration"`
		Format   string `json:"format_name"`
	} `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecType  string `json:"codec_type"`
	SampleRate string `json:"sample_rate"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Duration   string `json:"duration"`
}

var ErrNoDuration = errors.New("ffprobe reported no duration")

// Probe runs ffprobe on path. A 5 second timeout applies when ctx has no deadline.
func Probe(ctx context.Context, ffprobe, path string) (*Info, error) {
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(
		ctx,
		ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffprobe %s: %w", filepath.Base(path), err)
	}
	return parseProbe(path, out)
}

func parseProbe(path string, out []byte) (*Info, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}

	info := &Info{
		Filename: filepath.Base(path),
		Format:   probe.Format.Format,
	}
	info.DurationSec = parseFloat(probe.Format.Duration)

	for _, s := range probe.Streams {
		switch s.CodecType {
		case "video":
			if !info.HasVideo {
				info.Width, info.Height = s.Width, s.Height
			}
			info.HasVideo = true
		case "audio":
			if !info.HasAudio {
				info.SampleRate, _ = strconv.Atoi(s.SampleRate)
			}
			info.HasAudio = true
		}
		// Some containers only carry duration on the streams.
		if info.DurationSec <= 0 {
			if d := parseFloat(s.Duration); d > info.DurationSec {
				info.DurationSec = d
			}
		}
	}

	if info.DurationSec <= 0 {
		return info, ErrNoDuration
	}
	return info, nil
}

func parseFloat(v string) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}
