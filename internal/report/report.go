// Package report turns a pirated verdict into a takedown record and hands it
// to the configured sinks.
package report

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/ReelDNA/internal/decision"
	"github.com/himanishpuri/ReelDNA/pkg/models"
)

const (
	StatusPirated = "PIRATED"
	unknownID     = "Unknown"
	timeLayout    = "2006-01-02 15:04:05"
)

type Config struct {
	Enabled           bool
	MovieName         string
	ProductionCompany string
	ContactName       string
	WebhookURL        string
	WebhookTimeout    time.Duration
	// Command is an argv run after each report. {channel}, {message},
	// {movie} and {file} are substituted.
	Command        []string
	CommandTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		WebhookTimeout: 15 * time.Second,
		CommandTimeout: 2 * time.Minute,
	}
}

// ParseSourceIDs reads channel and message ids from a suspect file named
// <channel>_<message>.<ext>. Missing parts come back as "Unknown".
func ParseSourceIDs(path string) (channel, message string) {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.SplitN(name, "_", 3)
	if len(parts) < 2 || parts[0] == "" {
		return unknownID, unknownID
	}
	channel, message = parts[0], parts[1]
	if message == "" {
		message = unknownID
	}
	return channel, message
}

// FormatTimestamps renders seconds as a bracketed list of whole seconds, e.g. "[62, 75]".
func FormatTimestamps(ts []float64) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = strconv.FormatInt(int64(math.Round(t)), 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Builder renders reports for one production.
type Builder struct {
	cfg Config
	th  decision.Thresholds
	now func() time.Time
}

func NewBuilder(cfg Config, th decision.Thresholds) *Builder {
	return &Builder{cfg: cfg, th: th, now: time.Now}
}

// Build produces the report record, notice text included, for a suspect file.
func (b *Builder) Build(v models.Verdict, suspectPath string) (models.Report, error) {
	v = v.Sanitize()
	channel, message := ParseSourceIDs(suspectPath)

	r := models.Report{
		MovieName:              b.cfg.MovieName,
		ProductionCompany:      b.cfg.ProductionCompany,
		ChannelID:              channel,
		MessageID:              message,
		VisualMatchScore:       fmt.Sprintf("%.1f%%", v.ImageMatchPercentage*100),
		AudioMatchScore:        fmt.Sprintf("%.2f", v.AvgAudioSimilarity),
		MatchedTimestamps:      FormatTimestamps(v.MatchedTimestamps),
		MatchedAudioTimestamps: FormatTimestamps(v.MatchedAudioTimestamps),
		DetectionTimestamp:     b.now().Format(timeLayout),
		ContactName:            b.cfg.ContactName,
		Status:                 StatusPirated,
	}

	text, err := renderNotice(noticeData{
		Report:          r,
		Rule:            v.Rule,
		Basis:           basisFor(v.Rule),
		VisualThreshold: b.th.ScreenshotMatchPercentage * 100,
		AudioThreshold:  b.th.AudioSimilarityThreshold,
		AudioConfirmed:  v.AvgAudioSimilarity >= b.th.AudioSimilarityThreshold,
		VisualConfirmed: v.ImageMatchPercentage >= b.th.ScreenshotMatchPercentage,
	})
	if err != nil {
		return r, err
	}
	r.NoticeText = text
	return r, nil
}

func basisFor(rule string) string {
	switch rule {
	case decision.RuleVisualAndAudio, decision.RuleAudioAssisted:
		return "BOTH"
	case decision.RuleVisualStrong, decision.RuleVisualOnly:
		return "VISUAL"
	default:
		return "NONE"
	}
}
