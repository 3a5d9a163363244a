package reeldna

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/himanishpuri/ReelDNA/internal/align"
	"github.com/himanishpuri/ReelDNA/internal/archive"
	"github.com/himanishpuri/ReelDNA/internal/compare"
	"github.com/himanishpuri/ReelDNA/internal/decision"
	"github.com/himanishpuri/ReelDNA/internal/evidence"
	"github.com/himanishpuri/ReelDNA/internal/ingest"
	"github.com/himanishpuri/ReelDNA/internal/report"
	"github.com/himanishpuri/ReelDNA/internal/sampler"
)

type PathsConfig struct {
	SessionDir string `toml:"session_dir"`
	DBPath     string `toml:"db_path"`
	TempDir    string `toml:"temp_dir"`
}

type SamplingConfig struct {
	NumSamples          int       `toml:"num_samples"`
	AudioDuration       float64   `toml:"audio_duration"`
	MinTimestampOffset  float64   `toml:"min_timestamp_offset"`
	MaxTimestampOffset  float64   `toml:"max_timestamp_offset"`
	ShortVideoThreshold float64   `toml:"short_video_threshold"`
	RelativeAnchors     []float64 `toml:"relative_anchors"`
	AnchorTimes         []float64 `toml:"anchor_times"`
	AnchorDuration      float64   `toml:"anchor_duration"`
	AudioSampleRate     int       `toml:"audio_sample_rate"`
	ScreenshotFormat    string    `toml:"screenshot_format"`
	Workers             int       `toml:"workers"`
}

type SyncConfig struct {
	SearchWindow  float64 `toml:"search_window"`
	SampleRate    int     `toml:"sample_rate"`
	LowConfidence float64 `toml:"low_confidence"` // minimum normalised correlation peak
	Epsilon       float64 `toml:"epsilon"`
	Workers       int     `toml:"workers"`
}

type CompareConfig struct {
	ImageSize                int     `toml:"image_size"`
	ImageHashThreshold       int     `toml:"image_hash_threshold"`
	AudioSampleRate          int     `toml:"audio_sample_rate"`
	AudioSimilarityThreshold float64 `toml:"audio_similarity_threshold"`
	Workers                  int     `toml:"workers"`
}

type DecisionConfig struct {
	ScreenshotMatchPercentage     float64 `toml:"screenshot_match_percentage"`
	VisualStrongPercentage        float64 `toml:"visual_strong_percentage"`
	AudioReasonableSimilarity     float64 `toml:"audio_reasonable_similarity"`
	AudioAssistedVisualPercentage float64 `toml:"audio_assisted_visual_percentage"`
	RequireAudioConfirmation      bool    `toml:"require_audio_confirmation"`
}

type ReportConfig struct {
	Enabled           bool     `toml:"enabled"`
	MovieName         string   `toml:"movie_name"`
	ProductionCompany string   `toml:"production_company"`
	ContactName       string   `toml:"contact_name"`
	WebhookURL        string   `toml:"webhook_url"`
	WebhookTimeoutSec float64  `toml:"webhook_timeout_sec"`
	Command           []string `toml:"command"`
	CommandTimeoutSec float64  `toml:"command_timeout_sec"`
}

type IngestConfig struct {
	Dir               string   `toml:"dir"`
	Mode              string   `toml:"mode"`
	PollSchedule      string   `toml:"poll_schedule"`
	Extensions        []string `toml:"extensions"`
	MinFileSizeMB     float64  `toml:"min_file_size_mb"`
	StableIntervalSec float64  `toml:"stable_interval_sec"`
	StableChecks      int      `toml:"stable_checks"`
	MaxConcurrentRuns int64    `toml:"max_concurrent_runs"`
	FetchDir          string   `toml:"fetch_dir"`
	RedisAddr         string   `toml:"redis_addr"`
	RedisPassword     string   `toml:"redis_password"`
	RedisDB           int      `toml:"redis_db"`
	SeenTTLHours      float64  `toml:"seen_ttl_hours"`
}

type MediaConfig struct {
	FFmpegPath  string  `toml:"ffmpeg_path"`
	FFprobePath string  `toml:"ffprobe_path"`
	TimeoutSec  float64 `toml:"timeout_sec"`
}

type ArchiveConfig struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	UseSSL    bool   `toml:"use_ssl"`
}

type EvidenceConfig struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Config holds every path and threshold the pipeline uses. Build it with
// DefaultConfig or LoadConfig and pass it to NewService.
type Config struct {
	Paths    PathsConfig    `toml:"paths"`
	Sampling SamplingConfig `toml:"sampling"`
	Sync     SyncConfig     `toml:"sync"`
	Compare  CompareConfig  `toml:"compare"`
	Decision DecisionConfig `toml:"decision"`
	Report   ReportConfig   `toml:"report"`
	Ingest   IngestConfig   `toml:"ingest"`
	Media    MediaConfig    `toml:"media"`
	Archive  ArchiveConfig  `toml:"archive"`
	Evidence EvidenceConfig `toml:"evidence"`
	Log      LogConfig      `toml:"log"`

	// Seed fixes the random reference timestamps. Zero draws a fresh seed.
	Seed int64 `toml:"seed"`

	Logger    Logger    `toml:"-"`
	Storage   Storage   `toml:"-"`
	Extractor Extractor `toml:"-"`
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.Paths.DBPath = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.Paths.TempDir = dir
	}
}

func WithSessionDir(dir string) Option {
	return func(c *Config) {
		c.Paths.SessionDir = dir
	}
}

func WithSeed(seed int64) Option {
	return func(c *Config) {
		c.Seed = seed
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func WithExtractor(ex Extractor) Option {
	return func(c *Config) {
		c.Extractor = ex
	}
}

// WithConfig replaces the whole configuration, keeping any collaborators
// already set by earlier options when cfg leaves them nil.
func WithConfig(cfg *Config) Option {
	return func(c *Config) {
		logger, storage, ex := c.Logger, c.Storage, c.Extractor
		*c = *cfg
		if c.Logger == nil {
			c.Logger = logger
		}
		if c.Storage == nil {
			c.Storage = storage
		}
		if c.Extractor == nil {
			c.Extractor = ex
		}
	}
}

func DefaultConfig() *Config {
	smp := sampler.DefaultConfig()
	syn := align.DefaultConfig()
	cmp := compare.DefaultConfig()
	th := decision.DefaultThresholds()
	rep := report.DefaultConfig()
	ing := ingest.DefaultConfig()
	ev := evidence.DefaultConfig()

	return &Config{
		Paths: PathsConfig{
			SessionDir: "session",
			DBPath:     "reeldna.sqlite3",
			TempDir:    os.TempDir(),
		},
		Sampling: SamplingConfig{
			NumSamples:          smp.NumSamples,
			AudioDuration:       smp.AudioDuration,
			MinTimestampOffset:  smp.MinTimestampOffset,
			MaxTimestampOffset:  smp.MaxTimestampOffset,
			ShortVideoThreshold: smp.ShortVideoThreshold,
			RelativeAnchors:     smp.RelativeAnchors,
			AnchorTimes:         smp.AnchorTimes,
			AnchorDuration:      smp.AnchorDuration,
			AudioSampleRate:     smp.AudioSampleRate,
			ScreenshotFormat:    smp.ScreenshotFormat,
			Workers:             smp.Workers,
		},
		Sync: SyncConfig{
			SearchWindow:  syn.SearchWindow,
			SampleRate:    syn.SampleRate,
			LowConfidence: syn.LowConfidence,
			Epsilon:       syn.Epsilon,
			Workers:       syn.Workers,
		},
		Compare: CompareConfig{
			ImageSize:                cmp.ImageSize,
			ImageHashThreshold:       cmp.ImageHashThreshold,
			AudioSampleRate:          cmp.AudioSampleRate,
			AudioSimilarityThreshold: cmp.AudioSimilarityThreshold,
			Workers:                  cmp.Workers,
		},
		Decision: DecisionConfig{
			ScreenshotMatchPercentage:     th.ScreenshotMatchPercentage,
			VisualStrongPercentage:        th.VisualStrongPercentage,
			AudioReasonableSimilarity:     th.AudioReasonableSimilarity,
			AudioAssistedVisualPercentage: th.AudioAssistedVisualPercentage,
			RequireAudioConfirmation:      th.RequireAudioConfirmation,
		},
		Report: ReportConfig{
			Enabled:           rep.Enabled,
			WebhookTimeoutSec: rep.WebhookTimeout.Seconds(),
			CommandTimeoutSec: rep.CommandTimeout.Seconds(),
		},
		Ingest: IngestConfig{
			Dir:               ing.Dir,
			Mode:              ing.Mode,
			PollSchedule:      ing.PollSchedule,
			Extensions:        ing.Extensions,
			MinFileSizeMB:     ing.MinFileSizeMB,
			StableIntervalSec: ing.StableInterval.Seconds(),
			StableChecks:      ing.StableChecks,
			MaxConcurrentRuns: ing.MaxConcurrentRuns,
			FetchDir:          "downloads/fetched",
			SeenTTLHours:      72,
		},
		Media: MediaConfig{
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
			TimeoutSec:  300,
		},
		Archive: ArchiveConfig{
			Bucket: "reeldna-evidence",
		},
		Evidence: EvidenceConfig{
			Width:  ev.Width,
			Height: ev.Height,
		},
		Log: LogConfig{
			Level: "INFO",
		},
	}
}

// LoadConfig builds a Config from defaults, an optional TOML file and the
// environment. envFiles are loaded with godotenv first; when none are given
// a .env in the working directory is used if present. Variables already set
// in the environment win over .env values.
func LoadConfig(path string, envFiles ...string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			envFiles = []string{".env"}
		}
	}
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("REELDNA_SESSION_DIR", &c.Paths.SessionDir)
	str("REELDNA_DB_PATH", &c.Paths.DBPath)
	str("REELDNA_TEMP_DIR", &c.Paths.TempDir)
	integer("REELDNA_NUM_SAMPLES", &c.Sampling.NumSamples)
	str("REELDNA_FFMPEG", &c.Media.FFmpegPath)
	str("REELDNA_FFPROBE", &c.Media.FFprobePath)
	boolean("REELDNA_REPORTING", &c.Report.Enabled)
	str("REELDNA_MOVIE_NAME", &c.Report.MovieName)
	str("REELDNA_PRODUCTION_COMPANY", &c.Report.ProductionCompany)
	str("REELDNA_CONTACT_NAME", &c.Report.ContactName)
	str("REELDNA_WEBHOOK_URL", &c.Report.WebhookURL)
	if v, ok := os.LookupEnv("REELDNA_REPORT_COMMAND"); ok {
		c.Report.Command = strings.Fields(v)
	}
	str("REELDNA_INGEST_DIR", &c.Ingest.Dir)
	str("REELDNA_INGEST_MODE", &c.Ingest.Mode)
	str("REELDNA_REDIS_ADDR", &c.Ingest.RedisAddr)
	str("REELDNA_REDIS_PASSWORD", &c.Ingest.RedisPassword)
	str("REELDNA_ARCHIVE_ENDPOINT", &c.Archive.Endpoint)
	str("REELDNA_ARCHIVE_ACCESS_KEY", &c.Archive.AccessKey)
	str("REELDNA_ARCHIVE_SECRET_KEY", &c.Archive.SecretKey)
	str("REELDNA_ARCHIVE_BUCKET", &c.Archive.Bucket)
	boolean("REELDNA_ARCHIVE_SSL", &c.Archive.UseSSL)
	str("REELDNA_LOG_LEVEL", &c.Log.Level)
	str("REELDNA_LOG_FILE", &c.Log.File)
	if v, ok := os.LookupEnv("REELDNA_SEED"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("REELDNA_SEED: %w", err))
		} else {
			c.Seed = n
		}
	}

	return errors.Join(errs...)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Paths.SessionDir != "", "paths.session_dir is empty")
	check(c.Sampling.NumSamples > 0, "sampling.num_samples must be positive, got %d", c.Sampling.NumSamples)
	check(c.Sampling.AudioDuration > 0, "sampling.audio_duration must be positive")
	check(c.Sampling.MinTimestampOffset >= 0 && c.Sampling.MaxTimestampOffset >= 0, "sampling timestamp offsets must not be negative")
	check(c.Sampling.AnchorDuration > 0, "sampling.anchor_duration must be positive")
	check(c.Sampling.AudioSampleRate > 0, "sampling.audio_sample_rate must be positive")
	for _, r := range c.Sampling.RelativeAnchors {
		check(r > 0 && r < 1, "sampling.relative_anchors must lie in (0, 1), got %g", r)
	}
	check(c.Sync.SearchWindow > 0, "sync.search_window must be positive")
	check(c.Sync.SampleRate > 0, "sync.sample_rate must be positive")
	check(c.Compare.ImageHashThreshold >= 0, "compare.image_hash_threshold must not be negative")
	check(c.Compare.AudioSampleRate > 0, "compare.audio_sample_rate must be positive")
	for name, v := range map[string]float64{
		"decision.screenshot_match_percentage":      c.Decision.ScreenshotMatchPercentage,
		"decision.visual_strong_percentage":         c.Decision.VisualStrongPercentage,
		"decision.audio_assisted_visual_percentage": c.Decision.AudioAssistedVisualPercentage,
	} {
		check(v >= 0 && v <= 1, "%s must be a fraction in [0, 1], got %g", name, v)
	}
	check(c.Media.FFmpegPath != "" && c.Media.FFprobePath != "", "media tool paths must be set")

	ing := c.IngestConfig()
	if err := ing.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.ArchiveConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) SamplerConfig() sampler.Config {
	return sampler.Config{
		NumSamples:          c.Sampling.NumSamples,
		AudioDuration:       c.Sampling.AudioDuration,
		MinTimestampOffset:  c.Sampling.MinTimestampOffset,
		MaxTimestampOffset:  c.Sampling.MaxTimestampOffset,
		ShortVideoThreshold: c.Sampling.ShortVideoThreshold,
		RelativeAnchors:     c.Sampling.RelativeAnchors,
		AnchorTimes:         c.Sampling.AnchorTimes,
		AnchorDuration:      c.Sampling.AnchorDuration,
		AudioSampleRate:     c.Sampling.AudioSampleRate,
		ScreenshotFormat:    c.Sampling.ScreenshotFormat,
		Workers:             c.Sampling.Workers,
	}
}

func (c *Config) AlignConfig() align.Config {
	return align.Config{
		AnchorTimes:    c.Sampling.AnchorTimes,
		AnchorDuration: c.Sampling.AnchorDuration,
		SearchWindow:   c.Sync.SearchWindow,
		SampleRate:     c.Sync.SampleRate,
		LowConfidence:  c.Sync.LowConfidence,
		Epsilon:        c.Sync.Epsilon,
		Workers:        c.Sync.Workers,
	}
}

func (c *Config) CompareConfig() compare.Config {
	return compare.Config{
		ImageSize:                c.Compare.ImageSize,
		ImageHashThreshold:       c.Compare.ImageHashThreshold,
		AudioSampleRate:          c.Compare.AudioSampleRate,
		AudioSimilarityThreshold: c.Compare.AudioSimilarityThreshold,
		Workers:                  c.Compare.Workers,
	}
}

func (c *Config) Thresholds() decision.Thresholds {
	return decision.Thresholds{
		ScreenshotMatchPercentage:     c.Decision.ScreenshotMatchPercentage,
		VisualStrongPercentage:        c.Decision.VisualStrongPercentage,
		AudioSimilarityThreshold:      c.Compare.AudioSimilarityThreshold,
		AudioReasonableSimilarity:     c.Decision.AudioReasonableSimilarity,
		AudioAssistedVisualPercentage: c.Decision.AudioAssistedVisualPercentage,
		RequireAudioConfirmation:      c.Decision.RequireAudioConfirmation,
	}
}

func (c *Config) ReportConfig() report.Config {
	return report.Config{
		Enabled:           c.Report.Enabled,
		MovieName:         c.Report.MovieName,
		ProductionCompany: c.Report.ProductionCompany,
		ContactName:       c.Report.ContactName,
		WebhookURL:        c.Report.WebhookURL,
		WebhookTimeout:    seconds(c.Report.WebhookTimeoutSec),
		Command:           c.Report.Command,
		CommandTimeout:    seconds(c.Report.CommandTimeoutSec),
	}
}

func (c *Config) IngestConfig() ingest.Config {
	return ingest.Config{
		Dir:               c.Ingest.Dir,
		Mode:              c.Ingest.Mode,
		PollSchedule:      c.Ingest.PollSchedule,
		Extensions:        c.Ingest.Extensions,
		MinFileSizeMB:     c.Ingest.MinFileSizeMB,
		StableInterval:    seconds(c.Ingest.StableIntervalSec),
		StableChecks:      c.Ingest.StableChecks,
		MaxConcurrentRuns: c.Ingest.MaxConcurrentRuns,
	}
}

func (c *Config) RedisOptions() ingest.RedisOptions {
	return ingest.RedisOptions{
		Addr:     c.Ingest.RedisAddr,
		Password: c.Ingest.RedisPassword,
		DB:       c.Ingest.RedisDB,
		TTL:      time.Duration(c.Ingest.SeenTTLHours * float64(time.Hour)),
	}
}

func (c *Config) ArchiveConfig() archive.Config {
	return archive.Config{
		Endpoint:  c.Archive.Endpoint,
		AccessKey: c.Archive.AccessKey,
		SecretKey: c.Archive.SecretKey,
		Bucket:    c.Archive.Bucket,
		Region:    c.Archive.Region,
		UseSSL:    c.Archive.UseSSL,
	}
}

func (c *Config) EvidenceConfig() evidence.Config {
	return evidence.Config{Width: c.Evidence.Width, Height: c.Evidence.Height}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
