package compare

import (
	"github.com/himanishpuri/ReelDNA/pkg/logger"
)

// FailedDistance is reported as the visual distance when either image cannot be hashed.
const FailedDistance = 999

type Config struct {
	ImageSize                int // frames are resized to ImageSize x ImageSize before hashing
	ImageHashThreshold       int
	AudioSampleRate          int
	AudioSimilarityThreshold float64
	Workers                  int
}

func DefaultConfig() Config {
	return Config{
		ImageSize:                512,
		ImageHashThreshold:       25,
		AudioSampleRate:          22050,
		AudioSimilarityThreshold: 0.30,
		Workers:                  4,
	}
}

// Comparator measures visual and audio similarity between sample pairs.
type Comparator struct {
	cfg Config
	log logger.Interface
}

func New(cfg Config, log logger.Interface) *Comparator {
	def := DefaultConfig()
	if cfg.ImageSize <= 0 {
		cfg.ImageSize = def.ImageSize
	}
	if cfg.AudioSampleRate <= 0 {
		cfg.AudioSampleRate = def.AudioSampleRate
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Comparator{cfg: cfg, log: log}
}
