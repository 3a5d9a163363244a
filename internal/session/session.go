// Package session persists the metadata hand-off between the reference and
// recorded stages of a detection run.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/himanishpuri/ReelDNA/pkg/models"
	"github.com/himanishpuri/ReelDNA/pkg/utils"
)

const (
	MetadataFile = "metadata.json"
	ResultsFile  = "results.json"
	ReferenceDir = "reference"
	RecordedDir  = "recorded"
	EvidenceDir  = "evidence"
	RunsDir      = "runs"
	NoticeFile   = "notice.txt"

	lockRetry = 50 * time.Millisecond
)

var (
	ErrNoMetadata = errors.New("session metadata not found")
	ErrLocked     = errors.New("session is locked by another process")
)

// Store owns one session directory. Writers take an exclusive file lock so
// two processes never interleave writes to the same metadata.
type Store struct {
	dir         string
	lockTimeout time.Duration
}

func New(dir string) *Store {
	return &Store{dir: dir, lockTimeout: 10 * time.Second}
}

// WithLockTimeout sets how long Save and Load wait for the lock.
func (s *Store) WithLockTimeout(d time.Duration) *Store {
	s.lockTimeout = d
	return s
}

func (s *Store) Dir() string          { return s.dir }
func (s *Store) ReferenceDir() string { return filepath.Join(s.dir, ReferenceDir) }
func (s *Store) RecordedDir() string  { return filepath.Join(s.dir, RecordedDir) }
func (s *Store) EvidenceDir() string  { return filepath.Join(s.dir, EvidenceDir) }
func (s *Store) MetadataPath() string { return filepath.Join(s.dir, MetadataFile) }
func (s *Store) ResultsPath() string  { return filepath.Join(s.dir, ResultsFile) }
func (s *Store) NoticePath() string   { return filepath.Join(s.dir, NoticeFile) }

// Run returns the store for one suspect run nested under this session.
func (s *Store) Run(id string) *Store {
	return New(filepath.Join(s.dir, RunsDir, id)).WithLockTimeout(s.lockTimeout)
}

// Init creates the session directory layout.
func (s *Store) Init() error {
	for _, d := range []string{s.dir, s.ReferenceDir(), s.RecordedDir()} {
		if err := utils.MakeDir(d); err != nil {
			return fmt.Errorf("failed to create %s: %w", d, err)
		}
	}
	return nil
}

// Exists reports whether metadata has been written to this session.
func (s *Store) Exists() bool {
	return utils.FileExists(s.MetadataPath())
}

func (s *Store) lock(ctx context.Context, shared bool) (*flock.Flock, error) {
	if err := utils.MakeDir(s.dir); err != nil {
		return nil, err
	}
	fl := flock.New(s.MetadataPath() + ".lock")

	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	var (
		ok  bool
		err error
	)
	if shared {
		ok, err = fl.TryRLockContext(ctx, lockRetry)
	} else {
		ok, err = fl.TryLockContext(ctx, lockRetry)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return fl, nil
}

// Save validates meta and writes it atomically.
func (s *Store) Save(ctx context.Context, meta *models.SessionMetadata) error {
	if meta == nil {
		return errors.New("nil metadata")
	}
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid metadata: %w", err)
	}

	fl, err := s.lock(ctx, false)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	return utils.WriteFileAtomic(s.MetadataPath(), data, 0o644)
}

// Load reads and validates the session metadata.
func (s *Store) Load(ctx context.Context) (*models.SessionMetadata, error) {
	fl, err := s.lock(ctx, true)
	if err != nil {
		return nil, err
	}
	defer fl.Unlock()

	data, err := os.ReadFile(s.MetadataPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w in %s", ErrNoMetadata, s.dir)
		}
		return nil, err
	}

	var meta models.SessionMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("corrupt metadata %s: %w", s.MetadataPath(), err)
	}
	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid metadata %s: %w", s.MetadataPath(), err)
	}
	return &meta, nil
}

// SaveVerdict writes the exported verdict next to the metadata.
func (s *Store) SaveVerdict(v models.Verdict) error {
	data, err := json.MarshalIndent(v.Sanitize(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode verdict: %w", err)
	}
	return utils.WriteFileAtomic(s.ResultsPath(), data, 0o644)
}

// LoadVerdict reads a previously exported verdict.
func (s *Store) LoadVerdict() (models.Verdict, error) {
	var v models.Verdict
	data, err := os.ReadFile(s.ResultsPath())
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("corrupt results %s: %w", s.ResultsPath(), err)
	}
	return v, nil
}

// Clean removes recorded-side artefacts so the recorded stage can be rerun.
func (s *Store) Clean() error {
	if err := os.RemoveAll(s.RecordedDir()); err != nil {
		return err
	}
	if err := os.Remove(s.ResultsPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return utils.MakeDir(s.RecordedDir())
}
