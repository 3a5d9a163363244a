// Package ingest watches a download directory for suspect videos and feeds
// them to the detection pipeline.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"

	"github.com/himanishpuri/ReelDNA/pkg/logger"
)

const (
	ModeEvent = "event"
	ModePoll  = "poll"
)

type Config struct {
	Dir               string
	Mode              string
	PollSchedule      string
	Extensions        []string
	MinFileSizeMB     float64
	StableInterval    time.Duration
	StableChecks      int
	MaxConcurrentRuns int64
}

func DefaultConfig() Config {
	return Config{
		Dir:               "downloads",
		Mode:              ModeEvent,
		PollSchedule:      "@every 30s",
		Extensions:        []string{".mp4", ".mkv", ".avi", ".mov", ".webm"},
		MinFileSizeMB:     10,
		StableInterval:    2 * time.Second,
		StableChecks:      2,
		MaxConcurrentRuns: 1,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Dir == "" {
		errs = append(errs, errors.New("ingest dir is empty"))
	}
	if c.Mode != ModeEvent && c.Mode != ModePoll {
		errs = append(errs, fmt.Errorf("unknown ingest mode %q", c.Mode))
	}
	if c.Mode == ModePoll {
		if _, err := cron.ParseStandard(c.PollSchedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid poll schedule %q: %w", c.PollSchedule, err))
		}
	}
	if c.MaxConcurrentRuns < 1 {
		errs = append(errs, errors.New("max concurrent runs must be at least 1"))
	}
	return errors.Join(errs...)
}

// Handler processes one stable suspect file.
type Handler func(ctx context.Context, path string) error

type Watcher struct {
	cfg     Config
	handle  Handler
	seen    SeenStore
	sem     *semaphore.Weighted
	log     logger.Interface
	pending chan string
	wg      sync.WaitGroup
}

func NewWatcher(cfg Config, handle Handler, seen SeenStore, log logger.Interface) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if seen == nil {
		seen = NewMemorySeen()
	}
	if cfg.StableChecks < 1 {
		cfg.StableChecks = 1
	}
	return &Watcher{
		cfg:     cfg,
		handle:  handle,
		seen:    seen,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrentRuns),
		log:     log,
		pending: make(chan string, 64),
	}, nil
}

// Run blocks until ctx is cancelled, processing existing and new files.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create ingest dir: %w", err)
	}
	w.log.Infof("Watching %s (%s mode, min size %s)", w.cfg.Dir, w.cfg.Mode,
		humanize.Bytes(uint64(w.cfg.MinFileSizeMB*1024*1024)))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.dispatch(ctx)
	}()

	var err error
	switch w.cfg.Mode {
	case ModePoll:
		err = w.poll(ctx)
	default:
		err = w.watch(ctx)
	}
	cancel()
	<-done
	w.wg.Wait()
	return err
}

func (w *Watcher) watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.cfg.Dir, err)
	}
	w.Scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				w.offer(ctx, event.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warnf("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(w.cfg.PollSchedule, func() { w.Scan(ctx) }); err != nil {
		return fmt.Errorf("invalid poll schedule: %w", err)
	}
	w.Scan(ctx)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// Scan offers every file currently in the directory.
func (w *Watcher) Scan(ctx context.Context) {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		w.log.Warnf("Failed to scan %s: %v", w.cfg.Dir, err)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		w.offer(ctx, filepath.Join(w.cfg.Dir, e.Name()))
	}
}

func (w *Watcher) offer(ctx context.Context, path string) {
	if !w.hasVideoExt(path) {
		return
	}
	select {
	case w.pending <- path:
	case <-ctx.Done():
	}
}

func (w *Watcher) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.pending:
			w.consider(ctx, path)
		}
	}
}

// consider runs the size and stability checks, claims the file and hands it to
// the handler once a run slot is free.
func (w *Watcher) consider(ctx context.Context, path string) {
	key, err := filepath.Abs(path)
	if err != nil {
		key = path
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	claimed, err := w.seen.Claim(ctx, key)
	if err != nil {
		w.log.Errorf("Dedupe store error for %s: %v", filepath.Base(path), err)
		return
	}
	if !claimed {
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		size, err := w.waitStable(ctx, path)
		if err != nil {
			_ = w.seen.Release(context.Background(), key)
			return
		}
		if float64(size) < w.cfg.MinFileSizeMB*1024*1024 {
			w.log.Debugf("Ignoring %s (%s, below minimum)", filepath.Base(path), humanize.Bytes(uint64(size)))
			_ = w.seen.Release(context.Background(), key)
			return
		}

		if err := w.sem.Acquire(ctx, 1); err != nil {
			_ = w.seen.Release(context.Background(), key)
			return
		}
		defer w.sem.Release(1)

		w.log.Infof("New suspect %s (%s)", filepath.Base(path), humanize.Bytes(uint64(size)))
		if err := w.handle(ctx, path); err != nil {
			w.log.Errorf("Detection failed for %s: %v", filepath.Base(path), err)
		}
	}()
}

// waitStable returns the file size once it stops changing.
func (w *Watcher) waitStable(ctx context.Context, path string) (int64, error) {
	var last int64 = -1
	stable := 0
	for {
		info, err := os.Stat(path)
		if err != nil {
			return 0, err
		}
		if info.Size() == last {
			stable++
			if stable >= w.cfg.StableChecks {
				return last, nil
			}
		} else {
			stable = 0
			last = info.Size()
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(w.cfg.StableInterval):
		}
	}
}

func (w *Watcher) hasVideoExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.cfg.Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}
