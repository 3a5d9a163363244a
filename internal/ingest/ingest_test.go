package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/himanishpuri/ReelDNA/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(dir string) Config {
	cfg := DefaultConfig()
	cfg.Dir = dir
	cfg.MinFileSizeMB = 0.001 // ~1 KB
	cfg.StableInterval = 20 * time.Millisecond
	cfg.StableChecks = 1
	return cfg
}

type collector struct {
	mu    sync.Mutex
	paths []string
}

func (c *collector) handle(_ context.Context, path string) error {
	c.mu.Lock()
	c.paths = append(c.paths, filepath.Base(path))
	c.mu.Unlock()
	return nil
}

func (c *collector) got() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.paths...)
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", size)), 0o644))
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Mode = "sometimes"
	cfg.MaxConcurrentRuns = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown ingest mode")
	assert.Contains(t, err.Error(), "at least 1")

	cfg = DefaultConfig()
	cfg.Mode = ModePoll
	cfg.PollSchedule = "not a schedule"
	assert.Error(t, cfg.Validate())
}

func TestMemorySeenClaimsOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySeen()
	ok, err := s.Claim(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = s.Claim(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, s.Release(ctx, "a"))
	ok, _ = s.Claim(ctx, "a")
	assert.True(t, ok)
}

func TestPollModeFiltersAndDedupes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "100_1.mp4"), 4096)
	writeFile(t, filepath.Join(dir, "tiny.mp4"), 10)
	writeFile(t, filepath.Join(dir, "notes.txt"), 4096)

	cfg := testConfig(dir)
	cfg.Mode = ModePoll
	cfg.PollSchedule = "@every 1s"

	c := &collector{}
	w, err := NewWatcher(cfg, c.handle, nil, logger.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(c.got()) == 1 }, 3*time.Second, 20*time.Millisecond)
	// a second scan must not process the same file again
	w.Scan(ctx)
	time.Sleep(150 * time.Millisecond)
	cancel()
	require.NoError(t, <-errc)

	assert.Equal(t, []string{"100_1.mp4"}, c.got())
}

func TestEventModePicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}
	w, err := NewWatcher(testConfig(dir), c.handle, NewMemorySeen(), logger.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "200_7.mkv"), 8192)

	require.Eventually(t, func() bool { return len(c.got()) == 1 }, 3*time.Second, 20*time.Millisecond)
	cancel()
	require.NoError(t, <-errc)
	assert.Equal(t, []string{"200_7.mkv"}, c.got())
}

func TestRunsAreBounded(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a_1.mp4", "b_2.mp4", "c_3.mp4"} {
		writeFile(t, filepath.Join(dir, name), 2048)
	}

	var (
		mu      sync.Mutex
		running int
		peak    int
		total   int
	)
	handle := func(ctx context.Context, path string) error {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		running--
		total++
		mu.Unlock()
		return nil
	}

	cfg := testConfig(dir)
	cfg.Mode = ModePoll
	cfg.MaxConcurrentRuns = 1
	w, err := NewWatcher(cfg, handle, nil, logger.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return total == 3
	}, 3*time.Second, 20*time.Millisecond)
	cancel()
	require.NoError(t, <-errc)
	assert.Equal(t, 1, peak)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "yt_dQw4w9WgXcQ", FileName("https://youtu.be/dQw4w9WgXcQ"))
	assert.True(t, strings.HasPrefix(FileName("https://cdn.example.com/v.mp4"), "url_"))
}

func TestFetchLocalPathPassesThrough(t *testing.T) {
	f := NewFetcher(t.TempDir(), logger.Discard())
	got, err := f.Fetch(context.Background(), "/videos/local.mp4")
	require.NoError(t, err)
	assert.Equal(t, "/videos/local.mp4", got)
}

func TestFetchUsesCachedDownload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "yt_abc123.mp4"), 16)
	writeFile(t, filepath.Join(dir, "yt_abc123.mp4.part"), 16)

	f := NewFetcher(dir, logger.Discard())
	got, err := f.Fetch(context.Background(), "https://www.youtube.com/watch?v=abc123")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "yt_abc123.mp4"), got)
}

func TestRedisSeen(t *testing.T) {
	addr := os.Getenv("REELDNA_TEST_REDIS")
	if addr == "" {
		t.Skip("REELDNA_TEST_REDIS not set")
	}
	ctx := context.Background()
	s, err := NewRedisSeen(ctx, RedisOptions{Addr: addr, Prefix: "reeldna:test:" + t.Name() + ":", TTL: time.Minute})
	require.NoError(t, err)
	defer s.Close()

	ok, err := s.Claim(ctx, "/dl/x.mp4")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Claim(ctx, "/dl/x.mp4")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, s.Release(ctx, "/dl/x.mp4"))
}
