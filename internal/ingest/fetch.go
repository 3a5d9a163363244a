package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lrstanley/go-ytdlp"

	"github.com/himanishpuri/ReelDNA/pkg/logger"
	"github.com/himanishpuri/ReelDNA/pkg/utils"
)

// Fetcher downloads remote suspect videos with yt-dlp.
type Fetcher struct {
	dir string
	log logger.Interface
}

func NewFetcher(dir string, log logger.Interface) *Fetcher {
	return &Fetcher{dir: dir, log: log}
}

// FileName picks a stable local name for a URL: the YouTube id when there is
// one, otherwise a fresh UUID.
func FileName(rawURL string) string {
	if id, err := utils.ExtractYouTubeID(rawURL); err == nil {
		return "yt_" + id
	}
	return "url_" + utils.GenerateUUID()
}

// Fetch downloads url into the fetch directory and returns the local path.
// Local paths are returned unchanged.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if !utils.IsRemoteURL(url) {
		return url, nil
	}
	if err := utils.MakeDir(f.dir); err != nil {
		return "", err
	}

	name := FileName(url)
	if existing := f.find(name); existing != "" {
		f.log.Infof("Using cached download %s", filepath.Base(existing))
		return existing, nil
	}

	f.log.Infof("Downloading %s", url)
	dl := ytdlp.New().
		NoPlaylist().
		NoProgress().
		MergeOutputFormat("mp4").
		Output(filepath.Join(f.dir, name+".%(ext)s"))

	if _, err := dl.Run(ctx, url); err != nil {
		return "", fmt.Errorf("yt-dlp download failed for %s: %w", url, err)
	}

	path := f.find(name)
	if path == "" {
		return "", fmt.Errorf("yt-dlp produced no file for %s", url)
	}
	return path, nil
}

func (f *Fetcher) find(name string) string {
	matches, _ := filepath.Glob(filepath.Join(f.dir, name+".*"))
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		if info, err := os.Stat(m); err == nil && !info.IsDir() {
			return m
		}
	}
	return ""
}
