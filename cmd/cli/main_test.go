package main

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/ReelDNA/pkg/models"
	"github.com/himanishpuri/ReelDNA/pkg/reeldna"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	base := []string{
		"-q",
		"--session", filepath.Join(dir, "session"),
		"--db", filepath.Join(dir, "history.sqlite3"),
		"--temp", dir,
		"--log-level", "error",
	}
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(base, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"duration", fmt.Errorf("probe: %w", reeldna.ErrDurationUnavailable), 1},
		{"no reference samples", reeldna.ErrNoReferenceSamples, 1},
		{"no recorded samples", fmt.Errorf("detect: %w", reeldna.ErrNoRecordedSamples), 1},
		{"usage", usagef("bad flag"), 2},
		{"other", errors.New("webhook down"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"sample", "sync", "compare", "detect", "report", "evidence",
		"status", "watch", "fetch", "history", "show", "delete", "doctor"} {
		assert.Contains(t, names, want)
	}
}

func TestDetectRequiresSuspect(t *testing.T) {
	_, err := runCLI(t, "detect")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))

	_, err = runCLI(t, "detect", "a.mp4", "--url", "https://youtu.be/dQw4w9WgXcQ")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
}

func TestHistoryEmpty(t *testing.T) {
	out, err := runCLI(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No detections recorded")
}

func TestStatusWithoutSession(t *testing.T) {
	_, err := runCLI(t, "status")
	require.Error(t, err)
	assert.Equal(t, 0, exitCode(err))
}

func TestShowUnknownDetection(t *testing.T) {
	_, err := runCLI(t, "show", "missing")
	assert.Error(t, err)
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"1"}, {"2", "3"}}, []columnAlignment{alignRight})
	assert.Contains(t, out, "A")
	assert.Contains(t, out, "3")
	assert.Equal(t, "", renderTable(nil, nil, nil))
}

func TestRenderHistory(t *testing.T) {
	out := renderHistory([]models.Detection{{
		ID:           "d1",
		SuspectVideo: "/dl/1234_56.mp4",
		Verdict:      models.Verdict{IsPirated: true, Rule: "visual_strong", ImageMatchPercentage: 0.933},
		Reported:     true,
		CreatedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}})
	assert.Contains(t, out, "1234_56.mp4")
	assert.Contains(t, out, "PIRATED")
	assert.Contains(t, out, "93.3%")
}

func TestPrintVerdict(t *testing.T) {
	var buf bytes.Buffer
	printVerdict(&buf, models.Verdict{
		TotalSamples:      2,
		ImageMatchCount:   1,
		Rule:              "insufficient_evidence",
		Reason:            "Insufficient evidence",
		MatchedTimestamps: []float64{61.6},
		Records: []models.ComparisonRecord{
			{Index: 0, ReferenceTimestamp: 61.6, RecordedTimestamp: 58.6, VisualDistance: 2, VisualMatch: true},
			{Index: 1, ReferenceTimestamp: 90, RecordedTimestamp: 87, VisualDistance: 40},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "NOT PIRATED (insufficient_evidence)")
	assert.Contains(t, out, "[62]")
	assert.True(t, strings.Contains(out, "58.60"))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0:06:40", formatDuration(400))
	assert.Equal(t, "2:00:00", formatDuration(7200))
}
