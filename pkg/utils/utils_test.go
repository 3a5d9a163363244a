package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExtractYouTubeID(t *testing.T) {
	tests := []struct {
		url  string
		want string
		ok   bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/abc123", "abc123", true},
		{"https://www.youtube.com/shorts/xyz", "xyz", true},
		{"https://vimeo.com/12345", "", false},
	}
	for _, tt := range tests {
		got, err := ExtractYouTubeID(tt.url)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("ExtractYouTubeID(%q) = %q, %v; want %q", tt.url, got, err, tt.want)
		}
		if !tt.ok && err == nil {
			t.Errorf("ExtractYouTubeID(%q) expected error", tt.url)
		}
	}
}

func TestIsRemoteURL(t *testing.T) {
	if !IsRemoteURL("https://example.com/video.mp4") {
		t.Error("https URL should be remote")
	}
	for _, s := range []string{"/tmp/video.mp4", "video.mp4", "ftp://host/x", "C:\\movies\\a.mp4"} {
		if IsRemoteURL(s) {
			t.Errorf("%q should not be remote", s)
		}
	}
}

func TestGenerateUUID(t *testing.T) {
	a, b := GenerateUUID(), GenerateUUID()
	if a == b {
		t.Error("UUIDs should differ")
	}
	if !IsUUID(a) || IsUUID("not-a-uuid") {
		t.Error("IsUUID mismatch")
	}
}

func TestWriteFileAtomicAndMove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "results.json")
	if err := WriteFileAtomic(path, []byte(`{"ok":true}`), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	if !FileExists(path) {
		t.Fatal("file should exist")
	}

	dst := filepath.Join(dir, "moved.json")
	if err := MoveFile(path, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != `{"ok":true}` {
		t.Errorf("moved contents = %q, %v", data, err)
	}
	if FileExists(path) {
		t.Error("source should be gone after move")
	}
}
