package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/himanishpuri/ReelDNA/pkg/models"
)

// Helper function to create a temporary test database
func setupTestDB(t *testing.T) (*DBClient, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_reeldna.sqlite3")

	oldPath := os.Getenv("REELDNA_DB_PATH")
	os.Setenv("REELDNA_DB_PATH", dbPath)
	t.Cleanup(func() {
		if oldPath == "" {
			os.Unsetenv("REELDNA_DB_PATH")
		} else {
			os.Setenv("REELDNA_DB_PATH", oldPath)
		}
	})

	client, err := NewDBClient()
	if err != nil {
		t.Fatalf("Failed to create test DB client: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
	})

	return client, dbPath
}

func sampleDetection(suspect string, pirated bool, created time.Time) *models.Detection {
	return &models.Detection{
		SessionID:      "0b6f5a0e-8a57-4df1-9a51-7f4f0f0d8a11",
		ReferenceVideo: "/videos/reference.mp4",
		SuspectVideo:   suspect,
		Offset:         10.2,
		CreatedAt:      created,
		Verdict: models.Verdict{
			TotalSamples:           2,
			ImageMatchCount:        2,
			ImageMatchPercentage:   1,
			AvgImageDistance:       4,
			AvgAudioSimilarity:     0.024,
			IsPirated:              pirated,
			Rule:                   "visual_strong",
			Reason:                 "Strong visual match",
			MatchedTimestamps:      []float64{61.5, 95.25},
			MatchedAudioTimestamps: []float64{},
			Records: []models.ComparisonRecord{
				{Index: 3, ReferenceTimestamp: 95.25, RecordedTimestamp: 85.05, VisualDistance: 6, VisualMatch: true, AudioSimilarity: 0.02},
				{Index: 1, ReferenceTimestamp: 61.5, RecordedTimestamp: 51.3, VisualDistance: 2, VisualMatch: true, AudioSimilarity: 0.028},
			},
		},
	}
}

func TestNewDBClient(t *testing.T) {
	client, dbPath := setupTestDB(t)

	if client == nil || client.DB == nil {
		t.Fatal("Expected non-nil DB client")
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at %s", dbPath)
	}
	if !client.DB.Migrator().HasTable(&Detection{}) || !client.DB.Migrator().HasTable(&SampleResult{}) {
		t.Error("Expected detection tables to be migrated")
	}
}

func TestSaveAndGetDetection(t *testing.T) {
	client, _ := setupTestDB(t)

	id, err := client.SaveDetection(sampleDetection("/dl/-100123_77.mp4", true, time.Time{}))
	if err != nil {
		t.Fatalf("SaveDetection failed: %v", err)
	}
	if len(id) != 36 {
		t.Errorf("Expected UUID id, got %q", id)
	}

	got, err := client.GetDetection(id)
	if err != nil {
		t.Fatalf("GetDetection failed: %v", err)
	}
	if got.SuspectVideo != "/dl/-100123_77.mp4" || got.Offset != 10.2 {
		t.Errorf("unexpected detection: %+v", got)
	}
	if !got.Verdict.IsPirated || got.Verdict.Rule != "visual_strong" {
		t.Errorf("verdict not round-tripped: %+v", got.Verdict)
	}
	if len(got.Verdict.MatchedTimestamps) != 2 || got.Verdict.MatchedTimestamps[1] != 95.25 {
		t.Errorf("matched timestamps = %v", got.Verdict.MatchedTimestamps)
	}
	if len(got.Verdict.Records) != 2 {
		t.Fatalf("Expected 2 sample records, got %d", len(got.Verdict.Records))
	}
	if got.Verdict.Records[0].Index != 1 || got.Verdict.Records[1].Index != 3 {
		t.Errorf("records should be ordered by index, got %+v", got.Verdict.Records)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestGetDetectionNotFound(t *testing.T) {
	client, _ := setupTestDB(t)

	_, err := client.GetDetection("missing")
	if !errors.Is(err, ErrDetectionNotFound) {
		t.Errorf("Expected ErrDetectionNotFound, got %v", err)
	}
}

func TestListDetections(t *testing.T) {
	client, _ := setupTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, pirated := range []bool{true, false, true} {
		d := sampleDetection("suspect.mp4", pirated, base.Add(time.Duration(i)*time.Minute))
		if _, err := client.SaveDetection(d); err != nil {
			t.Fatalf("SaveDetection %d failed: %v", i, err)
		}
	}

	all, err := client.ListDetections(0, false)
	if err != nil {
		t.Fatalf("ListDetections failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 detections, got %d", len(all))
	}
	if !all[0].CreatedAt.After(all[1].CreatedAt) {
		t.Error("Expected newest detection first")
	}
	if len(all[0].Verdict.Records) != 0 {
		t.Error("List should not load per-sample records")
	}

	pirated, err := client.ListDetections(1, true)
	if err != nil {
		t.Fatalf("ListDetections failed: %v", err)
	}
	if len(pirated) != 1 || !pirated[0].Verdict.IsPirated {
		t.Errorf("Expected one pirated detection, got %+v", pirated)
	}

	n, err := client.CountDetections()
	if err != nil || n != 3 {
		t.Errorf("CountDetections = %d, %v", n, err)
	}
}

func TestMarkReportedAndDelete(t *testing.T) {
	client, _ := setupTestDB(t)

	id, err := client.SaveDetection(sampleDetection("suspect.mp4", true, time.Time{}))
	if err != nil {
		t.Fatalf("SaveDetection failed: %v", err)
	}

	if err := client.MarkReported(id); err != nil {
		t.Fatalf("MarkReported failed: %v", err)
	}
	got, _ := client.GetDetection(id)
	if !got.Reported {
		t.Error("Expected detection to be marked reported")
	}

	if err := client.DeleteDetection(id); err != nil {
		t.Fatalf("DeleteDetection failed: %v", err)
	}
	if _, err := client.GetDetection(id); !errors.Is(err, ErrDetectionNotFound) {
		t.Errorf("Expected detection to be gone, got %v", err)
	}

	var orphans int64
	client.DB.Model(&SampleResult{}).Where("detection_id = ?", id).Count(&orphans)
	if orphans != 0 {
		t.Errorf("Expected sample results to be deleted, found %d", orphans)
	}

	if err := client.DeleteDetection(id); !errors.Is(err, ErrDetectionNotFound) {
		t.Errorf("Deleting twice should report not found, got %v", err)
	}
	if err := client.MarkReported("missing"); !errors.Is(err, ErrDetectionNotFound) {
		t.Errorf("MarkReported on missing id should fail, got %v", err)
	}
}

func TestNilClient(t *testing.T) {
	var c *DBClient
	if _, err := c.SaveDetection(&models.Detection{}); err == nil {
		t.Error("Expected error from nil client")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close on nil client should be a no-op, got %v", err)
	}
}
