package main

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/himanishpuri/ReelDNA/pkg/models"
)

const (
	// MaxListLimit caps GET /api/detections page sizes.
	MaxListLimit = 500

	// DefaultListLimit applies when no limit is given.
	DefaultListLimit = 50
)

// ListDetectionsQuery holds the query parameters of GET /api/detections
type ListDetectionsQuery struct {
	Limit       int
	PiratedOnly bool
}

// parseListQuery reads and validates limit and pirated from the query string.
func parseListQuery(q url.Values) (ListDetectionsQuery, error) {
	out := ListDetectionsQuery{Limit: DefaultListLimit}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return out, fmt.Errorf("limit must be a positive integer, got %q", v)
		}
		if n > MaxListLimit {
			return out, fmt.Errorf("limit too large: %d (maximum: %d)", n, MaxListLimit)
		}
		out.Limit = n
	}
	if v := q.Get("pirated"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return out, fmt.Errorf("pirated must be true or false, got %q", v)
		}
		out.PiratedOnly = b
	}
	return out, nil
}

// DetectionDTO represents a stored detection in API responses
type DetectionDTO struct {
	ID                string    `json:"id"`
	SessionID         string    `json:"session_id"`
	ReferenceVideo    string    `json:"reference_video"`
	SuspectVideo      string    `json:"suspect_video"`
	Offset            float64   `json:"offset"`
	IsPirated         bool      `json:"is_pirated"`
	Rule              string    `json:"rule"`
	Reason            string    `json:"reason"`
	ImageMatchPercent float64   `json:"image_match_percentage"`
	AvgAudioSim       float64   `json:"avg_audio_similarity"`
	MatchedTimestamps []float64 `json:"matched_timestamps"`
	Reported          bool      `json:"reported"`
	CreatedAt         time.Time `json:"created_at"`

	Records []models.ComparisonRecord `json:"records,omitempty"`
}

func toDetectionDTO(d models.Detection) DetectionDTO {
	return DetectionDTO{
		ID:                d.ID,
		SessionID:         d.SessionID,
		ReferenceVideo:    d.ReferenceVideo,
		SuspectVideo:      d.SuspectVideo,
		Offset:            d.Offset,
		IsPirated:         d.Verdict.IsPirated,
		Rule:              d.Verdict.Rule,
		Reason:            d.Verdict.Reason,
		ImageMatchPercent: d.Verdict.ImageMatchPercentage,
		AvgAudioSim:       d.Verdict.AvgAudioSimilarity,
		MatchedTimestamps: d.Verdict.MatchedTimestamps,
		Reported:          d.Reported,
		CreatedAt:         d.CreatedAt,
		Records:           d.Verdict.Records,
	}
}

// ListDetectionsResponse is the response for GET /api/detections
type ListDetectionsResponse struct {
	Detections []DetectionDTO `json:"detections"`
	Count      int            `json:"count"`
}

// DetectResponse is the response for POST /api/detect
type DetectResponse struct {
	Message      string         `json:"message"`
	ID           string         `json:"id"`
	SuspectVideo string         `json:"suspect_video"`
	Offset       float64        `json:"offset"`
	Extraction   string         `json:"extraction"`
	Verdict      models.Verdict `json:"verdict"`
	Reported     bool           `json:"reported"`
	Archived     int            `json:"archived,omitempty"`
	Warnings     []string       `json:"warnings,omitempty"`
}

// DeleteDetectionResponse is the response for DELETE /api/detections/{id}
type DeleteDetectionResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// MetricsResponse provides server health and session state
type MetricsResponse struct {
	Status         string `json:"status"`
	DatabasePath   string `json:"database_path"`
	SessionID      string `json:"session_id,omitempty"`
	ReferenceVideo string `json:"reference_video,omitempty"`
	SampleCount    int    `json:"sample_count"`
	DetectionCount int64  `json:"detection_count"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
