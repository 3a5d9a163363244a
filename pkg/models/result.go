package models

import (
	"math"
	"time"
)

// ComparisonRecord holds the per-index measurements for one reference/recorded pair.
type ComparisonRecord struct {
	Index              int     `json:"index"`
	ReferenceTimestamp float64 `json:"reference_timestamp"`
	RecordedTimestamp  float64 `json:"recorded_timestamp"`
	VisualDistance     int     `json:"visual_distance"` // Hamming distance, 999 when hashing failed
	VisualMatch        bool    `json:"visual_match"`
	AudioSimilarity    float64 `json:"audio_similarity"`
	AudioMatch         bool    `json:"audio_match"`
}

// Verdict is the classifier output. It is exported as JSON and must only carry finite numbers.
type Verdict struct {
	TotalSamples           int                `json:"total_samples"`
	ImageMatchCount        int                `json:"image_match_count"`
	AudioMatchCount        int                `json:"audio_match_count"`
	ImageMatchPercentage   float64            `json:"image_match_percentage"`
	AvgImageDistance       float64            `json:"avg_image_distance"`
	AvgAudioSimilarity     float64            `json:"avg_audio_similarity"`
	IsPirated              bool               `json:"is_pirated"`
	Rule                   string             `json:"rule"`
	Reason                 string             `json:"reason"`
	MatchedTimestamps      []float64          `json:"matched_timestamps"`
	MatchedAudioTimestamps []float64          `json:"matched_audio_timestamps"`
	Records                []ComparisonRecord `json:"records,omitempty"`
}

// Sanitize replaces NaN and infinite values with zero and nil slices with empty ones.
func (v Verdict) Sanitize() Verdict {
	v.ImageMatchPercentage = finite(v.ImageMatchPercentage)
	v.AvgImageDistance = finite(v.AvgImageDistance)
	v.AvgAudioSimilarity = finite(v.AvgAudioSimilarity)
	if v.MatchedTimestamps == nil {
		v.MatchedTimestamps = []float64{}
	}
	if v.MatchedAudioTimestamps == nil {
		v.MatchedAudioTimestamps = []float64{}
	}
	recs := make([]ComparisonRecord, len(v.Records))
	for i, r := range v.Records {
		r.AudioSimilarity = finite(r.AudioSimilarity)
		recs[i] = r
	}
	if len(recs) > 0 {
		v.Records = recs
	}
	return v
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Report is the flat record handed to the report sink when a verdict is PIRATED.
type Report struct {
	MovieName              string `json:"movie_name"`
	ProductionCompany      string `json:"production_company"`
	ChannelID              string `json:"channel_id"`
	MessageID              string `json:"message_id"`
	VisualMatchScore       string `json:"visual_match_score"`
	AudioMatchScore        string `json:"audio_match_score"`
	MatchedTimestamps      string `json:"matched_timestamps"`
	MatchedAudioTimestamps string `json:"matched_audio_timestamps"`
	DetectionTimestamp     string `json:"detection_timestamp"`
	ContactName            string `json:"contact_name"`
	Status                 string `json:"status"`
	NoticeText             string `json:"dmca_notice_text,omitempty"`
}

// Detection is a stored pipeline run as returned by the history store.
type Detection struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	ReferenceVideo string    `json:"reference_video"`
	SuspectVideo   string    `json:"suspect_video"`
	Offset         float64   `json:"offset"`
	Verdict        Verdict   `json:"verdict"`
	Reported       bool      `json:"reported"`
	CreatedAt      time.Time `json:"created_at"`
}
