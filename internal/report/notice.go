package report

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/himanishpuri/ReelDNA/pkg/models"
)

type noticeData struct {
	models.Report
	Rule            string
	Basis           string
	VisualThreshold float64
	AudioThreshold  float64
	VisualConfirmed bool
	AudioConfirmed  bool
}

var noticeTemplate = template.Must(template.New("notice").Funcs(template.FuncMap{
	"yesno": func(b bool) string {
		if b {
			return "YES"
		}
		return "NO"
	},
}).Parse(`Subject: DMCA Takedown Notice - Confirmed Piracy Detection for "{{.MovieName}}"

From: {{.ProductionCompany}}
Date: {{.DetectionTimestamp}}

1. DETECTED CONTENT

Title: {{.MovieName}}
Production Company: {{.ProductionCompany}}
Channel ID: {{.ChannelID}}
Message ID: {{.MessageID}}
Date/Time of Detection: {{.DetectionTimestamp}}

2. EVIDENCE

Visual analysis
  Method: perceptual hash (pHash) of frames at producer-chosen timestamps, Hamming distance.
  Result: {{.VisualMatchScore}} of sampled frames matched.
  Threshold: {{printf "%.0f" .VisualThreshold}}% of frames.
  Confirmed: {{yesno .VisualConfirmed}}

Audio analysis
  Method: cosine similarity of normalised mel spectrograms.
  Result: {{.AudioMatchScore}} average similarity.
  Threshold: {{printf "%g" .AudioThreshold}}.
  Confirmed: {{yesno .AudioConfirmed}}

Decision rule: {{.Rule}} ({{.Basis}} verification)

3. MATCHED TIMESTAMPS (reference seconds)

Visual: {{.MatchedTimestamps}}
Audio: {{.MatchedAudioTimestamps}}

4. REQUESTED ACTION

We request the removal of message {{.MessageID}} in channel {{.ChannelID}} under the
Digital Millennium Copyright Act and the platform's terms of service.

5. DECLARATION

Rights holder: {{.ProductionCompany}}
Authorized representative: {{.ContactName}}

I have a good faith belief that use of the material in the manner complained of is not
authorized by the copyright owner, its agent, or the law. The information in this notice
is accurate, and I am authorized to act on behalf of the owner of the exclusive right
that is allegedly infringed.
`))

func renderNotice(d noticeData) (string, error) {
	var buf bytes.Buffer
	if err := noticeTemplate.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("failed to render notice: %w", err)
	}
	return buf.String(), nil
}
