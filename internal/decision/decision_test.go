package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/himanishpuri/ReelDNA/internal/compare"
)

func summary(pct, audio float64) compare.Summary {
	return compare.Summary{TotalSamples: 15, ImageMatchPercentage: pct, AvgAudioSimilarity: audio}
}

func TestClassifyCascade(t *testing.T) {
	noAudioRequired := DefaultThresholds()
	noAudioRequired.RequireAudioConfirmation = false

	tests := []struct {
		name    string
		pct     float64
		audio   float64
		th      Thresholds
		pirated bool
		rule    string
		reason  string
	}{
		{
			name: "strong visual with faint audio", pct: 14.0 / 15, audio: 0.024, th: DefaultThresholds(),
			pirated: true, rule: RuleVisualStrong,
			reason: "Strong visual match: 93.3% (threshold: 80.0%) with audio correlation 0.024 (threshold: 0.02)",
		},
		{
			name: "visual and strong audio", pct: 0.40, audio: 0.45, th: DefaultThresholds(),
			pirated: true, rule: RuleVisualAndAudio,
			reason: "Visual 40.0% (threshold: 35.0%) + Strong audio 0.45 (threshold: 0.3)",
		},
		{
			name: "visual only when audio not required", pct: 0.40, audio: 0.10, th: noAudioRequired,
			pirated: true, rule: RuleVisualOnly,
			reason: "Visual match 40.0% >= 35.0%",
		},
		{
			name: "visual without audio confirmation", pct: 0.40, audio: 0.10, th: DefaultThresholds(),
			pirated: false, rule: RuleInsufficient,
			reason: "Visual match 40.0% >= 35.0% but audio 0.100 below confirmation threshold 0.3",
		},
		{
			name: "audio assisted at the boundary", pct: 0.20, audio: 0.35, th: DefaultThresholds(),
			pirated: true, rule: RuleAudioAssisted,
			reason: "Audio match 0.35 >= 0.3 with 20.0% visual similarity (floor: 20.0%)",
		},
		{
			name: "audio just below the visual floor", pct: 0.19, audio: 0.35, th: DefaultThresholds(),
			pirated: false, rule: RuleInsufficient,
			reason: "Audio match 0.35 >= 0.3 but visual similarity 19.0% below floor 20.0%",
		},
		{
			name: "likely false positive", pct: 0.40, audio: 0.01, th: DefaultThresholds(),
			pirated: false, rule: RuleLikelyFalsePositive,
			reason: "Visual match 40.0% but audio completely different (0.010 < 0.02) - likely false positive",
		},
		{
			name: "strong visual but silent audio", pct: 0.90, audio: 0.0, th: DefaultThresholds(),
			pirated: false, rule: RuleLikelyFalsePositive,
		},
		{
			name: "nothing", pct: 0, audio: 0, th: DefaultThresholds(),
			pirated: false, rule: RuleInsufficient,
			reason: "Neither threshold met: visual 0.0% < 35.0%, audio 0.000 < 0.3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Classify(summary(tt.pct, tt.audio), tt.th)
			assert.Equal(t, tt.pirated, v.IsPirated)
			assert.Equal(t, tt.rule, v.Rule)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, v.Reason)
			}
			assert.NotEmpty(t, v.Reason)
		})
	}
}

func TestClassifyFirstRuleWins(t *testing.T) {
	// Both rule 1 and rule 2 hold; rule 1 must be reported.
	v := Classify(summary(0.95, 0.8), DefaultThresholds())
	assert.Equal(t, RuleVisualStrong, v.Rule)
}

func TestClassifyReasonUsesConfiguredThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.VisualStrongPercentage = 0.70
	th.AudioReasonableSimilarity = 0.05
	th.AudioAssistedVisualPercentage = 0.25

	v := Classify(summary(0.75, 0.06), th)
	assert.Equal(t, RuleVisualStrong, v.Rule)
	assert.Contains(t, v.Reason, "(threshold: 70.0%)")
	assert.Contains(t, v.Reason, "(threshold: 0.05)")

	v = Classify(summary(0.25, 0.5), th)
	assert.Equal(t, RuleAudioAssisted, v.Rule)
	assert.Contains(t, v.Reason, "(floor: 25.0%)")
}

func TestClassifyCopiesAggregates(t *testing.T) {
	s := compare.Summary{
		TotalSamples:         14,
		ImageMatchCount:      13,
		AudioMatchCount:      2,
		ImageMatchPercentage: 13.0 / 14,
		AvgImageDistance:     6.5,
		AvgAudioSimilarity:   0.05,
		MatchedTimestamps:    []float64{61.2, 75.9},
	}
	v := Classify(s, DefaultThresholds())
	assert.Equal(t, 14, v.TotalSamples)
	assert.Equal(t, 13, v.ImageMatchCount)
	assert.Equal(t, 6.5, v.AvgImageDistance)
	assert.Equal(t, []float64{61.2, 75.9}, v.MatchedTimestamps)
	assert.NotNil(t, v.MatchedAudioTimestamps)
}
