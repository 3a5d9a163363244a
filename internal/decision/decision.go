package decision

import (
	"fmt"

	"github.com/himanishpuri/ReelDNA/internal/compare"
	"github.com/himanishpuri/ReelDNA/pkg/models"
)

// Rule names the branch of the cascade that produced a verdict.
const (
	RuleVisualStrong        = "visual_strong"
	RuleVisualAndAudio      = "visual_and_audio"
	RuleVisualOnly          = "visual_only"
	RuleAudioAssisted       = "audio_assisted"
	RuleLikelyFalsePositive = "likely_false_positive"
	RuleInsufficient        = "insufficient_evidence"
)

type Thresholds struct {
	ScreenshotMatchPercentage     float64
	VisualStrongPercentage        float64
	AudioSimilarityThreshold      float64
	AudioReasonableSimilarity     float64
	AudioAssistedVisualPercentage float64
	RequireAudioConfirmation      bool
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		ScreenshotMatchPercentage:     0.35,
		VisualStrongPercentage:        0.80,
		AudioSimilarityThreshold:      0.30,
		AudioReasonableSimilarity:     0.02,
		AudioAssistedVisualPercentage: 0.20,
		RequireAudioConfirmation:      true,
	}
}

// Classify applies the rule cascade to a comparison summary. The first rule that holds
// decides the verdict; it always returns one.
func Classify(s compare.Summary, th Thresholds) models.Verdict {
	pct := s.ImageMatchPercentage
	audio := s.AvgAudioSimilarity

	visualMatch := pct >= th.ScreenshotMatchPercentage
	visualStrong := pct >= th.VisualStrongPercentage
	audioReasonable := audio >= th.AudioReasonableSimilarity
	audioStrong := audio >= th.AudioSimilarityThreshold

	v := models.Verdict{
		TotalSamples:           s.TotalSamples,
		ImageMatchCount:        s.ImageMatchCount,
		AudioMatchCount:        s.AudioMatchCount,
		ImageMatchPercentage:   pct,
		AvgImageDistance:       s.AvgImageDistance,
		AvgAudioSimilarity:     audio,
		MatchedTimestamps:      s.MatchedTimestamps,
		MatchedAudioTimestamps: s.MatchedAudioTimestamps,
		Records:                s.Records,
	}

	switch {
	case visualStrong && audioReasonable:
		v.IsPirated, v.Rule = true, RuleVisualStrong
		v.Reason = fmt.Sprintf("Strong visual match: %.1f%% (threshold: %.1f%%) with audio correlation %.3f (threshold: %g)",
			pct*100, th.VisualStrongPercentage*100, audio, th.AudioReasonableSimilarity)
	case visualMatch && audioStrong:
		v.IsPirated, v.Rule = true, RuleVisualAndAudio
		v.Reason = fmt.Sprintf("Visual %.1f%% (threshold: %.1f%%) + Strong audio %.2f (threshold: %g)",
			pct*100, th.ScreenshotMatchPercentage*100, audio, th.AudioSimilarityThreshold)
	case visualMatch && !th.RequireAudioConfirmation:
		v.IsPirated, v.Rule = true, RuleVisualOnly
		v.Reason = fmt.Sprintf("Visual match %.1f%% >= %.1f%%", pct*100, th.ScreenshotMatchPercentage*100)
	case audioStrong && pct >= th.AudioAssistedVisualPercentage:
		v.IsPirated, v.Rule = true, RuleAudioAssisted
		v.Reason = fmt.Sprintf("Audio match %.2f >= %g with %.1f%% visual similarity (floor: %.1f%%)",
			audio, th.AudioSimilarityThreshold, pct*100, th.AudioAssistedVisualPercentage*100)
	case visualMatch && !audioReasonable:
		v.Rule = RuleLikelyFalsePositive
		v.Reason = fmt.Sprintf("Visual match %.1f%% but audio completely different (%.3f < %g) - likely false positive",
			pct*100, audio, th.AudioReasonableSimilarity)
	case visualMatch:
		v.Rule = RuleInsufficient
		v.Reason = fmt.Sprintf("Visual match %.1f%% >= %.1f%% but audio %.3f below confirmation threshold %g",
			pct*100, th.ScreenshotMatchPercentage*100, audio, th.AudioSimilarityThreshold)
	case audioStrong:
		v.Rule = RuleInsufficient
		v.Reason = fmt.Sprintf("Audio match %.2f >= %g but visual similarity %.1f%% below floor %.1f%%",
			audio, th.AudioSimilarityThreshold, pct*100, th.AudioAssistedVisualPercentage*100)
	default:
		v.Rule = RuleInsufficient
		v.Reason = fmt.Sprintf("Neither threshold met: visual %.1f%% < %.1f%%, audio %.3f < %g",
			pct*100, th.ScreenshotMatchPercentage*100, audio, th.AudioSimilarityThreshold)
	}

	return v.Sanitize()
}
