package compare

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/ReelDNA/pkg/models"
)

// Summary aggregates the per-index comparisons of one reference/recorded pairing.
type Summary struct {
	Records                []models.ComparisonRecord
	TotalSamples           int
	ImageMatchCount        int
	AudioMatchCount        int
	ImageMatchPercentage   float64
	AvgImageDistance       float64
	AvgAudioSimilarity     float64
	MatchedTimestamps      []float64 // reference timestamps with a visual match
	MatchedAudioTimestamps []float64 // reference timestamps with an audio match
	Unmatched              []int     // reference indices without a recorded counterpart
}

// CompareAll joins reference and recorded samples by index and compares each pair.
// Pairs are measured concurrently but aggregated in reference order.
func (c *Comparator) CompareAll(ctx context.Context, reference, recorded []models.Sample) (Summary, error) {
	byIndex := make(map[int]models.Sample, len(recorded))
	for _, s := range recorded {
		byIndex[s.Index] = s
	}

	type pair struct {
		ref, rec models.Sample
	}
	var pairs []pair
	var summary Summary
	for _, ref := range reference {
		rec, ok := byIndex[ref.Index]
		if !ok {
			summary.Unmatched = append(summary.Unmatched, ref.Index)
			continue
		}
		pairs = append(pairs, pair{ref, rec})
	}

	records := make([]models.ComparisonRecord, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for i, p := range pairs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			visualMatch, distance := c.CompareImages(p.ref.Screenshot, p.rec.Screenshot)
			audioMatch, similarity := c.CompareAudio(p.ref.Audio, p.rec.Audio)
			records[i] = models.ComparisonRecord{
				Index:              p.ref.Index,
				ReferenceTimestamp: p.ref.Timestamp,
				RecordedTimestamp:  p.rec.Timestamp,
				VisualDistance:     distance,
				VisualMatch:        visualMatch,
				AudioSimilarity:    similarity,
				AudioMatch:         audioMatch,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	summary.Records = records
	summary.aggregate()
	for _, r := range records {
		c.log.Infof("Sample %d @ %.0fs: hash distance %d (threshold %d) match=%t, audio similarity %.3f (threshold %.2f) match=%t",
			r.Index, r.ReferenceTimestamp, r.VisualDistance, c.cfg.ImageHashThreshold, r.VisualMatch,
			r.AudioSimilarity, c.cfg.AudioSimilarityThreshold, r.AudioMatch)
	}
	if len(summary.Unmatched) > 0 {
		c.log.Warnf("%d reference samples had no recorded counterpart: %v", len(summary.Unmatched), summary.Unmatched)
	}
	return summary, nil
}

func (s *Summary) aggregate() {
	s.TotalSamples = len(s.Records)
	s.MatchedTimestamps = []float64{}
	s.MatchedAudioTimestamps = []float64{}
	s.AvgImageDistance = FailedDistance

	if s.TotalSamples == 0 {
		return
	}

	var distSum, simSum float64
	for _, r := range s.Records {
		distSum += float64(r.VisualDistance)
		simSum += r.AudioSimilarity
		if r.VisualMatch {
			s.ImageMatchCount++
			s.MatchedTimestamps = append(s.MatchedTimestamps, r.ReferenceTimestamp)
		}
		if r.AudioMatch {
			s.AudioMatchCount++
			s.MatchedAudioTimestamps = append(s.MatchedAudioTimestamps, r.ReferenceTimestamp)
		}
	}
	n := float64(s.TotalSamples)
	s.ImageMatchPercentage = float64(s.ImageMatchCount) / n
	s.AvgImageDistance = distSum / n
	s.AvgAudioSimilarity = simSum / n
}
