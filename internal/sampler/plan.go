package sampler

import (
	"math"
	"math/rand"
	"sort"
)

// RandomTimestamps draws n timestamps uniformly from [minOffset, duration-maxOffset],
// or from the whole video when that range is empty. Values are rounded to 10 ms and sorted.
func RandomTimestamps(rng *rand.Rand, duration float64, n int, minOffset, maxOffset float64) []float64 {
	lo, hi := minOffset, duration-maxOffset
	if hi <= lo {
		lo, hi = 0, duration
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Round((lo+rng.Float64()*(hi-lo))*100) / 100
	}
	sort.Float64s(out)
	return out
}

// PlanAnchors picks anchor times for a reference of the given duration. Videos shorter
// than shortThreshold use fractions of their duration, truncated to whole seconds;
// longer videos use the fixed times. Anchors at or past the end are dropped.
func PlanAnchors(duration, shortThreshold float64, fixed, relative []float64) []float64 {
	var candidates []float64
	if duration < shortThreshold {
		for _, r := range relative {
			candidates = append(candidates, math.Trunc(duration*r))
		}
	} else {
		candidates = append(candidates, fixed...)
	}

	var anchors []float64
	for _, t := range candidates {
		if t >= duration || t < 0 {
			continue
		}
		anchors = append(anchors, t)
	}
	sort.Float64s(anchors)
	return anchors
}

// Project maps a reference timestamp onto the recorded timeline. ok is false when the
// moment falls outside the recording.
func Project(refTimestamp, offset, recordedDuration float64) (float64, bool) {
	rec := refTimestamp - offset
	if rec < 0 || rec > recordedDuration {
		return rec, false
	}
	return rec, true
}

// ClipDuration clamps the audio clip length to what remains of the recording after at.
func ClipDuration(audioDuration, recordedDuration, at float64) float64 {
	return math.Min(audioDuration, recordedDuration-at)
}
