package sampler

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfRange   = errors.New("timestamp outside the recorded video")
	ErrNoAudioLeft  = errors.New("no audio left after timestamp")
	ErrFrameExtract = errors.New("frame extraction failed")
	ErrAudioExtract = errors.New("audio extraction failed")
)

// Outcome is the result of materialising one sample or anchor.
type Outcome struct {
	Index     int     `json:"index"`
	Timestamp float64 `json:"timestamp"`
	Err       error   `json:"-"`
}

func (o Outcome) OK() bool { return o.Err == nil }

// Summary aggregates extraction outcomes for one stage.
type Summary struct {
	Stage    string
	Outcomes []Outcome
}

func (s Summary) Attempted() int { return len(s.Outcomes) }

func (s Summary) Processed() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// Failures returns the outcomes that did not produce a sample.
func (s Summary) Failures() []Outcome {
	var out []Outcome
	for _, o := range s.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Unmapped reports whether every planned sample fell outside the recording,
// so not a single extraction was attempted.
func (s Summary) Unmapped() bool {
	if len(s.Outcomes) == 0 {
		return false
	}
	for _, o := range s.Outcomes {
		if !errors.Is(o.Err, ErrOutOfRange) && !errors.Is(o.Err, ErrNoAudioLeft) {
			return false
		}
	}
	return true
}

func (s Summary) String() string {
	return fmt.Sprintf("%s: processed %d of %d", s.Stage, s.Processed(), s.Attempted())
}
