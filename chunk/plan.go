// Package chunk splits a finalized recording into bounded-duration,
// independently transcribable segments with a small overlap at each
// boundary so words are not cut in half.
package chunk

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDuration is returned for non-positive durations.
var ErrInvalidDuration = errors.New("invalid duration")

// Span is one planned segment, in seconds from the start of the
// recording.
type Span struct {
	Index int
	Start float64
	End   float64
}

func (s Span) Duration() float64 { return s.End - s.Start }

// Plan computes the segment layout for a recording of totalDuration
// seconds. It is a pure function. Every chunk after the first starts
// overlapSeconds before its naive boundary (clamped at zero) and spans
// cover the whole recording with no gaps.
func Plan(totalDuration, maxChunkDuration, overlapSeconds float64) ([]Span, error) {
	if totalDuration <= 0 {
		return nil, fmt.Errorf("%w: total %.3fs", ErrInvalidDuration, totalDuration)
	}
	if maxChunkDuration <= 0 {
		return nil, fmt.Errorf("%w: max chunk %.3fs", ErrInvalidDuration, maxChunkDuration)
	}
	if overlapSeconds < 0 {
		overlapSeconds = 0
	}

	n := int(math.Ceil(totalDuration / maxChunkDuration))
	spans := make([]Span, 0, n)
	for i := 0; i < n; i++ {
		start := float64(i)*maxChunkDuration - overlapSeconds
		if start < 0 {
			start = 0
		}
		end := float64(i+1) * maxChunkDuration
		if end > totalDuration {
			end = totalDuration
		}
		spans = append(spans, Span{Index: i, Start: start, End: end})
	}
	return spans, nil
}
