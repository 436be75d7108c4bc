// Package events defines the notification topics the pipeline publishes
// for the presentation layer. Callers never block on pipeline work; they
// subscribe to these topics instead.
package events

import (
	evbus "github.com/asaskevich/EventBus"
)

const (
	// TopicStatus carries a human-readable status line (string).
	TopicStatus = "notepad:status"
	// TopicLevel carries the capture volume meter value (int, 0-100).
	TopicLevel = "capture:level"
	// TopicElapsed carries whole elapsed recording seconds (int),
	// published at most once per distinct second.
	TopicElapsed = "capture:elapsed"
	// TopicProgress carries per-chunk transcription progress (Progress).
	TopicProgress = "transcription:progress"
	// TopicTranscript carries a completed transcript (string).
	TopicTranscript = "transcription:complete"
	// TopicError carries a job-level failure message (string).
	TopicError = "transcription:error"
)

// Progress reports that chunk Index of Total has finished.
type Progress struct {
	Index int
	Total int
}

// New returns a synchronous event bus.
func New() evbus.Bus {
	return evbus.New()
}
