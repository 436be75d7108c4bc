package pipeline

import "github.com/google/uuid"

type State int

const (
	StatePending State = iota
	StateSubmitted
	StatePolling
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSubmitted:
		return "submitted"
	case StatePolling:
		return "polling"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Job tracks one transcription run and the fate of each of its
// chunks. A single-chunk run still gets a Job so logging and progress
// reporting work the same way on both paths.
type Job struct {
	ID     string
	Chunks []ChunkStatus
}

type ChunkStatus struct {
	Index int
	State State
	Text  string
	Err   error
}

func newJob(chunks int) *Job {
	j := &Job{
		ID:     uuid.NewString(),
		Chunks: make([]ChunkStatus, chunks),
	}
	for i := range j.Chunks {
		j.Chunks[i].Index = i
	}
	return j
}

func (j *Job) Succeeded() int {
	n := 0
	for _, c := range j.Chunks {
		if c.State == StateDone {
			n++
		}
	}
	return n
}

func (j *Job) Failed() int {
	n := 0
	for _, c := range j.Chunks {
		if c.State == StateFailed {
			n++
		}
	}
	return n
}
