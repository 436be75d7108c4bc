package transcriber

import "context"

// FakeClient returns canned transcripts in submit order, for tests.
type FakeClient struct {
	Texts   []string
	Err     error
	Async   bool
	Submits int

	// Metrics and RateLimit, when set, are attached to every
	// submission the way the real providers attach theirs.
	Metrics   *NetworkMetrics
	RateLimit string
}

func NewFake(texts ...string) *FakeClient {
	return &FakeClient{Texts: texts}
}

func (f *FakeClient) Name() string { return "fake" }

func (f *FakeClient) Submit(_ context.Context, _ []byte, _ string) (*Submission, error) {
	i := f.Submits
	f.Submits++
	if f.Err != nil {
		return nil, f.Err
	}

	text := ""
	if i < len(f.Texts) {
		text = f.Texts[i]
	}

	if !f.Async {
		return &Submission{Text: text, Metrics: f.Metrics, RateLimit: f.RateLimit}, nil
	}

	job := &Job{ID: "fake-job", ResultURL: "fake://result"}
	job.poll = func(context.Context) (*PollStatus, error) {
		return &PollStatus{Done: true, Text: text}, nil
	}
	return &Submission{Job: job, Metrics: f.Metrics, RateLimit: f.RateLimit}, nil
}
