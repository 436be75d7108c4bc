package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	DefaultPollInterval = time.Second
	DefaultPollAttempts = 300
)

// ErrEmptyResponse is returned when a provider answers 200 but the
// response carries no transcript text.
var ErrEmptyResponse = errors.New("provider returned empty transcript")

// ErrPollExhausted is returned when an async job does not finish
// within the configured number of poll attempts.
var ErrPollExhausted = errors.New("transcription job polling exhausted")

// APIError is a non-2xx answer from a provider, kept with the raw
// body so failures can be logged verbatim.
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.Status, e.Body)
}

// Credentials carries provider keys explicitly. Nothing in this
// package reads the environment.
type Credentials struct {
	GladiaKey string
	OpenAIKey string
}

func (c Credentials) Empty() bool { return c.GladiaKey == "" && c.OpenAIKey == "" }

// Submission is the immediate outcome of handing audio to a provider.
// Synchronous providers fill Text; asynchronous ones return a Job to
// be polled.
type Submission struct {
	Text      string
	Job       *Job
	Metrics   *NetworkMetrics
	RateLimit string
}

// Job is a provider-side transcription that completes out of band.
type Job struct {
	ID        string
	ResultURL string
	poll      func(ctx context.Context) (*PollStatus, error)
}

type PollStatus struct {
	Done bool
	Text string
}

// Client submits one audio file and either returns the transcript or
// a pollable job. Both provider styles sit behind this interface.
type Client interface {
	Name() string
	Submit(ctx context.Context, audio []byte, format string) (*Submission, error)
}

// PollConfig bounds the wait for asynchronous jobs.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int

	// OnSubmit, when set, observes the provider's response to a
	// successful submit before any polling starts.
	OnSubmit func(*Submission)
}

func (p PollConfig) withDefaults() PollConfig {
	if p.Interval <= 0 {
		p.Interval = DefaultPollInterval
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPollAttempts
	}
	return p
}

// Transcribe submits audio and, when the provider is asynchronous,
// drives the poll loop to completion. It is the single entry point
// the rest of the program uses regardless of provider style.
func Transcribe(ctx context.Context, c Client, audio []byte, format string, cfg PollConfig) (string, error) {
	sub, err := c.Submit(ctx, audio, format)
	if err != nil {
		return "", err
	}
	if cfg.OnSubmit != nil {
		cfg.OnSubmit(sub)
	}
	if sub.Job == nil {
		if sub.Text == "" {
			return "", ErrEmptyResponse
		}
		return sub.Text, nil
	}

	cfg = cfg.withDefaults()
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		status, err := sub.Job.poll(ctx)
		if err != nil {
			return "", err
		}
		if status.Done {
			if status.Text == "" {
				return "", ErrEmptyResponse
			}
			return status.Text, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts (job %s)", ErrPollExhausted, cfg.MaxAttempts, sub.Job.ID)
}

// New picks a provider from the supplied credentials, preferring
// Gladia when both keys are present, and pre-warms its connection.
func New(creds Credentials) (Client, error) {
	if creds.GladiaKey != "" {
		g := NewGladia(creds.GladiaKey)
		g.Warm()
		return g, nil
	}
	if creds.OpenAIKey != "" {
		w := NewWhisper(creds.OpenAIKey)
		w.Warm()
		return w, nil
	}
	return nil, errors.New("no transcription credentials configured")
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}
