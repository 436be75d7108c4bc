package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
)

// Gladia is the asynchronous provider. Submit uploads the audio and
// returns a Job pointing at the provider's result URL, which callers
// poll through Transcribe.
type Gladia struct {
	client *TracedClient
	apiURL string
	apiKey string
}

func NewGladia(apiKey string) *Gladia {
	return &Gladia{
		client: NewTracedClient(),
		apiURL: "https://api.gladia.io/v2/transcription",
		apiKey: apiKey,
	}
}

func (g *Gladia) Name() string { return "gladia" }

// Warm opens the TLS connection ahead of the first submit.
func (g *Gladia) Warm() { go g.client.Warm(g.apiURL) }

type gladiaSubmitResponse struct {
	ID        string `json:"id"`
	ResultURL string `json:"result_url"`
}

type gladiaResult struct {
	Status string `json:"status"`
	Error  struct {
		Message string `json:"message"`
	} `json:"error"`
	Result struct {
		Transcription struct {
			FullTranscript string `json:"full_transcript"`
		} `json:"transcription"`
	} `json:"result"`
}

func (g *Gladia) Submit(ctx context.Context, audio []byte, format string) (*Submission, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio", "audio."+format)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, err
	}
	writer.WriteField("toggle_diarization", "false")
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", g.apiURL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-gladia-key", g.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 && resp.StatusCode != 201 {
		return nil, &APIError{Provider: g.Name(), Status: resp.StatusCode, Body: string(resp.Body)}
	}

	var submitted gladiaSubmitResponse
	if err := json.Unmarshal(resp.Body, &submitted); err != nil {
		return nil, fmt.Errorf("gladia submit response parse error: %w", err)
	}
	if submitted.ResultURL == "" {
		return nil, fmt.Errorf("gladia submit response missing result_url")
	}

	job := &Job{ID: submitted.ID, ResultURL: submitted.ResultURL}
	job.poll = func(ctx context.Context) (*PollStatus, error) { return g.poll(ctx, job.ResultURL) }
	return &Submission{Job: job, Metrics: resp.Metrics}, nil
}

func (g *Gladia) poll(ctx context.Context, resultURL string) (*PollStatus, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", resultURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-gladia-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, &APIError{Provider: g.Name(), Status: resp.StatusCode, Body: string(resp.Body)}
	}

	var result gladiaResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("gladia result parse error: %w", err)
	}

	switch result.Status {
	case "done":
		text := strings.TrimSpace(result.Result.Transcription.FullTranscript)
		return &PollStatus{Done: true, Text: text}, nil
	case "error":
		return nil, fmt.Errorf("gladia transcription failed: %s", result.Error.Message)
	default:
		return &PollStatus{}, nil
	}
}
