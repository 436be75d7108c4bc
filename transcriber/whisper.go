package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strings"
)

// Whisper is the synchronous provider. The transcript comes back in
// the submit response itself, so Submit never returns a Job.
type Whisper struct {
	client *TracedClient
	apiURL string
	apiKey string
	model  string
}

func NewWhisper(apiKey string) *Whisper {
	return &Whisper{
		client: NewTracedClient(),
		apiURL: "https://api.openai.com/v1/audio/transcriptions",
		apiKey: apiKey,
		model:  "whisper-1",
	}
}

// Warm opens the TLS connection ahead of the first submit.
func (w *Whisper) Warm() { go w.client.Warm(w.apiURL) }

func (w *Whisper) Name() string { return "whisper" }

func (w *Whisper) Submit(ctx context.Context, audio []byte, format string) (*Submission, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio."+format)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, err
	}
	writer.WriteField("model", w.model)
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", w.apiURL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, &APIError{Provider: w.Name(), Status: resp.StatusCode, Body: string(resp.Body)}
	}

	remaining := firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")

	return &Submission{
		Text:      parseSyncBody(resp.Body),
		Metrics:   resp.Metrics,
		RateLimit: remaining + "/" + limit,
	}, nil
}

// parseSyncBody accepts either the JSON object form with a "text"
// field or a bare text body, which some compatible endpoints return.
func parseSyncBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var parsed struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(body, &parsed); err == nil {
			return strings.TrimSpace(parsed.Text)
		}
	}
	return trimmed
}
