package refine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultModel       = openai.GPT4oMini
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 4096
)

const instruction = "You clean up raw speech-to-text transcripts. " +
	"Correct typos and transcription mistakes, improve clarity, and format the text into readable paragraphs. " +
	"Preserve the original meaning and do not add or remove content. Reply with the cleaned text only."

// ErrEmptyInput is returned when there is nothing to refine.
var ErrEmptyInput = errors.New("no transcript text to refine")

// ErrEmptyResponse is returned when the model answers with no usable text.
var ErrEmptyResponse = errors.New("refinement returned empty text")

// Refiner rewrites a raw transcript into cleaned-up prose via a chat
// completion. It is optional; the pipeline works without it.
type Refiner struct {
	client      *openai.Client
	Model       string
	Temperature float32
	MaxTokens   int
}

func New(apiKey string) *Refiner {
	return NewWithClient(openai.NewClient(apiKey))
}

// NewWithClient accepts a preconfigured client, mainly so alternate
// base URLs and test servers can be plugged in.
func NewWithClient(client *openai.Client) *Refiner {
	return &Refiner{
		client:      client,
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

func (r *Refiner) Refine(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.Model,
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("refinement request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	refined := strings.TrimSpace(resp.Choices[0].Message.Content)
	if refined == "" {
		return "", ErrEmptyResponse
	}
	return refined, nil
}
