// Package llm wraps the OpenAI API for call transcription and transcript
// analysis.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"crm-webhook/pkg/logger"

	"github.com/sashabaranov/go-openai"
)

const (
	DefaultTranscriptionModel = openai.Whisper1
	DefaultAnalysisModel      = openai.GPT4oMini
	DefaultTimeout            = 2 * time.Minute
)

var (
	// ErrNoSpeech means the recording produced an empty transcript.
	ErrNoSpeech = errors.New("llm: no speech in recording")
	// ErrEmptyAnswer means the model returned no usable text.
	ErrEmptyAnswer = errors.New("llm: empty answer")
)

type Config struct {
	APIKey string
	// BaseURL overrides the OpenAI endpoint (proxies, tests).
	BaseURL            string
	TranscriptionModel string
	AnalysisModel      string
	Timeout            time.Duration
	HTTPClient         *http.Client
}

// Template is the assistant configuration an analysis runs with.
// An empty Model falls back to the client's default analysis model.
type Template struct {
	Instructions string
	Model        string
}

type Client struct {
	api                *openai.Client
	transcriptionModel string
	analysisModel      string
	timeout            time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = DefaultTranscriptionModel
	}
	if cfg.AnalysisModel == "" {
		cfg.AnalysisModel = DefaultAnalysisModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}

	return &Client{
		api:                openai.NewClientWithConfig(oc),
		transcriptionModel: cfg.TranscriptionModel,
		analysisModel:      cfg.AnalysisModel,
		timeout:            cfg.Timeout,
	}
}

// Transcribe turns a local audio file into text.
func (c *Client) Transcribe(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcriptionModel,
		FilePath: path,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("llm: transcription: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	logger.From(ctx).Debug("transcription done",
		"model", c.transcriptionModel,
		"chars", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}

// Analyze runs the transcript through the assistant template and returns
// the model's answer.
func (c *Client) Analyze(ctx context.Context, transcript string, tmpl Template) (string, error) {
	model := tmpl.Model
	if model == "" {
		model = c.analysisModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if tmpl.Instructions != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: tmpl.Instructions,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: transcript,
	})

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("llm: analysis: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyAnswer
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", ErrEmptyAnswer
	}

	logger.From(ctx).Debug("analysis done",
		"model", model,
		"tokens", resp.Usage.TotalTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return answer, nil
}

// StatusCode extracts the HTTP status of an OpenAI API failure, 0 if none.
func StatusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
