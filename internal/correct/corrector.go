// Package correct provides the AI correction boundary of the enhancement
// pipeline: given raw OCR text, a Corrector returns a conservatively fixed
// version of it or a typed failure.
//
// The OpenAI implementation calls a chat model at a low temperature so that
// repeated corrections of the same text stay as deterministic as the model
// allows. Retries belong to the orchestrator; a Corrector makes exactly one
// attempt per call.
package correct

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"docenhance/internal/logger"
)

// Corrector fixes OCR errors in raw extracted text.
type Corrector interface {
	// Correct returns the corrected version of text, or a typed failure.
	Correct(ctx context.Context, text string) (string, error)
}

// Config configures the OpenAI corrector.
type Config struct {
	// Model is the chat model to invoke.
	Model string

	// Temperature controls sampling randomness. The pipeline wants
	// near-deterministic output; keep this low.
	Temperature float32

	// MaxInputBytes rejects oversized inputs before the API call.
	MaxInputBytes int
}

// DefaultConfig returns the default correction settings.
func DefaultConfig() Config {
	return Config{
		Model:         openai.GPT4oMini,
		Temperature:   0.1,
		MaxInputBytes: 10 << 20,
	}
}

// systemPrompt instructs the model to fix OCR damage without rewriting.
const systemPrompt = `You are a text enhancement specialist for OCR-extracted content.

Your task is to:
- Fix spelling mistakes and OCR errors in the provided text
- Correct common OCR misreads (like 'rn' instead of 'm', '0' instead of 'O', etc.)
- Improve text formatting and readability
- Maintain the original meaning and structure
- Be conservative - only fix obvious errors
- Preserve names, addresses, and numbers as accurately as possible

Return ONLY the corrected text, with no commentary, no explanation and no surrounding quotes.`

// completionAPI is the slice of the OpenAI client the corrector uses.
// *openai.Client satisfies it; tests substitute a fake.
type completionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAICorrector implements Corrector on the OpenAI chat completion API.
type OpenAICorrector struct {
	client completionAPI
	config Config
	log    zerolog.Logger
}

// NewOpenAICorrector creates a corrector with the given API key.
func NewOpenAICorrector(apiKey string, config Config) (*OpenAICorrector, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	return newWithClient(openai.NewClient(apiKey), config), nil
}

// NewOpenAICorrectorWithClient creates a corrector with an explicit client
// (for testing).
func NewOpenAICorrectorWithClient(client *openai.Client, config Config) *OpenAICorrector {
	return newWithClient(client, config)
}

func newWithClient(client completionAPI, config Config) *OpenAICorrector {
	def := DefaultConfig()
	if config.Model == "" {
		config.Model = def.Model
	}
	if config.MaxInputBytes <= 0 {
		config.MaxInputBytes = def.MaxInputBytes
	}
	return &OpenAICorrector{
		client: client,
		config: config,
		log:    logger.WithComponent("corrector"),
	}
}

// Correct sends the text through the model and returns the corrected
// version.
func (c *OpenAICorrector) Correct(ctx context.Context, text string) (string, error) {
	const op = "Correct"

	if len(text) > c.config.MaxInputBytes {
		return "", WrapError(op, ErrTooLarge, fmt.Sprintf("input size: %d bytes", len(text)))
	}
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	c.log.Debug().
		Int("input_length", len(text)).
		Str("model", c.config.Model).
		Float32("temperature", c.config.Temperature).
		Msg("Sending correction request")

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Temperature: c.config.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(text)},
		},
		MaxTokens: maxTokensFor(text),
	})
	if err != nil {
		return "", WrapError(op, apiFailure(err), "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", WrapError(op, ErrMalformed, "no choices in completion response")
	}

	corrected := strings.TrimSpace(resp.Choices[0].Message.Content)
	if corrected == "" {
		return "", WrapError(op, ErrMalformed, "empty completion content")
	}

	c.log.Debug().
		Int("output_length", len(corrected)).
		Msg("Received correction response")

	return corrected, nil
}

func buildPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Please enhance and correct the following OCR-extracted text. ")
	b.WriteString("Fix spelling mistakes and OCR errors while preserving the original meaning and structure:\n\n")
	b.WriteString("ORIGINAL OCR TEXT:\n")
	b.WriteString(text)
	return b.String()
}

// maxTokensFor scales the completion budget with the input so long
// documents are not truncated mid-correction.
func maxTokensFor(text string) int {
	// Rough 3 bytes per token, corrected text is about as long as the input.
	tokens := len(text)/3 + 256
	if tokens > 16384 {
		tokens = 16384
	}
	return tokens
}

// apiFailure maps an OpenAI API error to the typed failure family.
func apiFailure(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, context.Canceled):
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500:
			return ErrUnavailable
		case apiErr.HTTPStatusCode == 400:
			return ErrMalformed
		}
	}
	return ErrUnavailable
}
