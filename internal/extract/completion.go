package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"vendorsync/internal/logger"
	"vendorsync/internal/normalize"
)

// CompletionConfig configures the ChatGPT terms completer
type CompletionConfig struct {
	Model       string  // gpt-4o-mini, gpt-4o
	Temperature float32 // ChatGPT temperature
	MaxRetries  int     // ChatGPT retry attempts
	MaxTokens   int
}

// DefaultCompletionConfig returns the settings used when only a key is configured.
func DefaultCompletionConfig(model string) CompletionConfig {
	if model == "" {
		model = openai.GPT4oMini
	}
	return CompletionConfig{
		Model:       model,
		Temperature: 0,
		MaxRetries:  3,
		MaxTokens:   300,
	}
}

// ChatGPTTermsCompleter asks a chat model to read payment terms.
type ChatGPTTermsCompleter struct {
	client *openai.Client
	config CompletionConfig
	log    zerolog.Logger
}

// NewChatGPTTermsCompleter creates a completer for the given API key.
func NewChatGPTTermsCompleter(apiKey string, config CompletionConfig) (*ChatGPTTermsCompleter, error) {
	if apiKey == "" {
		return nil, WrapExtractionError("NewChatGPTTermsCompleter", ErrInvalidConfiguration, "OPENAI_API_KEY is required")
	}
	return NewChatGPTTermsCompleterWithClient(openai.NewClient(apiKey), config), nil
}

// NewChatGPTTermsCompleterWithClient creates a completer with an explicit client
func NewChatGPTTermsCompleterWithClient(client *openai.Client, config CompletionConfig) *ChatGPTTermsCompleter {
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 300
	}
	return &ChatGPTTermsCompleter{
		client: client,
		config: config,
		log:    logger.WithComponent("terms-completion"),
	}
}

// termsAnswer is the JSON object the model is asked to return. Numbers may
// come back as strings.
type termsAnswer struct {
	DiscountPercent any    `json:"discount_percent"`
	DiscountDays    any    `json:"discount_days"`
	NetDays         any    `json:"net_days"`
	LateFeePercent  any    `json:"late_fee_percent"`
	LateFeePeriod   string `json:"late_fee_period"`
}

func (a termsAnswer) terms() Terms {
	t := Terms{
		DiscountPct:   normalize.ToNullableNumber(a.DiscountPercent),
		LateFeePct:    normalize.ToNullableNumber(a.LateFeePercent),
		LateFeePeriod: strings.ToLower(strings.TrimSpace(a.LateFeePeriod)),
	}
	if d := normalize.ToNullableNumber(a.DiscountDays); d != nil {
		n := int(*d)
		t.DiscountDays = &n
	}
	if d := normalize.ToNullableNumber(a.NetDays); d != nil {
		n := int(*d)
		t.NetDays = &n
	}
	if t.DiscountPct != nil && *t.DiscountPct <= 0 {
		t.DiscountPct, t.DiscountDays = nil, nil
	}
	if t.LateFeePct != nil && *t.LateFeePct <= 0 {
		t.LateFeePct, t.LateFeePeriod = nil, ""
	}
	return t
}

// CompleteTerms sends text to the model and parses its JSON answer.
func (c *ChatGPTTermsCompleter) CompleteTerms(ctx context.Context, text string) (Terms, error) {
	const op = "CompleteTerms"

	prompt := buildTermsPrompt(text)

	c.log.Debug().
		Int("prompt_length", len(prompt)).
		Str("model", c.config.Model).
		Msg("Sending terms request to ChatGPT")

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Terms{}, WrapExtractionError(op, ErrContextCanceled, err.Error())
		}

		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.config.Model,
			Temperature: c.config.Temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: termsSystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			MaxTokens: c.config.MaxTokens,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			lastErr = err
			c.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_retries", c.config.MaxRetries).
				Msg("ChatGPT request failed, retrying")
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = ErrNoCompletion
			continue
		}

		content := stripCodeFence(resp.Choices[0].Message.Content)
		var answer termsAnswer
		if err := json.Unmarshal([]byte(content), &answer); err != nil {
			lastErr = fmt.Errorf("failed to parse ChatGPT JSON response: %w", err)
			c.log.Warn().
				Err(err).
				Str("response", content).
				Int("attempt", attempt).
				Msg("Failed to parse ChatGPT response, retrying")
			continue
		}

		terms := answer.terms()
		c.log.Info().
			Str("terms", terms.Standardized()).
			Int("attempt", attempt).
			Msg("Payment terms completed by ChatGPT")
		return terms, nil
	}

	return Terms{}, &ExtractionError{
		Op:      op,
		Err:     fmt.Errorf("%w: %w", ErrNoCompletion, lastErr),
		Details: fmt.Sprintf("all %d attempts failed", c.config.MaxRetries),
	}
}

const termsSystemPrompt = `You read the payment terms of vendor invoices.
Answer with a single JSON object and nothing else:
{"discount_percent": number|null, "discount_days": number|null, "net_days": number|null,
 "late_fee_percent": number|null, "late_fee_period": "month"|"year"|"day"|"week"|""}
Use null for anything the text does not state. Do not guess.`

func buildTermsPrompt(text string) string {
	const maxChars = 6000
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	return "Extract the payment terms from this invoice text:\n\n" + text
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
