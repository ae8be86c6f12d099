// Package narrative produces the free-text financial commentary by sending a
// prompt built from the summary to a text-generation service.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/dvloznov/expense-insights/internal/domain"
	"github.com/dvloznov/expense-insights/internal/logger"
)

// Generator turns a prompt into markdown text.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// GeminiGenerator calls the Gemini API.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiGenerator creates a generator for the given model. An empty key
// returns ErrNarrativeDisabled.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, domain.ErrNarrativeDisabled
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiGenerator: create genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model, temperature: 0.7}, nil
}

// Generate sends the prompt and returns the response text.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt Prompt) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt.User), cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty response from model")
	}
	return text, nil
}

// Run makes exactly one bounded attempt. Every failure, including timeout
// and cancellation, is returned as a RemoteServiceError.
func Run(ctx context.Context, gen Generator, prompt Prompt, timeout time.Duration) (string, error) {
	if gen == nil {
		return "", domain.ErrNarrativeDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := logger.FromContext(ctx)
	started := time.Now()

	text, err := gen.Generate(ctx, prompt)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		log.Warn().Err(err).Dur("elapsed", time.Since(started)).Msg("Narrative generation failed")
		return "", &domain.RemoteServiceError{Op: "GenerateNarrative", Err: err}
	}

	log.Info().Dur("elapsed", time.Since(started)).Int("chars", len(text)).Msg("Narrative generated")
	return cleanMarkdown(text), nil
}

// cleanMarkdown drops a ``` or ```markdown fence wrapped around the whole
// reply. Anything else, including a reply that merely starts with a fenced
// block, is returned as is apart from surrounding whitespace.
func cleanMarkdown(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") {
		return s
	}
	idx := strings.Index(s, "\n")
	if idx == -1 {
		return s
	}
	body := strings.TrimSuffix(s[idx+1:], "```")
	if !strings.HasSuffix(body, "\n") && body != "" {
		return s
	}
	// A fence line inside means the reply holds several blocks.
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			return s
		}
	}
	return strings.TrimSpace(body)
}
