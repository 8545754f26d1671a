// Package llm wraps the generative-text service: a Generator interface, the
// Gemini implementation, the retry policy and JSON extraction from free text.
package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Request is one prompt sent to the text service.
type Request struct {
	Prompt string

	// GoogleSearch grounds the answer with live web search results.
	GoogleSearch bool
}

// Generator turns a prompt into free text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Gemini implements Generator with the Google GenAI SDK.
type Gemini struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGemini creates a Gemini API client for the given model.
func NewGemini(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{client: client, model: model, logger: logger}, nil
}

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	var cfg *genai.GenerateContentConfig
	if req.GoogleSearch {
		cfg = &genai.GenerateContentConfig{
			Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		}
	}

	g.logger.Debug("gemini request",
		zap.String("model", g.model),
		zap.Int("prompt_chars", len(req.Prompt)),
		zap.Bool("google_search", req.GoogleSearch))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	g.logger.Debug("gemini response", zap.Int("chars", len(text)))
	return text, nil
}
