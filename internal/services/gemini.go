package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/a-abukar/cv-review-generator/internal/models"
)

// GeminiService performs a single completion call. It does not retry.
type GeminiService interface {
	GenerateText(ctx context.Context, spec models.PromptSpec) (models.GenerationResult, error)
}

type geminiService struct {
	client *genai.Client
	logger *slog.Logger
}

type GeminiOptions struct {
	APIKey  string
	BaseURL string
}

func NewGeminiService(ctx context.Context, opts GeminiOptions, logger *slog.Logger) (GeminiService, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini api key is not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &geminiService{client: client, logger: logger}, nil
}

// GenerateText implements GeminiService.
func (g *geminiService) GenerateText(ctx context.Context, spec models.PromptSpec) (models.GenerationResult, error) {
	temperature := spec.Temperature
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: spec.MaxTokens,
	}
	if spec.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(spec.SystemInstruction, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, spec.Model, genai.Text(spec.UserPrompt), config)
	if err != nil {
		g.logger.Error("❌ Gemini API error", "feature", spec.Feature, "model", spec.Model, "error", err)
		return models.GenerationResult{}, fmt.Errorf("failed to generate text: %w", err)
	}
	if resp == nil {
		return models.GenerationResult{}, errors.New("no response generated (nil response)")
	}

	text := resp.Text()
	if text == "" {
		reason := ""
		if len(resp.Candidates) > 0 {
			reason = string(resp.Candidates[0].FinishReason)
		}
		g.logger.Warn("❌ No text content in response", "feature", spec.Feature, "finish_reason", reason)
		return models.GenerationResult{}, errors.New("no text content in response")
	}

	return models.GenerationResult{Content: text, Raw: resp}, nil
}
