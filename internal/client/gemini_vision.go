package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/platewise/api/internal/config"
	"github.com/platewise/api/internal/model"
)

// GeminiVision estimates meals with a Gemini multimodal model
type GeminiVision struct {
	client *genai.Client
	model  string
}

// NewGeminiVision creates a Gemini client. A missing API key yields an
// unconfigured client that fails every call.
func NewGeminiVision(ctx context.Context, cfg *config.GeminiConfig) (*GeminiVision, error) {
	v := &GeminiVision{model: strings.TrimSpace(cfg.Model)}
	if cfg.APIKey == "" {
		return v, nil
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	v.client = cl
	return v, nil
}

func (v *GeminiVision) EstimateItems(ctx context.Context, images []Image) ([]model.ItemEstimate, error) {
	if v.client == nil {
		return nil, model.NewVisionError(model.VisionUpstream, fmt.Errorf("gemini not configured"))
	}

	m := v.client.GenerativeModel(v.model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(visionSystemPrompt)},
	}

	parts := []genai.Part{genai.Text(fmt.Sprintf("Estimate the meal shown in these %d photo(s).", len(images)))}
	for _, img := range images {
		parts = append(parts, &genai.Blob{MIMEType: img.ContentType, Data: img.Data})
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, classifyVisionError(ctx, err)
	}
	return ParseVisionResponse(firstText(resp))
}

func (v *GeminiVision) IsConfigured() bool {
	return v.client != nil
}

func (v *GeminiVision) Close() error {
	if v.client == nil {
		return nil
	}
	return v.client.Close()
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}
