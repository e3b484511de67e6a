package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/platewise/api/internal/config"
	"github.com/platewise/api/internal/model"
)

// OpenAIVision talks to an OpenAI-compatible chat completions API with image inputs
type OpenAIVision struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// NewOpenAIVision creates a vision client. Request deadlines come from the caller's context.
func NewOpenAIVision(cfg *config.OpenAIConfig) *OpenAIVision {
	return &OpenAIVision{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
}

func (c *OpenAIVision) EstimateItems(ctx context.Context, images []Image) ([]model.ItemEstimate, error) {
	if !c.IsConfigured() {
		return nil, model.NewVisionError(model.VisionUpstream, fmt.Errorf("openai not configured"))
	}

	userParts := []chatContentPart{{
		Type: "text",
		Text: fmt.Sprintf("Estimate the meal shown in these %d photo(s).", len(images)),
	}}
	for _, img := range images {
		userParts = append(userParts, chatContentPart{
			Type: "image_url",
			ImageURL: &chatImageURL{
				URL:    "data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data),
				Detail: "auto",
			},
		})
	}

	reqBody := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: visionSystemPrompt},
			{Role: "user", Content: userParts},
		},
		Temperature:    0,
		MaxTokens:      1024,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyVisionError(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyVisionError(ctx, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewVisionError(model.VisionUpstream,
			fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 512)))
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, model.NewVisionError(model.VisionMalformed, fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if len(chatResp.Choices) == 0 {
		return nil, model.NewVisionError(model.VisionEmpty, fmt.Errorf("no choices in response"))
	}

	return ParseVisionResponse(chatResp.Choices[0].Message.Content)
}

// IsConfigured returns true if the client has an API key
func (c *OpenAIVision) IsConfigured() bool {
	return c.apiKey != ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
