package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewise/api/internal/config"
	"github.com/platewise/api/internal/model"
)

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func newTestVision(url string) *OpenAIVision {
	return NewOpenAIVision(&config.OpenAIConfig{APIKey: "test-key", BaseURL: url + "/", Model: "gpt-4o-mini"})
}

var testImage = Image{PhotoID: uuid.New(), ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}}

func TestOpenAIVisionEstimateItems(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = io.WriteString(w, completion(`{"items":[{"label":"toast","kcal_estimate":120,"confidence":0.7}]}`))
	}))
	defer srv.Close()

	items, err := newTestVision(srv.URL).EstimateItems(context.Background(), []Image{testImage})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "toast", items[0].Label)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	parts := msgs[1].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	img := parts[1].(map[string]any)["image_url"].(map[string]any)
	assert.True(t, strings.HasPrefix(img["url"].(string), "data:image/jpeg;base64,"))
}

func TestOpenAIVisionUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestVision(srv.URL).EstimateItems(context.Background(), []Image{testImage})
	assert.Equal(t, model.VisionUpstream, visionKind(t, err))
	assert.Contains(t, err.Error(), "503")
}

func TestOpenAIVisionMalformedContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, completion("a bowl of soup, roughly 300 kcal"))
	}))
	defer srv.Close()

	_, err := newTestVision(srv.URL).EstimateItems(context.Background(), []Image{testImage})
	assert.Equal(t, model.VisionMalformed, visionKind(t, err))
}

func TestOpenAIVisionNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	_, err := newTestVision(srv.URL).EstimateItems(context.Background(), []Image{testImage})
	assert.Equal(t, model.VisionEmpty, visionKind(t, err))
}

func TestOpenAIVisionTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestVision(srv.URL).EstimateItems(ctx, []Image{testImage})
	assert.Equal(t, model.VisionTimeout, visionKind(t, err))
}

func TestOpenAIVisionNotConfigured(t *testing.T) {
	c := NewOpenAIVision(&config.OpenAIConfig{BaseURL: "http://unused"})
	assert.False(t, c.IsConfigured())
	_, err := c.EstimateItems(context.Background(), []Image{testImage})
	assert.Equal(t, model.VisionUpstream, visionKind(t, err))
}
