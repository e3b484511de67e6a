package client

import (
	"context"
	"fmt"

	"github.com/platewise/api/internal/config"
)

// NewStorage builds the configured photo storage backend
func NewStorage(cfg *config.StorageConfig) (StorageClient, error) {
	var (
		s   StorageClient
		err error
	)
	switch cfg.Backend {
	case "r2":
		s, err = NewR2Client(&cfg.R2)
	case "supabase":
		s, err = NewSupabaseClient(&cfg.Supabase)
	default:
		err = fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewVision builds the configured vision provider. Callers should close the
// result when it implements io.Closer.
func NewVision(ctx context.Context, cfg *config.VisionConfig) (VisionClient, error) {
	switch cfg.Provider {
	case "gemini":
		v, err := NewGeminiVision(ctx, &cfg.Gemini)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "openai":
		return NewOpenAIVision(&cfg.OpenAI), nil
	default:
		return nil, fmt.Errorf("unknown vision provider %q", cfg.Provider)
	}
}
