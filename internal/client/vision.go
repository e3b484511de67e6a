package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/platewise/api/internal/model"
)

// Image is one photo handed to the vision service
type Image struct {
	PhotoID     uuid.UUID
	ContentType string
	Data        []byte
}

// VisionClient recognises food items and their calories in photos.
// Failures are returned as *model.VisionError.
type VisionClient interface {
	EstimateItems(ctx context.Context, images []Image) ([]model.ItemEstimate, error)
	IsConfigured() bool
}

const visionSystemPrompt = `You estimate the nutrition of food in photos.
All photos show one meal. List every distinct food item you can see once, even if it appears in several photos.
For each item give a short label, your best estimate of its calories in kcal, and your confidence between 0 and 1.
When you can, add macronutrients in grams as protein_g, fat_g and carbs_g.
Reply with JSON only, matching this schema:
` + visionResponseSchema

const visionResponseSchema = `{
  "type": "object",
  "required": ["items"],
  "properties": {
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["label", "kcal_estimate", "confidence"],
        "properties": {
          "label": {"type": "string", "minLength": 1},
          "kcal_estimate": {"type": "number", "maximum": 100000},
          "confidence": {"type": "number"},
          "macros": {
            "type": "object",
            "required": ["protein_g", "fat_g", "carbs_g"],
            "properties": {
              "protein_g": {"type": "number", "maximum": 10000},
              "fat_g": {"type": "number", "maximum": 10000},
              "carbs_g": {"type": "number", "maximum": 10000}
            }
          }
        }
      }
    }
  }
}`

var visionSchema = jsonschema.MustCompileString("vision_response.json", visionResponseSchema)

type visionResponse struct {
	Items []struct {
		Label        string  `json:"label"`
		KcalEstimate float64 `json:"kcal_estimate"`
		Confidence   float64 `json:"confidence"`
		Macros       *struct {
			ProteinG float64 `json:"protein_g"`
			FatG     float64 `json:"fat_g"`
			CarbsG   float64 `json:"carbs_g"`
		} `json:"macros"`
	} `json:"items"`
}

// ParseVisionResponse validates raw model output and converts it to items.
// Malformed or empty output is an error, never a zero-calorie result.
func ParseVisionResponse(raw string) ([]model.ItemEstimate, error) {
	text := StripCodeFences(strings.TrimSpace(raw))
	if text == "" {
		return nil, model.NewVisionError(model.VisionEmpty, nil)
	}

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, model.NewVisionError(model.VisionMalformed, fmt.Errorf("bad JSON: %w", err))
	}
	if err := visionSchema.Validate(doc); err != nil {
		return nil, model.NewVisionError(model.VisionMalformed, fmt.Errorf("json does not match schema: %w", err))
	}

	var resp visionResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, model.NewVisionError(model.VisionMalformed, err)
	}
	if len(resp.Items) == 0 {
		return nil, model.NewVisionError(model.VisionEmpty, errors.New("no items recognised"))
	}

	items := make([]model.ItemEstimate, 0, len(resp.Items))
	for _, it := range resp.Items {
		item := model.ItemEstimate{
			Label:      strings.TrimSpace(it.Label),
			Kcal:       it.KcalEstimate,
			Confidence: it.Confidence,
		}
		if it.Macros != nil {
			item.Macros = &model.Macronutrients{
				ProteinG: it.Macros.ProteinG,
				FatG:     it.Macros.FatG,
				CarbsG:   it.Macros.CarbsG,
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// StripCodeFences removes a surrounding ```json fence if the model added one
func StripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// classifyVisionError maps a transport failure to a vision error kind
func classifyVisionError(ctx context.Context, err error) error {
	var ve *model.VisionError
	if errors.As(err, &ve) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return model.NewVisionError(model.VisionTimeout, err)
	}
	return model.NewVisionError(model.VisionUpstream, err)
}
