package caption

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

const defaultTemperature = float32(0.7)

// GeminiGenerator captions images with a Gemini model.
type GeminiGenerator struct {
	models *genai.Models
	model  string
	config *genai.GenerateContentConfig
}

// GeminiConfig configures a GeminiGenerator.
type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint; empty uses the public one.
	BaseURL    string
	HTTPClient *http.Client
}

// NewGeminiGenerator creates a Gemini API client.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiGenerator{
		models: client.Models,
		model:  cfg.Model,
		config: &genai.GenerateContentConfig{
			Temperature: genai.Ptr(defaultTemperature),
		},
	}, nil
}

// Generate sends the image inline together with the caption prompt.
func (g *GeminiGenerator) Generate(ctx context.Context, image []byte, mimeType string) (Result, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, mimeType),
			genai.NewPartFromText(Prompt),
		}, genai.RoleUser),
	}
	resp, err := g.models.GenerateContent(ctx, g.model, contents, g.config)
	if err != nil {
		return Result{}, fmt.Errorf("gemini %s: %w", g.model, err)
	}

	res := Result{Text: resp.Text()}
	if u := resp.UsageMetadata; u != nil {
		res.Usage = Usage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
		}
	}
	return res, nil
}
