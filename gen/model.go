package gen

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// TextRequest is a single prompt sent to the language model.
type TextRequest struct {
	Prompt      string
	Temperature float32
	MaxTokens   int32
}

// TextModel is the language model collaborator. Implementations must be safe
// for concurrent use; tests substitute stubs.
type TextModel interface {
	GenerateText(ctx context.Context, req TextRequest) (string, error)
}

const defaultModelName = "gemini-2.5-flash"

// GoogleModel implements TextModel over the Gemini API.
type GoogleModel struct {
	client *genai.Client
	model  string
}

var _ TextModel = (*GoogleModel)(nil)

func NewGoogleModel(ctx context.Context, apiKey, model string) (*GoogleModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("generation API key is required")
	}

	if model == "" {
		model = defaultModelName
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GoogleModel{client: client, model: model}, nil
}

func (m *GoogleModel) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}

	if req.MaxTokens > 0 {
		config.MaxOutputTokens = req.MaxTokens
	}

	result, err := m.client.Models.GenerateContent(ctx, m.model, genai.Text(req.Prompt), config)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("generation returned no text")
	}

	return text, nil
}
