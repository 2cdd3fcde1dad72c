package chat

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiGenerator calls the generative chat backend through the genai SDK.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator builds a generator against a Vertex project.
func NewGeminiGenerator(ctx context.Context, projectID, location, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate produces a reply for the combined prompt.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("empty completion")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}
