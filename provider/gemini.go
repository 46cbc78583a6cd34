package provider

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"kblookup/rag"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "text-embedding-004"

// GeminiEmbedder wraps a genai.Client to implement rag.Embedder
type GeminiEmbedder struct {
	client     *genai.Client
	modelName  string
	dimensions int
}

// NewGeminiEmbedder creates a new Gemini embedder
// client: genai.Client from google.golang.org/genai
// modelName: the embedding model to use (e.g., "text-embedding-004")
func NewGeminiEmbedder(client *genai.Client, modelName string, dimensions int) *GeminiEmbedder {
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	return &GeminiEmbedder{
		client:     client,
		modelName:  modelName,
		dimensions: dimensions,
	}
}

// Embed implements rag.Embedder
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	contents := []*genai.Content{
		{
			Parts: []*genai.Part{
				{Text: text},
			},
		},
	}

	cfg := &genai.EmbedContentConfig{}
	if e.dimensions > 0 {
		dims := int32(e.dimensions)
		cfg.OutputDimensionality = &dims
	}

	result, err := e.client.Models.EmbedContent(ctx, e.modelName, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	if len(result.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("empty embedding vector")
	}

	// Convert []float32 to []float64
	values := result.Embeddings[0].Values
	embedding := make([]float64, len(values))
	for i, v := range values {
		embedding[i] = float64(v)
	}

	return embedding, nil
}

// Verify that GeminiEmbedder implements rag.Embedder
var _ rag.Embedder = (*GeminiEmbedder)(nil)
