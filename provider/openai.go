package provider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"kblookup/rag"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = openai.EmbeddingModelTextEmbedding3Small

// OpenAIEmbedder wraps an openai.Client to implement rag.Embedder
type OpenAIEmbedder struct {
	client     openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder creates a new OpenAI embedder
// client: openai.Client from github.com/openai/openai-go
// model: the embedding model to use (e.g., "text-embedding-3-small")
// dimensions: requested output size, 0 keeps the model default
func NewOpenAIEmbedder(client openai.Client, model string, dimensions int) *OpenAIEmbedder {
	if model == "" {
		model = string(DefaultOpenAIModel)
	}
	return &OpenAIEmbedder{
		client:     client,
		model:      model,
		dimensions: dimensions,
	}
}

// Embed implements rag.Embedder
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(e.model),
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	if len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding vector")
	}

	return resp.Data[0].Embedding, nil
}

// Verify that OpenAIEmbedder implements rag.Embedder
var _ rag.Embedder = (*OpenAIEmbedder)(nil)
