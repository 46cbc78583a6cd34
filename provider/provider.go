// Package provider builds embedding providers from configuration.
package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"kblookup/config"
	"kblookup/rag"
)

// Option tweaks provider construction.
type Option func(*options)

type options struct {
	httpClient *http.Client
}

// WithHTTPClient routes provider traffic through c.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New creates the embedder named by cfg.Provider.
func New(ctx context.Context, cfg config.EmbedderConfig, logger *zap.Logger, opts ...Option) (rag.Embedder, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	switch cfg.Provider {
	case "", "local":
		e := rag.NewSimpleEmbedder(cfg.Dimensions)
		logger.Info("using local embedder", zap.Int("dimensions", e.Dimensions()))
		return e, nil

	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai: api key is required")
		}
		reqOpts := []option.RequestOption{
			option.WithAPIKey(cfg.OpenAIAPIKey),
			option.WithMaxRetries(cfg.OpenAIMaxRetries),
		}
		if cfg.OpenAIBaseURL != "" {
			reqOpts = append(reqOpts, option.WithBaseURL(cfg.OpenAIBaseURL))
		}
		if o.httpClient != nil {
			reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
		}
		e := NewOpenAIEmbedder(openai.NewClient(reqOpts...), cfg.Model, cfg.Dimensions)
		logger.Info("using openai embedder", zap.String("model", e.model), zap.Int("dimensions", cfg.Dimensions))
		return e, nil

	case "gemini":
		cc := &genai.ClientConfig{HTTPClient: o.httpClient}
		if cfg.GeminiBackend == "vertex" {
			cc.Backend = genai.BackendVertexAI
			cc.Project = cfg.GoogleProject
			cc.Location = cfg.GoogleLocation
		} else {
			cc.Backend = genai.BackendGeminiAPI
			cc.APIKey = cfg.GeminiAPIKey
		}
		client, err := genai.NewClient(ctx, cc)
		if err != nil {
			return nil, fmt.Errorf("gemini: create client: %w", err)
		}
		e := NewGeminiEmbedder(client, cfg.Model, cfg.Dimensions)
		logger.Info("using gemini embedder",
			zap.String("model", e.modelName),
			zap.String("backend", cfg.GeminiBackend),
			zap.Int("dimensions", cfg.Dimensions))
		return e, nil
	}

	return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
}
