// Package app wires the knowledge base, embedding provider and retriever
// from configuration.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"kblookup/config"
	"kblookup/kb"
	"kblookup/provider"
	"kblookup/rag"
)

// Dependencies holds everything the server and CLI need to answer queries.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	KnowledgeBase *rag.KnowledgeBase
	Embedder      *rag.LazyEmbedder
	Retriever     *rag.Retriever
}

// NewDependencies loads the knowledge base and builds the retriever. The
// embedding provider is constructed lazily on first use so a missing
// provider does not prevent startup.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...provider.Option) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initKnowledgeBase(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize knowledge base: %w", err)
	}

	deps.initEmbedder(ctx, cfg, opts...)

	if err := deps.initRetriever(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize retriever: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func (d *Dependencies) initKnowledgeBase(cfg *config.Config) error {
	format, err := kb.ParseFormat(cfg.KnowledgeBase.Format)
	if err != nil {
		return err
	}
	base, err := kb.Load(cfg.KnowledgeBase.Path, format)
	if err != nil {
		return err
	}
	d.KnowledgeBase = base

	d.Logger.Info("knowledge base loaded",
		zap.String("path", cfg.KnowledgeBase.Path),
		zap.Int("entries", base.Len()),
		zap.Int("embedded", base.EmbeddedCount()),
		zap.Int("dimension", base.Dimension()))
	if base.EmbeddedCount() == 0 {
		d.Logger.Warn("knowledge base has no embedded entries; every query will return not found")
	}
	return nil
}

func (d *Dependencies) initEmbedder(ctx context.Context, cfg *config.Config, opts ...provider.Option) {
	d.Embedder = rag.NewLazyEmbedder(func() (rag.Embedder, error) {
		e, err := provider.New(ctx, cfg.Embedder, d.Logger, opts...)
		if err != nil {
			d.Logger.Error("embedding provider initialization failed", zap.Error(err))
			return nil, err
		}
		return e, nil
	})
}

func (d *Dependencies) initRetriever(cfg *config.Config) error {
	r, err := rag.NewRetriever(d.Embedder, d.KnowledgeBase,
		rag.WithThreshold(cfg.Retrieval.Threshold),
		rag.WithEmbedTimeout(cfg.Retrieval.EmbedTimeout),
		rag.WithLogger(d.Logger),
	)
	if err != nil {
		return err
	}
	d.Retriever = r
	return nil
}
