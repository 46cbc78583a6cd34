package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultEmbedTimeout bounds a single query embedding.
const DefaultEmbedTimeout = 10 * time.Second

// Retriever answers free-text queries against a fixed knowledge base.
type Retriever struct {
	embedder  Embedder
	kb        *KnowledgeBase
	threshold float64
	timeout   time.Duration
	logger    *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithThreshold sets the similarity a match must exceed.
func WithThreshold(threshold float64) Option {
	return func(r *Retriever) { r.threshold = threshold }
}

// WithEmbedTimeout bounds each call to the embedder. Zero disables the bound.
func WithEmbedTimeout(d time.Duration) Option {
	return func(r *Retriever) { r.timeout = d }
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Retriever) { r.logger = logger }
}

func NewRetriever(embedder Embedder, kb *KnowledgeBase, opts ...Option) (*Retriever, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if kb == nil {
		return nil, errors.New("knowledge base is required")
	}
	r := &Retriever{
		embedder:  embedder,
		kb:        kb,
		threshold: DefaultThreshold,
		timeout:   DefaultEmbedTimeout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if math.IsNaN(r.threshold) || r.threshold < -1 || r.threshold > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidThreshold, r.threshold)
	}
	if r.timeout < 0 {
		return nil, fmt.Errorf("embed timeout must not be negative, got %s", r.timeout)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r, nil
}

// Threshold returns the configured match threshold.
func (r *Retriever) Threshold() float64 {
	return r.threshold
}

// KnowledgeBase returns the knowledge base queries run against.
func (r *Retriever) KnowledgeBase() *KnowledgeBase {
	return r.kb
}

// Answer returns the best match for query.
// A miss is a StatusNotFound answer with a nil error; a failing or slow
// embedder yields an error wrapping ErrProviderUnavailable.
func (r *Retriever) Answer(ctx context.Context, query string) (Answer, error) {
	sel, err := r.Select(ctx, query)
	if err != nil {
		return Answer{Status: StatusNotFound}, err
	}
	return sel.Answer, nil
}

// Select is Answer plus the full score table.
func (r *Retriever) Select(ctx context.Context, query string) (Selection, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Selection{}, ErrEmptyQuery
	}
	if r.kb.EmbeddedCount() == 0 {
		r.logger.Debug("knowledge base has no embedded entries")
		return Selection{Answer: Answer{Status: StatusNotFound}}, nil
	}

	start := time.Now()
	vec, err := r.embed(ctx, query)
	if err != nil {
		r.logger.Warn("query embedding failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return Selection{}, err
	}

	sel, err := ScoreAndSelect(vec, r.kb, r.threshold)
	if err != nil {
		r.logger.Error("scoring failed", zap.Error(err))
		return Selection{}, err
	}

	r.logger.Debug("query answered",
		zap.String("query", query),
		zap.Stringer("status", sel.Answer.Status),
		zap.String("id", sel.Answer.ID),
		zap.Float64("score", sel.Answer.Score),
		zap.Int("scored", sel.Scores.Len()),
		zap.Duration("duration", time.Since(start)),
	)
	return sel, nil
}

func (r *Retriever) embed(ctx context.Context, text string) ([]float64, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	type result struct {
		vec []float64
		err error
	}
	// Embedders that ignore ctx must not be able to hang the caller.
	done := make(chan result, 1)
	go func() {
		vec, err := r.embedder.Embed(ctx, text)
		done <- result{vec, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, ctx.Err())
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, ErrProviderUnavailable) {
				return nil, res.err
			}
			return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, res.err)
		}
		return res.vec, nil
	}
}
