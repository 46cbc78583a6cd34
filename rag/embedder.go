package rag

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"
)

// Embedder turns text into a fixed-length vector.
// Implementations must be deterministic for a fixed model and safe for
// concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, text string) ([]float64, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float64, error) {
	return f(ctx, text)
}

// DefaultSimpleDimensions is the vector length of a zero-value SimpleEmbedder.
const DefaultSimpleDimensions = 256

// SimpleEmbedder is a deterministic offline embedder: a hashed bag of
// lower-cased words. Texts sharing words point in similar directions.
type SimpleEmbedder struct {
	dims int
}

func NewSimpleEmbedder(dims int) *SimpleEmbedder {
	if dims <= 0 {
		dims = DefaultSimpleDimensions
	}
	return &SimpleEmbedder{dims: dims}
}

// Dimensions returns the vector length.
func (e *SimpleEmbedder) Dimensions() int {
	if e.dims <= 0 {
		return DefaultSimpleDimensions
	}
	return e.dims
}

func (e *SimpleEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float64, e.Dimensions())
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New64a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum64()
		// top bit picks the sign so unrelated words tend to cancel out
		sign := 1.0
		if sum>>63 == 1 {
			sign = -1.0
		}
		vec[sum%uint64(len(vec))] += sign
	}
	return vec, nil
}

// LazyEmbedder initializes the wrapped embedder on first use, at most once.
// A failed initialization is kept and reported on every call as
// ErrProviderUnavailable; it is never retried.
type LazyEmbedder struct {
	get   func() (Embedder, error)
	ready atomic.Bool
}

func NewLazyEmbedder(factory func() (Embedder, error)) *LazyEmbedder {
	l := &LazyEmbedder{}
	l.get = sync.OnceValues(func() (Embedder, error) {
		e, err := factory()
		if err != nil {
			return nil, err
		}
		if e == nil {
			return nil, fmt.Errorf("embedder factory returned nil")
		}
		l.ready.Store(true)
		return e, nil
	})
	return l
}

// Init forces initialization and returns its error, if any.
func (l *LazyEmbedder) Init() error {
	_, err := l.get()
	return err
}

// Ready reports whether initialization has completed successfully.
func (l *LazyEmbedder) Ready() bool {
	return l.ready.Load()
}

func (l *LazyEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	e, err := l.get()
	if err != nil {
		return nil, fmt.Errorf("%w: initialize embedder: %w", ErrProviderUnavailable, err)
	}
	return e.Embed(ctx, text)
}
