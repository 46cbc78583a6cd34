package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kblookup/config"
	"kblookup/kb"
	"kblookup/rag"
)

const kbJSON = `{
  "https://example.com/france": {"text": "Paris is the capital of France.", "embedding": [1, 0]},
  "https://example.com/draft": {"text": "Draft."}
}`

func testConfig(t *testing.T, body string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kb.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return &config.Config{
		Environment:   "test",
		KnowledgeBase: config.KnowledgeBaseConfig{Path: path, Format: "auto"},
		Retrieval:     config.RetrievalConfig{Threshold: 0.3, EmbedTimeout: time.Second},
		Embedder:      config.EmbedderConfig{Provider: "local", Dimensions: 2},
	}
}

func TestNewDependencies(t *testing.T) {
	cfg := testConfig(t, kbJSON)

	deps, err := NewDependencies(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 2, deps.KnowledgeBase.Len())
	assert.Equal(t, 1, deps.KnowledgeBase.EmbeddedCount())
	assert.Equal(t, 0.3, deps.Retriever.Threshold())
	assert.Same(t, deps.KnowledgeBase, deps.Retriever.KnowledgeBase())

	// The provider is not built until first use.
	assert.False(t, deps.Embedder.Ready())
	require.NoError(t, deps.Embedder.Init())
	assert.True(t, deps.Embedder.Ready())
}

func TestNewDependencies_LoadError(t *testing.T) {
	cfg := testConfig(t, `{"a": {"text": "x", "embedding": [1]}, "b": {"text": "y", "embedding": [1, 2]}}`)

	_, err := NewDependencies(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, kb.ErrLoad)
	assert.ErrorIs(t, err, rag.ErrDimensionMismatch)
}

func TestNewDependencies_ProviderFailureIsDeferred(t *testing.T) {
	cfg := testConfig(t, kbJSON)
	cfg.Embedder.Provider = "unknown"

	deps, err := NewDependencies(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	_, err = deps.Retriever.Answer(context.Background(), "capital of France")
	assert.ErrorIs(t, err, rag.ErrProviderUnavailable)
}
