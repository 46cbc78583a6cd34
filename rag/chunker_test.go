package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	failOn string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("embedding backend down")
	}
	return []float64{1}, nil // dummy
}

func TestSplitSentences(t *testing.T) {
	chunks := SplitSentences("Sentence one. Sentence two. Sentence three. Sentence four.")

	// With max 3 sentences per chunk, this should be 2 chunks
	require.Len(t, chunks, 2)
	assert.Equal(t, "Sentence one. Sentence two. Sentence three.", chunks[0])
	assert.Equal(t, "Sentence four.", chunks[1])
}

func TestSplitSentences_CollapsesWhitespace(t *testing.T) {
	chunks := SplitSentences("  Line\n broken   sentence .\n\n")
	assert.Equal(t, []string{"Line broken sentence."}, chunks)
}

func TestChunkText_IDsAndEmbeddings(t *testing.T) {
	text := "Sentence one. Sentence two. Sentence three. Sentence four."

	entries, failed := ChunkText(context.Background(), text, "test-doc", &fakeEmbedder{})

	require.Len(t, entries, 2)
	assert.Zero(t, failed)
	assert.Equal(t, "test-doc#1", entries[0].ID)
	assert.Equal(t, "test-doc#2", entries[1].ID)
	for _, e := range entries {
		assert.True(t, e.Embedded)
		assert.NotEmpty(t, e.Text)
	}
}

func TestChunkText_FailedEmbeddingsArePending(t *testing.T) {
	text := "Alpha one. Alpha two. Alpha three. Beta four."

	entries, failed := ChunkText(context.Background(), text, "doc", &fakeEmbedder{failOn: "Beta"})

	require.Len(t, entries, 2)
	assert.Equal(t, 1, failed)
	assert.True(t, entries[0].Embedded)
	assert.False(t, entries[1].Embedded)
	assert.Nil(t, entries[1].Embedding)
}

func TestChunkText_NilEmbedder(t *testing.T) {
	entries, failed := ChunkText(context.Background(), "One. Two.", "doc", nil)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, failed)
	assert.False(t, entries[0].Embedded)
}

func TestChunkText_EmptyInput(t *testing.T) {
	entries, failed := ChunkText(context.Background(), "", "empty", &fakeEmbedder{})

	assert.Empty(t, entries)
	assert.Zero(t, failed)
}
