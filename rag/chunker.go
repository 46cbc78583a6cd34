package rag

import (
	"context"
	"strconv"
	"strings"
)

const maxSentencesPerChunk = 3

// SplitSentences groups text into chunks of at most three sentences.
// Very naive: a sentence ends at every '.'.
func SplitSentences(text string) []string {
	sentences := strings.Split(text, ".")

	var chunks []string
	var buffer []string

	maybeFlush := func() {
		if len(buffer) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(buffer, ". ") + ".")
		buffer = buffer[:0]
		if content == "." {
			return
		}
		chunks = append(chunks, content)
	}

	for _, s := range sentences {
		s = strings.Join(strings.Fields(s), " ")
		if s == "" {
			continue
		}
		buffer = append(buffer, s)
		if len(buffer) >= maxSentencesPerChunk {
			maybeFlush()
		}
	}
	maybeFlush()

	return chunks
}

// ChunkText splits text into entries with ids "<source>#<n>" and embeds each
// one. A chunk whose embedding fails, or every chunk when embedder is nil,
// becomes a pending entry. failed counts the chunks that could not be embedded.
func ChunkText(ctx context.Context, text, source string, embedder Embedder) (entries []Entry, failed int) {
	for i, content := range SplitSentences(text) {
		id := source + "#" + strconv.Itoa(i+1)
		if embedder == nil {
			entries = append(entries, PendingEntry(id, content))
			failed++
			continue
		}
		vec, err := embedder.Embed(ctx, content)
		if err != nil || checkVector(vec) != nil {
			entries = append(entries, PendingEntry(id, content))
			failed++
			continue
		}
		entries = append(entries, EmbeddedEntry(id, content, vec))
	}
	return entries, failed
}
