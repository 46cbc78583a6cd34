package rag

import (
	"fmt"
	"math"
)

// KnowledgeBase is an immutable, ordered set of entries.
// Iteration order is the order entries were given to NewKnowledgeBase, which
// loaders keep equal to document order. It is safe for concurrent readers.
type KnowledgeBase struct {
	entries  []Entry
	index    map[string]int
	dim      int
	embedded int
}

// NewKnowledgeBase validates entries and freezes them into a KnowledgeBase.
// Ids must be unique and every embedding must share one dimension.
func NewKnowledgeBase(entries ...Entry) (*KnowledgeBase, error) {
	kb := &KnowledgeBase{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}

	for _, e := range entries {
		if _, ok := kb.index[e.ID]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateID, e.ID)
		}
		if e.Embedded {
			if err := checkVector(e.Embedding); err != nil {
				return nil, fmt.Errorf("entry %q: %w", e.ID, err)
			}
			if kb.dim == 0 {
				kb.dim = len(e.Embedding)
			} else if len(e.Embedding) != kb.dim {
				return nil, fmt.Errorf("%w: entry %q has %d dimensions, expected %d",
					ErrDimensionMismatch, e.ID, len(e.Embedding), kb.dim)
			}
			e.Embedding = append([]float64(nil), e.Embedding...)
			kb.embedded++
		} else {
			e.Embedding = nil
		}
		kb.index[e.ID] = len(kb.entries)
		kb.entries = append(kb.entries, e)
	}

	return kb, nil
}

// Len returns the number of entries, embedded or not.
func (kb *KnowledgeBase) Len() int {
	if kb == nil {
		return 0
	}
	return len(kb.entries)
}

// EmbeddedCount returns the number of entries that take part in scoring.
func (kb *KnowledgeBase) EmbeddedCount() int {
	if kb == nil {
		return 0
	}
	return kb.embedded
}

// Dimension is the shared embedding length, or 0 when nothing is embedded.
func (kb *KnowledgeBase) Dimension() int {
	if kb == nil {
		return 0
	}
	return kb.dim
}

// Get looks up an entry by id.
func (kb *KnowledgeBase) Get(id string) (Entry, bool) {
	if kb == nil {
		return Entry{}, false
	}
	i, ok := kb.index[id]
	if !ok {
		return Entry{}, false
	}
	return kb.entries[i], true
}

// Entries returns the entries in knowledge base order.
// The embedding slices are shared and must not be modified.
func (kb *KnowledgeBase) Entries() []Entry {
	if kb == nil {
		return nil
	}
	out := make([]Entry, len(kb.entries))
	copy(out, kb.entries)
	return out
}

func checkVector(v []float64) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidVector)
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: non-finite value at index %d", ErrInvalidVector, i)
		}
	}
	return nil
}
