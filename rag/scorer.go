package rag

import (
	"fmt"
	"math"
	"sort"
)

// Cosine returns the cosine similarity of a and b.
// It is 0 when the lengths differ or either vector has zero norm, and the
// result is clamped to [-1, 1]. Each vector is scaled by its largest
// magnitude first so finite inputs never overflow or underflow the norms.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	ma, mb := maxAbs(a), maxAbs(b)
	if ma == 0 || mb == 0 || math.IsInf(ma, 0) || math.IsInf(mb, 0) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := a[i]/ma, b[i]/mb
		dot += x * y
		na += x * x
		nb += y * y
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0
	}
	return math.Max(-1, math.Min(1, sim))
}

// maxAbs skips NaN; Cosine maps the resulting NaN similarity to 0.
func maxAbs(v []float64) float64 {
	var m float64
	for _, x := range v {
		if ax := math.Abs(x); ax > m {
			m = ax
		}
	}
	return m
}

// ScoreAndSelect scores query against every embedded entry of kb and picks
// the best one. Ties go to the entry that comes first in kb. The best entry
// is a match only when its score is strictly greater than threshold.
func ScoreAndSelect(query []float64, kb *KnowledgeBase, threshold float64) (Selection, error) {
	sel := Selection{Answer: Answer{Status: StatusNotFound}}

	if math.IsNaN(threshold) || threshold < -1 || threshold > 1 {
		return sel, fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
	}
	if kb.EmbeddedCount() == 0 {
		return sel, nil
	}
	if err := checkVector(query); err != nil {
		return sel, fmt.Errorf("query: %w", err)
	}
	if len(query) != kb.Dimension() {
		return sel, fmt.Errorf("%w: query has %d dimensions, knowledge base has %d",
			ErrDimensionMismatch, len(query), kb.Dimension())
	}

	table := newScoreTable(kb.EmbeddedCount())
	best := -1
	bestScore := math.Inf(-1)
	for i, e := range kb.entries {
		if !e.Embedded {
			continue
		}
		score := Cosine(query, e.Embedding)
		table.add(e.ID, score)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	sel.Scores = table

	if bestScore > threshold {
		e := kb.entries[best]
		sel.Answer = Answer{Status: StatusFound, ID: e.ID, Text: e.Text, Score: bestScore}
	} else {
		sel.Answer.Score = bestScore
	}
	return sel, nil
}

// ScoreTable maps entry ids to their similarity for one scoring call.
// Rows keep knowledge base order.
type ScoreTable struct {
	rows  []ScoredEntry
	index map[string]int
}

func newScoreTable(n int) ScoreTable {
	return ScoreTable{
		rows:  make([]ScoredEntry, 0, n),
		index: make(map[string]int, n),
	}
}

func (t *ScoreTable) add(id string, score float64) {
	t.index[id] = len(t.rows)
	t.rows = append(t.rows, ScoredEntry{ID: id, Score: score})
}

// Len returns the number of scored entries.
func (t ScoreTable) Len() int {
	return len(t.rows)
}

// Get returns the score for id.
func (t ScoreTable) Get(id string) (float64, bool) {
	i, ok := t.index[id]
	if !ok {
		return 0, false
	}
	return t.rows[i].Score, true
}

// All returns every row in knowledge base order.
func (t ScoreTable) All() []ScoredEntry {
	out := make([]ScoredEntry, len(t.rows))
	copy(out, t.rows)
	return out
}

// Ranked returns the k highest scores, best first. Equal scores keep
// knowledge base order. k <= 0 or k > Len returns every row.
func (t ScoreTable) Ranked(k int) []ScoredEntry {
	out := t.All()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if k > 0 && k < len(out) {
		out = out[:k]
	}
	return out
}
