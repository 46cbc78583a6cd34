package rag

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capitals(t *testing.T) *KnowledgeBase {
	t.Helper()
	kb, err := NewKnowledgeBase(
		EmbeddedEntry("a", "Paris is the capital of France.", []float64{1, 0}),
		EmbeddedEntry("b", "Tokyo is the capital of Japan.", []float64{0, 1}),
	)
	require.NoError(t, err)
	return kb
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 0}, []float64{1, 0}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 2}, []float64{-1, -2}, -1},
		{"scaled", []float64{3, 4}, []float64{6, 8}, 1},
		{"zero norm", []float64{0, 0}, []float64{1, 1}, 0},
		{"length mismatch", []float64{1}, []float64{1, 0}, 0},
		{"huge identical", []float64{1e200, 0}, []float64{1e200, 0}, 1},
		{"huge opposite", []float64{math.MaxFloat64, -math.MaxFloat64}, []float64{-1, 1}, -1},
		{"tiny identical", []float64{1e-170, 0}, []float64{1e-170, 0}, 1},
		{"smallest subnormal", []float64{5e-324, 5e-324}, []float64{1, 1}, 1},
		{"mixed magnitudes", []float64{1e300, 1e-300}, []float64{1, 0}, 1},
		{"nan input", []float64{math.NaN(), 1}, []float64{1, 1}, 0},
		{"inf input", []float64{math.Inf(1), 1}, []float64{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.False(t, math.IsNaN(got))
		})
	}
}

func TestCosine_SelfSimilarity(t *testing.T) {
	v := []float64{0.12, -3.4, 5.6, 0.0007}
	assert.InDelta(t, 1.0, Cosine(v, v), 1e-12)
	assert.LessOrEqual(t, Cosine(v, v), 1.0)
}

func TestScoreAndSelect_ExtremeMagnitudes(t *testing.T) {
	kb, err := NewKnowledgeBase(
		EmbeddedEntry("a", "Paris is the capital of France.", []float64{1e200, 0}),
		EmbeddedEntry("b", "Tokyo is the capital of Japan.", []float64{0, 1e-170}),
	)
	require.NoError(t, err)

	sel, err := ScoreAndSelect([]float64{1e200, 0}, kb, 0.3)
	require.NoError(t, err)
	assert.Equal(t, StatusFound, sel.Answer.Status)
	assert.Equal(t, "a", sel.Answer.ID)
	assert.InDelta(t, 1.0, sel.Answer.Score, 1e-12)

	sel, err = ScoreAndSelect([]float64{0, 1e-170}, kb, 0.3)
	require.NoError(t, err)
	assert.Equal(t, "b", sel.Answer.ID)
	for _, row := range sel.Scores.All() {
		assert.False(t, math.IsNaN(row.Score), row.ID)
	}
}

func TestScoreAndSelect_Capitals(t *testing.T) {
	kb := capitals(t)

	sel, err := ScoreAndSelect([]float64{1, 0}, kb, 0.3)
	require.NoError(t, err)

	assert.Equal(t, StatusFound, sel.Answer.Status)
	assert.Equal(t, "a", sel.Answer.ID)
	assert.Equal(t, "Paris is the capital of France.", sel.Answer.Message())
	assert.InDelta(t, 1.0, sel.Answer.Score, 1e-12)

	score, ok := sel.Scores.Get("b")
	require.True(t, ok)
	assert.InDelta(t, 0.0, score, 1e-12)
}

func TestScoreAndSelect_TieGoesToFirstEntry(t *testing.T) {
	kb := capitals(t)

	sel, err := ScoreAndSelect([]float64{0.1, 0.1}, kb, 0.3)
	require.NoError(t, err)

	a, _ := sel.Scores.Get("a")
	b, _ := sel.Scores.Get("b")
	assert.InDelta(t, math.Sqrt2/2, a, 1e-9)
	assert.Equal(t, a, b)
	assert.Equal(t, "a", sel.Answer.ID)

	// same vectors, reversed document order
	reversed, err := NewKnowledgeBase(
		EmbeddedEntry("b", "Tokyo is the capital of Japan.", []float64{0, 1}),
		EmbeddedEntry("a", "Paris is the capital of France.", []float64{1, 0}),
	)
	require.NoError(t, err)
	sel, err = ScoreAndSelect([]float64{0.1, 0.1}, reversed, 0.3)
	require.NoError(t, err)
	assert.Equal(t, "b", sel.Answer.ID)
}

func TestScoreAndSelect_ThresholdIsStrict(t *testing.T) {
	kb, err := NewKnowledgeBase(EmbeddedEntry("x", "X", []float64{1, 0}))
	require.NoError(t, err)

	sel, err := ScoreAndSelect([]float64{1, 0}, kb, 1.0)
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, sel.Answer.Status)
	assert.Equal(t, NotFoundMessage, sel.Answer.Message())

	// orthogonal query scores exactly 0
	sel, err = ScoreAndSelect([]float64{0, 1}, kb, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, sel.Answer.Status)

	sel, err = ScoreAndSelect([]float64{0, 1}, kb, -1e-9)
	require.NoError(t, err)
	assert.Equal(t, StatusFound, sel.Answer.Status)
}

func TestScoreAndSelect_NothingToScore(t *testing.T) {
	empty, err := NewKnowledgeBase()
	require.NoError(t, err)
	pending, err := NewKnowledgeBase(PendingEntry("a", "A"), PendingEntry("b", "B"))
	require.NoError(t, err)

	queries := [][]float64{{1, 0}, {0, 0, 0}, nil}
	for _, kb := range []*KnowledgeBase{nil, empty, pending} {
		for _, q := range queries {
			sel, err := ScoreAndSelect(q, kb, DefaultThreshold)
			require.NoError(t, err)
			assert.Equal(t, StatusNotFound, sel.Answer.Status)
			assert.Equal(t, 0, sel.Scores.Len())
		}
	}
}

func TestScoreAndSelect_SkipsPendingEntries(t *testing.T) {
	kb, err := NewKnowledgeBase(
		PendingEntry("p", "pending"),
		EmbeddedEntry("e", "embedded", []float64{0, 1}),
	)
	require.NoError(t, err)

	sel, err := ScoreAndSelect([]float64{0, 1}, kb, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, "e", sel.Answer.ID)
	assert.Equal(t, 1, sel.Scores.Len())
	_, ok := sel.Scores.Get("p")
	assert.False(t, ok)
}

func TestScoreAndSelect_ZeroVectors(t *testing.T) {
	kb, err := NewKnowledgeBase(EmbeddedEntry("zero", "Z", []float64{0, 0}))
	require.NoError(t, err)

	sel, err := ScoreAndSelect([]float64{1, 1}, kb, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, sel.Answer.Status)
	assert.Equal(t, 0.0, sel.Answer.Score)

	sel, err = ScoreAndSelect([]float64{0, 0}, capitals(t), -0.5)
	require.NoError(t, err)
	assert.Equal(t, "a", sel.Answer.ID)
	assert.Equal(t, 0.0, sel.Answer.Score)
}

func TestScoreAndSelect_Errors(t *testing.T) {
	kb := capitals(t)

	tests := []struct {
		name      string
		query     []float64
		threshold float64
		wantErr   error
	}{
		{"short query", []float64{1}, 0.3, ErrDimensionMismatch},
		{"long query", []float64{1, 0, 0}, 0.3, ErrDimensionMismatch},
		{"empty query", []float64{}, 0.3, ErrInvalidVector},
		{"nan query", []float64{math.NaN(), 0}, 0.3, ErrInvalidVector},
		{"threshold too high", []float64{1, 0}, 1.5, ErrInvalidThreshold},
		{"threshold too low", []float64{1, 0}, -2, ErrInvalidThreshold},
		{"nan threshold", []float64{1, 0}, math.NaN(), ErrInvalidThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := ScoreAndSelect(tt.query, kb, tt.threshold)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, sel.Scores.Len())
		})
	}
}

func TestScoreAndSelect_Deterministic(t *testing.T) {
	kb, err := NewKnowledgeBase(
		EmbeddedEntry("1", "one", []float64{0.3, 0.1, 0.9}),
		EmbeddedEntry("2", "two", []float64{0.3, 0.1, 0.9}),
		EmbeddedEntry("3", "three", []float64{-0.2, 0.7, 0.1}),
	)
	require.NoError(t, err)

	q := []float64{0.25, 0.2, 0.8}
	first, err := ScoreAndSelect(q, kb, DefaultThreshold)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := ScoreAndSelect(q, kb, DefaultThreshold)
		require.NoError(t, err)
		assert.Equal(t, first.Answer, again.Answer)
		assert.Equal(t, first.Scores.All(), again.Scores.All())
	}
	assert.Equal(t, "1", first.Answer.ID)
}

func TestScoreAndSelect_ExactMatchScoresHighest(t *testing.T) {
	q := []float64{0.4, -0.2, 0.7}
	kb, err := NewKnowledgeBase(
		EmbeddedEntry("near", "near", []float64{0.41, -0.2, 0.69}),
		EmbeddedEntry("same", "same", q),
		EmbeddedEntry("far", "far", []float64{-0.4, 0.2, -0.7}),
	)
	require.NoError(t, err)

	sel, err := ScoreAndSelect(q, kb, DefaultThreshold)
	require.NoError(t, err)

	same, _ := sel.Scores.Get("same")
	for _, row := range sel.Scores.All() {
		assert.GreaterOrEqual(t, same, row.Score)
	}
	assert.Equal(t, "same", sel.Answer.ID)
}

func TestScoreTable_Ranked(t *testing.T) {
	kb, err := NewKnowledgeBase(
		EmbeddedEntry("low", "", []float64{0, 1}),
		EmbeddedEntry("tie1", "", []float64{1, 1}),
		EmbeddedEntry("top", "", []float64{1, 0}),
		EmbeddedEntry("tie2", "", []float64{2, 2}),
	)
	require.NoError(t, err)

	sel, err := ScoreAndSelect([]float64{1, 0}, kb, DefaultThreshold)
	require.NoError(t, err)

	var ids []string
	for _, row := range sel.Scores.Ranked(0) {
		ids = append(ids, row.ID)
	}
	assert.Equal(t, []string{"top", "tie1", "tie2", "low"}, ids)
	assert.Len(t, sel.Scores.Ranked(2), 2)
	assert.Len(t, sel.Scores.Ranked(10), 4)

	// ranking does not disturb knowledge base order
	assert.Equal(t, "low", sel.Scores.All()[0].ID)
}
