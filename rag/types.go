package rag

// NotFoundMessage is what end users see when no entry clears the threshold.
const NotFoundMessage = "Sorry, I cannot find an answer for your query."

// DefaultThreshold is the similarity a match must exceed to be returned.
const DefaultThreshold = 0.3

// Entry is one knowledge base chunk.
// Embedded is the presence flag for Embedding: an all-zero vector is still
// an embedding, an entry without one is not scored.
type Entry struct {
	ID        string
	Text      string
	Embedding []float64
	Embedded  bool
}

// EmbeddedEntry builds an entry that takes part in scoring.
func EmbeddedEntry(id, text string, embedding []float64) Entry {
	return Entry{ID: id, Text: text, Embedding: embedding, Embedded: true}
}

// PendingEntry builds an entry that has not been embedded yet.
func PendingEntry(id, text string) Entry {
	return Entry{ID: id, Text: text}
}

// Status tells a found answer apart from a miss.
type Status int

const (
	StatusNotFound Status = iota
	StatusFound
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	default:
		return "not_found"
	}
}

// Answer is the outcome of a single lookup.
type Answer struct {
	Status Status
	ID     string
	Text   string
	Score  float64
}

// Found reports whether the lookup produced a match.
func (a Answer) Found() bool {
	return a.Status == StatusFound
}

// Message returns the text shown to the user.
func (a Answer) Message() string {
	if a.Found() {
		return a.Text
	}
	return NotFoundMessage
}

// ScoredEntry is one row of a ScoreTable.
type ScoredEntry struct {
	ID    string
	Score float64
}

// Selection is the scorer's result: the answer plus every score computed
// on the way to it.
type Selection struct {
	Answer Answer
	Scores ScoreTable
}
