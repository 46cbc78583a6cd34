// Package kb loads and saves knowledge bases.
//
// A knowledge base document maps entry ids to {text, embedding} records.
// Entry order in the document is kept, so scoring tie-breaks follow it.
// A missing, null or empty embedding marks an entry as not yet embedded.
package kb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kblookup/rag"
)

// ErrLoad wraps every failure to read or parse a knowledge base.
var ErrLoad = errors.New("knowledge base load failed")

// Format names an on-disk knowledge base encoding.
type Format string

const (
	FormatAuto   Format = "auto"
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
	FormatSQLite Format = "sqlite"
)

// ParseFormat accepts "auto", "json", "yaml"/"yml" and "sqlite". Empty means auto.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "sqlite", "sqlite3", "db":
		return FormatSQLite, nil
	}
	return "", fmt.Errorf("unknown knowledge base format %q", s)
}

// Resolve picks a concrete format for path, looking at the extension when f is auto.
func (f Format) Resolve(path string) Format {
	if f != FormatAuto && f != "" {
		return f
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	default:
		return FormatJSON
	}
}

// record is the per-entry value in JSON and YAML documents.
type record struct {
	Text      string    `json:"text" yaml:"text"`
	Embedding []float64 `json:"embedding,omitempty" yaml:"embedding,omitempty,flow"`
}

func toEntry(id string, rec record) rag.Entry {
	if len(rec.Embedding) == 0 {
		return rag.PendingEntry(id, rec.Text)
	}
	return rag.EmbeddedEntry(id, rec.Text, rec.Embedding)
}

func toRecord(e rag.Entry) record {
	rec := record{Text: e.Text}
	if e.Embedded {
		rec.Embedding = e.Embedding
	}
	return rec
}

// Load reads a knowledge base from path. Every error wraps ErrLoad.
func Load(path string, format Format) (*rag.KnowledgeBase, error) {
	var (
		kb  *rag.KnowledgeBase
		err error
	)
	switch format.Resolve(path) {
	case FormatYAML:
		kb, err = loadFile(path, ParseYAML)
	case FormatSQLite:
		kb, err = LoadSQLite(path)
	default:
		kb, err = loadFile(path, ParseJSON)
	}
	if err != nil {
		if errors.Is(err, ErrLoad) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}
	return kb, nil
}

func loadFile(path string, parse func([]byte) (*rag.KnowledgeBase, error)) (*rag.KnowledgeBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

// Save writes kb to path in the given format, replacing any existing content.
func Save(path string, format Format, kb *rag.KnowledgeBase) error {
	switch format.Resolve(path) {
	case FormatYAML:
		return saveFile(path, kb, MarshalYAML)
	case FormatSQLite:
		return SaveSQLite(path, kb)
	default:
		return saveFile(path, kb, MarshalJSON)
	}
}

func saveFile(path string, kb *rag.KnowledgeBase, marshal func(*rag.KnowledgeBase) ([]byte, error)) error {
	data, err := marshal(kb)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".kb-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
