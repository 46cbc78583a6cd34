package kb

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"kblookup/rag"
)

// ParseYAML decodes a YAML knowledge base, keeping document order.
func ParseYAML(data []byte) (*rag.KnowledgeBase, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: malformed YAML: %w", ErrLoad, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: empty YAML document", ErrLoad)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping of entries", ErrLoad)
	}

	entries := make([]rag.Entry, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		id := key.Value
		if value.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: entry %q: must be a mapping", ErrLoad, id)
		}
		if !hasStringField(value, "text") {
			return nil, fmt.Errorf("%w: entry %q: text must be a string", ErrLoad, id)
		}
		var rec record
		if err := value.Decode(&rec); err != nil {
			return nil, fmt.Errorf("%w: entry %q: %w", ErrLoad, id, err)
		}
		entries = append(entries, toEntry(id, rec))
	}

	kb, err := rag.NewKnowledgeBase(entries...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	return kb, nil
}

func hasStringField(m *yaml.Node, name string) bool {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == name {
			v := m.Content[i+1]
			return v.Kind == yaml.ScalarNode && v.ShortTag() == "!!str"
		}
	}
	return false
}

// MarshalYAML encodes kb in entry order with embeddings in flow style.
func MarshalYAML(kb *rag.KnowledgeBase) ([]byte, error) {
	if kb == nil {
		return nil, errors.New("nil knowledge base")
	}
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range kb.Entries() {
		var value yaml.Node
		if err := value.Encode(toRecord(e)); err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.ID, err)
		}
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.ID}
		root.Content = append(root.Content, key, &value)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
