package kb

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"kblookup/rag"
)

var prettyOptions = &pretty.Options{
	Width:    80,
	Prefix:   "",
	Indent:   "  ",
	SortKeys: false,
}

// ParseJSON decodes a JSON knowledge base, keeping document order.
func ParseJSON(data []byte) (*rag.KnowledgeBase, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrLoad)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: top level must be an object of entries", ErrLoad)
	}

	var (
		entries []rag.Entry
		perr    error
	)
	root.ForEach(func(key, value gjson.Result) bool {
		id := key.String()
		if !value.IsObject() {
			perr = fmt.Errorf("entry %q: must be an object", id)
			return false
		}
		var rec record
		if err := json.Unmarshal([]byte(value.Raw), &rec); err != nil {
			perr = fmt.Errorf("entry %q: %w", id, err)
			return false
		}
		if text := value.Get("text"); text.Type != gjson.String {
			perr = fmt.Errorf("entry %q: text must be a string", id)
			return false
		}
		entries = append(entries, toEntry(id, rec))
		return true
	})
	if perr != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, perr)
	}

	kb, err := rag.NewKnowledgeBase(entries...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	return kb, nil
}

// MarshalJSON encodes kb in entry order. The output is stable: marshaling
// a knowledge base parsed from it yields the same bytes.
func MarshalJSON(kb *rag.KnowledgeBase) ([]byte, error) {
	if kb == nil {
		return nil, errors.New("nil knowledge base")
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range kb.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeCompact(&buf, e.ID); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encodeCompact(&buf, toRecord(e)); err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.ID, err)
		}
	}
	buf.WriteByte('}')
	return pretty.PrettyOptions(buf.Bytes(), prettyOptions), nil
}

func encodeCompact(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encode terminates each value with a newline
	buf.Truncate(buf.Len() - 1)
	return nil
}
