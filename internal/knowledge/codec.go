package knowledge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// The on-disk format is a single JSON object mapping answer text to an
// ordered list of question strings. Go maps do not preserve key order, so the
// codec walks the document with json.Decoder tokens on the way in and writes
// keys in insertion order on the way out. HTML escaping is disabled so the
// Cyrillic content stays readable in the file.

func decodeOrdered(raw []byte) ([]Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("knowledge: decode: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("knowledge: decode: top-level value is not an object")
	}

	var entries []Entry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("knowledge: decode key: %w", err)
		}
		answer, ok := keyTok.(string)
		if !ok {
			return nil, errors.New("knowledge: decode: object key is not a string")
		}
		var questions []string
		if err := dec.Decode(&questions); err != nil {
			return nil, fmt.Errorf("knowledge: decode questions for %q: %w", answer, err)
		}
		entries = append(entries, Entry{Answer: answer, Questions: questions})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("knowledge: decode closing brace: %w", err)
	}
	if err := ensureEOF(dec); err != nil {
		return nil, err
	}
	return entries, nil
}

func ensureEOF(dec *json.Decoder) error {
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("knowledge: decode: trailing data after object")
	}
	return nil
}

func encodeOrdered(entries []Entry) ([]byte, error) {
	if len(entries) == 0 {
		return []byte("{}\n"), nil
	}

	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, e := range entries {
		buf.WriteString("  ")
		if err := appendJSONValue(&buf, e.Answer, ""); err != nil {
			return nil, err
		}
		buf.WriteString(": ")
		questions := e.Questions
		if questions == nil {
			questions = []string{}
		}
		if err := appendJSONValue(&buf, questions, "  "); err != nil {
			return nil, err
		}
		if i < len(entries)-1 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// appendJSONValue encodes v into buf without HTML escaping and without the
// trailing newline json.Encoder emits. A non-empty prefix indents nested
// lines to sit under an object key at that depth.
func appendJSONValue(buf *bytes.Buffer, v any, prefix string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if prefix != "" {
		enc.SetIndent(prefix, "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("knowledge: encode: %w", err)
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}

// Render formats entries for display and truncates the result to at most
// limit runes, respecting transport message-size caps.
func Render(entries []Entry, limit int) string {
	var b strings.Builder
	b.WriteString("Содержимое базы знаний:")
	for _, e := range entries {
		b.WriteString("\n\nОтвет: ")
		b.WriteString(e.Answer)
		b.WriteString("\nВопросы: ")
		b.WriteString(strings.Join(e.Questions, ", "))
	}
	out := b.String()
	if limit > 0 {
		if runes := []rune(out); len(runes) > limit {
			return string(runes[:limit])
		}
	}
	return out
}
