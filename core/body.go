package core

import (
	"bytes"
	"encoding/json"
)

// MarshalBody serializes a request body the same way for sending and for
// hashing. Byte slices, raw messages and strings pass through untouched; other
// values are JSON encoded without HTML escaping or a trailing newline, with
// U+2028 and U+2029 written raw the way JSON.stringify does.
func MarshalBody(body any) ([]byte, error) {
	switch typed := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return typed, nil
	case json.RawMessage:
		return []byte(typed), nil
	case string:
		return []byte(typed), nil
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(body); err != nil {
		return nil, err
	}
	return unescapeLineTerminators(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

var (
	escapedLineSeparator      = []byte(`\u2028`)
	escapedParagraphSeparator = []byte(`\u2029`)
)

// unescapeLineTerminators undoes encoding/json's \u2028 and \u2029 escapes.
// Escaped backslashes are consumed in pairs so a literal `\\u2028` survives.
func unescapeLineTerminators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' {
			out = append(out, data[i])
			continue
		}
		switch {
		case bytes.HasPrefix(data[i:], escapedLineSeparator):
			out = append(out, "\u2028"...)
			i += len(escapedLineSeparator) - 1
		case bytes.HasPrefix(data[i:], escapedParagraphSeparator):
			out = append(out, "\u2029"...)
			i += len(escapedParagraphSeparator) - 1
		case i+1 < len(data):
			out = append(out, data[i], data[i+1])
			i++
		default:
			out = append(out, data[i])
		}
	}
	return out
}
