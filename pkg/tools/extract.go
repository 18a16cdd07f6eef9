package tools

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

// ExtractJSON pulls a JSON object out of a model response that may wrap it
// in markdown fences, prose, or HTML-escaped text. Tried in order:
// direct parse, fenced code block, first balanced brace scan.
func ExtractJSON(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(html.UnescapeString(text))
	if text == "" {
		return nil, fmt.Errorf("empty response")
	}

	if raw, ok := tryParse(text); ok {
		return raw, nil
	}

	if fenced := extractFenced(text); fenced != "" {
		if raw, ok := tryParse(fenced); ok {
			return raw, nil
		}
	}

	if braced := extractBraced(text); braced != "" {
		if raw, ok := tryParse(braced); ok {
			return raw, nil
		}
	}

	return nil, fmt.Errorf("no valid JSON object found in response")
}

// ExtractJSONInto extracts and unmarshals into v.
func ExtractJSONInto(text string, v interface{}) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func tryParse(s string) (json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		return nil, false
	}
	if !json.Valid([]byte(s)) {
		return nil, false
	}
	return json.RawMessage(s), true
}

// extractFenced returns the body of the first ```json or ``` fenced block.
func extractFenced(text string) string {
	for _, marker := range []string{"```json", "```"} {
		start := strings.Index(text, marker)
		if start < 0 {
			continue
		}
		body := text[start+len(marker):]
		end := strings.Index(body, "```")
		if end < 0 {
			continue
		}
		return strings.TrimSpace(body[:end])
	}
	return ""
}

// extractBraced scans for the first balanced {...} region, skipping braces
// inside string literals.
func extractBraced(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return ""
}
