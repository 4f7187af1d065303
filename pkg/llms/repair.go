package llms

import (
	"encoding/json"
	"strings"
)

// StripFences removes a surrounding markdown code fence from model output.
// Backends regularly wrap JSON replies in ```json ... ``` despite being told
// not to.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		first := strings.TrimSpace(s[:i])
		if len(first) <= 8 && !strings.ContainsAny(first, "{[\"") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// RepairJSON makes one attempt to complete an obviously truncated JSON
// object: it closes an unterminated string and appends the missing closing
// brackets. The input is returned unchanged when it already looks balanced.
func RepairJSON(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "{}"
	}

	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
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
		case '{', '[':
			if !inString {
				stack = append(stack, c)
			}
		case '}', ']':
			if !inString && len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(s)
	if inString {
		b.WriteByte('"')
	}
	// A value cut off right after a key or comma still won't parse; strip
	// the dangling token before closing.
	repaired := strings.TrimRight(b.String(), ", \t\n")
	b.Reset()
	b.WriteString(repaired)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}

// ParseArguments parses a tool-call argument buffer. Unparseable input gets
// one repair attempt; if that fails too the call is finalized with empty
// arguments rather than dropped.
func ParseArguments(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil && args != nil {
		return args
	}
	args = nil
	// "null" unmarshals into a nil map; normalize that to empty too.
	if err := json.Unmarshal([]byte(RepairJSON(raw)), &args); err == nil && args != nil {
		return args
	}
	return map[string]any{}
}
