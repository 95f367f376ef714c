package sanitize

import (
	"fmt"
	"strings"
)

// stripFences removes Markdown code-fence wrappers (``` and ```json) that
// models habitually wrap JSON payloads in, despite being asked not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop a language tag on the opening fence line.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first == "json" || first == "" {
			s = s[idx+1:]
		}
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// extractBalanced returns the first balanced open...close substring of s,
// respecting JSON string literals and escapes. open/closing are '{'/'}' or
// '['/']'.
func extractBalanced(s string, open, closing byte) (string, error) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", fmt.Errorf("no %q found in response", string(open))
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced %q in response", string(open))
}
