package verifier

import (
	"encoding/json"
	"strings"
)

// extractLenientJSON recovers a JSON object from model output that may wrap
// it in prose or code fences. Strategy: strict parse first, then the first
// balanced {...} block containing the required key, then give up.
func extractLenientJSON(raw string, requiredKey string, out interface{}) bool {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	if json.Unmarshal([]byte(trimmed), out) == nil {
		return true
	}

	start := 0
	for {
		open := strings.Index(trimmed[start:], "{")
		if open < 0 {
			return false
		}
		open += start

		depth := 0
		inString := false
		escaped := false
		for i := open; i < len(trimmed); i++ {
			c := trimmed[i]
			if inString {
				if escaped {
					escaped = false
				} else if c == '\\' {
					escaped = true
				} else if c == '"' {
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					candidate := trimmed[open : i+1]
					if strings.Contains(candidate, `"`+requiredKey+`"`) &&
						json.Unmarshal([]byte(candidate), out) == nil {
						return true
					}
					i = len(trimmed)
				}
			}
		}

		start = open + 1
	}
}
