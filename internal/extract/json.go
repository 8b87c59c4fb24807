package extract

import "github.com/rotisserie/eris"

// FirstJSONObject returns the first balanced top-level JSON object in text.
// Model responses often wrap the object in prose or markdown fences; this
// strips everything around it without requiring the whole reply to parse.
func FirstJSONObject(text string) (string, error) {
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}

		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	return "", eris.New("no JSON object found in response")
}
