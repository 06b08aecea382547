package ai

import (
	"encoding/json"
	"strings"

	"github.com/IshaanNene/PharmaScrape/internal/types"
)

// ExtractJSON returns the first balanced JSON array or object in s, whichever
// opens first. Brackets inside string literals are skipped.
func ExtractJSON(s string) (string, error) {
	start := strings.IndexAny(s, "[{")
	for start >= 0 {
		if end := matchClose(s, start); end > start {
			return s[start : end+1], nil
		}
		next := strings.IndexAny(s[start+1:], "[{")
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", types.ErrNoJSON
}

// ExtractArray is ExtractJSON restricted to arrays.
func ExtractArray(s string) (string, error) {
	return extractKind(s, '[')
}

// ExtractObject is ExtractJSON restricted to objects.
func ExtractObject(s string) (string, error) {
	return extractKind(s, '{')
}

func extractKind(s string, open byte) (string, error) {
	for i := 0; i < len(s); i++ {
		if s[i] != open {
			continue
		}
		if end := matchClose(s, i); end > i {
			return s[i : end+1], nil
		}
	}
	return "", types.ErrNoJSON
}

// decodeInto extracts the first span of the given kind and unmarshals it.
func decodeInto(s string, open byte, v any) error {
	span, err := extractKind(s, open)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(span), v)
}

// matchClose returns the index of the bracket closing s[start], or -1.
func matchClose(s string, start int) int {
	var stack []byte
	inString, escaped := false, false
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
		case '[':
			stack = append(stack, ']')
		case '{':
			stack = append(stack, '}')
		case ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}
