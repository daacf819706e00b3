package sqlchain

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrUnsafeQuery is returned for any statement that is not a single
// read-only query.
var ErrUnsafeQuery = errors.New("unsafe query")

var writeKeywords = map[string]bool{
	"insert": true, "update": true, "delete": true, "merge": true, "upsert": true,
	"drop": true, "alter": true, "create": true, "truncate": true, "rename": true,
	"grant": true, "revoke": true, "copy": true, "call": true, "do": true,
	"vacuum": true, "analyze": true, "reindex": true, "cluster": true,
	"lock": true, "set": true, "reset": true, "execute": true, "prepare": true,
	"attach": true, "detach": true, "pragma": true, "into": true,
}

// CheckReadOnly returns the statement without a trailing semicolon if it is
// a single SELECT (or WITH ... SELECT) containing no write keyword outside
// string literals and quoted identifiers.
func CheckReadOnly(query string) (string, error) {
	q := strings.TrimSpace(query)
	q = strings.TrimSpace(strings.TrimRight(q, "; \t\n"))
	if q == "" {
		return "", fmt.Errorf("%w: empty statement", ErrUnsafeQuery)
	}

	words, err := scanWords(q)
	if err != nil {
		return "", err
	}
	if len(words) == 0 || (words[0] != "select" && words[0] != "with") {
		return "", fmt.Errorf("%w: only SELECT statements are allowed", ErrUnsafeQuery)
	}
	for _, w := range words {
		if writeKeywords[w] {
			return "", fmt.Errorf("%w: %q is not allowed", ErrUnsafeQuery, strings.ToUpper(w))
		}
	}
	return q, nil
}

// scanWords lowercases the bare words of q, skipping literals, quoted
// identifiers and comments. A statement separator is rejected.
func scanWords(q string) ([]string, error) {
	var words []string
	runes := []rune(q)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\'' || r == '"' || r == '`':
			end := closing(runes, i+1, r)
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated quote", ErrUnsafeQuery)
			}
			i = end
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			end := strings.Index(string(runes[i+2:]), "*/")
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated comment", ErrUnsafeQuery)
			}
			i += 2 + len([]rune(string(runes[i+2:])[:end])) + 1
		case r == ';':
			return nil, fmt.Errorf("%w: multiple statements", ErrUnsafeQuery)
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i+1 < len(runes) && (unicode.IsLetter(runes[i+1]) || unicode.IsDigit(runes[i+1]) || runes[i+1] == '_') {
				i++
			}
			words = append(words, strings.ToLower(string(runes[start:i+1])))
		}
	}
	return words, nil
}

// closing finds the index of the quote ending a literal opened before from.
// A doubled quote is an escaped quote.
func closing(runes []rune, from int, quote rune) int {
	for i := from; i < len(runes); i++ {
		if runes[i] != quote {
			continue
		}
		if i+1 < len(runes) && runes[i+1] == quote {
			i++
			continue
		}
		return i
	}
	return -1
}
