package lexical

import (
	"regexp"
	"strings"
	"unicode"
)

// tokenRegex matches identifier-ish runs; punctuation splits tokens.
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// DefaultStopWords are language keywords and filler identifiers that carry
// no retrieval signal in source code.
var DefaultStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while", "import", "package",
	"the", "and", "this", "that", "with", "from",
	"err", "ctx", "tmp", "val", "nil", "none", "null", "true", "false",
}

// Tokenize splits text with code-aware rules: identifiers split on
// camelCase and snake_case boundaries, everything case-folded, tokens
// shorter than two characters dropped.
func Tokenize(text string, stopWords map[string]struct{}) []string {
	var tokens []string

	for _, word := range tokenRegex.FindAllString(text, -1) {
		for _, part := range splitIdentifier(word) {
			lower := strings.ToLower(part)
			if len(lower) < 2 {
				continue
			}
			if _, stop := stopWords[lower]; stop {
				continue
			}
			tokens = append(tokens, lower)
		}
	}

	return tokens
}

// splitIdentifier splits snake_case then camelCase.
func splitIdentifier(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, splitCamelCase(part)...)
			}
		}
		return result
	}
	return splitCamelCase(token)
}

// splitCamelCase splits camelCase and PascalCase, keeping acronyms whole:
// "parseHTTPRequest" -> ["parse", "HTTP", "Request"].
func splitCamelCase(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}

// BuildStopWordSet converts a word list to a lookup set.
func BuildStopWordSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}
