// Package fuzzy scores approximate string similarity between a query and
// chunk identifiers or content. Short targets (paths, symbols) go through
// subsequence matching; chunk bodies use token-set similarity so scores
// stay meaningful on multi-line text.
package fuzzy

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/scoutindex/scout/internal/lexical"
)

// MaxInputLen caps the text considered per input, query and target
// alike. Longer inputs are truncated, not rejected.
const MaxInputLen = 4096

// shortTargetLen is the boundary between subsequence matching and
// token-set similarity.
const shortTargetLen = 256

var stopWords = lexical.BuildStopWordSet(lexical.DefaultStopWords)

// Score returns similarity between query and target in [0, 1].
// Empty query or target scores zero.
func Score(query, target string) float64 {
	if query == "" || target == "" {
		return 0
	}
	if len(query) > MaxInputLen {
		query = query[:MaxInputLen]
	}
	if len(target) > MaxInputLen {
		target = target[:MaxInputLen]
	}

	if len(target) <= shortTargetLen && !strings.ContainsRune(target, '\n') {
		return subsequenceScore(query, target)
	}
	return tokenSetScore(query, target)
}

// ScoreSymbol scores against a bare identifier, always via subsequence
// matching. Useful for symbol and path ranking.
func ScoreSymbol(query, symbol string) float64 {
	if query == "" || symbol == "" {
		return 0
	}
	if len(query) > MaxInputLen {
		query = query[:MaxInputLen]
	}
	return subsequenceScore(query, symbol)
}

// subsequenceScore wraps sahilm/fuzzy's match score, normalized by an
// ideal self-match so results land in [0, 1].
func subsequenceScore(query, target string) float64 {
	matches := fuzzy.Find(query, []string{target})
	if len(matches) == 0 {
		return 0
	}
	score := matches[0].Score
	if score <= 0 {
		return 0
	}

	ideal := fuzzy.Find(query, []string{query})
	if len(ideal) == 0 || ideal[0].Score <= 0 {
		return 0
	}

	norm := float64(score) / float64(ideal[0].Score)
	if norm > 1 {
		norm = 1
	}
	return norm
}

// tokenSetScore is the Jaccard-style overlap of code tokens, weighted
// toward query coverage: a chunk containing every query token scores
// high even when the chunk has many other tokens.
func tokenSetScore(query, target string) float64 {
	qtokens := lexical.Tokenize(query, stopWords)
	ttokens := lexical.Tokenize(target, stopWords)
	if len(qtokens) == 0 || len(ttokens) == 0 {
		return 0
	}

	qset := make(map[string]struct{}, len(qtokens))
	for _, t := range qtokens {
		qset[t] = struct{}{}
	}
	tset := make(map[string]struct{}, len(ttokens))
	for _, t := range ttokens {
		tset[t] = struct{}{}
	}

	var inter int
	for t := range qset {
		if _, ok := tset[t]; ok {
			inter++
		}
	}
	if inter == 0 {
		return 0
	}

	coverage := float64(inter) / float64(len(qset))
	jaccard := float64(inter) / float64(len(qset)+len(tset)-inter)
	return 0.7*coverage + 0.3*jaccard
}
