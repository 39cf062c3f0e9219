// Package search fuses lexical, fuzzy, and embedding signals into one
// ranked result list. Signals run in parallel against an immutable
// snapshot; a slow or failing signal degrades the response instead of
// failing it.
package search

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scoutindex/scout/internal/chunk"
	scouterr "github.com/scoutindex/scout/internal/errors"
	"github.com/scoutindex/scout/internal/fuzzy"
	"github.com/scoutindex/scout/internal/lexical"
	"github.com/scoutindex/scout/internal/store"
)

// Source is the snapshot view the ranker reads. Implementations must be
// immutable for the lifetime of a query.
type Source interface {
	// LexicalSearch returns lexical hits for the query.
	LexicalSearch(query string, limit int) []lexical.Hit

	// SymbolRefs lists every chunk's symbol and path for fuzzy matching.
	SymbolRefs() []SymbolRef

	// VectorSearch embeds the query and returns nearest chunks.
	VectorSearch(ctx context.Context, query string, k int) ([]store.VectorHit, error)

	// ChunkByID resolves a chunk ID.
	ChunkByID(id string) (chunk.Chunk, bool)

	// Neighbors returns files graph-connected to path.
	Neighbors(path string) []string
}

// SymbolRef is one fuzzy-match target.
type SymbolRef struct {
	ChunkID  string
	Symbol   string
	FilePath string
}

// Weights are the per-signal fusion weights. They need not sum to one;
// fusion divides by their sum.
type Weights struct {
	Lexical   float64
	Fuzzy     float64
	Embedding float64
}

// Options configure one query.
type Options struct {
	MaxResults       int
	Weights          Weights
	GraphBoostFactor float64 // >= 1.0
	Timeout          time.Duration
}

// Result is one ranked chunk.
type Result struct {
	ChunkID   string
	FilePath  string
	Symbol    string
	StartLine int
	EndLine   int
	Content   string
	Score     float64
	Signals   SignalScores
}

// SignalScores records each signal's contribution, for debugging output.
type SignalScores struct {
	Lexical   float64
	Fuzzy     float64
	Embedding float64
	Boosted   bool
}

// Response is a complete query answer.
type Response struct {
	Results []Result
	// Partial is set when a signal timed out or failed and the results
	// were fused from the signals that did complete.
	Partial bool
	Elapsed time.Duration
}

// candidateFactor oversizes per-signal candidate sets relative to
// MaxResults so fusion sees enough overlap between signals.
const candidateFactor = 5

// Ranker executes hybrid queries.
type Ranker struct{}

// NewRanker returns a Ranker.
func NewRanker() *Ranker {
	return &Ranker{}
}

// Search runs all signals against src and fuses the outcome.
func (r *Ranker) Search(ctx context.Context, src Source, query string, opts Options) (*Response, error) {
	if query == "" {
		return nil, scouterr.New(scouterr.ErrCodeQueryEmpty, "query must not be empty", nil)
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 10
	}
	if opts.GraphBoostFactor < 1 {
		opts.GraphBoostFactor = 1
	}
	weightSum := opts.Weights.Lexical + opts.Weights.Fuzzy + opts.Weights.Embedding
	if weightSum <= 0 {
		return nil, scouterr.New(scouterr.ErrCodeInvalidInput, "at least one signal weight must be positive", nil)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	limit := opts.MaxResults * candidateFactor

	var (
		mu        sync.Mutex
		lexScores map[string]float64
		fuzScores map[string]float64
		embScores map[string]float64
		partial   bool
	)

	g, gctx := errgroup.WithContext(ctx)

	// Signal goroutines never return errors: one failing signal must
	// not cancel the others.
	g.Go(func() error {
		scores := lexicalSignal(gctx, src, query, limit)
		mu.Lock()
		defer mu.Unlock()
		if scores == nil {
			partial = true
		}
		lexScores = scores
		return nil
	})

	g.Go(func() error {
		scores := fuzzySignal(gctx, src, query, limit)
		mu.Lock()
		defer mu.Unlock()
		if scores == nil {
			partial = true
		}
		fuzScores = scores
		return nil
	})

	g.Go(func() error {
		scores, err := embeddingSignal(gctx, src, query, limit)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			slog.Warn("embedding signal degraded",
				slog.String("code", scouterr.GetCode(err)),
				slog.String("error", err.Error()))
			partial = true
		}
		embScores = scores
		return nil
	})

	_ = g.Wait()

	results := fuse(src, opts, lexScores, fuzScores, embScores, weightSum)
	results = applyGraphBoost(src, results, opts.GraphBoostFactor)
	results = dedupOverlapping(results)
	sortResults(results)

	if len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}

	return &Response{
		Results: results,
		Partial: partial,
		Elapsed: time.Since(start),
	}, nil
}

// lexicalSignal returns nil when the context expired before completion.
func lexicalSignal(ctx context.Context, src Source, query string, limit int) map[string]float64 {
	if ctx.Err() != nil {
		return nil
	}
	hits := src.LexicalSearch(query, limit)
	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		scores[h.ChunkID] = h.Score
	}
	return scores
}

// fuzzySignal scores symbols and paths, keeping each chunk's best. Like
// the other signals, its candidate set is bounded to the top limit scores.
func fuzzySignal(ctx context.Context, src Source, query string, limit int) map[string]float64 {
	refs := src.SymbolRefs()
	scores := make(map[string]float64, len(refs))

	for i, ref := range refs {
		// The match loop is pure CPU; poll for cancellation.
		if i%256 == 0 && ctx.Err() != nil {
			return nil
		}

		best := fuzzy.ScoreSymbol(query, ref.Symbol)
		if pathScore := fuzzy.ScoreSymbol(query, ref.FilePath); pathScore > best {
			best = pathScore
		}
		if best == 0 {
			// Symbol and path missed; fall back to chunk text, which
			// catches typos and paraphrase that lexical overlap loses.
			if c, ok := src.ChunkByID(ref.ChunkID); ok {
				best = fuzzy.Score(query, c.Content)
			}
		}
		if best > 0 && best > scores[ref.ChunkID] {
			scores[ref.ChunkID] = best
		}
	}
	return topScores(scores, limit)
}

// topScores truncates a score map to its limit best entries. Ties break
// by chunk ID so truncation is deterministic.
func topScores(scores map[string]float64, limit int) map[string]float64 {
	if len(scores) <= limit {
		return scores
	}

	type entry struct {
		id    string
		score float64
	}
	entries := make([]entry, 0, len(scores))
	for id, s := range scores {
		entries = append(entries, entry{id: id, score: s})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].id < entries[j].id
	})

	top := make(map[string]float64, limit)
	for _, e := range entries[:limit] {
		top[e.id] = e.score
	}
	return top
}

func embeddingSignal(ctx context.Context, src Source, query string, limit int) (map[string]float64, error) {
	hits, err := src.VectorSearch(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		scores[h.ChunkID] = h.Score
	}
	return scores, nil
}

// fuse combines signal maps into scored results. A chunk absent from a
// signal contributes zero for that signal.
func fuse(src Source, opts Options, lex, fuz, emb map[string]float64, weightSum float64) []Result {
	ids := make(map[string]struct{}, len(lex)+len(fuz)+len(emb))
	for id := range lex {
		ids[id] = struct{}{}
	}
	for id := range fuz {
		ids[id] = struct{}{}
	}
	for id := range emb {
		ids[id] = struct{}{}
	}

	results := make([]Result, 0, len(ids))
	for id := range ids {
		c, ok := src.ChunkByID(id)
		if !ok {
			continue
		}

		signals := SignalScores{
			Lexical:   lex[id],
			Fuzzy:     fuz[id],
			Embedding: emb[id],
		}
		score := (opts.Weights.Lexical*signals.Lexical +
			opts.Weights.Fuzzy*signals.Fuzzy +
			opts.Weights.Embedding*signals.Embedding) / weightSum

		results = append(results, Result{
			ChunkID:   id,
			FilePath:  c.FilePath,
			Symbol:    c.Symbol,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Content:   c.Content,
			Score:     score,
			Signals:   signals,
		})
	}
	return results
}

// applyGraphBoost multiplies the score of chunks whose file is
// graph-connected to the top result's file. Scores stay capped at 1.
func applyGraphBoost(src Source, results []Result, factor float64) []Result {
	if factor <= 1 || len(results) < 2 {
		return results
	}

	top := 0
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[top].Score {
			top = i
		}
	}

	neighbors := make(map[string]struct{})
	for _, p := range src.Neighbors(results[top].FilePath) {
		neighbors[p] = struct{}{}
	}
	if len(neighbors) == 0 {
		return results
	}

	for i := range results {
		if i == top {
			continue
		}
		if _, connected := neighbors[results[i].FilePath]; connected {
			boosted := results[i].Score * factor
			if boosted > 1 {
				boosted = 1
			}
			results[i].Score = boosted
			results[i].Signals.Boosted = true
		}
	}
	return results
}

// dedupOverlapping keeps the best-scoring chunk among same-file chunks
// with overlapping line ranges.
func dedupOverlapping(results []Result) []Result {
	if len(results) < 2 {
		return results
	}

	// Process best-first so the keeper wins deterministically.
	sortResults(results)

	kept := make([]Result, 0, len(results))
	for _, r := range results {
		overlaps := false
		for _, k := range kept {
			if k.FilePath == r.FilePath && r.StartLine <= k.EndLine && k.StartLine <= r.EndLine {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, r)
		}
	}
	return kept
}

// sortResults orders by score descending, then path, then start line.
func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].FilePath != results[j].FilePath {
			return results[i].FilePath < results[j].FilePath
		}
		return results[i].StartLine < results[j].StartLine
	})
}
