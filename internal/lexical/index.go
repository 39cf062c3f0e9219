// Package lexical provides an in-memory inverted index over code chunks
// with code-aware tokenization and bounded per-token postings.
package lexical

import (
	"sort"
	"sync"

	"github.com/scoutindex/scout/internal/chunk"
)

// Hit is one scored index match.
type Hit struct {
	ChunkID  string
	FilePath string
	Score    float64
}

// posting records one chunk's occurrences of a token.
type posting struct {
	count int
	seq   uint64 // global insertion order, used for eviction
}

// chunkMeta is what the index keeps per chunk for scoring and removal.
type chunkMeta struct {
	filePath   string
	startLine  int
	tokenCount int
	tokens     []string // unique tokens, for removal
}

// Index is a thread-safe inverted index. Each token's postings list is
// capped at maxPostings entries; when a token saturates, the least
// recently indexed chunk's posting for that token is evicted. Eviction
// loses recall for that token only, never the chunk itself.
type Index struct {
	mu          sync.RWMutex
	postings    map[string]map[string]posting // token -> chunkID -> posting
	chunks      map[string]chunkMeta          // chunkID -> meta
	byFile      map[string][]string           // filePath -> chunkIDs
	stopWords   map[string]struct{}
	maxPostings int
	seq         uint64
}

// NewIndex creates an index with the given per-token postings cap. A
// non-empty stopWords list replaces the built-in code stop words.
func NewIndex(maxPostingsPerToken int, stopWords []string) *Index {
	if maxPostingsPerToken <= 0 {
		maxPostingsPerToken = 5000
	}
	words := DefaultStopWords
	if len(stopWords) > 0 {
		words = stopWords
	}
	return &Index{
		postings:    make(map[string]map[string]posting),
		chunks:      make(map[string]chunkMeta),
		byFile:      make(map[string][]string),
		stopWords:   BuildStopWordSet(words),
		maxPostings: maxPostingsPerToken,
	}
}

// Add indexes one chunk. Re-adding an ID replaces its postings.
func (idx *Index) Add(c chunk.Chunk) {
	tokens := Tokenize(c.Content, idx.stopWords)
	if c.Symbol != "" {
		// Symbol names count double so declaration chunks outrank
		// chunks that merely mention the name.
		tokens = append(tokens, Tokenize(c.Symbol, idx.stopWords)...)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.chunks[c.ID]; exists {
		idx.removeLocked(c.ID)
	}

	freq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}

	unique := make([]string, 0, len(freq))
	for t, n := range freq {
		unique = append(unique, t)
		idx.seq++

		list, ok := idx.postings[t]
		if !ok {
			list = make(map[string]posting)
			idx.postings[t] = list
		}
		list[c.ID] = posting{count: n, seq: idx.seq}

		if len(list) > idx.maxPostings {
			idx.evictOldest(t, list)
		}
	}

	idx.chunks[c.ID] = chunkMeta{
		filePath:   c.FilePath,
		startLine:  c.StartLine,
		tokenCount: len(tokens),
		tokens:     unique,
	}
	idx.byFile[c.FilePath] = append(idx.byFile[c.FilePath], c.ID)
}

// evictOldest drops the least recently indexed posting for a token.
func (idx *Index) evictOldest(token string, list map[string]posting) {
	var victim string
	var oldest uint64
	first := true
	for id, p := range list {
		if first || p.seq < oldest {
			victim, oldest, first = id, p.seq, false
		}
	}
	if victim != "" {
		delete(list, victim)
	}
}

// RemoveFile drops every chunk indexed under filePath.
func (idx *Index) RemoveFile(filePath string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, id := range idx.byFile[filePath] {
		idx.removeLocked(id)
	}
	delete(idx.byFile, filePath)
}

// removeLocked drops one chunk's postings. Caller holds the write lock.
func (idx *Index) removeLocked(chunkID string) {
	meta, ok := idx.chunks[chunkID]
	if !ok {
		return
	}

	for _, t := range meta.tokens {
		if list, ok := idx.postings[t]; ok {
			delete(list, chunkID)
			if len(list) == 0 {
				delete(idx.postings, t)
			}
		}
	}
	delete(idx.chunks, chunkID)

	ids := idx.byFile[meta.filePath]
	for i, id := range ids {
		if id == chunkID {
			idx.byFile[meta.filePath] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// Search scores chunks by normalized term-frequency overlap with the query
// and returns up to limit hits, best first. Scores are in [0, 1]: the
// fraction of query tokens present, weighted toward chunks where matched
// tokens make up more of the chunk. Ties break to the shorter chunk, then
// the lexically smaller path, then the earlier start line.
func (idx *Index) Search(query string, limit int) []Hit {
	qtokens := Tokenize(query, idx.stopWords)
	if len(qtokens) == 0 || limit <= 0 {
		return nil
	}

	qset := make(map[string]struct{}, len(qtokens))
	for _, t := range qtokens {
		qset[t] = struct{}{}
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type accum struct {
		matched int
		tf      int
	}
	scores := make(map[string]*accum)

	for t := range qset {
		for id, p := range idx.postings[t] {
			a := scores[id]
			if a == nil {
				a = &accum{}
				scores[id] = a
			}
			a.matched++
			a.tf += p.count
		}
	}

	hits := make([]Hit, 0, len(scores))
	for id, a := range scores {
		meta := idx.chunks[id]
		coverage := float64(a.matched) / float64(len(qset))
		density := 0.0
		if meta.tokenCount > 0 {
			density = float64(a.tf) / float64(meta.tokenCount)
			if density > 1 {
				density = 1
			}
		}
		hits = append(hits, Hit{
			ChunkID:  id,
			FilePath: meta.filePath,
			Score:    coverage * (0.75 + 0.25*density),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		mi, mj := idx.chunks[hits[i].ChunkID], idx.chunks[hits[j].ChunkID]
		if mi.tokenCount != mj.tokenCount {
			return mi.tokenCount < mj.tokenCount
		}
		if mi.filePath != mj.filePath {
			return mi.filePath < mj.filePath
		}
		return mi.startLine < mj.startLine
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// Size returns the number of indexed chunks.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.chunks)
}
