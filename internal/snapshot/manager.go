package snapshot

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scoutindex/scout/internal/chunk"
	"github.com/scoutindex/scout/internal/config"
	"github.com/scoutindex/scout/internal/embed"
	scouterr "github.com/scoutindex/scout/internal/errors"
	"github.com/scoutindex/scout/internal/repo"
	"github.com/scoutindex/scout/internal/search"
)

// State is the manager's lifecycle phase.
type State string

const (
	StateEmpty    State = "empty"
	StateBuilding State = "building"
	StateReady    State = "ready"
	StateUpdating State = "updating"
	StateRetired  State = "retired"
)

// Embedder is the provider surface the manager needs: hash-keyed batch
// embedding, uncached query embedding, and cache eviction.
// *embed.CachedProvider satisfies it.
type Embedder interface {
	embed.Provider
	EmbedHashedBatch(ctx context.Context, hashes, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
	Evict(contentHash string)
}

// Manager owns the snapshot lifecycle. Queries read the current snapshot
// through an atomic pointer, so builds and updates never block searches;
// a query started before a swap finishes against the snapshot it began
// with.
type Manager struct {
	mu    sync.Mutex // serializes Build, Update, Close
	state State

	current atomic.Pointer[Snapshot]
	nextID  atomic.Uint64

	cfg        *config.Config
	embedder   Embedder
	edgeSource repo.EdgeSource
	ranker     *search.Ranker
	workers    int
}

// NewManager creates a manager in the Empty state. edgeSource may be
// repo.NoEdges{} when no reference extractor is wired.
func NewManager(cfg *config.Config, embedder Embedder, edgeSource repo.EdgeSource) *Manager {
	if edgeSource == nil {
		edgeSource = repo.NoEdges{}
	}
	return &Manager{
		state:      StateEmpty,
		cfg:        cfg,
		embedder:   embedder,
		edgeSource: edgeSource,
		ranker:     search.NewRanker(),
		workers:    runtime.GOMAXPROCS(0),
	}
}

// State returns the current lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns the active snapshot, or nil before the first build.
func (m *Manager) Current() *Snapshot {
	return m.current.Load()
}

// fileResult carries one file's indexing output.
type fileResult struct {
	path    string
	chunks  []chunk.Chunk
	vectors map[string][]float32
	edges   []repo.Edge
}

// Build indexes a full file set and publishes the first snapshot. On a
// manager that is already Ready it performs a full rebuild.
func (m *Manager) Build(ctx context.Context, files []repo.File) error {
	m.mu.Lock()
	switch m.state {
	case StateRetired:
		m.mu.Unlock()
		return scouterr.New(scouterr.ErrCodeSnapshotRetired, "manager is retired", nil)
	case StateBuilding, StateUpdating:
		m.mu.Unlock()
		return scouterr.New(scouterr.ErrCodeInvalidInput, "a build or update is already running", nil)
	}
	prev := m.state
	m.state = StateBuilding
	m.mu.Unlock()

	start := time.Now()
	old := m.current.Load()

	snap := m.emptySnapshot()
	results, err := m.processFiles(ctx, files, nil)
	if err != nil {
		m.setState(prev)
		return err
	}
	for _, r := range results {
		snap.applyFileResult(r)
	}

	m.publish(snap)
	m.retire(old, snap)

	slog.Info("snapshot built",
		slog.Uint64("snapshot", snap.id),
		slog.Int("files", snap.FileCount()),
		slog.Int("chunks", snap.ChunkCount()),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// Update applies a change delta to the current snapshot and publishes a
// new one. Unchanged files keep their chunks and vectors untouched;
// within changed files, chunks whose content hash is unchanged reuse the
// previous vector without an embedding call.
func (m *Manager) Update(ctx context.Context, delta repo.Delta) error {
	m.mu.Lock()
	switch m.state {
	case StateRetired:
		m.mu.Unlock()
		return scouterr.New(scouterr.ErrCodeSnapshotRetired, "manager is retired", nil)
	case StateEmpty:
		m.mu.Unlock()
		return scouterr.SnapshotNotReady("update requires a built snapshot")
	case StateBuilding, StateUpdating:
		m.mu.Unlock()
		return scouterr.New(scouterr.ErrCodeInvalidInput, "a build or update is already running", nil)
	}
	m.state = StateUpdating
	m.mu.Unlock()

	start := time.Now()
	old := m.current.Load()

	next := m.emptySnapshot()
	touched := make(map[string]struct{}, len(delta.Removed)+len(delta.AddedOrModified))
	for _, p := range delta.Removed {
		touched[p] = struct{}{}
	}
	for _, f := range delta.AddedOrModified {
		touched[f.Path] = struct{}{}
	}

	// Carry over untouched files by reference; snapshots never mutate
	// these values after publication.
	for path, ids := range old.byFile {
		if _, changed := touched[path]; changed {
			continue
		}
		next.byFile[path] = ids
		next.edges[path] = old.edges[path]
		for _, id := range ids {
			next.chunks[id] = old.chunks[id]
			if vec, ok := old.vectors[id]; ok {
				next.vectors[id] = vec
			}
		}
	}

	results, err := m.processFiles(ctx, delta.AddedOrModified, old.vectors)
	if err != nil {
		m.setState(StateReady)
		return err
	}
	for _, r := range results {
		next.applyFileResult(r)
	}

	m.publish(next)
	m.retire(old, next)

	slog.Info("snapshot updated",
		slog.Uint64("snapshot", next.id),
		slog.Int("changed_files", len(delta.AddedOrModified)),
		slog.Int("removed_files", len(delta.Removed)),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// Search runs a hybrid query against the current snapshot.
func (m *Manager) Search(ctx context.Context, query string) (*search.Response, error) {
	m.mu.Lock()
	retired := m.state == StateRetired
	m.mu.Unlock()
	if retired {
		return nil, scouterr.New(scouterr.ErrCodeSnapshotRetired, "manager is retired", nil)
	}

	snap := m.current.Load()
	if snap == nil {
		return nil, scouterr.SnapshotNotReady("no snapshot built yet")
	}

	return m.ranker.Search(ctx, snap, query, search.Options{
		MaxResults: m.cfg.Search.MaxResults,
		Weights: search.Weights{
			Lexical:   m.cfg.Search.LexicalWeight,
			Fuzzy:     m.cfg.Search.FuzzyWeight,
			Embedding: m.cfg.Search.EmbeddingWeight,
		},
		GraphBoostFactor: m.cfg.Search.GraphBoostFactor,
		Timeout:          time.Duration(m.cfg.Search.TimeoutMs) * time.Millisecond,
	})
}

// Close retires the manager. In-flight queries finish against the
// snapshot they started with; new calls are rejected.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.state = StateRetired
	m.mu.Unlock()
	return nil
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) emptySnapshot() *Snapshot {
	return &Snapshot{
		id:      m.nextID.Add(1),
		chunks:  make(map[string]chunk.Chunk),
		byFile:  make(map[string][]string),
		vectors: make(map[string][]float32),
		edges:   make(map[string][]repo.Edge),
		// Query vectors bypass the cache layers; only chunk content
		// hashes belong in the persistent store.
		embedQuery: m.embedder.EmbedQuery,
	}
}

// publish finalizes the snapshot, swaps it in, and marks the manager Ready.
func (m *Manager) publish(snap *Snapshot) {
	snap.finalize(m.embedder.ModelTag(), m.embedder.Dimensions(),
		m.cfg.Lexical.MaxPostingsPerToken, m.cfg.Lexical.StopWords)
	m.current.Store(snap)
	m.setState(StateReady)
}

// retire evicts cache entries whose content hash no longer appears in
// any live snapshot.
func (m *Manager) retire(old, next *Snapshot) {
	if old == nil {
		return
	}
	live := next.contentHashes()
	for hash := range old.contentHashes() {
		if _, stillLive := live[hash]; !stillLive {
			m.embedder.Evict(hash)
		}
	}
}

// applyFileResult installs one file's chunks into the snapshot maps.
func (s *Snapshot) applyFileResult(r fileResult) {
	ids := make([]string, 0, len(r.chunks))
	for _, c := range r.chunks {
		ids = append(ids, c.ID)
		s.chunks[c.ID] = c
	}
	if len(ids) > 0 {
		s.byFile[r.path] = ids
	}
	for id, vec := range r.vectors {
		s.vectors[id] = vec
	}
	if len(r.edges) > 0 {
		s.edges[r.path] = r.edges
	}
}

// processFiles chunks, embeds, and extracts edges for files in parallel.
// reuse maps chunk ID to an existing vector; matching chunks skip the
// embedder entirely. A file that fails to embed still indexes lexically.
func (m *Manager) processFiles(ctx context.Context, files []repo.File, reuse map[string][]float32) ([]fileResult, error) {
	if len(files) == 0 {
		return nil, nil
	}

	results := make([]fileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for i := range files {
		g.Go(func() error {
			// Tree-sitter parsers are not safe for concurrent use;
			// each task owns one.
			chunker := chunk.NewStructuralChunker(chunk.Options{
				MaxChunkLines: m.cfg.Chunking.MaxChunkLines,
				MinChunkLines: m.cfg.Chunking.MinChunkLines,
				WindowLines:   m.cfg.Chunking.WindowLines,
				WindowOverlap: m.cfg.Chunking.WindowOverlap,
			})
			defer chunker.Close()

			r, err := m.processFile(gctx, chunker, files[i], reuse)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (m *Manager) processFile(ctx context.Context, chunker chunk.Chunker, file repo.File, reuse map[string][]float32) (fileResult, error) {
	language := file.Language
	if language == "" {
		language = repo.DetectLanguage(file.Path)
	}

	chunks, err := chunker.Chunk(ctx, &chunk.FileInput{
		Path:     file.Path,
		Content:  file.Content,
		Language: language,
	})
	if err != nil {
		return fileResult{}, err
	}

	r := fileResult{
		path:    file.Path,
		chunks:  chunks,
		vectors: make(map[string][]float32, len(chunks)),
	}

	var pending []chunk.Chunk
	for _, c := range chunks {
		if vec, ok := reuse[c.ID]; ok {
			r.vectors[c.ID] = vec
			continue
		}
		pending = append(pending, c)
	}

	batch := m.cfg.Embedding.BatchSize
	if batch <= 0 {
		batch = len(pending)
	}
	for start := 0; start < len(pending); start += batch {
		end := start + batch
		if end > len(pending) {
			end = len(pending)
		}
		group := pending[start:end]

		hashes := make([]string, len(group))
		texts := make([]string, len(group))
		for i, c := range group {
			hashes[i] = c.ContentHash
			texts[i] = c.Content
		}

		vecs, err := m.embedder.EmbedHashedBatch(ctx, hashes, texts)
		if err != nil {
			if scouterr.IsFatal(err) {
				return fileResult{}, err
			}
			// Degraded: the chunks stay searchable lexically.
			slog.Warn("chunks not embedded",
				slog.String("path", file.Path),
				slog.Int("count", len(group)),
				slog.String("error", err.Error()))
			continue
		}
		for i, c := range group {
			r.vectors[c.ID] = vecs[i]
		}
	}

	edges, err := m.edgeSource.Edges(ctx, file)
	if err != nil {
		slog.Warn("edge extraction failed",
			slog.String("path", file.Path),
			slog.String("error", err.Error()))
	} else {
		r.edges = edges
	}

	return r, nil
}
