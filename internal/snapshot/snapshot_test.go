package snapshot

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutindex/scout/internal/config"
	"github.com/scoutindex/scout/internal/embed"
	scouterr "github.com/scoutindex/scout/internal/errors"
	"github.com/scoutindex/scout/internal/repo"
)

const fileAlpha = `package demo

// Alpha returns the first constant.
func Alpha() int {
	return 1
}

// Beta returns the second constant.
func Beta() int {
	return 2
}
`

const fileGamma = `package demo

// Gamma formats a greeting for the given name.
func Gamma(name string) string {
	return "hello " + name
}
`

// countingProvider counts raw Embed calls below the cache.
type countingProvider struct {
	*embed.StaticProvider
	calls atomic.Int64
}

func (c *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.StaticProvider.Embed(ctx, text)
}

func (c *countingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(int64(len(texts)))
	return c.StaticProvider.EmbedBatch(ctx, texts)
}

// testEmbedder records cache evictions on top of a CachedProvider.
type testEmbedder struct {
	*embed.CachedProvider

	mu      sync.Mutex
	evicted []string
}

func (t *testEmbedder) Evict(hash string) {
	t.mu.Lock()
	t.evicted = append(t.evicted, hash)
	t.mu.Unlock()
	t.CachedProvider.Evict(hash)
}

func (t *testEmbedder) evictions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.evicted...)
}

// fixedEdges serves a static edge table.
type fixedEdges map[string][]repo.Edge

func (f fixedEdges) Edges(_ context.Context, file repo.File) ([]repo.Edge, error) {
	return f[file.Path], nil
}

func newTestManager(t *testing.T, edges repo.EdgeSource) (*Manager, *countingProvider, *testEmbedder) {
	t.Helper()

	inner := &countingProvider{StaticProvider: embed.NewStaticProvider(32)}
	cached, err := embed.NewCachedProvider(inner, 256, nil)
	require.NoError(t, err)
	te := &testEmbedder{CachedProvider: cached}

	cfg := config.Default()
	cfg.Embedding.Dimensions = 32

	return NewManager(cfg, te, edges), inner, te
}

func goFile(path, content string) repo.File {
	return repo.File{Path: path, Content: []byte(content), Language: "go"}
}

func TestManager_SearchBeforeBuildRejected(t *testing.T) {
	m, _, _ := newTestManager(t, nil)

	_, err := m.Search(context.Background(), "anything")
	require.Error(t, err)
	assert.Equal(t, scouterr.ErrCodeSnapshotNotReady, scouterr.GetCode(err))
	assert.Equal(t, StateEmpty, m.State())
}

func TestManager_UpdateBeforeBuildRejected(t *testing.T) {
	m, _, _ := newTestManager(t, nil)

	err := m.Update(context.Background(), repo.Delta{})
	require.Error(t, err)
	assert.Equal(t, scouterr.ErrCodeSnapshotNotReady, scouterr.GetCode(err))
}

func TestManager_BuildAndSearch(t *testing.T) {
	m, _, _ := newTestManager(t, nil)
	ctx := context.Background()

	err := m.Build(ctx, []repo.File{
		goFile("alpha.go", fileAlpha),
		goFile("gamma.go", fileGamma),
	})
	require.NoError(t, err)
	assert.Equal(t, StateReady, m.State())

	snap := m.Current()
	require.NotNil(t, snap)
	assert.Equal(t, 2, snap.FileCount())
	assert.Greater(t, snap.ChunkCount(), 0)

	resp, err := m.Search(ctx, "gamma greeting")
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "gamma.go", resp.Results[0].FilePath)
}

func TestManager_UnchangedFileSkipsReEmbedding(t *testing.T) {
	m, inner, _ := newTestManager(t, nil)
	ctx := context.Background()

	require.NoError(t, m.Build(ctx, []repo.File{
		goFile("alpha.go", fileAlpha),
		goFile("gamma.go", fileGamma),
	}))
	afterBuild := inner.calls.Load()
	require.Greater(t, afterBuild, int64(0))

	// The delta reports the file as modified but its content is identical,
	// so every chunk keeps its ID and reuses its vector.
	err := m.Update(ctx, repo.Delta{
		AddedOrModified: []repo.File{goFile("gamma.go", fileGamma)},
	})
	require.NoError(t, err)

	assert.Equal(t, afterBuild, inner.calls.Load(), "identical content must not re-embed")
}

func TestManager_ModifiedFileReEmbedsOnlyChangedChunks(t *testing.T) {
	m, inner, _ := newTestManager(t, nil)
	ctx := context.Background()

	require.NoError(t, m.Build(ctx, []repo.File{
		goFile("alpha.go", fileAlpha),
		goFile("gamma.go", fileGamma),
	}))
	afterBuild := inner.calls.Load()
	totalAlphaChunks := len(m.Current().byFile["alpha.go"])
	require.Greater(t, totalAlphaChunks, 1, "fixture must produce multiple chunks")

	// Change only Beta's body; Alpha's chunk content is untouched.
	modified := `package demo

// Alpha returns the first constant.
func Alpha() int {
	return 1
}

// Beta returns the second constant, doubled.
func Beta() int {
	return 4
}
`
	require.NoError(t, m.Update(ctx, repo.Delta{
		AddedOrModified: []repo.File{goFile("alpha.go", modified)},
	}))

	delta := inner.calls.Load() - afterBuild
	assert.GreaterOrEqual(t, delta, int64(1), "the changed chunk re-embeds")
	assert.Less(t, delta, int64(totalAlphaChunks), "unchanged chunks reuse their vectors")
}

// flakyProvider fails its first raw calls with a retryable error.
type flakyProvider struct {
	*embed.StaticProvider
	failures atomic.Int64
}

func (f *flakyProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.failures.Add(-1) >= 0 {
		return nil, scouterr.ProviderUnavailable("embedder hiccup", nil)
	}
	return f.StaticProvider.Embed(ctx, text)
}

func (f *flakyProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.failures.Add(-1) >= 0 {
		return nil, scouterr.ProviderUnavailable("embedder hiccup", nil)
	}
	return f.StaticProvider.EmbedBatch(ctx, texts)
}

func TestManager_TransientProviderFailureRetriesDuringBuild(t *testing.T) {
	inner := &flakyProvider{StaticProvider: embed.NewStaticProvider(32)}
	inner.failures.Store(1)

	cfg := config.Default()
	cfg.Embedding.Dimensions = 32

	retry := scouterr.DefaultRetryConfig()
	retry.MaxRetries = cfg.Embedding.MaxRetries
	retry.InitialDelay = time.Millisecond
	retry.MaxDelay = 4 * time.Millisecond

	cached, err := embed.NewCachedProvider(embed.WithRetry(inner, retry), 256, nil)
	require.NoError(t, err)

	m := NewManager(cfg, cached, nil)
	require.NoError(t, m.Build(context.Background(), []repo.File{goFile("gamma.go", fileGamma)}))

	snap := m.Current()
	require.Greater(t, snap.ChunkCount(), 0)
	for id := range snap.chunks {
		_, ok := snap.vectors[id]
		assert.True(t, ok, "every chunk embeds once the provider recovers")
	}
}

func TestManager_QueryEmbeddingsNeverCached(t *testing.T) {
	m, inner, _ := newTestManager(t, nil)
	ctx := context.Background()

	require.NoError(t, m.Build(ctx, []repo.File{goFile("gamma.go", fileGamma)}))
	base := inner.calls.Load()

	_, err := m.Search(ctx, "gamma greeting")
	require.NoError(t, err)
	_, err = m.Search(ctx, "gamma greeting")
	require.NoError(t, err)

	assert.Equal(t, base+2, inner.calls.Load(),
		"repeat queries embed fresh instead of entering the chunk cache")
}

func TestManager_ConfiguredStopWordsReachIndex(t *testing.T) {
	m, _, _ := newTestManager(t, nil)
	m.cfg.Lexical.StopWords = []string{"greeting"}
	ctx := context.Background()

	require.NoError(t, m.Build(ctx, []repo.File{goFile("gamma.go", fileGamma)}))

	assert.Empty(t, m.Current().LexicalSearch("greeting", 5))
	assert.NotEmpty(t, m.Current().LexicalSearch("gamma", 5))
}

func TestManager_RemovedFileDisappears(t *testing.T) {
	m, _, _ := newTestManager(t, nil)
	ctx := context.Background()

	require.NoError(t, m.Build(ctx, []repo.File{
		goFile("alpha.go", fileAlpha),
		goFile("gamma.go", fileGamma),
	}))

	require.NoError(t, m.Update(ctx, repo.Delta{Removed: []string{"gamma.go"}}))

	snap := m.Current()
	assert.Equal(t, 1, snap.FileCount())

	resp, err := m.Search(ctx, "gamma greeting hello")
	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.NotEqual(t, "gamma.go", r.FilePath)
	}
}

func TestManager_RetireEvictsOrphanedHashes(t *testing.T) {
	m, _, te := newTestManager(t, nil)
	ctx := context.Background()

	require.NoError(t, m.Build(ctx, []repo.File{
		goFile("alpha.go", fileAlpha),
		goFile("gamma.go", fileGamma),
	}))

	require.NoError(t, m.Update(ctx, repo.Delta{Removed: []string{"gamma.go"}}))

	assert.NotEmpty(t, te.evictions(), "removed file's content hashes leave the cache")
}

func TestManager_SnapshotIsolationAcrossUpdate(t *testing.T) {
	m, _, _ := newTestManager(t, nil)
	ctx := context.Background()

	require.NoError(t, m.Build(ctx, []repo.File{goFile("gamma.go", fileGamma)}))

	before := m.Current()
	require.NoError(t, m.Update(ctx, repo.Delta{Removed: []string{"gamma.go"}}))

	assert.NotSame(t, before, m.Current(), "update publishes a new snapshot")
	assert.Equal(t, 1, before.FileCount(), "the old snapshot still serves its own state")
	assert.NotEmpty(t, before.LexicalSearch("gamma greeting", 5))
}

func TestManager_EdgesWireIntoGraph(t *testing.T) {
	edges := fixedEdges{
		"alpha.go": {{From: "alpha.go", To: "gamma.go", Kind: "call"}},
	}
	m, _, _ := newTestManager(t, edges)
	ctx := context.Background()

	require.NoError(t, m.Build(ctx, []repo.File{
		goFile("alpha.go", fileAlpha),
		goFile("gamma.go", fileGamma),
	}))

	assert.Equal(t, []string{"gamma.go"}, m.Current().Neighbors("alpha.go"))
}

func TestManager_GraphBoostRanksConnectedFileAboveTwin(t *testing.T) {
	defines := `package app

// parseConfig reads and validates the configuration file.
func parseConfig(path string) error {
	return nil
}
`
	// Identical helpers; only the import edge separates them.
	helper := `package app

// applySettings pushes loaded settings to the runtime.
func applySettings(s string) error {
	return nil
}
`

	edges := fixedEdges{
		"importer.go": {{From: "importer.go", To: "defines.go", Kind: "import"}},
	}
	m, _, _ := newTestManager(t, edges)
	ctx := context.Background()

	require.NoError(t, m.Build(ctx, []repo.File{
		goFile("defines.go", defines),
		goFile("importer.go", helper),
		goFile("stranger.go", helper),
	}))

	resp, err := m.Search(ctx, "parse configuration")
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	assert.Equal(t, "defines.go", resp.Results[0].FilePath,
		"the defining chunk ranks first")

	rank := make(map[string]int)
	for i, r := range resp.Results {
		if _, seen := rank[r.FilePath]; !seen {
			rank[r.FilePath] = i
		}
	}
	if imp, ok := rank["importer.go"]; ok {
		if str, ok := rank["stranger.go"]; ok {
			assert.Less(t, imp, str,
				"the import-adjacent file outranks its graph-disconnected twin")
		}
	}
}

func TestManager_CloseRetires(t *testing.T) {
	m, _, _ := newTestManager(t, nil)
	ctx := context.Background()

	require.NoError(t, m.Build(ctx, []repo.File{goFile("gamma.go", fileGamma)}))
	require.NoError(t, m.Close())

	assert.Equal(t, StateRetired, m.State())

	_, err := m.Search(ctx, "gamma")
	assert.Equal(t, scouterr.ErrCodeSnapshotRetired, scouterr.GetCode(err))

	err = m.Build(ctx, []repo.File{goFile("gamma.go", fileGamma)})
	assert.Equal(t, scouterr.ErrCodeSnapshotRetired, scouterr.GetCode(err))
}

func TestManager_EmptyBuildIsReady(t *testing.T) {
	m, _, _ := newTestManager(t, nil)
	ctx := context.Background()

	require.NoError(t, m.Build(ctx, nil))
	assert.Equal(t, StateReady, m.State())

	resp, err := m.Search(ctx, "anything at all")
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}
