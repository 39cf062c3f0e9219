package chunk

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goSource = `package demo

import "fmt"

// ParseConfig reads configuration from a file.
func ParseConfig(path string) error {
	fmt.Println(path)
	return nil
}

// Server handles requests.
type Server struct {
	Addr string
}

func (s *Server) Start() error {
	fmt.Println(s.Addr)
	return nil
}
`

func chunkFile(t *testing.T, path, content, language string, opts Options) []Chunk {
	t.Helper()
	c := NewStructuralChunker(opts)
	defer c.Close()

	chunks, err := c.Chunk(context.Background(), &FileInput{
		Path:     path,
		Content:  []byte(content),
		Language: language,
	})
	require.NoError(t, err)
	return chunks
}

// assertFullCoverage verifies chunks concatenate back to the file's full
// line range with no gaps.
func assertFullCoverage(t *testing.T, chunks []Chunk, totalLines int) {
	t.Helper()
	require.NotEmpty(t, chunks)
	assert.Equal(t, 1, chunks[0].StartLine)
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].EndLine+1, chunks[i].StartLine,
			"gap between chunk %d and %d", i-1, i)
	}
	assert.Equal(t, totalLines, chunks[len(chunks)-1].EndLine)
}

func TestChunk_GoDeclarations(t *testing.T) {
	chunks := chunkFile(t, "demo.go", goSource, "go", DefaultOptions())

	symbols := make(map[string]Kind)
	for _, c := range chunks {
		if c.Symbol != "" {
			symbols[c.Symbol] = c.Kind
		}
	}

	assert.Equal(t, KindFunction, symbols["ParseConfig"])
	assert.Equal(t, KindMethod, symbols["Start"])
	assert.Contains(t, symbols, "Server")
}

func TestChunk_FullLineCoverage(t *testing.T) {
	chunks := chunkFile(t, "demo.go", goSource, "go", DefaultOptions())
	assertFullCoverage(t, chunks, len(strings.Split(goSource, "\n")))
}

func TestChunk_EmptyFile(t *testing.T) {
	chunks := chunkFile(t, "empty.go", "", "go", DefaultOptions())
	assert.Empty(t, chunks)
}

func TestChunk_UnsupportedLanguageFallsBack(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 150; i++ {
		sb.WriteString("some plain text line\n")
	}

	opts := Options{WindowLines: 60, WindowOverlap: 10}
	chunks := chunkFile(t, "notes.txt", sb.String(), "text", opts)

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Equal(t, KindText, c.Kind)
		assert.LessOrEqual(t, c.EndLine-c.StartLine+1, 60)
	}

	// Windows overlap by the configured amount.
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, chunks[0].StartLine+50, chunks[1].StartLine)
}

func TestChunk_SyntaxErrorsFallBackToWindows(t *testing.T) {
	broken := "package demo\n\nfunc broken( {\n\tx :=\n\treturn\n"

	chunks := chunkFile(t, "broken.go", broken, "go", DefaultOptions())

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Equal(t, KindText, c.Kind, "an errored parse tree chunks by windows")
	}
}

func TestChunk_DeterministicBoundaries(t *testing.T) {
	a := chunkFile(t, "demo.go", goSource, "go", DefaultOptions())
	b := chunkFile(t, "demo.go", goSource, "go", DefaultOptions())

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
		assert.Equal(t, a[i].StartLine, b[i].StartLine)
		assert.Equal(t, a[i].EndLine, b[i].EndLine)
	}
}

func TestChunk_OversizedDeclarationSplits(t *testing.T) {
	var body strings.Builder
	body.WriteString("package demo\n\nfunc Big() {\n")
	for i := 0; i < 100; i++ {
		body.WriteString("\t_ = 1\n")
	}
	body.WriteString("}\n")

	opts := Options{MaxChunkLines: 30, MinChunkLines: 2, WindowLines: 60, WindowOverlap: 10}
	chunks := chunkFile(t, "big.go", body.String(), "go", opts)

	require.Greater(t, len(chunks), 2)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.EndLine-c.StartLine+1, 30)
	}

	// Split pieces keep the enclosing symbol.
	var named int
	for _, c := range chunks {
		if c.Symbol == "Big" {
			named++
		}
	}
	assert.Greater(t, named, 1)
}

func TestChunk_ContentHashStableAcrossLineShifts(t *testing.T) {
	shifted := "package demo\n\n// moved down\n" + strings.TrimPrefix(goSource, "package demo\n")

	orig := chunkFile(t, "demo.go", goSource, "go", DefaultOptions())
	moved := chunkFile(t, "demo.go", shifted, "go", DefaultOptions())

	hashOf := func(chunks []Chunk, symbol string) string {
		for _, c := range chunks {
			if c.Symbol == symbol && c.Kind == KindFunction {
				return c.ContentHash
			}
		}
		return ""
	}

	h1 := hashOf(orig, "ParseConfig")
	h2 := hashOf(moved, "ParseConfig")
	require.NotEmpty(t, h1)
	assert.Equal(t, h1, h2, "unchanged declaration content must keep its hash when lines shift")
}

func TestChunk_SameContentDifferentFilesDistinctIDs(t *testing.T) {
	a := chunkFile(t, "a.go", goSource, "go", DefaultOptions())
	b := chunkFile(t, "b.go", goSource, "go", DefaultOptions())

	require.NotEmpty(t, a)
	require.NotEmpty(t, b)
	assert.NotEqual(t, a[0].ID, b[0].ID)
	assert.Equal(t, a[0].ContentHash, b[0].ContentHash)
}

func TestMergeUndersized(t *testing.T) {
	segs := []segment{
		{start: 1, end: 1, kind: KindBlock},
		{start: 2, end: 20, kind: KindFunction, symbol: "A"},
		{start: 21, end: 22, kind: KindBlock},
		{start: 23, end: 40, kind: KindFunction, symbol: "B"},
	}

	merged := mergeUndersized(segs, 4)

	// Filler blocks attach forward to the following declaration.
	require.Len(t, merged, 2)
	assert.Equal(t, 1, merged[0].start)
	assert.Equal(t, 20, merged[0].end)
	assert.Equal(t, "A", merged[0].symbol)
	assert.Equal(t, 21, merged[1].start)
	assert.Equal(t, 40, merged[1].end)
	assert.Equal(t, "B", merged[1].symbol)
}

func TestCoverRange_FillsGaps(t *testing.T) {
	segs := []segment{
		{start: 5, end: 10, kind: KindFunction, symbol: "F"},
		{start: 15, end: 20, kind: KindFunction, symbol: "G"},
	}

	covered := coverRange(segs, 1, 25, "")

	require.Len(t, covered, 5)
	assert.Equal(t, segment{start: 1, end: 4, kind: KindBlock}, covered[0])
	assert.Equal(t, "F", covered[1].symbol)
	assert.Equal(t, segment{start: 11, end: 14, kind: KindBlock}, covered[2])
	assert.Equal(t, segment{start: 21, end: 25, kind: KindBlock}, covered[4])
}
