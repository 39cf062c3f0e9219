package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Chunking defaults. Structural chunks are non-overlapping; only the
// windowed fallback uses overlap, to avoid splitting symbols at window edges.
const (
	DefaultMaxChunkLines = 120
	DefaultMinChunkLines = 4
	DefaultWindowLines   = 60
	DefaultWindowOverlap = 10
)

// Kind is the structural kind of a chunk.
type Kind string

const (
	KindFunction Kind = "function"
	KindMethod   Kind = "method"
	KindClass    Kind = "class"
	KindType     Kind = "type"
	KindBlock    Kind = "block"
	KindText     Kind = "text"
)

// Chunk is a contiguous, structurally meaningful slice of a source file.
// Chunks are immutable once created; a changed file produces new chunks
// rather than mutating old ones.
type Chunk struct {
	ID          string // content-addressable: derived from path + content hash
	FilePath    string // relative to repository root
	Content     string
	Kind        Kind
	Symbol      string // enclosing symbol name, "" if none
	Language    string
	StartLine   int    // 1-indexed
	EndLine     int    // inclusive
	ContentHash string // SHA-256 of Content, hex; embedding cache key
}

// FileInput is the chunker input for one file.
type FileInput struct {
	Path     string
	Content  []byte
	Language string
}

// Chunker splits a file into retrievable units.
type Chunker interface {
	// Chunk returns a finite, ordered sequence of chunks covering the
	// whole file. A structural parse failure degrades to windowed
	// chunking for that file only; it never fails the call.
	Chunk(ctx context.Context, file *FileInput) ([]Chunk, error)
}

// Options configures chunk sizing.
type Options struct {
	MaxChunkLines int // declarations above this are split at nested boundaries
	MinChunkLines int // declarations below this merge with adjacent siblings
	WindowLines   int // fallback window height
	WindowOverlap int // fallback window overlap
}

// DefaultOptions returns the default sizing.
func DefaultOptions() Options {
	return Options{
		MaxChunkLines: DefaultMaxChunkLines,
		MinChunkLines: DefaultMinChunkLines,
		WindowLines:   DefaultWindowLines,
		WindowOverlap: DefaultWindowOverlap,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxChunkLines <= 0 {
		o.MaxChunkLines = DefaultMaxChunkLines
	}
	if o.MinChunkLines <= 0 {
		o.MinChunkLines = DefaultMinChunkLines
	}
	if o.WindowLines <= 0 {
		o.WindowLines = DefaultWindowLines
	}
	if o.WindowOverlap < 0 || o.WindowOverlap >= o.WindowLines {
		o.WindowOverlap = DefaultWindowOverlap
	}
	return o
}

// HashContent returns the hex SHA-256 of text. Identical text hashes
// identically everywhere, which is what lets embeddings be reused across
// files and snapshots.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// chunkID derives a stable chunk identifier from file path and content
// hash. Same content in the same file keeps its ID across line shifts;
// same content in different files gets distinct IDs.
func chunkID(filePath, contentHash string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", filePath, contentHash)))
	return hex.EncodeToString(sum[:])[:16]
}

// newChunk builds a chunk with derived identity fields.
func newChunk(file *FileInput, content string, kind Kind, symbol string, startLine, endLine int) Chunk {
	hash := HashContent(content)
	return Chunk{
		ID:          chunkID(file.Path, hash),
		FilePath:    file.Path,
		Content:     content,
		Kind:        kind,
		Symbol:      symbol,
		Language:    file.Language,
		StartLine:   startLine,
		EndLine:     endLine,
		ContentHash: hash,
	}
}
