// Package chunk splits source files into structurally coherent units.
//
// When a tree-sitter grammar is registered for the file's language, chunk
// boundaries align to top-level declarations; oversized declarations are
// split at nested declaration boundaries and undersized ones are merged
// with adjacent siblings. Files without a grammar, and files whose parse
// fails, fall back to fixed-width overlapping line windows. A parse
// failure degrades that file only; it never aborts indexing.
package chunk

import (
	"context"
	"log/slog"
	"strings"

	scouterr "github.com/scoutindex/scout/internal/errors"
)

// StructuralChunker is the default Chunker implementation.
type StructuralChunker struct {
	parser   *Parser
	registry *LanguageRegistry
	opts     Options
}

// NewStructuralChunker creates a chunker with the default language registry.
func NewStructuralChunker(opts Options) *StructuralChunker {
	registry := DefaultRegistry()
	return &StructuralChunker{
		parser:   NewParser(registry),
		registry: registry,
		opts:     opts.withDefaults(),
	}
}

// Close releases parser resources.
func (c *StructuralChunker) Close() {
	if c.parser != nil {
		c.parser.Close()
	}
}

// segment is an intermediate line range before chunk materialization.
type segment struct {
	start  int // 1-indexed, inclusive
	end    int // inclusive
	kind   Kind
	symbol string
	node   *Node // declaration node, nil for filler
}

// Chunk implements Chunker.
func (c *StructuralChunker) Chunk(ctx context.Context, file *FileInput) ([]Chunk, error) {
	if len(file.Content) == 0 {
		return nil, nil
	}

	lines := strings.Split(string(file.Content), "\n")

	config, supported := c.registry.Config(file.Language)
	if !supported {
		return c.windowChunks(file, lines), nil
	}

	tree, err := c.parser.Parse(ctx, file.Content, file.Language)
	if err != nil || tree.Root == nil || tree.Root.HasError {
		degraded := scouterr.New(scouterr.ErrCodeParseDegraded, "structural parse failed, using windowed fallback", err)
		slog.Warn("parse degraded",
			slog.String("path", file.Path),
			slog.String("language", file.Language),
			slog.String("code", degraded.Code))
		return c.windowChunks(file, lines), nil
	}

	segs := c.declarationSegments(tree, config, lines)
	segs = coverRange(segs, 1, len(lines), "")
	segs = c.splitOversized(segs, tree.Source, config)
	segs = mergeUndersized(segs, c.opts.MinChunkLines)

	// Every segment materializes, blank ones included: structural chunks
	// must concatenate back to the full file line range.
	chunks := make([]Chunk, 0, len(segs))
	for _, s := range segs {
		content := strings.Join(lines[s.start-1:s.end], "\n")
		chunks = append(chunks, newChunk(file, content, s.kind, s.symbol, s.start, s.end))
	}
	return chunks, nil
}

// declarationSegments extracts top-level declaration line ranges.
func (c *StructuralChunker) declarationSegments(tree *Tree, config *LanguageConfig, lines []string) []segment {
	var segs []segment
	prevEnd := 0

	for _, child := range tree.Root.Children {
		kind, isDecl := config.DeclKinds[child.Type]
		if !isDecl {
			continue
		}

		start := int(child.StartRow) + 1
		end := int(child.EndRow) + 1
		if end > len(lines) {
			end = len(lines)
		}
		// Declarations never overlap; clamp defensively against grammar quirks.
		if start <= prevEnd {
			start = prevEnd + 1
		}
		if start > end {
			continue
		}

		segs = append(segs, segment{
			start:  start,
			end:    end,
			kind:   kind,
			symbol: declName(child, config, tree.Source),
			node:   child,
		})
		prevEnd = end
	}

	return segs
}

// coverRange fills gaps between segments so the result covers [first, last]
// with no holes. Filler segments carry the surrounding symbol name.
func coverRange(segs []segment, first, last int, symbol string) []segment {
	covered := make([]segment, 0, len(segs)*2+1)
	cursor := first

	for _, s := range segs {
		if s.start > cursor {
			covered = append(covered, segment{start: cursor, end: s.start - 1, kind: KindBlock, symbol: symbol})
		}
		covered = append(covered, s)
		cursor = s.end + 1
	}
	if cursor <= last {
		covered = append(covered, segment{start: cursor, end: last, kind: KindBlock, symbol: symbol})
	}

	return covered
}

// splitOversized recursively splits declarations exceeding MaxChunkLines at
// nested declaration boundaries, falling back to plain line slices when a
// declaration has no nested structure.
func (c *StructuralChunker) splitOversized(segs []segment, source []byte, config *LanguageConfig) []segment {
	var out []segment

	for _, s := range segs {
		if s.end-s.start+1 <= c.opts.MaxChunkLines {
			out = append(out, s)
			continue
		}

		if s.node != nil {
			nested := collectNestedDecls(s.node, config, source)
			nested = clampTo(nested, s.start, s.end)
			if len(nested) > 0 {
				inner := coverRange(nested, s.start, s.end, s.symbol)
				out = append(out, c.splitOversized(inner, source, config)...)
				continue
			}
		}

		// No nested boundaries: slice into consecutive max-size pieces.
		for start := s.start; start <= s.end; start += c.opts.MaxChunkLines {
			end := start + c.opts.MaxChunkLines - 1
			if end > s.end {
				end = s.end
			}
			out = append(out, segment{start: start, end: end, kind: s.kind, symbol: s.symbol})
		}
	}

	return out
}

// collectNestedDecls finds the shallowest declaration nodes strictly inside n.
func collectNestedDecls(n *Node, config *LanguageConfig, source []byte) []segment {
	var segs []segment
	var walk func(node *Node)
	walk = func(node *Node) {
		for _, child := range node.Children {
			if kind, ok := config.DeclKinds[child.Type]; ok {
				segs = append(segs, segment{
					start:  int(child.StartRow) + 1,
					end:    int(child.EndRow) + 1,
					kind:   kind,
					symbol: declName(child, config, source),
					node:   child,
				})
				continue // do not descend into a found declaration
			}
			walk(child)
		}
	}
	walk(n)
	return segs
}

// clampTo drops segments outside [first, last] and resolves overlaps.
func clampTo(segs []segment, first, last int) []segment {
	out := segs[:0]
	prevEnd := first - 1
	for _, s := range segs {
		if s.start <= prevEnd {
			s.start = prevEnd + 1
		}
		if s.end > last {
			s.end = last
		}
		if s.start < first || s.start > s.end {
			continue
		}
		out = append(out, s)
		prevEnd = s.end
	}
	return out
}

// mergeUndersized folds segments shorter than minLines into a neighbor to
// avoid index bloat from trivial chunks. Undersized filler blocks attach
// forward to the following declaration (a doc comment joins its function);
// remaining runts merge backward.
func mergeUndersized(segs []segment, minLines int) []segment {
	if len(segs) <= 1 {
		return segs
	}

	// Pass 1: filler blocks attach to the next segment.
	forward := make([]segment, 0, len(segs))
	for i := 0; i < len(segs); i++ {
		s := segs[i]
		if s.kind == KindBlock && s.end-s.start+1 < minLines && i+1 < len(segs) {
			segs[i+1].start = s.start
			continue
		}
		forward = append(forward, s)
	}

	// Pass 2: anything still undersized merges into the previous segment.
	var out []segment
	for _, s := range forward {
		if len(out) > 0 && s.end-s.start+1 < minLines {
			prev := &out[len(out)-1]
			prev.end = s.end
			if prev.symbol == "" {
				prev.symbol = s.symbol
			}
			if prev.kind == KindBlock && s.kind != KindBlock {
				prev.kind = s.kind
			}
			continue
		}
		out = append(out, s)
	}

	// A leading runt merges forward.
	if len(out) >= 2 && out[0].end-out[0].start+1 < minLines {
		out[1].start = out[0].start
		if out[1].symbol == "" {
			out[1].symbol = out[0].symbol
		}
		out = out[1:]
	}

	return out
}

// windowChunks is the fallback for unsupported languages and failed parses:
// fixed-width sliding windows with overlap so symbols at window edges land
// whole in at least one chunk.
func (c *StructuralChunker) windowChunks(file *FileInput, lines []string) []Chunk {
	if strings.TrimSpace(string(file.Content)) == "" {
		return nil
	}

	step := c.opts.WindowLines - c.opts.WindowOverlap
	var chunks []Chunk

	for i := 0; i < len(lines); i += step {
		end := i + c.opts.WindowLines
		if end > len(lines) {
			end = len(lines)
		}

		content := strings.Join(lines[i:end], "\n")
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, newChunk(file, content, KindText, "", i+1, end))
		}

		if end >= len(lines) {
			break
		}
	}

	return chunks
}

// declName extracts the declared symbol name from a declaration node.
func declName(n *Node, config *LanguageConfig, source []byte) string {
	named := n.findFirst(config.NameTypes, 3)
	if named == nil {
		return ""
	}
	return named.Content(source)
}
