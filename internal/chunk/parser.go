package chunk

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Parser wraps tree-sitter for structural parsing.
type Parser struct {
	parser   *sitter.Parser
	registry *LanguageRegistry
}

// NewParser creates a parser backed by the given registry.
func NewParser(registry *LanguageRegistry) *Parser {
	return &Parser{
		parser:   sitter.NewParser(),
		registry: registry,
	}
}

// Parse parses source and returns the syntax tree, or an error when the
// language has no parser or the parse fails.
func (p *Parser) Parse(ctx context.Context, source []byte, language string) (*Tree, error) {
	tsLang, ok := p.registry.TreeSitterLanguage(language)
	if !ok {
		return nil, fmt.Errorf("no parser for language %q", language)
	}

	p.parser.SetLanguage(tsLang)

	tsTree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if tsTree == nil {
		return nil, fmt.Errorf("parse: nil tree")
	}

	return &Tree{
		Root:   convertNode(tsTree.RootNode()),
		Source: source,
	}, nil
}

// Close releases parser resources.
func (p *Parser) Close() {
	if p.parser != nil {
		p.parser.Close()
	}
}

// Tree is a parsed syntax tree detached from tree-sitter's C memory.
type Tree struct {
	Root   *Node
	Source []byte
}

// Node is one syntax-tree node.
type Node struct {
	Type      string
	StartByte uint32
	EndByte   uint32
	StartRow  uint32 // 0-indexed
	EndRow    uint32 // 0-indexed
	Children  []*Node
	HasError  bool
}

// convertNode copies a tree-sitter node into our owned representation.
func convertNode(tsNode *sitter.Node) *Node {
	if tsNode == nil {
		return nil
	}

	node := &Node{
		Type:      tsNode.Type(),
		StartByte: tsNode.StartByte(),
		EndByte:   tsNode.EndByte(),
		StartRow:  tsNode.StartPoint().Row,
		EndRow:    tsNode.EndPoint().Row,
		HasError:  tsNode.HasError(),
		Children:  make([]*Node, 0, int(tsNode.ChildCount())),
	}

	for i := uint32(0); i < tsNode.ChildCount(); i++ {
		if child := tsNode.Child(int(i)); child != nil {
			node.Children = append(node.Children, convertNode(child))
		}
	}

	return node
}

// Content returns the source slice this node spans.
func (n *Node) Content(source []byte) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// findFirst returns the shallowest descendant whose type is in types,
// searching breadth-first within maxDepth levels. Breadth-first matters:
// a method's name identifier sits one level down while its receiver's
// identifier sits two levels down.
func (n *Node) findFirst(types map[string]struct{}, maxDepth int) *Node {
	frontier := n.Children
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []*Node
		for _, node := range frontier {
			if _, ok := types[node.Type]; ok {
				return node
			}
			next = append(next, node.Children...)
		}
		frontier = next
	}
	return nil
}
