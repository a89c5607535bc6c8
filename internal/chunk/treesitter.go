package chunk

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/srag-go/srag/internal/langtag"
	"github.com/srag-go/srag/internal/tsgrammar"
)

// chunkSyntaxTree implements the syntax-tree-supported branch of spec.md
// §4.1: parse with the language's grammar, collect extractable nodes in
// source order, and emit a chunk per node whose content clears the 50-char
// minimum. If nothing qualifies, fall back to one chunk per direct child of
// the root (same minimum).
func chunkSyntaxTree(ctx context.Context, src []byte, tag langtag.Tag) ([]Chunk, error) {
	grammar, ok := tsgrammar.For(tag)
	if !ok {
		return nil, errUnsupportedLanguage(tag)
	}

	tree, err := tsgrammar.Parse(ctx, src, tag)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()

	var chunks []Chunk
	walkExtractable(root, src, grammar, tag, &chunks)

	if len(chunks) == 0 {
		for i := 0; i < int(root.ChildCount()); i++ {
			child := root.Child(i)
			if child == nil {
				continue
			}
			c, ok := makeChunk(child, src, grammar, tag)
			if ok {
				chunks = append(chunks, c)
			}
		}
	}

	return chunks, nil
}

// walkExtractable visits n and its descendants in document order, emitting
// a chunk for every node whose type is in the grammar's extractable set.
// Descent continues into a matched node's children so nested definitions
// (e.g. a method inside a class) also produce their own chunks.
func walkExtractable(n *sitter.Node, src []byte, grammar tsgrammar.Grammar, tag langtag.Tag, out *[]Chunk) {
	if n == nil {
		return
	}
	if grammar.Extractable[n.Type()] {
		if c, ok := makeChunk(n, src, grammar, tag); ok {
			*out = append(*out, c)
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walkExtractable(n.Child(i), src, grammar, tag, out)
	}
}

func makeChunk(n *sitter.Node, src []byte, grammar tsgrammar.Grammar, tag langtag.Tag) (Chunk, bool) {
	start, end := n.StartByte(), n.EndByte()
	if end > uint32(len(src)) || start >= end {
		return Chunk{}, false
	}
	content := string(src[start:end])
	if len(content) < minExtractedChunkLen {
		return Chunk{}, false
	}

	symbol := findSymbol(n, src, grammar, 0)
	kind := grammar.DefinitionKindOf[n.Type()]
	if kind == "" {
		kind = n.Type()
	}

	return Chunk{
		Content:   content,
		Symbol:    symbol,
		Kind:      kind,
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
		Language:  tag,
	}, true
}

// findSymbol performs a bounded recursive descent (max depth
// maxSymbolSearchDepth) looking for the first identifier-like child, in
// document order.
func findSymbol(n *sitter.Node, src []byte, grammar tsgrammar.Grammar, depth int) string {
	if n == nil || depth > maxSymbolSearchDepth {
		return ""
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		if grammar.IdentifierLike[child.Type()] {
			return string(src[child.StartByte():child.EndByte()])
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if sym := findSymbol(n.Child(i), src, grammar, depth+1); sym != "" {
			return sym
		}
	}
	return ""
}

type unsupportedLanguageError struct{ tag langtag.Tag }

func (e unsupportedLanguageError) Error() string {
	return "chunk: unsupported language: " + string(e.tag)
}

func errUnsupportedLanguage(tag langtag.Tag) error {
	return unsupportedLanguageError{tag: tag}
}
