// Package chunk implements the language-aware chunker (C3): decomposing raw
// file bytes into ordered, symbol-scoped chunks. Syntax-tree-backed
// languages are parsed with tree-sitter; structured config formats use a
// hand-rolled structural scan; everything else falls back to a sliding
// line window. See ChunkFile for the single entry point.
package chunk

import "github.com/srag-go/srag/internal/langtag"

// Chunk is one ordered span of source text produced by ChunkFile.
type Chunk struct {
	Content    string
	Symbol     string
	Kind       string
	StartLine  int // 1-indexed, inclusive
	EndLine    int // 1-indexed, inclusive
	Language   langtag.Tag
}

// Kind vocabulary for chunks produced by the config-format chunkers and the
// line-window fallback (the syntax-tree chunker uses the call-graph
// DefinitionKind vocabulary instead: function/method/class/...).
const (
	KindEnvVar      = "env_var"
	KindTomlSection = "toml_section"
	KindYamlKey     = "yaml_key"
	KindJsonKey     = "json_key"
	KindLineWindow  = "line_window"
	KindMarkdownSection = "markdown_section"
)

// minExtractedChunkLen is the minimum content length (in bytes) for a
// syntax-tree-extracted chunk; shorter candidates are discarded per
// spec.md §4.1.
const minExtractedChunkLen = 50

// maxSymbolSearchDepth bounds the recursive descent used to find a node's
// first identifier-like child when naming a chunk's symbol.
const maxSymbolSearchDepth = 10

// lineWindowSize and lineWindowOverlap configure the fallback line chunker.
const (
	lineWindowSize    = 60
	lineWindowOverlap = 5
)
