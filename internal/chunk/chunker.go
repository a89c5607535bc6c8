package chunk

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/srag-go/srag/internal/langtag"
	"github.com/srag-go/srag/internal/srerrors"
)

// ChunkFile decomposes raw file bytes into an ordered sequence of chunks.
// It returns an empty slice (never an error) for invalid UTF-8 or
// whitespace-only input, matching spec.md §4.1's guarantee that the
// pipeline never produces zero chunks for non-empty, non-binary text —
// while still returning zero chunks for genuinely empty input.
func ChunkFile(ctx context.Context, data []byte, tag langtag.Tag) ([]Chunk, error) {
	if len(data) == 0 {
		return []Chunk{}, nil
	}
	if !utf8.Valid(data) {
		return []Chunk{}, nil
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return []Chunk{}, nil
	}

	switch tag {
	case langtag.Env:
		return chunkEnv(text), nil
	case langtag.Toml:
		return chunkToml(text), nil
	case langtag.Yaml:
		return chunkYaml(text), nil
	case langtag.Json:
		return chunkJSON(text), nil
	case langtag.Markdown:
		return chunkMarkdown(text), nil
	}

	if langtag.HasSyntaxTree(tag) {
		chunks, err := chunkSyntaxTree(ctx, data, tag)
		if err != nil {
			slog.Warn("chunk_syntax_tree_failed",
				slog.String("language", tag.String()),
				slog.String("error", err.Error()))
			return chunkLines(text, tag), nil
		}
		if len(chunks) == 0 {
			return chunkLines(text, tag), nil
		}
		return chunks, nil
	}

	return chunkLines(text, tag), nil
}

// ErrChunking wraps a chunking failure as a srerrors.Chunking-kind error,
// for callers (the indexer) that need to distinguish it from other failure
// kinds even though ChunkFile itself never returns an error.
func ErrChunking(cause error) error {
	return srerrors.ChunkingError("chunking failed", cause)
}
