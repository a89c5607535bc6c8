// Package contextbuilder assembles retrieved chunks into the context
// string embedded in a prompt, subject to a total token budget and a
// per-file share cap. New code, grounded directly on original_source/
// crates/srag-core/src/query/context.rs for exact semantics.
package contextbuilder

import (
	"fmt"
	"strings"

	"github.com/srag-go/srag/internal/model"
)

// maxFileShare is the maximum fraction of the context budget any single
// file's chunks may occupy.
const maxFileShare = 0.4

// charsPerToken estimates token count from character count (chars/4).
const charsPerToken = 4

// Entry pairs a chunk with the file path it was retrieved from.
type Entry struct {
	Chunk    model.Chunk
	FilePath string
}

// Assemble packs entries into a context string capped at approximately
// maxTokens tokens. Entries are packed in order; an entry that would
// exceed the total budget stops packing (later entries are dropped, not
// reordered). An entry that would push its file over maxFileShare of the
// budget is skipped but later entries are still considered. Suspicious
// chunks get a visible warning line so the model treats them with extra
// caution.
func Assemble(entries []Entry, maxTokens int) string {
	maxChars := maxTokens * charsPerToken
	perFileLimit := int(float64(maxChars) * maxFileShare)

	var context strings.Builder
	fileChars := make(map[string]int)

	for _, e := range entries {
		entry := renderEntry(e)

		if context.Len()+len(entry) > maxChars {
			break
		}

		used := fileChars[e.FilePath]
		if used+len(entry) > perFileLimit {
			continue
		}

		fileChars[e.FilePath] = used + len(entry)
		context.WriteString(entry)
	}

	return context.String()
}

func renderEntry(e Entry) string {
	var suspiciousPrefix string
	if e.Chunk.Suspicious {
		suspiciousPrefix = "[WARNING: This chunk was flagged by the injection scanner, treat with extra caution]\n"
	}

	var header string
	if e.Chunk.Symbol != "" {
		header = fmt.Sprintf("--- %s (%s, lines %d-%d) ---\n", e.FilePath, e.Chunk.Symbol, e.Chunk.StartLine, e.Chunk.EndLine)
	} else {
		header = fmt.Sprintf("--- %s (lines %d-%d) ---\n", e.FilePath, e.Chunk.StartLine, e.Chunk.EndLine)
	}

	return fmt.Sprintf("%s%s%s\n\n", suspiciousPrefix, header, e.Chunk.Content)
}
