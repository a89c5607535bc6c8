package chunk

import (
	"strings"

	"github.com/srag-go/srag/internal/langtag"
)

// chunkLines is the structural fallback: sliding windows of up to
// lineWindowSize lines with lineWindowOverlap overlap, skipping
// whitespace-only windows. Used for any language with no grammar, or when
// the grammar parse itself fails.
func chunkLines(text string, tag langtag.Tag) []Chunk {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		return nil
	}

	var chunks []Chunk
	step := lineWindowSize - lineWindowOverlap
	if step <= 0 {
		step = lineWindowSize
	}

	for start := 0; start < len(lines); start += step {
		end := start + lineWindowSize
		if end > len(lines) {
			end = len(lines)
		}
		window := lines[start:end]
		content := strings.Join(window, "\n")
		if strings.TrimSpace(content) == "" {
			if end == len(lines) {
				break
			}
			continue
		}
		chunks = append(chunks, Chunk{
			Content:   content,
			Kind:      KindLineWindow,
			StartLine: start + 1,
			EndLine:   end,
			Language:  tag,
		})
		if end == len(lines) {
			break
		}
	}

	return chunks
}
