package chunk

import (
	"strings"

	"github.com/srag-go/srag/internal/langtag"
)

// chunkMarkdown is a heading-based chunker for Markdown: a new chunk starts
// at each ATX heading line ("#", "##", ...); content preceding the first
// heading becomes a header-less leading chunk. Falls back to the line
// chunker when the file has no headings at all.
func chunkMarkdown(text string) []Chunk {
	lines := strings.Split(text, "\n")

	var chunks []Chunk
	start := 0
	heading := ""

	flush := func(end int) {
		if end <= start {
			return
		}
		content := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(content) == "" {
			return
		}
		chunks = append(chunks, Chunk{
			Content:   content,
			Symbol:    heading,
			Kind:      KindMarkdownSection,
			StartLine: start + 1,
			EndLine:   end,
			Language:  langtag.Markdown,
		})
	}

	sawHeading := false
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if isMarkdownHeading(trimmed) {
			sawHeading = true
			flush(i)
			start = i
			heading = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
	}
	flush(len(lines))

	if !sawHeading || len(chunks) == 0 {
		return chunkLines(text, langtag.Markdown)
	}
	return chunks
}

func isMarkdownHeading(trimmed string) bool {
	if !strings.HasPrefix(trimmed, "#") {
		return false
	}
	i := 0
	for i < len(trimmed) && trimmed[i] == '#' {
		i++
	}
	if i > 6 {
		return false
	}
	return i == len(trimmed) || trimmed[i] == ' ' || trimmed[i] == '\t'
}
