package chunk

import (
	"strings"

	"github.com/srag-go/srag/internal/langtag"
)

// chunkEnv implements the Env chunker: one chunk per non-comment,
// non-blank assignment line, symbol = the key left of the first '='.
func chunkEnv(text string) []Chunk {
	var chunks []Chunk
	lines := splitLinesKeepCount(text)
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		eq := strings.Index(trimmed, "=")
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(trimmed[:eq])
		chunks = append(chunks, Chunk{
			Content:   line,
			Symbol:    key,
			Kind:      KindEnvVar,
			StartLine: i + 1,
			EndLine:   i + 1,
			Language:  langtag.Env,
		})
	}
	return chunks
}

// chunkToml implements the Toml chunker: section-based, a section starts at
// a `[...]` line (including dotted forms) and ends before the next header.
func chunkToml(text string) []Chunk {
	lines := splitLinesKeepCount(text)
	var chunks []Chunk

	sectionStart := -1
	sectionName := ""
	flush := func(endLine int) {
		if sectionStart < 0 {
			return
		}
		content := strings.Join(lines[sectionStart:endLine], "\n")
		if strings.TrimSpace(content) == "" {
			return
		}
		chunks = append(chunks, Chunk{
			Content:   content,
			Symbol:    sectionName,
			Kind:      KindTomlSection,
			StartLine: sectionStart + 1,
			EndLine:   endLine,
			Language:  langtag.Toml,
		})
	}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isTomlHeader(trimmed) {
			flush(i)
			sectionStart = i
			sectionName = strings.Trim(trimmed, "[] ")
			continue
		}
		if sectionStart < 0 {
			sectionStart = 0
			sectionName = ""
		}
	}
	flush(len(lines))

	return chunks
}

func isTomlHeader(trimmed string) bool {
	return strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")
}

// chunkYaml implements the Yaml chunker: a new block starts at a line
// beginning at column 0 that is not a comment and not a document marker.
func chunkYaml(text string) []Chunk {
	lines := splitLinesKeepCount(text)
	var chunks []Chunk

	blockStart := -1
	blockKey := ""
	flush := func(endLine int) {
		if blockStart < 0 {
			return
		}
		content := strings.Join(lines[blockStart:endLine], "\n")
		if strings.TrimSpace(content) == "" {
			return
		}
		chunks = append(chunks, Chunk{
			Content:   content,
			Symbol:    blockKey,
			Kind:      KindYamlKey,
			StartLine: blockStart + 1,
			EndLine:   endLine,
			Language:  langtag.Yaml,
		})
	}

	for i, line := range lines {
		if len(line) == 0 {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if trimmed == "---" || trimmed == "..." {
			continue
		}
		flush(i)
		blockStart = i
		if colon := strings.Index(trimmed, ":"); colon >= 0 {
			blockKey = strings.TrimSpace(trimmed[:colon])
		} else {
			blockKey = trimmed
		}
	}
	flush(len(lines))

	return chunks
}

// chunkJSON implements the Json chunker: a structural scan of the root
// object's top-level key/value pairs, tracking escape state in strings and
// bracket depth outside strings. One chunk per top-level key. If the root
// is not an object, emit a single chunk covering the file.
func chunkJSON(text string) []Chunk {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return []Chunk{{
			Content:   text,
			Kind:      KindJsonKey,
			StartLine: 1,
			EndLine:   countLines(text),
			Language:  langtag.Json,
		}}
	}

	rootStart := strings.Index(text, "{")
	pos := skipWhitespace(text, rootStart+1)

	var chunks []Chunk
	for pos < len(text) && text[pos] != '}' {
		if text[pos] != '"' {
			// Malformed JSON for our purposes; bail out to the whole-file chunk.
			return []Chunk{{
				Content:   text,
				Kind:      KindJsonKey,
				StartLine: 1,
				EndLine:   countLines(text),
				Language:  langtag.Json,
			}}
		}
		keyStart := pos
		keyEnd := findStringEnd(text, keyStart)
		key := text[keyStart+1 : keyEnd]

		pos = skipWhitespace(text, keyEnd+1)
		if pos >= len(text) || text[pos] != ':' {
			break
		}
		pos = skipWhitespace(text, pos+1)

		valueStart := pos
		valueEnd := scanJSONValueEnd(text, pos)

		startLine := 1 + strings.Count(text[:keyStart], "\n")
		endLine := 1 + strings.Count(text[:valueEnd], "\n")
		chunks = append(chunks, Chunk{
			Content:   `"` + key + `": ` + strings.TrimSpace(text[valueStart:valueEnd]),
			Symbol:    key,
			Kind:      KindJsonKey,
			StartLine: startLine,
			EndLine:   endLine,
			Language:  langtag.Json,
		})

		pos = skipWhitespace(text, valueEnd)
		if pos < len(text) && text[pos] == ',' {
			pos = skipWhitespace(text, pos+1)
		}
	}

	if len(chunks) == 0 {
		return []Chunk{{
			Content:   text,
			Kind:      KindJsonKey,
			StartLine: 1,
			EndLine:   countLines(text),
			Language:  langtag.Json,
		}}
	}
	return chunks
}

func skipWhitespace(text string, i int) int {
	for i < len(text) {
		switch text[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}

// scanJSONValueEnd returns the index just past the JSON value starting at
// start, stopping at the first top-level comma or closing brace.
func scanJSONValueEnd(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	i := start
	for ; i < len(text); i++ {
		ch := text[i]
		if inString {
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			if depth == 0 {
				return i
			}
			depth--
		case ',':
			if depth == 0 {
				return i
			}
		}
	}
	return i
}

// findStringEnd returns the index of the closing quote for a JSON string
// that starts at openIdx (which must point at the opening '"').
func findStringEnd(text string, openIdx int) int {
	escaped := false
	for i := openIdx + 1; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '"' {
			return i
		}
	}
	return len(text) - 1
}

func splitLinesKeepCount(text string) []string {
	return strings.Split(text, "\n")
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(text, "\n") + 1
}
