package contextbuilder

import (
	"strings"
	"testing"

	"github.com/srag-go/srag/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestAssemble_HeaderWithSymbol(t *testing.T) {
	entries := []Entry{
		{Chunk: model.Chunk{Content: "fn main() {}", Symbol: "main", StartLine: 1, EndLine: 1}, FilePath: "main.rs"},
	}
	out := Assemble(entries, 1000)
	assert.Contains(t, out, "--- main.rs (main, lines 1-1) ---")
	assert.Contains(t, out, "fn main() {}")
}

func TestAssemble_HeaderWithoutSymbol(t *testing.T) {
	entries := []Entry{
		{Chunk: model.Chunk{Content: "x = 1", StartLine: 3, EndLine: 3}, FilePath: "a.py"},
	}
	out := Assemble(entries, 1000)
	assert.Contains(t, out, "--- a.py (lines 3-3) ---")
}

func TestAssemble_SuspiciousWarning(t *testing.T) {
	entries := []Entry{
		{Chunk: model.Chunk{Content: "danger", Suspicious: true, StartLine: 1, EndLine: 1}, FilePath: "a.go"},
	}
	out := Assemble(entries, 1000)
	assert.Contains(t, out, "[WARNING: This chunk was flagged by the injection scanner")
}

func TestAssemble_StopsAtTotalBudget(t *testing.T) {
	big := strings.Repeat("x", 100)
	entries := []Entry{
		{Chunk: model.Chunk{Content: big, StartLine: 1, EndLine: 1}, FilePath: "a.go"},
		{Chunk: model.Chunk{Content: big, StartLine: 2, EndLine: 2}, FilePath: "c.go"},
		{Chunk: model.Chunk{Content: big, StartLine: 3, EndLine: 3}, FilePath: "b.go"},
	}
	// Each rendered entry is 127 chars. 85*4 = 340 chars fits two entries but
	// not three, and each entry stays under its file's 40% cap (136 chars).
	out := Assemble(entries, 85)
	assert.Contains(t, out, "a.go")
	assert.NotContains(t, out, "b.go")
}

func TestAssemble_PerFileCapSkipsButContinues(t *testing.T) {
	big := strings.Repeat("y", 200)
	small := "small"
	entries := []Entry{
		{Chunk: model.Chunk{Content: big, StartLine: 1, EndLine: 1}, FilePath: "huge.go"},
		{Chunk: model.Chunk{Content: small, StartLine: 1, EndLine: 1}, FilePath: "other.go"},
	}
	// huge.go's entry alone exceeds the per-file cap (40% of budget) but
	// not the total budget, so it's skipped while other.go still packs.
	out := Assemble(entries, 100)
	assert.NotContains(t, out, big)
	assert.Contains(t, out, small)
}

func TestAssemble_EmptyEntries(t *testing.T) {
	assert.Equal(t, "", Assemble(nil, 1000))
}
