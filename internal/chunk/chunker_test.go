package chunk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srag-go/srag/internal/langtag"
)

func TestChunkFile_Empty(t *testing.T) {
	chunks, err := ChunkFile(context.Background(), nil, langtag.Go)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkFile_InvalidUTF8(t *testing.T) {
	chunks, err := ChunkFile(context.Background(), []byte{0xff, 0xfe, 0x00}, langtag.Go)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkFile_WhitespaceOnly(t *testing.T) {
	chunks, err := ChunkFile(context.Background(), []byte("   \n\t\n  "), langtag.Go)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkFile_Go_Function(t *testing.T) {
	src := []byte(`package main

import "fmt"

func main() {
	fmt.Println("hi")
}
`)
	chunks, err := ChunkFile(context.Background(), src, langtag.Go)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	found := false
	for _, c := range chunks {
		if c.Symbol == "main" {
			found = true
			assert.LessOrEqual(t, c.StartLine, c.EndLine)
		}
	}
	assert.True(t, found, "expected a chunk for symbol main, got %+v", chunks)
}

func TestChunkFile_Deterministic(t *testing.T) {
	src := []byte(`package main

func helper() {}

func main() {
	helper()
}
`)
	first, err := ChunkFile(context.Background(), src, langtag.Go)
	require.NoError(t, err)
	second, err := ChunkFile(context.Background(), src, langtag.Go)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestChunkFile_Env(t *testing.T) {
	src := []byte("# comment\nFOO=bar\n\nBAZ=qux\n")
	chunks, err := ChunkFile(context.Background(), src, langtag.Env)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "FOO", chunks[0].Symbol)
	assert.Equal(t, KindEnvVar, chunks[0].Kind)
	assert.Equal(t, "BAZ", chunks[1].Symbol)
}

func TestChunkFile_Toml(t *testing.T) {
	src := []byte("title = \"example\"\n\n[package]\nname = \"foo\"\n\n[package.metadata]\nkey = \"val\"\n")
	chunks, err := ChunkFile(context.Background(), src, langtag.Toml)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "", chunks[0].Symbol)
	assert.Equal(t, "package", chunks[1].Symbol)
	assert.Equal(t, "package.metadata", chunks[2].Symbol)
}

func TestChunkFile_Yaml(t *testing.T) {
	src := []byte("---\nname: srag\nversion: 1\nsettings:\n  debug: true\n  level: 2\n")
	chunks, err := ChunkFile(context.Background(), src, langtag.Yaml)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "name", chunks[0].Symbol)
	assert.Equal(t, "version", chunks[1].Symbol)
	assert.Equal(t, "settings", chunks[2].Symbol)
}

func TestChunkFile_Json_Object(t *testing.T) {
	src := []byte(`{"name": "srag", "version": 1, "nested": {"a": 1, "b": 2}}`)
	chunks, err := ChunkFile(context.Background(), src, langtag.Json)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "name", chunks[0].Symbol)
	assert.Equal(t, "nested", chunks[2].Symbol)
}

func TestChunkFile_Json_NonObject(t *testing.T) {
	src := []byte(`[1, 2, 3]`)
	chunks, err := ChunkFile(context.Background(), src, langtag.Json)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
}

func TestChunkFile_LineFallback(t *testing.T) {
	var b []byte
	for i := 0; i < 130; i++ {
		b = append(b, []byte("line of text that is long enough\n")...)
	}
	chunks, err := ChunkFile(context.Background(), b, langtag.Tag("shellscript"))
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Equal(t, KindLineWindow, c.Kind)
	}
}

func TestChunkFile_Markdown_Headings(t *testing.T) {
	src := []byte("# Title\nintro text\n\n## Section One\nbody one\n\n## Section Two\nbody two\n")
	chunks, err := ChunkFile(context.Background(), src, langtag.Markdown)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "Title", chunks[0].Symbol)
	assert.Equal(t, "Section One", chunks[1].Symbol)
	assert.Equal(t, "Section Two", chunks[2].Symbol)
}
