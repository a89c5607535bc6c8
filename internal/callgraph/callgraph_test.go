package callgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srag-go/srag/internal/langtag"
)

func TestExtract_GoFunctionAndCall(t *testing.T) {
	src := `package main

func main() {
	helper()
}

func helper() {
	println("hi")
}
`
	result, err := Extract(context.Background(), src, langtag.Go, 1, 1)
	require.NoError(t, err)

	var names []string
	for _, d := range result.Definitions {
		names = append(names, d.Name)
	}
	assert.Contains(t, names, "main")
	assert.Contains(t, names, "helper")

	found := false
	for _, c := range result.Calls {
		if c.CalleeName == "helper" && c.CallerName == "main" {
			found = true
		}
	}
	assert.True(t, found, "expected a call edge main -> helper, got %+v", result.Calls)
}

func TestExtract_UnsupportedLanguageIsEmpty(t *testing.T) {
	result, err := Extract(context.Background(), "FOO=bar", langtag.Env, 1, 1)
	require.NoError(t, err)
	assert.Empty(t, result.Definitions)
	assert.Empty(t, result.Calls)
}
