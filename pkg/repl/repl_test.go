package repl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srag-go/srag/internal/catalog"
	"github.com/srag-go/srag/internal/config"
	"github.com/srag-go/srag/internal/mlclient"
	"github.com/srag-go/srag/internal/model"
	"github.com/srag-go/srag/internal/retriever"
	"github.com/srag-go/srag/internal/session"
)

// rpcRequest and rpcResponse mirror the length-prefixed JSON-RPC wire
// format of internal/mlclient, so startFakeWorker can stand in for the ML
// worker and Engine can be driven with a real *mlclient.Client end to end.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      uint64          `json:"id"`
	Auth    string          `json:"_auth,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	ID      uint64          `json:"id"`
}

func writeFramed(w interface{ Write([]byte) (int, error) }, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFramed(r *bufio.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := readFullBuf(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	body := make([]byte, n)
	if _, err := readFullBuf(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

func readFullBuf(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func startFakeWorker(t *testing.T, embedding []float32, answer string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		reader := bufio.NewReader(conn)

		for {
			body, err := readFramed(reader)
			if err != nil {
				return
			}
			var req rpcRequest
			if err := json.Unmarshal(body, &req); err != nil {
				return
			}

			var result json.RawMessage
			switch req.Method {
			case "embed":
				vecs, _ := json.Marshal(map[string]any{"vectors": [][]float32{embedding}})
				result = vecs
			case "generate":
				text, _ := json.Marshal(map[string]any{"text": answer})
				result = text
			case "rerank":
				res, _ := json.Marshal(map[string]any{"results": [][2]float64{{0, 1.0}}})
				result = res
			default:
				result = json.RawMessage(`{}`)
			}

			resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
			payload, _ := json.Marshal(resp)
			if err := writeFramed(conn, payload); err != nil {
				return
			}
		}
	}()

	return ln.Addr().String()
}

// seedOneChunk creates a project with one file/chunk/embedding so retrieve
// has something to find.
func seedOneChunk(t *testing.T, c *catalog.Catalog, vector []float32) (project string) {
	t.Helper()
	ctx := context.Background()

	projectID, err := c.CreateProject(ctx, "demo", "/tmp/demo")
	require.NoError(t, err)

	file := model.File{Path: "main.go", Hash: "h1", Language: "go"}
	chunks := []model.Chunk{
		{Content: "func main() {}", Symbol: "main", Kind: "function", StartLine: 1, EndLine: 1, Language: "go"},
	}
	_, chunkIDs, err := c.ReindexFile(ctx, projectID, file, chunks)
	require.NoError(t, err)

	_, err = c.InsertEmbedding(ctx, chunkIDs[0], vector)
	require.NoError(t, err)

	return "demo"
}

func newTestEngine(t *testing.T, addr string) *Engine {
	t.Helper()
	c, err := catalog.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	client, err := mlclient.Dial(addr, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return &Engine{
		Catalog:   c,
		Client:    client,
		VectorDir: t.TempDir(),
		Sessions:  session.NewManager(c),
		Query: config.QueryConfig{
			TopK:          5,
			EfSearch:      16,
			ContextTokens: 500,
			HistoryTurns:  6,
			Temperature:   0.2,
			MaxTokens:     256,
			Rerank:        false,
			BroadK:        10,
			HybridSearch:  false,
		},
	}
}

func fixedVector(lead float32) []float32 {
	v := make([]float32, EmbeddingDimension)
	v[0] = lead
	return v
}

func TestOnce_ReturnsAnswerAndSources(t *testing.T) {
	vector := fixedVector(0.5)
	addr := startFakeWorker(t, vector, "here is the answer")

	e := newTestEngine(t, addr)
	seedOneChunk(t, e.Catalog, vector)

	result, err := e.Once(context.Background(), "", "how does main work", nil)
	require.NoError(t, err)
	assert.Equal(t, "here is the answer", result.Answer)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "main.go", result.Sources[0].FilePath)
	assert.Equal(t, "main", result.Sources[0].Symbol)
}

func TestOnce_UnknownProjectFails(t *testing.T) {
	vector := fixedVector(0.5)
	addr := startFakeWorker(t, vector, "answer")

	e := newTestEngine(t, addr)
	seedOneChunk(t, e.Catalog, vector)

	_, err := e.Once(context.Background(), "nonexistent", "q", nil)
	assert.Error(t, err)
}

func TestOnce_FiltersByLanguage(t *testing.T) {
	vector := fixedVector(0.5)
	addr := startFakeWorker(t, vector, "answer")

	e := newTestEngine(t, addr)
	seedOneChunk(t, e.Catalog, vector)

	result, err := e.Once(context.Background(), "", "q", []string{"python"})
	require.NoError(t, err)
	assert.Empty(t, result.Sources)
}

func TestChat_PersistsTurnsAndPrintsSources(t *testing.T) {
	vector := fixedVector(0.5)
	addr := startFakeWorker(t, vector, "the reply")

	e := newTestEngine(t, addr)
	seedOneChunk(t, e.Catalog, vector)

	in := strings.NewReader("what does main do?\nexit\n")
	var out bytes.Buffer

	err := e.Chat(context.Background(), ChatOptions{SessionID: "sess1"}, in, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "the reply")
	assert.Contains(t, out.String(), "main.go:1-1")

	turns, err := e.Sessions.Turns(context.Background(), "sess1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, model.RoleUser, turns[0].Role)
	assert.Equal(t, "what does main do?", turns[0].Content)
	assert.Equal(t, model.RoleAssistant, turns[1].Role)
	assert.Equal(t, "the reply", turns[1].Content)
}

func TestChat_BlankLinesAreSkipped(t *testing.T) {
	vector := fixedVector(0.5)
	addr := startFakeWorker(t, vector, "reply")

	e := newTestEngine(t, addr)
	seedOneChunk(t, e.Catalog, vector)

	in := strings.NewReader("\n\nquit\n")
	var out bytes.Buffer

	err := e.Chat(context.Background(), ChatOptions{SessionID: "sess2"}, in, &out)
	require.NoError(t, err)

	turns, err := e.Sessions.Turns(context.Background(), "sess2")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestDedupSourceLines_RemovesDuplicates(t *testing.T) {
	results := []retriever.ResolvedResult{
		{FilePath: "a.go", Chunk: model.Chunk{StartLine: 1, EndLine: 2}},
		{FilePath: "a.go", Chunk: model.Chunk{StartLine: 1, EndLine: 2}},
		{FilePath: "b.go", Chunk: model.Chunk{StartLine: 3, EndLine: 4}},
	}
	lines := dedupSourceLines(results)
	assert.Equal(t, []string{"a.go:1-2", "b.go:3-4"}, lines)
}
