package mlclient

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWorker accepts one connection and replies to requests using handler.
func fakeWorker(t *testing.T, handler func(method string, params json.RawMessage) (json.RawMessage, *rpcError)) string {
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
			var req request
			if err := json.Unmarshal(body, &req); err != nil {
				return
			}
			result, rpcErr := handler(req.Method, req.Params)
			resp := response{JSONRPC: "2.0", ID: req.ID, Result: result, Error: rpcErr}
			payload, _ := json.Marshal(resp)
			if err := writeFramed(conn, payload); err != nil {
				return
			}
		}
	}()

	return ln.Addr().String()
}

func TestPing(t *testing.T) {
	addr := fakeWorker(t, func(method string, params json.RawMessage) (json.RawMessage, *rpcError) {
		return json.RawMessage(`{"ok":true}`), nil
	})

	client, err := Dial(addr, "")
	require.NoError(t, err)
	defer client.Close()

	ok, err := client.Ping()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEmbed(t *testing.T) {
	addr := fakeWorker(t, func(method string, params json.RawMessage) (json.RawMessage, *rpcError) {
		assert.Equal(t, "embed", method)
		return json.RawMessage(`{"vectors":[[0.1,0.2],[0.3,0.4]]}`), nil
	})

	client, err := Dial(addr, "secret-token")
	require.NoError(t, err)
	defer client.Close()

	vectors, err := client.Embed([]string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, float32(0.1), vectors[0][0])
}

func TestGenerate(t *testing.T) {
	addr := fakeWorker(t, func(method string, params json.RawMessage) (json.RawMessage, *rpcError) {
		return json.RawMessage(`{"text":"hello world"}`), nil
	})

	client, err := Dial(addr, "")
	require.NoError(t, err)
	defer client.Close()

	text, err := client.Generate("say hi", 100, 0.2)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestRerank(t *testing.T) {
	addr := fakeWorker(t, func(method string, params json.RawMessage) (json.RawMessage, *rpcError) {
		return json.RawMessage(`{"results":[[1,0.9],[0,0.4]]}`), nil
	})

	client, err := Dial(addr, "")
	require.NoError(t, err)
	defer client.Close()

	ranked, err := client.Rerank("q", []string{"doc0", "doc1"}, 2)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, 1, ranked[0].Index)
	assert.InDelta(t, 0.9, ranked[0].Score, 1e-6)
}

func TestModelStatus(t *testing.T) {
	addr := fakeWorker(t, func(method string, params json.RawMessage) (json.RawMessage, *rpcError) {
		return json.RawMessage(`{"embedder_loaded":true,"llm_loaded":false,"reranker_loaded":false}`), nil
	})

	client, err := Dial(addr, "")
	require.NoError(t, err)
	defer client.Close()

	status, err := client.ModelStatus()
	require.NoError(t, err)
	assert.True(t, status.EmbedderLoaded)
	assert.False(t, status.LLMLoaded)
}

func TestSend_RPCError(t *testing.T) {
	addr := fakeWorker(t, func(method string, params json.RawMessage) (json.RawMessage, *rpcError) {
		return nil, &rpcError{Code: -1, Message: "boom"}
	})

	client, err := Dial(addr, "")
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Ping()
	assert.Error(t, err)
}

func TestRequestIDsAreMonotonic(t *testing.T) {
	var seen []uint64
	addr := fakeWorker(t, func(method string, params json.RawMessage) (json.RawMessage, *rpcError) {
		return json.RawMessage(`{"ok":true}`), nil
	})

	client, err := Dial(addr, "")
	require.NoError(t, err)
	defer client.Close()

	_, _ = client.Ping()
	_, _ = client.Ping()
	_, _ = client.Ping()
	assert.Equal(t, uint64(3), client.nextID)
	_ = seen
}

func TestAuthTokenInjected(t *testing.T) {
	var gotAuth string
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		reader := bufio.NewReader(conn)
		body, err := readFramed(reader)
		if err != nil {
			return
		}
		var raw map[string]any
		_ = json.Unmarshal(body, &raw)
		if auth, ok := raw["_auth"].(string); ok {
			gotAuth = auth
		}
		resp := response{JSONRPC: "2.0", ID: 1, Result: json.RawMessage(`{"ok":true}`)}
		payload, _ := json.Marshal(resp)
		_ = writeFramed(conn, payload)
	}()

	client, err := Dial(ln.Addr().String(), "abc123")
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Ping()
	require.NoError(t, err)
	assert.Equal(t, "abc123", gotAuth)
}

func TestFrameLengthPrefix_BigEndian(t *testing.T) {
	payload := []byte(`{"jsonrpc":"2.0"}`)
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() { _ = writeFramed(client, payload) }()

	var lenBuf [4]byte
	_, err := readFullTest(server, lenBuf[:])
	require.NoError(t, err)
	n := binary.BigEndian.Uint32(lenBuf[:])
	assert.Equal(t, uint32(len(payload)), n)
}

func readFullTest(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
