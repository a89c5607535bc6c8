// Package mlclient implements the length-prefixed JSON-RPC 2.0 client (C7)
// used to talk to the separate ML worker process over a local TCP socket.
// Grounded on the teacher's internal/embed provider framing (a small
// interface over JSON request/response structs, no protobuf) but the wire
// protocol itself follows the original implementation's ipc/{protocol,
// client}.rs exactly: 4-byte big-endian length prefix, _auth token
// injection, a monotonic per-client request id.
package mlclient

import "encoding/json"

// maxResponseBytes rejects any response larger than this, guarding against
// a misbehaving or malicious worker flooding the client.
const maxResponseBytes = 10 * 1024 * 1024

// request is the JSON-RPC 2.0 request envelope sent to the worker.
type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      uint64          `json:"id"`
	Auth    string          `json:"_auth,omitempty"`
}

// response is the JSON-RPC 2.0 response envelope returned by the worker.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      uint64          `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func newRequest(method string, params any, id uint64, auth string) (request, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return request{}, err
	}
	return request{JSONRPC: "2.0", Method: method, Params: raw, ID: id, Auth: auth}, nil
}

// embedParams / embedResult mirror the "embed" RPC payload shapes.
type embedParams struct {
	Texts []string `json:"texts"`
}

type embedResult struct {
	Vectors [][]float32 `json:"vectors"`
}

// generateParams / generateResult mirror the "generate" RPC payload shapes.
type generateParams struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

type generateResult struct {
	Text string `json:"text"`
}

// rerankParams / rerankResult mirror the "rerank" RPC payload shapes.
type rerankParams struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopK      int      `json:"top_k"`
}

// RerankedResult is one (index, score) pair from the "rerank" RPC.
type RerankedResult struct {
	Index int
	Score float32
}

type rerankResult struct {
	Results [][2]float64 `json:"results"`
}

// ModelStatus mirrors the "model_status" RPC result.
type ModelStatus struct {
	EmbedderLoaded    bool     `json:"embedder_loaded"`
	LLMLoaded         bool     `json:"llm_loaded"`
	RerankerLoaded    bool     `json:"reranker_loaded"`
	EmbedderMemoryMB  *float64 `json:"embedder_memory_mb,omitempty"`
	LLMMemoryMB       *float64 `json:"llm_memory_mb,omitempty"`
	RerankerMemoryMB  *float64 `json:"reranker_memory_mb,omitempty"`
}
