package mlclient

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/srag-go/srag/internal/ratelimit"
	"github.com/srag-go/srag/internal/srerrors"
)

// connectTimeout bounds the initial TCP dial.
const connectTimeout = 10 * time.Second

// Client is a single persistent, mutex-guarded connection to the ML
// worker. Safe for concurrent use.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	reader  *bufio.Reader
	nextID  uint64
	authTok string
	limiter *ratelimit.Limiter
}

// Dial opens a TCP connection to addr (typically 127.0.0.1:<port> from the
// supervisor's port file) and wraps it as a Client. authToken may be empty
// if the worker requires no authentication. Outbound requests are gated by
// a token-bucket limiter (spec.md's rate-limited entry to the RPC tool
// surface): a caller that bursts past it fails fast rather than piling up
// requests against the single worker connection.
func Dial(addr string, authToken string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, connectTimeout)
	if err != nil {
		return nil, srerrors.IPCError("connect to ml worker", err)
	}
	return &Client{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		nextID:  0,
		authTok: authToken,
		limiter: ratelimit.New(ratelimit.DefaultConfig()),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

func (c *Client) allocateID() uint64 {
	return atomic.AddUint64(&c.nextID, 1)
}

// send writes one framed request and reads back the framed response,
// holding the connection mutex for the full round trip (spec.md §4.6:
// "single persistent socket, protected by a mutex during send/receive").
func (c *Client) send(method string, params any) (response, error) {
	if !c.limiter.Allow() {
		return response{}, srerrors.New(srerrors.IPC, "rate_limited", "ml worker call rate exceeded: "+method)
	}

	req, err := newRequest(method, params, c.allocateID(), c.authTok)
	if err != nil {
		return response{}, srerrors.IPCError("encode request", err)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return response{}, srerrors.IPCError("marshal request", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := writeFramed(c.conn, payload); err != nil {
		return response{}, srerrors.IPCError("write request", err)
	}

	body, err := readFramed(c.reader)
	if err != nil {
		return response{}, srerrors.IPCError("read response", err)
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return response{}, srerrors.IPCError("decode response", err)
	}
	return resp, nil
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
	if _, err := readFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxResponseBytes {
		return nil, fmt.Errorf("response too large: %d bytes", n)
	}
	body := make([]byte, n)
	if _, err := readFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
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

func asError(resp response) error {
	if resp.Error != nil {
		return srerrors.IPCError("ml worker error: "+resp.Error.Message, nil)
	}
	return nil
}

// Ping checks worker health.
func (c *Client) Ping() (bool, error) {
	resp, err := c.send("ping", struct{}{})
	if err != nil {
		return false, err
	}
	if err := asError(resp); err != nil {
		return false, err
	}
	return resp.Result != nil, nil
}

// Embed requests embedding vectors for texts, one per input, each of the
// model's fixed dimension.
func (c *Client) Embed(texts []string) ([][]float32, error) {
	resp, err := c.send("embed", embedParams{Texts: texts})
	if err != nil {
		return nil, err
	}
	if err := asError(resp); err != nil {
		return nil, err
	}
	var result embedResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, srerrors.IPCError("decode embed result", err)
	}
	return result.Vectors, nil
}

// Generate requests an LLM completion for prompt.
func (c *Client) Generate(prompt string, maxTokens int, temperature float32) (string, error) {
	resp, err := c.send("generate", generateParams{Prompt: prompt, MaxTokens: maxTokens, Temperature: temperature})
	if err != nil {
		return "", err
	}
	if err := asError(resp); err != nil {
		return "", err
	}
	var result generateResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return "", srerrors.IPCError("decode generate result", err)
	}
	return result.Text, nil
}

// Rerank requests a relevance reranking of documents against query, capped
// at topK results, sorted by score descending.
func (c *Client) Rerank(query string, documents []string, topK int) ([]RerankedResult, error) {
	resp, err := c.send("rerank", rerankParams{Query: query, Documents: documents, TopK: topK})
	if err != nil {
		return nil, err
	}
	if err := asError(resp); err != nil {
		return nil, err
	}
	var result rerankResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, srerrors.IPCError("decode rerank result", err)
	}
	ranked := make([]RerankedResult, 0, len(result.Results))
	for _, pair := range result.Results {
		ranked = append(ranked, RerankedResult{Index: int(pair[0]), Score: float32(pair[1])})
	}
	return ranked, nil
}

// ModelStatus reports which of the embedder/LLM/reranker are loaded.
func (c *Client) ModelStatus() (ModelStatus, error) {
	resp, err := c.send("model_status", struct{}{})
	if err != nil {
		return ModelStatus{}, err
	}
	if err := asError(resp); err != nil {
		return ModelStatus{}, err
	}
	var status ModelStatus
	if err := json.Unmarshal(resp.Result, &status); err != nil {
		return ModelStatus{}, srerrors.IPCError("decode model status", err)
	}
	return status, nil
}

// Shutdown asks the worker to stop. Best-effort: the response, if any, is
// discarded, and a transport error is not treated as a failure since the
// worker may close the connection before replying.
func (c *Client) Shutdown() {
	_, _ = c.send("shutdown", struct{}{})
}
