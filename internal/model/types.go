// Package model holds the value types shared across the indexing and
// retrieval pipeline: projects, files, chunks, embeddings, definitions,
// function calls, and chat sessions. Nothing in this package touches the
// catalog, the vector index, or any I/O — it is pure data.
package model

import "time"

// Project is a named, indexed root directory of source files.
type Project struct {
	ID             int64
	Name           string
	Path           string
	CreatedAt      time.Time
	LastIndexedAt  time.Time
}

// File is a single source file tracked under a project.
type File struct {
	ID         int64
	ProjectID  int64
	Path       string
	Hash       string // hex-encoded 32-byte content digest
	Language   string
	SizeBytes  int64
	ChunkCount int
	IndexedAt  time.Time
}

// Chunk is a contiguous, symbol-scoped span of source text.
type Chunk struct {
	ID          int64
	FileID      int64
	Content     string
	Symbol      string // optional
	Kind        string // optional: function/method/class/... or env_var/toml_section/yaml_key/json_key/line_window
	StartLine   int    // 1-indexed, inclusive
	EndLine     int    // 1-indexed, inclusive
	Language    string
	Suspicious  bool
	EmbeddingID int64 // 0 means null
}

// Embedding dimension for the default model.
const DefaultEmbeddingDim = 384

// Embedding is a fixed-dimension float vector for one chunk.
type Embedding struct {
	ID      int64
	ChunkID int64
	Vector  []float32
}

// DefinitionKind enumerates the vocabulary used by the call-graph extractor.
type DefinitionKind string

const (
	KindFunction    DefinitionKind = "function"
	KindMethod      DefinitionKind = "method"
	KindClass       DefinitionKind = "class"
	KindStruct      DefinitionKind = "struct"
	KindEnum        DefinitionKind = "enum"
	KindTrait       DefinitionKind = "trait"
	KindModule      DefinitionKind = "module"
	KindInterface   DefinitionKind = "interface"
	KindConstructor DefinitionKind = "constructor"
)

// Definition is a named symbol definition mined from a syntax tree.
type Definition struct {
	ID        int64
	FileID    int64
	ChunkID   int64
	Name      string
	Kind      DefinitionKind
	Scope     string // optional: enclosing class/impl/module
	Language  string
	StartLine int
	EndLine   int
	Signature string // optional, trimmed to <200 chars
}

// FunctionCall is a call-site edge, possibly resolved to a Definition.
type FunctionCall struct {
	ID                  int64
	FileID              int64
	ChunkID             int64
	CallerName          string // optional
	CallerScope         string // optional
	CalleeName          string
	Line                int
	Language            string
	CalleeDefinitionID  int64 // 0 means unresolved
	ResolvedAt          time.Time
}

// SessionRole is the role of a chat turn.
type SessionRole string

const (
	RoleUser      SessionRole = "user"
	RoleAssistant SessionRole = "assistant"
	RoleSystem    SessionRole = "system"
)

// Session is a chat session, optionally scoped to a project.
type Session struct {
	ID        string
	Project   string // optional label
	CreatedAt time.Time
}

// Turn is a single message within a Session.
type Turn struct {
	ID        int64
	SessionID string
	Role      SessionRole
	Content   string
	Sources   string // optional, serialized
	CreatedAt time.Time
}

// ReindexEvent is the kind of filesystem change that queued a reindex.
type ReindexEvent string

const (
	EventModify ReindexEvent = "modify"
	EventDelete ReindexEvent = "delete"
)

// ReindexQueueItem is a pending per-file reindex request.
type ReindexQueueItem struct {
	Project  string
	Path     string
	Event    ReindexEvent
	QueuedAt time.Time
}
