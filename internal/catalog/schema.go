package catalog

const schemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	path TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_indexed_at DATETIME
);

CREATE TABLE IF NOT EXISTS files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	path TEXT NOT NULL,
	hash TEXT NOT NULL,
	language TEXT,
	size_bytes INTEGER NOT NULL DEFAULT 0,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	indexed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(project_id, path)
);
CREATE INDEX IF NOT EXISTS idx_files_project_path ON files(project_id, path);
CREATE INDEX IF NOT EXISTS idx_files_hash ON files(hash);

CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	symbol TEXT,
	kind TEXT,
	start_line INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	language TEXT,
	embedding_id INTEGER
);
CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file_id);
CREATE INDEX IF NOT EXISTS idx_chunks_symbol ON chunks(symbol);

CREATE TABLE IF NOT EXISTS embeddings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chunk_id INTEGER NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
	vector BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_embeddings_chunk ON embeddings(chunk_id);

CREATE TABLE IF NOT EXISTS definitions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	chunk_id INTEGER NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	scope TEXT,
	language TEXT,
	start_line INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	signature TEXT
);
CREATE INDEX IF NOT EXISTS idx_definitions_file ON definitions(file_id);
CREATE INDEX IF NOT EXISTS idx_definitions_name ON definitions(name);
CREATE INDEX IF NOT EXISTS idx_definitions_chunk ON definitions(chunk_id);

CREATE TABLE IF NOT EXISTS function_calls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	chunk_id INTEGER NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
	caller_name TEXT,
	caller_scope TEXT,
	callee_name TEXT NOT NULL,
	line INTEGER NOT NULL,
	language TEXT,
	callee_definition_id INTEGER REFERENCES definitions(id) ON DELETE SET NULL,
	resolved_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_calls_file ON function_calls(file_id);
CREATE INDEX IF NOT EXISTS idx_calls_callee ON function_calls(callee_name);
CREATE INDEX IF NOT EXISTS idx_calls_caller ON function_calls(caller_name);
CREATE INDEX IF NOT EXISTS idx_calls_resolved ON function_calls(callee_definition_id);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	chunk_id UNINDEXED,
	content,
	symbol,
	tokenize='unicode61'
);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	project TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	sources TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id);

CREATE TABLE IF NOT EXISTS reindex_queue (
	project TEXT NOT NULL,
	path TEXT NOT NULL,
	event TEXT NOT NULL,
	queued_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (project, path)
);
`
