// Package indexer implements the per-project indexing pipeline (C11):
// directory discovery, per-file chunk/scan/catalog-upsert, batched
// embedding, and vector-index population. Pipeline shape (per-file loop,
// progress reporting, batched flush) is grounded on the teacher's
// internal/index coordinator + pkg/indexer packages; per-file steps and
// throttling follow spec.md §4.12 exactly.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/srag-go/srag/internal/callgraph"
	"github.com/srag-go/srag/internal/chunk"
	"github.com/srag-go/srag/internal/gitignore"
	"github.com/srag-go/srag/internal/langtag"
	"github.com/srag-go/srag/internal/model"
	"github.com/srag-go/srag/internal/scanner"
	"github.com/srag-go/srag/internal/srerrors"
	"github.com/srag-go/srag/internal/vectorindex"
)

// embedSubBatchSize is the maximum number of texts sent to the ML worker
// in a single embed call.
const embedSubBatchSize = 64

// loadAvgResampleInterval is how often (in files) the indexer rereads
// system load to adjust its per-file throttle sleep.
const loadAvgResampleInterval = 20

// Catalog is the subset of *catalog.Catalog the indexer depends on.
type Catalog interface {
	GetProjectByName(ctx context.Context, name string) (model.Project, error)
	CreateProject(ctx context.Context, name, path string) (int64, error)
	FileHash(ctx context.Context, projectID int64, path string) (string, bool, error)
	ReindexFile(ctx context.Context, projectID int64, file model.File, chunks []model.Chunk) (int64, []int64, error)
	InsertEmbedding(ctx context.Context, chunkID int64, vector []float32) (int64, error)
	InsertDefinitions(ctx context.Context, defs []model.Definition) error
	InsertCalls(ctx context.Context, calls []model.FunctionCall) error
	ResolveCallsForProject(ctx context.Context, projectID int64) (int, error)
	ClearProjectFiles(ctx context.Context, projectID int64) error
	UpdateLastIndexedAt(ctx context.Context, projectID int64, at time.Time) error
	DeleteFile(ctx context.Context, projectID int64, path string) error
}

// Embedder is the subset of *mlclient.Client the indexer depends on.
type Embedder interface {
	Embed(texts []string) ([][]float32, error)
}

// VectorIndex is the subset of *vectorindex.VectorIndex the indexer
// depends on.
type VectorIndex interface {
	Insert(id int64, vector []float32) error
	Save(dir string) error
}

// ProgressFunc is called once per discovered file with its position in the
// walk, mirroring the teacher's progress-callback interface pattern.
type ProgressFunc func(project string, current, total int, path string)

// LoadAverage returns the current 1-minute system load average. Swappable
// for tests; production callers use readLoadAverage, which reads
// /proc/loadavg.
type LoadAverage func() (float64, error)

// Options configures one Index call.
type Options struct {
	Name             string
	Force            bool
	DryRun           bool
	MaxFileSizeBytes int64
	BatchSize        int
	ThrottleMs       int
	IgnorePatterns   []string
	Progress         ProgressFunc
	LoadAvg          LoadAverage
}

// Stats summarizes the outcome of one Index call.
type Stats struct {
	Indexed int
	Skipped int
	Errored int
}

// Indexer wires the catalog, ML embedder, and vector index together for
// the index(path, ...) operation.
type Indexer struct {
	catalog Catalog
	embed   Embedder
	vector  VectorIndex
	dataDir string
}

// New builds an Indexer over the given collaborators. dataDir is the root
// under which the project's vector index is saved.
func New(catalog Catalog, embed Embedder, vector VectorIndex, dataDir string) *Indexer {
	return &Indexer{catalog: catalog, embed: embed, vector: vector, dataDir: dataDir}
}

type pendingEmbedding struct {
	chunkID      int64
	enrichedText string
}

// Index walks path, ensures a project exists for it (creating one named
// after the directory if opts.Name is empty), and runs the per-file
// pipeline over every discovered, non-ignored file.
func (ix *Indexer) Index(ctx context.Context, path string, opts Options) (Stats, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Stats{}, srerrors.IOError("canonicalize path", err)
	}

	name := opts.Name
	if name == "" {
		name = filepath.Base(absPath)
	}

	project, err := ix.catalog.GetProjectByName(ctx, name)
	var projectID int64
	if err != nil {
		projectID, err = ix.catalog.CreateProject(ctx, name, absPath)
		if err != nil {
			return Stats{}, err
		}
	} else {
		projectID = project.ID
	}

	if opts.Force && !opts.DryRun {
		if err := ix.catalog.ClearProjectFiles(ctx, projectID); err != nil {
			return Stats{}, err
		}
	}

	files, err := discoverFiles(absPath, opts.IgnorePatterns)
	if err != nil {
		return Stats{}, srerrors.IOError("discover files", err)
	}

	stats := Stats{}
	var pending []pendingEmbedding
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 256
	}
	loadAvg := opts.LoadAvg
	if loadAvg == nil {
		loadAvg = readLoadAverage
	}
	throttle := time.Duration(opts.ThrottleMs) * time.Millisecond

	for i, relPath := range files {
		if opts.Progress != nil {
			opts.Progress(name, i+1, len(files), relPath)
		}

		outcome, err := ix.indexOneFile(ctx, projectID, absPath, relPath, opts)
		switch {
		case err != nil:
			slog.Warn("index_file_failed", slog.String("path", relPath), slog.String("error", err.Error()))
			stats.Errored++
		case outcome.skipped:
			stats.Skipped++
		default:
			stats.Indexed++
			pending = append(pending, outcome.pending...)
		}

		if len(pending) >= batchSize && !opts.DryRun {
			if err := ix.flushEmbeddings(ctx, pending); err != nil {
				slog.Warn("flush_embeddings_failed", slog.String("error", err.Error()))
			}
			pending = nil
		}

		if i > 0 && i%loadAvgResampleInterval == 0 {
			throttle = adjustThrottle(time.Duration(opts.ThrottleMs)*time.Millisecond, loadAvg)
		}
		if throttle > 0 {
			time.Sleep(throttle)
		}
	}

	if opts.DryRun {
		return stats, nil
	}

	if err := ix.flushEmbeddings(ctx, pending); err != nil {
		slog.Warn("flush_embeddings_failed", slog.String("error", err.Error()))
	}

	if _, err := ix.catalog.ResolveCallsForProject(ctx, projectID); err != nil {
		slog.Warn("resolve_calls_failed", slog.String("error", err.Error()))
	}

	if ix.vector != nil {
		if err := ix.vector.Save(ix.dataDir); err != nil {
			slog.Warn("save_vector_index_failed", slog.String("error", err.Error()))
		}
		vectorindex.InvalidateCache()
	}

	if err := ix.catalog.UpdateLastIndexedAt(ctx, projectID, time.Now()); err != nil {
		return stats, err
	}

	return stats, nil
}

// IndexOnePath runs the single-file reindex pipeline (spec.md §4.12 steps
// 2-7, no discovery) for one path already known to exist, flushing its
// embeddings immediately since there is no batch to accumulate across.
// Used by the watcher after a modify event.
func (ix *Indexer) IndexOnePath(ctx context.Context, projectID int64, rootPath, relPath string, opts Options) error {
	outcome, err := ix.indexOneFile(ctx, projectID, rootPath, relPath, opts)
	if err != nil {
		return err
	}
	return ix.flushEmbeddings(ctx, outcome.pending)
}

// RemovePath deletes a path's file, chunks, embeddings, and FTS rows from
// the catalog. Used by the watcher after a delete event. Does not touch
// the vector index or its cache: stale HNSW graph nodes for the deleted
// chunks' embeddings are harmless dangling entries that a query's fused
// result can still surface transiently until the next full reindex rebuilds
// the graph, a documented limitation rather than a correctness bug, since
// the catalog (not the graph) is the source of truth a result is resolved
// against.
func (ix *Indexer) RemovePath(ctx context.Context, projectID int64, relPath string) error {
	return ix.catalog.DeleteFile(ctx, projectID, relPath)
}

type fileOutcome struct {
	skipped bool
	pending []pendingEmbedding
}

// indexOneFile runs steps 2-7 of spec.md §4.12 for a single discovered
// file: read, hash-skip, classify, chunk, scan, transactional upsert.
func (ix *Indexer) indexOneFile(ctx context.Context, projectID int64, rootPath, relPath string, opts Options) (fileOutcome, error) {
	absPath := filepath.Join(rootPath, relPath)

	data, err := os.ReadFile(absPath)
	if err != nil {
		return fileOutcome{}, srerrors.IOError("read file", err)
	}

	maxSize := opts.MaxFileSizeBytes
	if maxSize > 0 && int64(len(data)) > maxSize {
		return fileOutcome{skipped: true}, nil
	}

	hash := contentHash(data)
	if !opts.Force {
		existing, ok, err := ix.catalog.FileHash(ctx, projectID, relPath)
		if err != nil {
			return fileOutcome{}, err
		}
		if ok && existing == hash {
			return fileOutcome{skipped: true}, nil
		}
	}

	tag := langtag.Classify(relPath)

	chunks, err := chunk.ChunkFile(ctx, data, tag)
	if err != nil {
		slog.Warn("chunk_failed_falling_back_to_lines", slog.String("path", relPath), slog.String("error", err.Error()))
		chunks = nil
	}

	if opts.DryRun {
		return fileOutcome{}, nil
	}

	modelChunks := make([]model.Chunk, len(chunks))
	enrichedTexts := make([]string, len(chunks))
	for i, c := range chunks {
		result := scanner.ScanWithConfidence(c.Content)
		modelChunks[i] = model.Chunk{
			Content:    c.Content,
			Symbol:     c.Symbol,
			Kind:       c.Kind,
			StartLine:  c.StartLine,
			EndLine:    c.EndLine,
			Language:   string(c.Language),
			Suspicious: result.Suspicious,
		}
		enrichedTexts[i] = enrichText(relPath, c)
	}

	file := model.File{
		Path:      relPath,
		Hash:      hash,
		Language:  string(tag),
		SizeBytes: int64(len(data)),
	}

	fileID, chunkIDs, err := ix.catalog.ReindexFile(ctx, projectID, file, modelChunks)
	if err != nil {
		return fileOutcome{}, err
	}

	if langtag.HasSyntaxTree(tag) {
		ix.extractCallGraph(ctx, chunks, chunkIDs, fileID, tag)
	}

	pending := make([]pendingEmbedding, 0, len(chunkIDs))
	for i, id := range chunkIDs {
		pending = append(pending, pendingEmbedding{chunkID: id, enrichedText: enrichedTexts[i]})
	}
	return fileOutcome{pending: pending}, nil
}

// extractCallGraph mines definitions and calls per chunk and stores them.
// Best-effort: a failure here does not fail the file's indexing, since
// call-graph data is supplementary to search.
func (ix *Indexer) extractCallGraph(ctx context.Context, chunks []chunk.Chunk, chunkIDs []int64, fileID int64, tag langtag.Tag) {
	for i, c := range chunks {
		if i >= len(chunkIDs) {
			break
		}
		result, err := callgraph.Extract(ctx, c.Content, tag, fileID, chunkIDs[i])
		if err != nil {
			continue
		}
		if len(result.Definitions) > 0 {
			if err := ix.catalog.InsertDefinitions(ctx, result.Definitions); err != nil {
				slog.Warn("insert_definitions_failed", slog.String("error", err.Error()))
			}
		}
		if len(result.Calls) > 0 {
			if err := ix.catalog.InsertCalls(ctx, result.Calls); err != nil {
				slog.Warn("insert_calls_failed", slog.String("error", err.Error()))
			}
		}
	}
}

// flushEmbeddings sends pending chunks to the ML worker in sub-batches of
// at most embedSubBatchSize, inserting an embedding row and a vector-index
// point for each returned vector.
func (ix *Indexer) flushEmbeddings(ctx context.Context, pending []pendingEmbedding) error {
	for start := 0; start < len(pending); start += embedSubBatchSize {
		end := start + embedSubBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		sub := pending[start:end]

		texts := make([]string, len(sub))
		for i, p := range sub {
			texts[i] = p.enrichedText
		}

		vectors, err := ix.embed.Embed(texts)
		if err != nil {
			return srerrors.IPCError("embed batch", err)
		}

		for i, vector := range vectors {
			if i >= len(sub) {
				break
			}
			embeddingID, err := ix.catalog.InsertEmbedding(ctx, sub[i].chunkID, vector)
			if err != nil {
				return err
			}
			if ix.vector != nil {
				if err := ix.vector.Insert(embeddingID, vector); err != nil {
					slog.Warn("vector_insert_failed", slog.Int64("embedding_id", embeddingID), slog.String("error", err.Error()))
				}
			}
		}
	}
	return nil
}

// enrichText builds the header-plus-content string embedded before each
// chunk's text for embedding, per spec.md §4.12 step 6. Header lines whose
// field is absent are omitted.
func enrichText(path string, c chunk.Chunk) string {
	var b []byte
	b = append(b, "File: "+path+"\n"...)
	if c.Kind != "" && c.Symbol != "" {
		b = append(b, c.Kind+": "+c.Symbol+"\n"...)
	}
	if c.Language != "" {
		b = append(b, "Language: "+string(c.Language)+"\n"...)
	}
	b = append(b, "\n"...)
	b = append(b, c.Content...)
	return string(b)
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// discoverFiles walks root, returning slash-separated paths relative to
// root for every non-ignored, non-binary, regular file. Entries matching
// ignorePatterns are pruned; hidden files and directories are not treated
// specially, and no .gitignore file is read.
func discoverFiles(root string, ignorePatterns []string) ([]string, error) {
	matcher := gitignore.New()
	for _, p := range ignorePatterns {
		matcher.AddPattern(p)
	}

	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if matcher.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		info, statErr := d.Info()
		if statErr != nil {
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}

		if isBinary(path) {
			return nil
		}

		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// isBinary treats a file as binary if more than 10% of its first 512
// bytes are NUL, per spec.md's boundary-behaviour rule.
func isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	if n == 0 {
		return false
	}
	var nulCount int
	for _, b := range buf[:n] {
		if b == 0 {
			nulCount++
		}
	}
	return float64(nulCount)/float64(n) > 0.10
}

// readLoadAverage reads the 1-minute load average from /proc/loadavg.
func readLoadAverage() (float64, error) {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, err
	}
	var load float64
	if _, err := fmt.Sscanf(string(data), "%f", &load); err != nil {
		return 0, err
	}
	return load, nil
}

// adjustThrottle scales the base per-file sleep by system load: above a
// 1-minute load average of 2 it doubles, above 4 it triples.
func adjustThrottle(base time.Duration, loadAvg LoadAverage) time.Duration {
	load, err := loadAvg()
	if err != nil {
		return base
	}
	switch {
	case load > 4:
		return base * 3
	case load > 2:
		return base * 2
	default:
		return base
	}
}
