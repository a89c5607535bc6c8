// Package vectorindex implements the in-process approximate
// nearest-neighbour graph (C6): a coder/hnsw graph keyed by embedding id,
// persisted alongside the catalog and rebuildable from it.
package vectorindex

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	"github.com/srag-go/srag/internal/srerrors"
)

// Fixed HNSW parameters from spec.md §4.5.
const (
	maxConnections  = 16
	maxLayer        = 16
	efConstruction  = 200
	preallocCapacity = 100_000
	defaultEfSearch  = 20
)

const basename = "embeddings"

// SearchResult is one ranked hit from Search.
type SearchResult struct {
	ID       int64
	Distance float32
}

// metadata is gob-encoded alongside the graph so Open can restore the
// dimension without replaying the graph's own Export format. Graph keys
// are the embedding ids themselves (cast to uint64), so no id mapping is
// stored; Save sets only Dim.
type metadata struct {
	Dim    int
	NextID uint64
}

// VectorIndex wraps a coder/hnsw graph. Since coder/hnsw is pure Go (no
// mmap, no raw pointers) the "loader must outlive the graph" lifetime
// hazard from the original Rust implementation's unsafe field-drop-order
// trick does not apply here; VectorIndex still exposes an explicit Close
// so callers have one place to release resources, per the Design Notes
// "Parser borrowing" contract.
type VectorIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]
	dim   int

	// loadedFromDisk and a non-empty graph (Len() > 0) gate Rebuild: per
	// spec.md §4.5 rebuild is a no-op once either holds.
	loadedFromDisk bool
}

// New constructs an empty index for the given dimension.
func New(dim int) *VectorIndex {
	graph := hnsw.NewGraph[uint64]()
	graph.M = maxConnections
	graph.Ml = ln2(maxConnections)
	graph.EfSearch = defaultEfSearch
	graph.Distance = hnsw.CosineDistance
	return &VectorIndex{graph: graph, dim: dim}
}

// ln2 returns 1/ln(m), coder/hnsw's recommended level-generation factor.
func ln2(m int) float64 {
	x := float64(m)
	if x <= 1 {
		return 1
	}
	return 1.0 / math.Log(x)
}

// Open loads the index from dir if both persisted files exist, otherwise
// returns a fresh empty index. A load failure is logged and degrades to an
// empty index; the caller (internal/indexer or internal/retriever) is
// expected to call Rebuild against the catalog afterward.
func Open(dir string, dim int) (*VectorIndex, error) {
	graphPath := filepath.Join(dir, basename+".hnsw.graph")
	dataPath := filepath.Join(dir, basename+".hnsw.data")

	if !fileExists(graphPath) || !fileExists(dataPath) {
		return New(dim), nil
	}

	idx := New(dim)
	if err := idx.load(graphPath, dataPath); err != nil {
		slog.Warn("vectorindex_load_failed",
			slog.String("dir", dir),
			slog.String("error", err.Error()))
		return New(dim), nil
	}
	idx.loadedFromDisk = true
	return idx, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (idx *VectorIndex) load(graphPath, dataPath string) error {
	dataFile, err := os.Open(dataPath)
	if err != nil {
		return fmt.Errorf("open metadata: %w", err)
	}
	defer dataFile.Close()

	var meta metadata
	if err := gob.NewDecoder(dataFile).Decode(&meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	idx.dim = meta.Dim

	graphFile, err := os.Open(graphPath)
	if err != nil {
		return fmt.Errorf("open graph: %w", err)
	}
	defer graphFile.Close()

	reader := bufio.NewReader(graphFile)
	if err := idx.graph.Import(reader); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	return nil
}

// Insert adds a vector under id. Fails if vector's length doesn't match
// the index dimension.
func (idx *VectorIndex) Insert(id int64, vector []float32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(vector) != idx.dim {
		return srerrors.IndexError("dimension mismatch on insert",
			fmt.Errorf("expected %d, got %d", idx.dim, len(vector)))
	}

	if idx.graph.Len() >= preallocCapacity {
		slog.Warn("vectorindex_capacity_exceeded",
			slog.Int("capacity", preallocCapacity))
	}

	node := hnsw.MakeNode(uint64(id), vector)
	idx.graph.Add(node)
	return nil
}

// Search returns up to k (id, distance) pairs in ascending distance. ef
// controls the search-time candidate list size; 0 uses the graph default.
func (idx *VectorIndex) Search(query []float32, k int, ef int) ([]SearchResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(query) != idx.dim {
		return nil, srerrors.IndexError("dimension mismatch on search",
			fmt.Errorf("expected %d, got %d", idx.dim, len(query)))
	}
	if idx.graph.Len() == 0 {
		return nil, nil
	}

	if ef > 0 {
		idx.graph.EfSearch = ef
	}

	nodes := idx.graph.Search(query, k)
	results := make([]SearchResult, 0, len(nodes))
	for _, n := range nodes {
		dist := idx.graph.Distance(query, n.Value)
		results = append(results, SearchResult{ID: int64(n.Key), Distance: dist})
	}
	return results, nil
}

// Len reports the number of points currently in the graph.
func (idx *VectorIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.graph.Len()
}

// LoadedFromDisk reports whether the index was populated from a previous
// Save rather than constructed empty.
func (idx *VectorIndex) LoadedFromDisk() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.loadedFromDisk
}

// Save persists the index to a pair of files under dir, creating dir if
// missing.
func (idx *VectorIndex) Save(dir string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create vectors dir: %w", err)
	}

	graphPath := filepath.Join(dir, basename+".hnsw.graph")
	graphTmp := graphPath + ".tmp"
	graphFile, err := os.Create(graphTmp)
	if err != nil {
		return fmt.Errorf("create graph file: %w", err)
	}
	if err := idx.graph.Export(graphFile); err != nil {
		graphFile.Close()
		os.Remove(graphTmp)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := graphFile.Close(); err != nil {
		os.Remove(graphTmp)
		return fmt.Errorf("close graph file: %w", err)
	}
	if err := os.Rename(graphTmp, graphPath); err != nil {
		os.Remove(graphTmp)
		return fmt.Errorf("rename graph file: %w", err)
	}

	dataPath := filepath.Join(dir, basename+".hnsw.data")
	dataTmp := dataPath + ".tmp"
	dataFile, err := os.Create(dataTmp)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}
	meta := metadata{Dim: idx.dim}
	if err := gob.NewEncoder(dataFile).Encode(meta); err != nil {
		dataFile.Close()
		os.Remove(dataTmp)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := dataFile.Close(); err != nil {
		os.Remove(dataTmp)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(dataTmp, dataPath)
}

// Close releases the index. Safe to call once; subsequent calls are no-ops.
func (idx *VectorIndex) Close() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.graph = nil
}
