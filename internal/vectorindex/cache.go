package vectorindex

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// EmbeddingSource streams every stored embedding for rebuild-from-catalog.
// internal/catalog implements this; it is declared here (rather than
// imported from there) to keep vectorindex free of a dependency on catalog.
type EmbeddingSource interface {
	ForEachEmbedding(dim int, fn func(id int64, vector []float32) error) error
}

// CachedIndex pairs a VectorIndex with the directory it was opened from.
type CachedIndex struct {
	Index *VectorIndex
	Dir   string
}

// cache is a process-wide, size-1 LRU keyed by directory path. A size-1 LRU
// is used instead of a bare field so the eviction/lookup idiom matches the
// rest of the codebase's use of golang-lru/v2 rather than a hand-rolled
// compare-and-swap.
var (
	cacheMu sync.Mutex
	cache   *lru.Cache[string, *CachedIndex]
)

const cacheKeySlot = "singleton"

func getCache() *lru.Cache[string, *CachedIndex] {
	if cache == nil {
		c, err := lru.New[string, *CachedIndex](1)
		if err != nil {
			// Only fails for non-positive size; 1 is always valid.
			panic(err)
		}
		cache = c
	}
	return cache
}

// SearchCached serves a search against the process-wide cached index for
// dir, opening (and rebuilding from catalog, if necessary) on first use or
// whenever dir changes from the previously cached one.
func SearchCached(dir string, dim int, catalog EmbeddingSource, query []float32, k, ef int) ([]SearchResult, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	c := getCache()
	cached, ok := c.Get(cacheKeySlot)
	if !ok || cached.Dir != dir {
		idx, err := Open(dir, dim)
		if err != nil {
			return nil, err
		}
		if err := Rebuild(catalog, idx); err != nil {
			return nil, err
		}
		cached = &CachedIndex{Index: idx, Dir: dir}
		c.Add(cacheKeySlot, cached)
	}

	return cached.Index.Search(query, k, ef)
}

// InvalidateCache clears the process-wide cached index. Callers invoke this
// after any mutation (insert, save, reindex) so the next SearchCached call
// reopens from disk rather than serving a stale graph.
func InvalidateCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if cache != nil {
		cache.Purge()
	}
}

// Rebuild streams every embedding from catalog into index, one row at a
// time, and is a no-op if index was loaded from disk or already holds
// points — matching spec.md's accepted trade-off that a persisted-but-stale
// index is not silently reconciled against the catalog.
func Rebuild(catalog EmbeddingSource, index *VectorIndex) error {
	if index.LoadedFromDisk() || index.Len() > 0 {
		return nil
	}
	return catalog.ForEachEmbedding(index.dim, func(id int64, vector []float32) error {
		return index.Insert(id, vector)
	})
}
