package catalog

import (
	"context"
	"strings"

	"github.com/srag-go/srag/internal/srerrors"
)

// LanguageCount is one entry of the "top languages" histogram.
type LanguageCount struct {
	Language string
	Count    int
}

// SymbolKindCount is one entry of the "top symbol kinds" histogram.
type SymbolKindCount struct {
	Kind  string
	Count int
}

// PrefixCount is one entry of the naming-prefix histogram.
type PrefixCount struct {
	Prefix string
	Count  int
}

// DirectoryCount is one entry of the top-level-directory histogram.
type DirectoryCount struct {
	Directory string
	Count     int
}

// ProjectPatterns summarizes the shape of an indexed project for prompt
// context: dominant languages, symbol kinds, naming conventions, and
// top-level layout.
type ProjectPatterns struct {
	TopLanguages   []LanguageCount
	TopSymbolKinds []SymbolKindCount
	NamingPrefixes []PrefixCount
	TopDirectories []DirectoryCount
}

// GetProjectPatterns computes the four histograms from spec.md §4.4
// "Project patterns" for the given project.
func (c *Catalog) GetProjectPatterns(ctx context.Context, projectID int64) (ProjectPatterns, error) {
	var p ProjectPatterns

	langRows, err := c.db.QueryContext(ctx, `
		SELECT language, COUNT(*) AS n
		FROM files
		WHERE project_id = ? AND language IS NOT NULL
		GROUP BY language
		ORDER BY n DESC
	`, projectID)
	if err != nil {
		return p, srerrors.QueryError("top languages", err)
	}
	for langRows.Next() {
		var lc LanguageCount
		if err := langRows.Scan(&lc.Language, &lc.Count); err != nil {
			langRows.Close()
			return p, srerrors.QueryError("scan language row", err)
		}
		p.TopLanguages = append(p.TopLanguages, lc)
	}
	langRows.Close()
	if err := langRows.Err(); err != nil {
		return p, srerrors.QueryError("iterate languages", err)
	}

	kindRows, err := c.db.QueryContext(ctx, `
		SELECT c.kind, COUNT(*) AS n
		FROM chunks c
		JOIN files fi ON fi.id = c.file_id
		WHERE fi.project_id = ? AND c.kind IS NOT NULL
		GROUP BY c.kind
		ORDER BY n DESC
		LIMIT 20
	`, projectID)
	if err != nil {
		return p, srerrors.QueryError("top symbol kinds", err)
	}
	for kindRows.Next() {
		var kc SymbolKindCount
		if err := kindRows.Scan(&kc.Kind, &kc.Count); err != nil {
			kindRows.Close()
			return p, srerrors.QueryError("scan kind row", err)
		}
		p.TopSymbolKinds = append(p.TopSymbolKinds, kc)
	}
	kindRows.Close()
	if err := kindRows.Err(); err != nil {
		return p, srerrors.QueryError("iterate kinds", err)
	}

	symbolRows, err := c.db.QueryContext(ctx, `
		SELECT c.symbol
		FROM chunks c
		JOIN files fi ON fi.id = c.file_id
		WHERE fi.project_id = ? AND c.symbol IS NOT NULL AND c.symbol != ''
	`, projectID)
	if err != nil {
		return p, srerrors.QueryError("symbols for prefix histogram", err)
	}
	prefixCounts := make(map[string]int)
	for symbolRows.Next() {
		var symbol string
		if err := symbolRows.Scan(&symbol); err != nil {
			symbolRows.Close()
			return p, srerrors.QueryError("scan symbol", err)
		}
		if idx := strings.Index(symbol, "_"); idx > 0 {
			prefixCounts[symbol[:idx]]++
		}
	}
	symbolRows.Close()
	if err := symbolRows.Err(); err != nil {
		return p, srerrors.QueryError("iterate symbols", err)
	}
	p.NamingPrefixes = topN(prefixCounts, 3, 30, func(prefix string, n int) PrefixCount {
		return PrefixCount{Prefix: prefix, Count: n}
	})

	pathRows, err := c.db.QueryContext(ctx,
		`SELECT path FROM files WHERE project_id = ?`, projectID)
	if err != nil {
		return p, srerrors.QueryError("paths for directory histogram", err)
	}
	dirCounts := make(map[string]int)
	for pathRows.Next() {
		var path string
		if err := pathRows.Scan(&path); err != nil {
			pathRows.Close()
			return p, srerrors.QueryError("scan path", err)
		}
		if idx := strings.Index(path, "/"); idx > 0 {
			dirCounts[path[:idx]]++
		}
	}
	pathRows.Close()
	if err := pathRows.Err(); err != nil {
		return p, srerrors.QueryError("iterate paths", err)
	}
	p.TopDirectories = topN(dirCounts, 1, 20, func(dir string, n int) DirectoryCount {
		return DirectoryCount{Directory: dir, Count: n}
	})

	return p, nil
}

// topN sorts counts descending (ties broken by key for determinism),
// drops entries below minCount, and caps the result at limit.
func topN[T any](counts map[string]int, minCount, limit int, toItem func(string, int) T) []T {
	type kv = struct {
		key   string
		count int
	}
	kvs := make([]kv, 0, len(counts))
	for k, v := range counts {
		if v >= minCount {
			kvs = append(kvs, kv{k, v})
		}
	}
	sortKVs(kvs)
	if len(kvs) > limit {
		kvs = kvs[:limit]
	}
	items := make([]T, 0, len(kvs))
	for _, e := range kvs {
		items = append(items, toItem(e.key, e.count))
	}
	return items
}

func sortKVs(kvs []struct {
	key   string
	count int
}) {
	for i := 1; i < len(kvs); i++ {
		for j := i; j > 0; j-- {
			a, b := kvs[j-1], kvs[j]
			if a.count > b.count || (a.count == b.count && a.key <= b.key) {
				break
			}
			kvs[j-1], kvs[j] = kvs[j], kvs[j-1]
		}
	}
}
