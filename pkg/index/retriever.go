package index

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/ternarybob/merlin/pkg/core"
)

// HybridIndex is the hybrid embedding+keyword context-retrieval engine:
// it implements Index using an in-memory file/chunk store, a BM25
// keyword index, and a chromem-go vector store, fusing both rankings by
// reciprocal rank and boosting chunks from heavily-imported files via
// the static import graph.
type HybridIndex struct {
	mu sync.RWMutex

	cfg    RetrieverConfig
	chunker *Chunker
	parser  *Parser

	files  map[string]*File
	chunks map[string]*Chunk

	bm25   *BM25Index
	vector *VectorStore
	graph  *DependencyGraph
	dagp   *DAGParser
	embed  *EmbeddingClient

	closed bool
}

// NewHybridIndex constructs a HybridIndex. embedClient and vectorDB may
// be nil, in which case retrieval degrades to keyword-only search —
// still correct, just missing the semantic half of the fusion.
func NewHybridIndex(cfg RetrieverConfig, embedClient *EmbeddingClient, vectorDB *chromem.DB) (*HybridIndex, error) {
	if cfg.MinChunkTokens == 0 {
		cfg = DefaultRetrieverConfig(cfg.ProjectRoot)
	}

	idx := &HybridIndex{
		cfg:     cfg,
		chunker: NewChunker(cfg.MinChunkTokens, cfg.MaxChunkTokens),
		parser:  NewParser(),
		files:   make(map[string]*File),
		chunks:  make(map[string]*Chunk),
		bm25:    NewBM25Index(),
		graph:   NewDependencyGraph(""),
		dagp:    NewDAGParser(cfg.ProjectRoot),
		embed:   embedClient,
	}

	if vectorDB != nil {
		vs, err := NewVectorStore(vectorDB, "chunks", idx.embedText)
		if err != nil {
			return nil, err
		}
		idx.vector = vs
	}

	if entries, ok, err := LoadCache(cfg.CachePath); err == nil && ok {
		idx.restoreFromCache(entries)
	}

	return idx, nil
}

func (idx *HybridIndex) embedText(ctx context.Context, text string) ([]float32, error) {
	if idx.embed == nil || !idx.embed.IsConfigured() {
		return nil, fmt.Errorf("embedding client not configured")
	}
	return idx.embed.Embed(ctx, text)
}

func (idx *HybridIndex) restoreFromCache(entries []cacheEntry) {
	for _, e := range entries {
		idx.chunks[e.ChunkID] = &Chunk{
			ID:        e.ChunkID,
			Path:      e.Path,
			StartLine: e.StartLine,
			EndLine:   e.EndLine,
			Hash:      e.ContentHash,
		}
	}
}

// IndexFile parses, chunks, and indexes a single file's content into the
// keyword index, the vector store, and the import graph.
func (idx *HybridIndex) IndexFile(ctx context.Context, path string, content []byte) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return ErrClosed
	}
	return idx.indexFileLocked(ctx, path, content)
}

func (idx *HybridIndex) indexFileLocked(ctx context.Context, path string, content []byte) error {
	language := LanguageFromPath(path)
	contentStr := string(content)

	symbols := idx.parser.Parse(path, contentStr, language)
	chunks := idx.chunker.ChunkWithSymbols(path, contentStr, language, symbols)

	if existing, ok := idx.files[path]; ok {
		for _, c := range existing.Chunks {
			idx.bm25.Remove(c.ID)
			delete(idx.chunks, c.ID)
			if idx.vector != nil {
				_ = idx.vector.Remove(ctx, c.ID)
			}
		}
	}

	file := &File{
		Path:     path,
		Content:  contentStr,
		Language: language,
		Size:     int64(len(content)),
		ModTime:  time.Now().Unix(),
		Symbols:  symbols,
		Hash:     hashContent(contentStr),
	}

	for _, chunk := range chunks {
		c := chunk
		file.Chunks = append(file.Chunks, c)
		idx.chunks[c.ID] = &c
		idx.bm25.Add(c.ID, c.Content)
		if idx.vector != nil {
			meta := map[string]string{"path": c.Path, "start_line": itoa(c.StartLine), "end_line": itoa(c.EndLine)}
			if err := idx.vector.Upsert(ctx, c.ID, c.Content, nil, meta); err != nil {
				return fmt.Errorf("upsert vector: %w", err)
			}
		}
	}
	idx.files[path] = file

	if language == "go" {
		abs := path
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(idx.cfg.ProjectRoot, path)
		}
		_ = idx.dagp.UpdateDAGForFile(idx.graph, abs)
	}

	return nil
}

// IndexDirectory walks root and indexes every included file.
func (idx *HybridIndex) IndexDirectory(ctx context.Context, root string, opts IndexOptions) error {
	walker := NewWalker(opts)
	return walker.Walk(ctx, root, func(path string, content []byte) error {
		return idx.IndexFile(ctx, path, content)
	})
}

// RemoveFile drops a file and its chunks from every index.
func (idx *HybridIndex) RemoveFile(ctx context.Context, path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return ErrClosed
	}
	file, ok := idx.files[path]
	if !ok {
		return nil
	}
	for _, c := range file.Chunks {
		idx.bm25.Remove(c.ID)
		delete(idx.chunks, c.ID)
		if idx.vector != nil {
			_ = idx.vector.Remove(ctx, c.ID)
		}
	}
	delete(idx.files, path)
	idx.graph.RemoveFile(path)
	return nil
}

// hybridSearch runs BM25 and (if available) vector search, fuses them
// by reciprocal rank, applies hub boosting, and drops anything whose
// score relative to the top result is below MinSimilarityScore.
func (idx *HybridIndex) hybridSearch(ctx context.Context, query string, limit int) ([]FusedResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rankings := [][]Scored{idx.bm25.Search(query, limit*3)}

	if idx.vector != nil && idx.vector.Count() > 0 {
		vecResults, err := idx.vector.Search(ctx, query, limit*3)
		if err == nil {
			rankings = append(rankings, vecResults)
		}
	}

	fused := ReciprocalRankFusion(idx.cfg.RRFConstant, rankings...)

	var files []string
	for f := range idx.files {
		files = append(files, f)
	}
	booster := NewHubBooster(idx.graph, 1.15, MaxInDegree(idx.graph, files))

	for i := range fused {
		if c, ok := idx.chunks[fused[i].ChunkID]; ok {
			fused[i].Score *= booster.Factor(c.Path)
		}
	}
	sort.Slice(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })

	cutoff := idx.cfg.MinSimilarityScore
	// Reciprocal rank fusion scores are small and not already in [0,1];
	// the cutoff applies to the normalized score relative to the top
	// result so it behaves the same regardless of corpus size.
	if len(fused) > 0 && fused[0].Score > 0 {
		var filtered []FusedResult
		for _, f := range fused {
			if f.Score/fused[0].Score >= cutoff {
				filtered = append(filtered, f)
			}
		}
		fused = filtered
	}

	if len(fused) > limit {
		fused = fused[:limit]
	}
	return fused, nil
}

// Search implements Index's line-oriented search by delegating to the
// hybrid chunk ranking; each matching chunk becomes one result at its
// start line, carrying the whole chunk's content.
func (idx *HybridIndex) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, ErrClosed
	}
	if opts.MaxResults == 0 {
		opts.MaxResults = 100
	}

	fused, err := idx.hybridSearch(ctx, query, opts.MaxResults)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, f := range fused {
		c, ok := idx.chunks[f.ChunkID]
		if !ok {
			continue
		}
		if len(opts.FilePatterns) > 0 && !matchesAny(c.Path, opts.FilePatterns) {
			continue
		}
		results = append(results, SearchResult{
			Path:    c.Path,
			Line:    c.StartLine,
			Content: c.Content,
			Score:   f.Score,
		})
	}
	return results, nil
}

func matchesAny(path string, patterns []string) bool {
	for _, p := range patterns {
		if matchGlob(path, p) {
			return true
		}
	}
	return false
}

// FindSymbol finds symbols by name substring and kind.
func (idx *HybridIndex) FindSymbol(ctx context.Context, name string, kind SymbolKind) ([]Symbol, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, ErrClosed
	}
	nameLower := strings.ToLower(name)
	var results []Symbol
	for _, file := range idx.files {
		for _, sym := range file.Symbols {
			if strings.Contains(strings.ToLower(sym.Name), nameLower) && (kind == "" || sym.Kind == kind) {
				results = append(results, sym)
			}
		}
	}
	return results, nil
}

// FindReferences finds references to a symbol via keyword search on its name.
func (idx *HybridIndex) FindReferences(ctx context.Context, symbol Symbol) ([]Reference, error) {
	results, err := idx.Search(ctx, symbol.Name, SearchOptions{MaxResults: 100, IncludeContent: true})
	if err != nil {
		return nil, err
	}
	var refs []Reference
	for _, r := range results {
		refs = append(refs, Reference{
			Path:         r.Path,
			Line:         r.Line,
			Content:      r.Content,
			IsDefinition: r.Path == symbol.Path && r.Line == symbol.Line,
		})
	}
	return refs, nil
}

// GetContext retrieves fused-ranked chunks up to a token budget.
func (idx *HybridIndex) GetContext(ctx context.Context, query string, maxTokens int) ([]Chunk, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, ErrClosed
	}

	fused, err := idx.hybridSearch(ctx, query, 50)
	if err != nil {
		return nil, err
	}

	var result []Chunk
	total := 0
	for _, f := range fused {
		c, ok := idx.chunks[f.ChunkID]
		if !ok {
			continue
		}
		tokens := EstimateTokens(c.Content)
		if total+tokens > maxTokens {
			continue
		}
		result = append(result, *c)
		total += tokens
	}
	return result, nil
}

// RequestContext implements script.ContextProvider: a pattern/reason
// driven request for more files, used by the requestContext tool when a
// step decides it needs context beyond what it started with.
func (idx *HybridIndex) RequestContext(ctx context.Context, pattern, reason string, maxFiles int) ([]core.FileContext, error) {
	chunks, err := idx.GetContext(ctx, pattern+" "+reason, maxFiles*400)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []core.FileContext
	for _, c := range chunks {
		if seen[c.Path] || len(out) >= maxFiles {
			continue
		}
		seen[c.Path] = true
		out = append(out, core.FileContext{Path: c.Path, Content: c.Content, StartLine: c.StartLine, EndLine: c.EndLine})
	}
	return out, nil
}

// GetFile retrieves a file by path.
func (idx *HybridIndex) GetFile(ctx context.Context, path string) (*File, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, ErrClosed
	}
	file, ok := idx.files[path]
	if !ok {
		return nil, ErrNotFound
	}
	return file, nil
}

// GetChunk retrieves a chunk by ID.
func (idx *HybridIndex) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, ErrClosed
	}
	chunk, ok := idx.chunks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return chunk, nil
}

// Stats returns index statistics.
func (idx *HybridIndex) Stats(ctx context.Context) (*IndexStats, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, ErrClosed
	}
	stats := &IndexStats{FileCount: len(idx.files), ChunkCount: len(idx.chunks), Languages: make(map[string]int)}
	for _, file := range idx.files {
		stats.TotalSize += file.Size
		stats.SymbolCount += len(file.Symbols)
		stats.Languages[file.Language]++
	}
	return stats, nil
}

// Clear removes all indexed data.
func (idx *HybridIndex) Clear(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return ErrClosed
	}
	idx.files = make(map[string]*File)
	idx.chunks = make(map[string]*Chunk)
	idx.bm25 = NewBM25Index()
	idx.graph.Clear()
	return nil
}

// Close persists the embedding cache and releases resources.
func (idx *HybridIndex) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil
	}
	idx.closed = true

	entries := make([]cacheEntry, 0, len(idx.chunks))
	for id, c := range idx.chunks {
		entries = append(entries, cacheEntry{ChunkID: id, Path: c.Path, StartLine: c.StartLine, EndLine: c.EndLine, ContentHash: c.Hash})
	}
	if idx.cfg.CachePath != "" {
		return SaveCache(idx.cfg.CachePath, entries)
	}
	return nil
}

var _ Index = (*HybridIndex)(nil)
