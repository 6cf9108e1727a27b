// Package index implements the hybrid embedding+keyword context-retrieval
// engine. It chunks source files under a token budget, maintains a BM25
// keyword index and a vector store side by side, fuses their rankings by
// reciprocal rank, boosts chunks from heavily-imported files using the
// static import graph, and persists the result to a versioned cache so a
// cold start doesn't re-embed an unchanged tree.
package index

// RetrieverConfig configures a hybrid Index.
type RetrieverConfig struct {
	// ProjectRoot is the absolute path to the project being indexed.
	ProjectRoot string

	// CachePath is where the versioned embedding cache is persisted,
	// e.g. ".merlin/cache/vector/embeddings.bin".
	CachePath string

	// ExcludeGlobs are directories/files never indexed.
	ExcludeGlobs []string

	// MinChunkTokens and MaxChunkTokens bound a single chunk's estimated
	// token size; chunks are recursively split to fit.
	MinChunkTokens int
	MaxChunkTokens int

	// MinSimilarityScore is the cutoff, relative to the top result's
	// boosted fused score, below which a chunk is dropped from retrieval
	// results.
	MinSimilarityScore float64

	// RRFConstant is the "c" in the reciprocal rank fusion sum
	// Σ 1/(rank+c), rank 1-based; 60 is the conventional default.
	RRFConstant int

	// DebounceMs is the incremental re-embed debounce window.
	DebounceMs int
}

// DefaultRetrieverConfig returns the config described by the retrieval
// engine's defaults.
func DefaultRetrieverConfig(projectRoot string) RetrieverConfig {
	return RetrieverConfig{
		ProjectRoot: projectRoot,
		CachePath:   ".merlin/cache/vector/embeddings.bin",
		ExcludeGlobs: []string{
			"vendor/**",
			".git/**",
			"node_modules/**",
			".merlin/**",
		},
		MinChunkTokens:     64,
		MaxChunkTokens:     512,
		MinSimilarityScore: 0.5,
		RRFConstant:        60,
		DebounceMs:         500,
	}
}
