package index

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"
)

// VectorStore wraps a chromem-go collection, the same vector-search
// library pkg/index's original Searcher wired (it called
// collection.Query directly); here it is the vector half of the fused
// keyword+vector ranking rather than the sole search path.
type VectorStore struct {
	collection *chromem.Collection
}

// NewVectorStore creates (or reopens, if persistent) a named collection
// backed by an embedding function that calls embed for any document or
// query text lacking a precomputed vector.
func NewVectorStore(db *chromem.DB, name string, embed func(ctx context.Context, text string) ([]float32, error)) (*VectorStore, error) {
	collection, err := db.GetOrCreateCollection(name, nil, chromem.EmbeddingFunc(embed))
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &VectorStore{collection: collection}, nil
}

// Upsert stores or replaces a chunk's vector and metadata under chunkID.
func (vs *VectorStore) Upsert(ctx context.Context, chunkID, content string, embedding []float32, metadata map[string]string) error {
	return vs.collection.AddDocument(ctx, chromem.Document{
		ID:        chunkID,
		Content:   content,
		Embedding: embedding,
		Metadata:  metadata,
	})
}

// Remove deletes a chunk from the store.
func (vs *VectorStore) Remove(ctx context.Context, chunkID string) error {
	return vs.collection.Delete(ctx, nil, nil, chunkID)
}

// Count returns the number of stored documents.
func (vs *VectorStore) Count() int { return vs.collection.Count() }

// Search runs a nearest-neighbor query and returns ranked chunk IDs;
// chromem-go's own relevance score doubles as the vector half of the
// reciprocal-rank-fused ranking.
func (vs *VectorStore) Search(ctx context.Context, query string, limit int) ([]Scored, error) {
	count := vs.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}
	if limit < 1 {
		return nil, nil
	}

	docs, err := vs.collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	results := make([]Scored, 0, len(docs))
	for _, doc := range docs {
		results = append(results, Scored{ChunkID: doc.ID, Score: float64(doc.Similarity)})
	}
	return results, nil
}
