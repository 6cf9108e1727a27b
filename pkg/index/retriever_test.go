package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *HybridIndex {
	t.Helper()
	cfg := DefaultRetrieverConfig(t.TempDir())
	cfg.CachePath = ""
	idx, err := NewHybridIndex(cfg, nil, nil)
	require.NoError(t, err)
	return idx
}

func TestIndexFileAndKeywordSearch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	content := []byte("package demo\n\nfunc ReadWidget(id string) (*Widget, error) {\n\treturn nil, nil\n}\n")
	require.NoError(t, idx.IndexFile(ctx, "widget.go", content))

	results, err := idx.Search(ctx, "ReadWidget", SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "widget.go", results[0].Path)
}

func TestGetContextRespectsTokenBudget(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	var content string
	for i := 0; i < 50; i++ {
		content += "func handlerN() { doWork() }\n\n"
	}
	require.NoError(t, idx.IndexFile(ctx, "handlers.go", []byte(content)))

	chunks, err := idx.GetContext(ctx, "handlerN", 40)
	require.NoError(t, err)
	total := 0
	for _, c := range chunks {
		total += EstimateTokens(c.Content)
	}
	require.LessOrEqual(t, total, 40)
}

func TestRemoveFileDropsFromEveryIndex(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.IndexFile(ctx, "a.go", []byte("package a\nfunc Alpha() {}\n")))
	require.NoError(t, idx.RemoveFile(ctx, "a.go"))

	results, err := idx.Search(ctx, "Alpha", SearchOptions{})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestBM25RanksExactTermHigher(t *testing.T) {
	idx := NewBM25Index()
	idx.Add("a", "the quick brown fox jumps over the lazy dog")
	idx.Add("b", "fox fox fox fox fox")

	results := idx.Search("fox", 10)
	require.NotEmpty(t, results)
	require.Equal(t, "b", results[0].ChunkID)
}

func TestReciprocalRankFusionCombinesRankings(t *testing.T) {
	keyword := []Scored{{ChunkID: "x", Score: 5}, {ChunkID: "y", Score: 3}}
	vector := []Scored{{ChunkID: "y", Score: 0.9}, {ChunkID: "x", Score: 0.5}}

	fused := ReciprocalRankFusion(60, keyword, vector)
	require.Len(t, fused, 2)
	// y is rank-1 in vector and rank-2 in keyword, x is the reverse —
	// fusion should score them equally.
	require.InDelta(t, fused[0].Score, fused[1].Score, 1e-9)
}

func TestTokenEstimateMidpoint(t *testing.T) {
	text := "func main() { fmt.Println(\"hello world\") }"
	got := EstimateTokens(text)
	require.Greater(t, got, 0)
	require.Less(t, got, len(text))
}
