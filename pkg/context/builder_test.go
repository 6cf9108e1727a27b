package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ternarybob/merlin/pkg/core"
)

type fakeFiles struct {
	content map[string]string
}

func (f fakeFiles) WalkFiles(ctx context.Context) ([]string, error) {
	var paths []string
	for p := range f.content {
		paths = append(paths, p)
	}
	return paths, nil
}

func (f fakeFiles) ReadFile(ctx context.Context, path string) (string, error) {
	return f.content[path], nil
}

type fakeSymbols struct {
	index map[string][]string
}

func (f fakeSymbols) SearchSymbols(ctx context.Context, name string) (core.SymbolSearchResult, error) {
	return core.SymbolSearchResult{Symbol: name, Files: f.index[name]}, nil
}

func TestBroadStrategyFiltersByPattern(t *testing.T) {
	files := fakeFiles{content: map[string]string{
		"pkg/widget/widget.go": "package widget",
		"pkg/other/other.go":   "package other",
	}}
	b := NewBuilder(nil, nil, files, nil)

	out, err := b.Build(context.Background(), Strategy{Kind: StrategyBroad, Patterns: []string{"widget"}}, 1000)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "pkg/widget/widget.go", out[0].Path)
}

func TestFocusedStrategyUsesSymbolSearch(t *testing.T) {
	files := fakeFiles{content: map[string]string{"widget.go": "package widget"}}
	symbols := fakeSymbols{index: map[string][]string{"Widget": {"widget.go"}}}
	b := NewBuilder(symbols, nil, files, nil)

	out, err := b.Build(context.Background(), Strategy{Kind: StrategyFocused, Symbols: []string{"Widget"}}, 1000)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.False(t, out[0].Truncated)
}

func TestAllocateTruncatesUnderBudget(t *testing.T) {
	b := NewBuilder(nil, nil, nil, nil, WithDefaultBudget(5))
	big := Candidate{Path: "big.go", Content: stringsRepeat("x", 400), Priority: PriorityHigh, Score: 1.0}

	out := b.allocate([]Candidate{big}, 5)
	require.Len(t, out, 1)
	require.True(t, out[0].Truncated)
}

func TestEmptyCandidatesYieldsNoResults(t *testing.T) {
	b := NewBuilder(nil, nil, nil, nil)
	out := b.allocate(nil, 1000)
	require.Empty(t, out)
}

func stringsRepeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
