// Package context assembles the file context passed to a model call. A
// named expansion strategy produces a candidate set, each candidate is
// assigned a priority, and a token-budget allocator trims the set to fit
// under a global budget — grounded on pkg/index's original GetContext
// token-budget loop, generalized from a single relevance ranking into a
// priority-then-score ordering over four distinct expansion strategies.
package context

import (
	"context"
	"sort"
	"strings"

	"github.com/ternarybob/merlin/pkg/core"
)

// Priority ranks how a candidate file entered the context set, used to
// order the token-budget allocator's pass over candidates.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// Candidate is one file under consideration for inclusion, before
// token-budget allocation decides how much of it survives.
type Candidate struct {
	Path     string
	Content  string
	Priority Priority
	Score    float64
}

// StrategyKind names one of the four fixed expansion strategies.
type StrategyKind int

const (
	StrategyFocused StrategyKind = iota
	StrategyBroad
	StrategyEntryPointBased
	StrategySemantic
)

// Strategy is a named expansion request; exactly one field group below
// is meaningful depending on Kind.
type Strategy struct {
	Kind StrategyKind

	// Focused
	Symbols []string

	// Broad
	Patterns []string

	// EntryPointBased
	EntryFiles []string
	Depth      int

	// Semantic
	Query string
	K     int
}

// SymbolSearcher is the language-backend surface Focused expansion needs.
type SymbolSearcher interface {
	SearchSymbols(ctx context.Context, name string) (core.SymbolSearchResult, error)
}

// ImportExtractor is the language-backend surface EntryPointBased
// expansion needs to walk the import graph from an entry file.
type ImportExtractor interface {
	ExtractImports(ctx context.Context, path string) ([]string, error)
}

// FileWalker is the project-tree surface Broad expansion needs.
type FileWalker interface {
	WalkFiles(ctx context.Context) ([]string, error)
	ReadFile(ctx context.Context, path string) (string, error)
}

// SemanticSearcher is the hybrid-retriever surface Semantic expansion
// delegates to.
type SemanticSearcher interface {
	GetContext(ctx context.Context, query string, maxTokens int) ([]SemanticChunk, error)
}

// SemanticChunk is the subset of an index.Chunk the builder needs,
// decoupling pkg/context from pkg/index's concrete type.
type SemanticChunk struct {
	Path      string
	Content   string
	StartLine int
	EndLine   int
	Score     float64
}

// Builder expands a Strategy into a token-budgeted []core.FileContext.
type Builder struct {
	symbols  SymbolSearcher
	imports  ImportExtractor
	files    FileWalker
	semantic SemanticSearcher

	defaultBudget  int
	minFraction    float64
	highScoreFloor float64
}

// Option configures a Builder at construction.
type Option func(*Builder)

func WithDefaultBudget(tokens int) Option   { return func(b *Builder) { b.defaultBudget = tokens } }
func WithMinFraction(frac float64) Option   { return func(b *Builder) { b.minFraction = frac } }
func WithHighScoreFloor(f float64) Option   { return func(b *Builder) { b.highScoreFloor = f } }

// NewBuilder constructs a Builder. Any of the four surfaces may be nil;
// a strategy whose required surface is absent returns an empty set
// rather than panicking, so a caller missing a language backend still
// gets a degraded-but-working context builder.
func NewBuilder(symbols SymbolSearcher, imports ImportExtractor, files FileWalker, semantic SemanticSearcher, opts ...Option) *Builder {
	b := &Builder{
		symbols:        symbols,
		imports:        imports,
		files:          files,
		semantic:       semantic,
		defaultBudget:  10000,
		minFraction:    0.1,
		highScoreFloor: 0.8,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build expands strategy, assigns priorities, and allocates the token
// budget (defaultBudget if budget <= 0) across the resulting candidates.
func (b *Builder) Build(ctx context.Context, strategy Strategy, budget int) ([]core.FileContext, error) {
	if budget <= 0 {
		budget = b.defaultBudget
	}

	candidates, err := b.expand(ctx, strategy)
	if err != nil {
		return nil, err
	}
	return b.allocate(candidates, budget), nil
}

func (b *Builder) expand(ctx context.Context, s Strategy) ([]Candidate, error) {
	switch s.Kind {
	case StrategyFocused:
		return b.expandFocused(ctx, s.Symbols)
	case StrategyBroad:
		return b.expandBroad(ctx, s.Patterns)
	case StrategyEntryPointBased:
		return b.expandEntryPoints(ctx, s.EntryFiles, s.Depth)
	case StrategySemantic:
		return b.expandSemantic(ctx, s.Query, s.K)
	default:
		return nil, nil
	}
}

func (b *Builder) expandFocused(ctx context.Context, symbols []string) ([]Candidate, error) {
	if b.symbols == nil || b.files == nil {
		return nil, nil
	}
	seen := make(map[string]bool)
	var out []Candidate
	for _, sym := range symbols {
		result, err := b.symbols.SearchSymbols(ctx, sym)
		if err != nil {
			continue
		}
		for _, path := range result.Files {
			if seen[path] {
				continue
			}
			seen[path] = true
			content, err := b.files.ReadFile(ctx, path)
			if err != nil {
				continue
			}
			out = append(out, Candidate{Path: path, Content: content, Priority: PriorityCritical, Score: 1.0})
		}
	}
	return out, nil
}

func (b *Builder) expandBroad(ctx context.Context, patterns []string) ([]Candidate, error) {
	if b.files == nil {
		return nil, nil
	}
	paths, err := b.files.WalkFiles(ctx)
	if err != nil {
		return nil, err
	}
	var out []Candidate
	for _, path := range paths {
		if !matchesAnyPattern(path, patterns) {
			continue
		}
		content, err := b.files.ReadFile(ctx, path)
		if err != nil {
			continue
		}
		out = append(out, Candidate{Path: path, Content: content, Priority: PriorityMedium, Score: 0.5})
	}
	return out, nil
}

func (b *Builder) expandEntryPoints(ctx context.Context, entries []string, depth int) ([]Candidate, error) {
	if b.imports == nil || b.files == nil {
		return nil, nil
	}
	if depth <= 0 {
		depth = 1
	}

	visited := make(map[string]bool)
	queue := append([]string{}, entries...)
	levels := make(map[string]int)
	for _, e := range entries {
		levels[e] = 0
	}

	var out []Candidate
	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		if visited[path] {
			continue
		}
		visited[path] = true

		content, err := b.files.ReadFile(ctx, path)
		if err != nil {
			continue
		}
		priority := PriorityHigh
		if levels[path] > 0 {
			priority = PriorityMedium
		}
		out = append(out, Candidate{Path: path, Content: content, Priority: priority, Score: 1.0 / float64(levels[path]+1)})

		if levels[path] >= depth {
			continue
		}
		imports, err := b.imports.ExtractImports(ctx, path)
		if err != nil {
			continue
		}
		for _, imp := range imports {
			if !visited[imp] {
				levels[imp] = levels[path] + 1
				queue = append(queue, imp)
			}
		}
	}
	return out, nil
}

func (b *Builder) expandSemantic(ctx context.Context, query string, k int) ([]Candidate, error) {
	if b.semantic == nil {
		return nil, nil
	}
	if k <= 0 {
		k = 10
	}
	chunks, err := b.semantic.GetContext(ctx, query, k*400)
	if err != nil {
		return nil, err
	}
	var out []Candidate
	for _, c := range chunks {
		priority := PriorityLow
		if c.Score > b.highScoreFloor {
			priority = PriorityMedium
		}
		out = append(out, Candidate{Path: c.Path, Content: c.Content, Priority: priority, Score: c.Score})
	}
	return out, nil
}

func matchesAnyPattern(path string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}

// allocate sorts candidates by (priority desc, score desc) and hands out
// the token budget proportionally; a candidate whose share falls below
// its own size is truncated with a visible marker rather than dropped.
// Once the budget is used up, the remaining candidates are left out.
func (b *Builder) allocate(candidates []Candidate, budget int) []core.FileContext {
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].Score > candidates[j].Score
	})

	type sized struct {
		Candidate
		tokens int
	}
	all := make([]sized, len(candidates))
	totalTokens := 0
	for i, c := range candidates {
		t := estimateTokens(c.Content)
		all[i] = sized{c, t}
		totalTokens += t
	}

	var results []core.FileContext
	remaining := budget
	for _, s := range all {
		if remaining <= 0 {
			break
		}
		share := s.tokens
		if totalTokens > budget {
			share = s.tokens * budget / totalTokens
		}
		if share > remaining {
			share = remaining
		}

		content := s.Content
		truncated := false
		if share < int(float64(s.tokens)*b.minFraction) || share < s.tokens {
			content = truncateToTokens(s.Content, share)
			truncated = share < s.tokens
		}

		results = append(results, core.FileContext{
			Path:      s.Path,
			Content:   content,
			StartLine: 1,
			EndLine:   strings.Count(s.Content, "\n") + 1,
			Truncated: truncated,
		})
		remaining -= estimateTokens(content)
	}
	return results
}

func estimateTokens(text string) int {
	chars := len(text) / 4
	words := (len(strings.Fields(text)) * 10) / 13
	return (chars + words) / 2
}

func truncateToTokens(text string, tokens int) string {
	if tokens <= 0 {
		return "… [truncated]"
	}
	maxChars := tokens * 4
	if maxChars >= len(text) {
		return text
	}
	return text[:maxChars] + "… [truncated]"
}
