package core

import "context"

// Response is what a model provider returns for one generate call.
type Response struct {
	Text       string
	Confidence float64
	Tokens     int
	Provider   string
	LatencyMs  int64
}

// ModelProvider is the external, consumed model-provider contract. It is
// deliberately narrower than pkg/llm.Provider (which speaks in richer
// completion-request terms): this is the shape the step executor actually
// calls through, and pkg/llm's router adapts onto it.
type ModelProvider interface {
	Generate(ctx context.Context, query string, context_ string) (Response, error)
	IsAvailable() bool
	Name() string
	EstimateCost(context_ string) float64
}

// TaskAnalysis is the result of analyzing a free-text request into tasks.
type TaskAnalysis struct {
	Tasks []*Task
}

// Analyzer is the external, consumed request-decomposition contract.
type Analyzer interface {
	Analyze(ctx context.Context, requestText string) (TaskAnalysis, error)
}

// RoutingDecision is a model router's recommendation for one task.
type RoutingDecision struct {
	Model            string
	EstimatedCost    float64
	EstimatedLatency int64
	Reasoning        string
}

// ModelRouter is the external, consumed routing contract.
type ModelRouter interface {
	Route(ctx context.Context, task *Task) (RoutingDecision, error)
	IsAvailable(model string) bool
}

// EmbeddingClient is the external, consumed embedding contract.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EnsureModelAvailable(ctx context.Context) error
}

// SymbolSearchResult is what a language backend returns for a symbol query.
type SymbolSearchResult struct {
	Symbol string
	Files  []string
}

// LanguageBackend is the external, optional, consumed source-analysis
// contract used by the Focused context strategy and the import graph.
type LanguageBackend interface {
	SearchSymbols(ctx context.Context, query string) (SymbolSearchResult, error)
	ExtractImports(ctx context.Context, path string) ([]string, error)
}
