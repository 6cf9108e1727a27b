package llm

import (
	"context"
	"time"

	"github.com/ternarybob/merlin/pkg/core"
)

// ModelProviderAdapter narrows a Router down to the core.ModelProvider
// contract the step executor and request analyzer consume. tier
// selects which of the router's planning/execution/
// validation models a call uses; an empty tier uses the router's
// default model.
type ModelProviderAdapter struct {
	router *Router
	tier   string
}

// NewModelProviderAdapter wraps router for a given routing tier
// ("planning", "execution", "validation", or "" for the default model).
func NewModelProviderAdapter(router *Router, tier string) *ModelProviderAdapter {
	return &ModelProviderAdapter{router: router, tier: tier}
}

func (a *ModelProviderAdapter) model() string {
	switch a.tier {
	case "planning":
		return a.router.PlanningModel()
	case "execution":
		return a.router.ExecutionModel()
	case "validation":
		return a.router.ValidationModel()
	default:
		return ""
	}
}

// Generate implements core.ModelProvider.
func (a *ModelProviderAdapter) Generate(ctx context.Context, query, context_ string) (core.Response, error) {
	start := time.Now()
	req := &CompletionRequest{
		Model:    a.model(),
		System:   context_,
		Messages: []Message{{Role: "user", Content: query}},
	}
	resp, err := a.router.Complete(ctx, req)
	if err != nil {
		return core.Response{}, err
	}
	return core.Response{
		Text:      resp.Content,
		Tokens:    resp.Usage.TotalTokens,
		Provider:  a.router.Provider().Name(),
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// IsAvailable implements core.ModelProvider. The router's underlying
// provider has no liveness probe of its own, so availability is judged
// by whether it advertises at least one model.
func (a *ModelProviderAdapter) IsAvailable() bool {
	return len(a.router.Models()) > 0
}

// Name implements core.ModelProvider.
func (a *ModelProviderAdapter) Name() string {
	return a.router.Provider().Name()
}

// EstimateCost implements core.ModelProvider. It uses the same rough
// token estimate CountTokens falls back to, since cost estimation sits
// on the same pre-call budgeting path and must not itself call out to
// a provider.
func (a *ModelProviderAdapter) EstimateCost(context_ string) float64 {
	return float64(EstimateTokens(context_))
}
