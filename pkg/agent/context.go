package agent

import (
	"context"
	"strings"

	"github.com/ternarybob/merlin/pkg/core"
	pkgcontext "github.com/ternarybob/merlin/pkg/context"
)

// QueryBuilder turns a StepContextSpec into the literal query text passed
// to the model: the step's literal text (if any) followed by every
// matched file's content, assembled and token-budgeted by
// pkg/context.Builder.
type QueryBuilder struct {
	builder *pkgcontext.Builder
	budget  int
}

// NewQueryBuilder constructs a QueryBuilder over an already-wired
// pkg/context.Builder; budget <= 0 uses the builder's own default.
func NewQueryBuilder(builder *pkgcontext.Builder, budget int) *QueryBuilder {
	return &QueryBuilder{builder: builder, budget: budget}
}

// Assemble implements ContextAssembler.
func (q *QueryBuilder) Assemble(ctx context.Context, spec *core.StepContextSpec) (string, error) {
	if spec == nil {
		return "", nil
	}

	var out strings.Builder
	if spec.Literal != "" {
		out.WriteString(spec.Literal)
		out.WriteString("\n\n")
	}

	if len(spec.Globs) == 0 {
		return strings.TrimSpace(out.String()), nil
	}

	files, err := q.builder.Build(ctx, pkgcontext.Strategy{Kind: pkgcontext.StrategyBroad, Patterns: spec.Globs}, q.budget)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		out.WriteString("### ")
		out.WriteString(f.Path)
		out.WriteString("\n")
		out.WriteString(f.Content)
		out.WriteString("\n\n")
	}
	return strings.TrimSpace(out.String()), nil
}
