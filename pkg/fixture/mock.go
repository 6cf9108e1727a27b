// Package fixture replays scripted model responses against the task
// runtime (scheduler, workspace, step executor, orchestrator) and asserts
// on the resulting task results, workspace state, and event stream.
// Grounded on pkg/orchestra/workdir_test.go and pkg/index/retriever_test.go's
// table-driven-fixture style, using github.com/stretchr/testify for
// assertions. The scripted scenarios reproduce the runtime's documented
// end-to-end behaviors (simple implementation, cyclic rejection, file
// conflict serialization, retry-on-soft-failure, recursive task lists) as
// a small Go-literal scenario format wrapping MockProvider, which records
// every call it receives and returns a scripted response in order.
package fixture

import (
	"context"
	"sync"

	"github.com/ternarybob/merlin/pkg/core"
)

// Call is one recorded MockProvider.Generate invocation.
type Call struct {
	Query   string
	Context string
}

// MockProvider implements core.ModelProvider by returning responses from
// a fixed script in order, repeating the last scripted response for any
// call beyond the script's length. It shares core.Response as its return
// shape with every live pkg/llm provider, so a fixture can be swapped for
// a real provider by substituting this type alone.
type MockProvider struct {
	name   string
	script []string
	err    error

	mu         sync.Mutex
	calls      int
	Transcript []Call
}

// NewMockProvider builds a MockProvider that returns script's entries in
// order on successive Generate calls.
func NewMockProvider(name string, script ...string) *MockProvider {
	return &MockProvider{name: name, script: script}
}

// WithError makes every Generate call return err instead of a scripted
// response, for exercising provider-failure paths.
func (m *MockProvider) WithError(err error) *MockProvider {
	m.err = err
	return m
}

func (m *MockProvider) Generate(ctx context.Context, query, context_ string) (core.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transcript = append(m.Transcript, Call{Query: query, Context: context_})
	if m.err != nil {
		return core.Response{}, m.err
	}
	idx := m.calls
	if idx >= len(m.script) {
		idx = len(m.script) - 1
	}
	m.calls++
	text := ""
	if idx >= 0 {
		text = m.script[idx]
	}
	return core.Response{Text: text, Provider: m.name}, nil
}

func (m *MockProvider) IsAvailable() bool             { return true }
func (m *MockProvider) Name() string                  { return m.name }
func (m *MockProvider) EstimateCost(_ string) float64 { return 0 }

// CallCount returns how many times Generate has been called so far.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
