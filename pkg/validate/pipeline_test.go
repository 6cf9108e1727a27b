package validate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/merlin/pkg/core"
)

type fixedStage struct {
	name   string
	passed bool
	score  float64
}

func (f fixedStage) Name() string          { return f.name }
func (f fixedStage) QuickCheck(string) bool { return true }
func (f fixedStage) Validate(ctx context.Context, response string, task *core.Task) (StageResult, error) {
	return StageResult{Stage: f.name, Passed: f.passed, Score: f.score}, nil
}

func TestEarlyExitStopsAtFirstFailure(t *testing.T) {
	stages := []Stage{
		fixedStage{"syntax", true, 1.0},
		fixedStage{"build", false, 0.0},
		fixedStage{"test", true, 1.0},
	}
	p := New(stages, WithEarlyExit(true))
	result := p.Run(context.Background(), "resp", nil)

	require.False(t, result.Passed)
	require.Len(t, result.Stages, 2, "test must not run after build fails")
}

func TestScoreIsProductOfStages(t *testing.T) {
	stages := []Stage{
		fixedStage{"syntax", true, 0.5},
		fixedStage{"build", true, 0.5},
	}
	p := New(stages)
	result := p.Run(context.Background(), "resp", nil)

	require.True(t, result.Passed)
	require.InDelta(t, 0.25, result.Score, 1e-9)
}

func TestEmptyPipelineScoresOne(t *testing.T) {
	p := New(nil)
	result := p.Run(context.Background(), "resp", nil)
	require.True(t, result.Passed)
	require.Equal(t, 1.0, result.Score)
}
