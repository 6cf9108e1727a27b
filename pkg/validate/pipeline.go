// Package validate implements the validation pipeline: an
// ordered sequence of pluggable stages, each producing a pass/fail verdict
// and a [0,1] score, composed with early-exit and product scoring. Stage
// builders follow the Verdict builder idiom in pkg/orchestra/verdict.go,
// generalized from a fixed four-field verdict into an open set of named
// stages.
package validate

import (
	"context"
	"time"

	"github.com/ternarybob/merlin/pkg/core"
)

// StageResult is one stage's outcome.
type StageResult struct {
	Stage    string
	Passed   bool
	Score    float64
	Duration time.Duration
	Details  string
}

// Stage is one pluggable validation step. QuickCheck is a cheap
// pre-filter the pipeline may use to skip an expensive Validate call when
// it can already tell the answer; returning false from QuickCheck does not
// by itself fail the stage, it only signals "worth the full check."
type Stage interface {
	Name() string
	QuickCheck(response string) bool
	Validate(ctx context.Context, response string, task *core.Task) (StageResult, error)
}

// Result is the pipeline's composite outcome.
type Result struct {
	Passed bool
	Score  float64
	Stages []StageResult
	Errors   map[string]string
	Warnings map[string][]string
}

// Pipeline runs an ordered list of Stages.
type Pipeline struct {
	stages    []Stage
	earlyExit bool
}

// Option configures a Pipeline at construction.
type Option func(*Pipeline)

// WithEarlyExit stops the pipeline at the first failed stage.
func WithEarlyExit(enabled bool) Option {
	return func(p *Pipeline) { p.earlyExit = enabled }
}

// New builds a Pipeline from an ordered stage list.
func New(stages []Stage, opts ...Option) *Pipeline {
	p := &Pipeline{stages: stages, earlyExit: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes every stage in order (subject to early-exit) and composes
// the result: Passed is the conjunction of every stage that ran, Score is
// the product of every stage's score (1.0 for an empty pipeline).
func (p *Pipeline) Run(ctx context.Context, response string, task *core.Task) Result {
	result := Result{
		Passed:   true,
		Score:    1.0,
		Errors:   make(map[string]string),
		Warnings: make(map[string][]string),
	}

	for _, stage := range p.stages {
		start := time.Now()
		sr, err := stage.Validate(ctx, response, task)
		if sr.Duration == 0 {
			sr.Duration = time.Since(start)
		}
		if err != nil {
			result.Errors[stage.Name()] = err.Error()
			sr.Passed = false
		}

		result.Stages = append(result.Stages, sr)
		result.Score *= sr.Score
		if !sr.Passed {
			result.Passed = false
			if p.earlyExit {
				break
			}
		}
	}

	return result
}

// DefaultStages returns Syntax, Build, Test, Lint in that order — the
// usual validation pipeline for a task workdir. Each wraps an opaque
// shell command; their concrete implementations stay deliberately thin,
// since the command a project actually runs belongs in configuration,
// not here.
func DefaultStages(workdir string) []Stage {
	return []Stage{
		NewCommandStage("syntax", workdir, ""),
		NewCommandStage("build", workdir, ""),
		NewCommandStage("test", workdir, ""),
		NewCommandStage("lint", workdir, ""),
	}
}
