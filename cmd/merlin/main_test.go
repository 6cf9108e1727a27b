package main

import (
	"testing"

	"github.com/ternarybob/merlin/pkg/core"
)

func TestParseWorkdirFlag(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantRest []string
		wantDir  string
	}{
		{"no flag", []string{"add", "a", "feature"}, []string{"add", "a", "feature"}, ""},
		{"space form", []string{"--workdir", "/tmp/proj", "do", "x"}, []string{"do", "x"}, "/tmp/proj"},
		{"equals form", []string{"--workdir=/tmp/proj", "do", "x"}, []string{"do", "x"}, "/tmp/proj"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rest, dir, err := parseWorkdirFlag(tt.args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(rest) != len(tt.wantRest) {
				t.Fatalf("rest = %v, want %v", rest, tt.wantRest)
			}
			for i := range rest {
				if rest[i] != tt.wantRest[i] {
					t.Errorf("rest[%d] = %q, want %q", i, rest[i], tt.wantRest[i])
				}
			}
			if tt.wantDir != "" && dir != tt.wantDir {
				t.Errorf("dir = %q, want %q", dir, tt.wantDir)
			}
			if tt.wantDir == "" && dir == "" {
				t.Error("expected a default working directory, got empty string")
			}
		})
	}
}

func TestPrintResultsReportsFailures(t *testing.T) {
	results := []core.TaskResult{
		{TaskId: "t1", Success: true},
		{TaskId: "t2", Success: false, Error: "boom"},
	}

	if err := printResults(results); err == nil {
		t.Fatal("expected an error when a task fails")
	}
}

func TestPrintResultsAllSucceed(t *testing.T) {
	results := []core.TaskResult{
		{TaskId: "t1", Success: true},
		{TaskId: "t2", Success: true},
	}

	if err := printResults(results); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
