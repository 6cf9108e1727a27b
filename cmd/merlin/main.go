// Package main provides the merlin CLI: a thin entrypoint over
// pkg/agent.Orchestrator for running a free-text request, or an
// already-decomposed task batch, against a working directory.
//
// Usage:
//
//	merlin run "<request>"     Decompose a request into tasks and run them
//	merlin tasks tasks.json     Run an already-decomposed task batch
//	merlin version              Show version information
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ternarybob/merlin"
	"github.com/ternarybob/merlin/pkg/core"
)

// version is set via -ldflags at build time.
var version = "dev"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch args[0] {
	case "run":
		err = cmdRun(args[1:])
	case "tasks":
		err = cmdTasks(args[1:])
	case "version", "-v", "--version":
		fmt.Printf("merlin version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`merlin - agentic code-assistant task-graph runtime

Usage:
  merlin run "<request>"      Decompose a free-text request into tasks and run them
  merlin tasks tasks.json     Run an already-decomposed task batch from a JSON file
  merlin version               Show version information

Flags (apply to run/tasks):
  --workdir PATH   Working directory the tasks operate on (default: current directory)

Environment:
  ANTHROPIC_API_KEY   API key for the Claude model provider
  OLLAMA_BASE_URL     Base URL for a local Ollama provider (used if set and
                      ANTHROPIC_API_KEY is not)

Examples:
  merlin run "add a health check endpoint"
  merlin tasks ./plan.json --workdir ./myproject`)
}

// parseWorkdirFlag pulls --workdir out of args and returns the remaining
// positional arguments alongside the resolved working directory.
func parseWorkdirFlag(args []string) ([]string, string, error) {
	workdir := ""
	var rest []string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--workdir" && i+1 < len(args):
			workdir = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--workdir="):
			workdir = strings.TrimPrefix(args[i], "--workdir=")
		default:
			rest = append(rest, args[i])
		}
	}
	if workdir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("get working directory: %w", err)
		}
		workdir = cwd
	}
	return rest, workdir, nil
}

func modelOption() (merlin.Option, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return merlin.WithAnthropicKey(key), nil
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		return merlin.WithOllama(baseURL), nil
	}
	return nil, fmt.Errorf("no model provider configured: set ANTHROPIC_API_KEY or OLLAMA_BASE_URL")
}

// streamEvents prints runtime events to stderr as they arrive until ctx
// is cancelled, so progress is visible while ExecuteTasks/ProcessRequest
// blocks on the foreground goroutine.
func streamEvents(ctx context.Context, rt *merlin.Runtime) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-rt.Events():
			if !ok {
				return
			}
			printEvent(e)
		}
	}
}

func printEvent(e core.Event) {
	switch {
	case e.Message != "":
		fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", e.Kind, e.TaskId, e.Message)
	case e.ToolName != "":
		fmt.Fprintf(os.Stderr, "[%s] %s: tool %s\n", e.Kind, e.TaskId, e.ToolName)
	default:
		fmt.Fprintf(os.Stderr, "[%s] %s\n", e.Kind, e.TaskId)
	}
}

func cmdRun(args []string) error {
	rest, workdir, err := parseWorkdirFlag(args)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return fmt.Errorf("usage: merlin run \"<request>\"")
	}
	requestText := strings.Join(rest, " ")

	opt, err := modelOption()
	if err != nil {
		return err
	}

	rt, err := merlin.New(workdir, opt)
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	go streamEvents(ctx, rt)

	results, err := rt.ProcessRequest(ctx, requestText)
	if err != nil {
		return fmt.Errorf("process request: %w", err)
	}

	return printResults(results)
}

func cmdTasks(args []string) error {
	rest, workdir, err := parseWorkdirFlag(args)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return fmt.Errorf("usage: merlin tasks <tasks.json>")
	}

	data, err := os.ReadFile(rest[0])
	if err != nil {
		return fmt.Errorf("read task batch: %w", err)
	}
	var tasks []*core.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return fmt.Errorf("parse task batch: %w", err)
	}
	if len(tasks) == 0 {
		return fmt.Errorf("task batch is empty")
	}

	opt, err := modelOption()
	if err != nil {
		return err
	}

	rt, err := merlin.New(workdir, opt)
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	go streamEvents(ctx, rt)

	results, err := rt.ExecuteTasks(ctx, tasks)
	if err != nil {
		return fmt.Errorf("execute tasks: %w", err)
	}

	return printResults(results)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}

func printResults(results []core.TaskResult) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tasks failed", failed, len(results))
	}
	return nil
}
