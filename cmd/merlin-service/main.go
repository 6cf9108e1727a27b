// Package main provides the entry point for merlin-service.
//
// merlin-service is a standalone service exposing the task-graph runtime
// over HTTP:
// - REST API for task submission and free-text request decomposition
// - Server-sent event stream of scheduler/executor progress
//
// Usage:
//
//	merlin-service                    Start the service (default)
//	merlin-service serve              Start the service
//	merlin-service version            Show version
//	merlin-service status             Show service status
//	merlin-service stop               Stop the running service
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/merlin"
	"github.com/ternarybob/merlin/internal/api"
	"github.com/ternarybob/merlin/internal/config"
	"github.com/ternarybob/merlin/internal/service"
)

// version is set via -ldflags at build time
var version = "dev"

var configPath string

func main() {
	api.SetVersion(version)

	args := os.Args[1:]
	command := ""
	cmdArgs := []string{}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "--config=") {
			configPath = strings.TrimPrefix(arg, "--config=")
		} else if arg == "--config" && i+1 < len(args) {
			configPath = args[i+1]
			i++
		} else if strings.HasPrefix(arg, "-") {
			// Skip unknown flags for now
		} else if command == "" {
			command = arg
		} else {
			cmdArgs = append(cmdArgs, arg)
		}
	}

	if command == "" {
		command = "serve"
	}

	var err error
	switch command {
	case "serve", "start":
		err = cmdServe(cmdArgs)
	case "version", "-v", "--version":
		cmdVersion()
	case "status":
		err = cmdStatus()
	case "stop":
		err = cmdStop()
	case "init-config":
		err = cmdInitConfig()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`merlin-service - agentic code-assistant task-graph service

Usage:
  merlin-service [flags] [command] [args]

Commands:
  serve         Start the service (default)
  version       Show version information
  status        Show service status
  stop          Stop the running service
  init-config   Create example configuration file
  help          Show this help

Flags:
  --config PATH   Path to configuration file (default: ~/.merlin-service/config.toml)

Environment:
  ANTHROPIC_API_KEY   API key for the Claude model provider
  OLLAMA_BASE_URL     Base URL for a local Ollama provider (used if set and
                      ANTHROPIC_API_KEY is not)
  MERLIN_CONFIG       Path to configuration file (alternative to --config)
  MERLIN_DATA_DIR     Override data directory

Configuration:
  Config file: ~/.merlin-service/config.toml (TOML format)

Examples:
  merlin-service                         Start the service with defaults
  merlin-service --config /path/to.toml  Start with custom config
  merlin-service init-config             Create example config file
  curl localhost:8420/health             Check service health
  curl -N localhost:8420/events          Stream task execution events`)
}

func cmdVersion() {
	fmt.Printf("merlin-service version %s\n", version)
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("MERLIN_CONFIG"); envPath != "" {
		return envPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if envDataDir := os.Getenv("MERLIN_DATA_DIR"); envDataDir != "" {
		cfg.Service.DataDir = envDataDir
	}
	return cfg, nil
}

// runtimeOption builds the merlin.Option that selects a model provider,
// preferring Anthropic when a key is present and falling back to a local
// Ollama instance otherwise.
func runtimeOption(cfg *config.Config) (merlin.Option, error) {
	if key := cfg.LLM.APIKey; key != "" && cfg.LLM.Provider == "anthropic" {
		return merlin.WithAnthropicKey(key), nil
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return merlin.WithAnthropicKey(key), nil
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		return merlin.WithOllama(baseURL), nil
	}
	return nil, fmt.Errorf("no model provider configured: set ANTHROPIC_API_KEY or OLLAMA_BASE_URL")
}

func cmdServe(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if running, pid := service.IsRunning(cfg); running {
		return fmt.Errorf("service already running (PID %d)", pid)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	opt, err := runtimeOption(cfg)
	if err != nil {
		return err
	}

	workdir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	rt, err := merlin.New(workdir, opt)
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}

	apiServer := api.NewServer(cfg, rt)
	daemon := service.NewDaemon(cfg)

	if err := daemon.Start(apiServer); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	fmt.Printf("merlin-service v%s started on %s\n", version, cfg.Address())
	fmt.Printf("API: http://%s/health\n", cfg.Address())
	fmt.Printf("Events: http://%s/events\n", cfg.Address())

	daemon.Wait()

	return nil
}

func cmdStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	running, pid := service.IsRunning(cfg)
	if running {
		fmt.Printf("merlin-service: running (PID %d)\n", pid)
		fmt.Printf("Address: %s\n", cfg.Address())
		fmt.Printf("Config: %s\n", getConfigPath())
		fmt.Printf("Data: %s\n", cfg.Service.DataDir)
	} else {
		fmt.Println("merlin-service: stopped")
	}

	return nil
}

func cmdStop() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	running, pid := service.IsRunning(cfg)
	if !running {
		fmt.Println("merlin-service is not running")
		return nil
	}

	fmt.Printf("Stopping merlin-service (PID %d)...\n", pid)
	if err := service.StopRunning(cfg); err != nil {
		return err
	}

	fmt.Println("merlin-service stopped")
	return nil
}

func cmdInitConfig() error {
	path := getConfigPath()

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := config.WriteExampleConfig(path); err != nil {
		return err
	}

	fmt.Printf("Created example configuration: %s\n", path)
	return nil
}
