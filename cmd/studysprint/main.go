// Package main provides the studysprint binary entry point.
// StudySprint serves a study-plan generation agent over HTTP, turning a
// conversation about exam dates, subjects, and available time into a
// validated day-by-day plan.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/studysprint/studysprint/llm/providers"

	"github.com/studysprint/studysprint/agent"
	"github.com/studysprint/studysprint/config"
	"github.com/studysprint/studysprint/llm"
	"github.com/studysprint/studysprint/server"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "studysprint"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "studysprint",
		Short: "Study plan generation agent",
		Long: `StudySprint is a conversational agent that builds constrained,
day-by-day study plans for exam preparation.

It provides:
- Chat and plan-generation modes with automatic intent routing
- Feasibility checking of time budgets against subject workload
- Schema-validated model output with retry and deterministic fallback`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, addr, logLevel)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func run(configPath, addr, logLevel string) error {
	// API keys typically live in .env during development
	_ = godotenv.Load()

	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	// Policy sections are read through this snapshot so a config file
	// change applies on the next request without a restart.
	var current atomic.Pointer[config.Config]
	current.Store(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := cfg.Registry()
	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
			current.Store(next)
			applyModelConfig(registry, next)
			logger.Info("Configuration reloaded",
				"path", configPath,
				"endpoints", registry.ListEndpoints())
		}, logger)
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		go watcher.Run(ctx)
	}

	client := llm.NewClient(registry,
		llm.WithTimeout(cfg.Model.Timeout),
		llm.WithLogger(logger))

	metrics := server.NewMetrics()

	gen := agent.NewGenerator(client,
		agent.WithGeneratorLogger(logger),
		agent.WithAttemptObserver(metrics.ObserveGeneration),
		agent.WithGenerationPolicy(func() agent.GenerationPolicy {
			c := current.Load()
			return agent.GenerationPolicy{
				MaxAttempts: c.Generation.MaxAttempts,
				MaxTokens:   c.Generation.MaxTokens,
				Temperature: c.Model.Temperature,
			}
		}))

	planAgent := agent.NewPlanAgent(gen,
		agent.WithLogger(logger),
		agent.WithCostPolicy(func() agent.CostPolicy {
			return costPolicy(current.Load())
		}))

	session := agent.NewSession(planAgent, agent.SessionConfig{
		MaxMessages:     cfg.Session.MaxMessages,
		MaxHistoryChars: cfg.Session.MaxHistoryChars,
		MaxResumeChars:  cfg.Session.MaxResumeChars,
	}, logger)

	srv := server.New(session,
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithMaxResumeChars(cfg.Session.MaxResumeChars))

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("StudySprint ready",
			"version", Version,
			"addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadFromFile(path)
}

// applyModelConfig pushes a reloaded model section into the live registry
// so chain and endpoint edits take effect without a restart. Endpoints
// removed from the file stay registered but unreachable, since the
// rewritten chains no longer name them.
func applyModelConfig(registry *llm.Registry, cfg *config.Config) {
	for name, ep := range cfg.Model.Endpoints {
		registry.SetEndpoint(name, &llm.EndpointConfig{
			Provider: ep.Provider,
			URL:      ep.URL,
			Model:    ep.Model,
		})
	}
	for capability, chain := range cfg.Model.Chains {
		registry.SetChain(capability, append([]string(nil), chain...))
	}
}

func costPolicy(cfg *config.Config) agent.CostPolicy {
	policy := agent.CostPolicy{
		BaseTopicMinutes:    cfg.Feasibility.BaseTopicMinutes,
		PriorityMultipliers: make(map[agent.Priority]float64, len(cfg.Feasibility.PriorityMultipliers)),
	}
	for name, mult := range cfg.Feasibility.PriorityMultipliers {
		policy.PriorityMultipliers[agent.Priority(name)] = mult
	}
	return policy
}
