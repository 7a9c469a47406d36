// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command sensei is the multi-agent tutoring backend server.
//
// Usage:
//
//	sensei serve --config config.yaml
//	sensei validate --config config.yaml
//	sensei version
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kadirpekel/sensei"
	"github.com/kadirpekel/sensei/pkg/agents"
	"github.com/kadirpekel/sensei/pkg/cache"
	"github.com/kadirpekel/sensei/pkg/config"
	"github.com/kadirpekel/sensei/pkg/embedders"
	"github.com/kadirpekel/sensei/pkg/llms"
	"github.com/kadirpekel/sensei/pkg/logger"
	"github.com/kadirpekel/sensei/pkg/retrieval"
	"github.com/kadirpekel/sensei/pkg/server"
	"github.com/kadirpekel/sensei/pkg/supervisor"
	"github.com/kadirpekel/sensei/pkg/vector"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the tutoring server."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration file."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(sensei.GetVersion().String())
	return nil
}

// ValidateCmd checks a config file without starting anything.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required for validate")
	}
	if _, err := config.Load(cli.Config); err != nil {
		return err
	}
	fmt.Printf("%s: OK\n", cli.Config)
	return nil
}

// ServeCmd starts the tutoring server.
type ServeCmd struct {
	Port int `help:"Port to listen on (overrides config)." default:"0"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	embedder, err := embedders.NewFromConfig(&cfg.Embedder)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	defer func() { _ = embedder.Close() }()

	store, err := vector.NewProviderFromConfig(&cfg.VectorStore)
	if err != nil {
		return fmt.Errorf("failed to create vector store: %w", err)
	}
	defer func() { _ = store.Close() }()

	chain, err := llms.ChainFromConfig(&cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to create LLM chain: %w", err)
	}
	defer func() { _ = chain.Close() }()

	retriever, err := retrieval.NewService(store, embedder, &cfg.Retrieval)
	if err != nil {
		return fmt.Errorf("failed to create retrieval service: %w", err)
	}

	var semCache *cache.SemanticCache
	if cfg.Cache.Enabled == nil || *cfg.Cache.Enabled {
		semCache, err = cache.NewFromConfig(ctx, embedder, store, &cfg.Cache)
		if err != nil {
			return fmt.Errorf("failed to create semantic cache: %w", err)
		}
		defer func() { _ = semCache.Close() }()
	} else {
		slog.Info("semantic cache disabled by config")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []supervisor.Option{
		supervisor.WithRetriever(retriever),
		supervisor.WithMetrics(supervisor.NewMetrics(registry)),
	}
	if semCache != nil {
		opts = append(opts, supervisor.WithCache(semCache))
	}

	sup, err := supervisor.New(&cfg.Supervisor, supervisor.Specialists{
		Content: agents.NewContentAgent(chain),
		Solver:  agents.NewSolverAgent(chain),
		Grader:  agents.NewGraderAgent(chain),
		Analyst: agents.NewAnalystAgent(chain),
	}, opts...)
	if err != nil {
		return fmt.Errorf("failed to create supervisor: %w", err)
	}

	srv, err := server.New(&cfg.Server, sup, retriever, semCache, registry)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Shutdown error", "error", err)
		}
		cancel()
	}()

	slog.Info("sensei server starting",
		"version", sensei.Version,
		"providers", chain.ProviderNames(),
		"vector_store", store.Name(),
		"cache_enabled", semCache != nil)

	return srv.Run()
}

// loadConfig loads the config file, or the zero-config defaults with the
// provider detected from environment when no file is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	slog.Info("no config file given, using defaults")
	return config.Default(), nil
}

func main() {
	// Optional .env for local development; absence is fine.
	_ = godotenv.Load()

	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("sensei"),
		kong.Description("Multi-agent AI tutoring backend."),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}

	output := os.Stderr
	if cli.LogFile != "" {
		f, cleanup, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		output = f
	}
	logger.Init(level, output, cli.LogFormat)

	if err := kctx.Run(cli); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
