// Command coach serves the Socratic coaching engine.
//
// Usage:
//
//	coach serve --config config.yaml
//	coach serve --port 8000 --log-level debug
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/socraticlabs/coach/pkg/agent"
	"github.com/socraticlabs/coach/pkg/config"
	"github.com/socraticlabs/coach/pkg/content"
	"github.com/socraticlabs/coach/pkg/instruction"
	"github.com/socraticlabs/coach/pkg/llms"
	"github.com/socraticlabs/coach/pkg/logger"
	"github.com/socraticlabs/coach/pkg/server"
	"github.com/socraticlabs/coach/pkg/session"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the coaching server."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:""`
	LogFormat string `help:"Log format (text or json)." default:""`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("coach version %s\n", version)
	return nil
}

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Host string `help:"Bind address." default:""`
	Port int    `help:"Listen port." default:"0"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Logging.Format = cli.LogFormat
	}

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger.Init(level, os.Stderr, cfg.Logging.Format)

	registry, err := llms.NewRegistryFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("building providers: %w", err)
	}
	defer registry.Close()

	provider, err := llms.Select(cfg, registry)
	if err != nil {
		return fmt.Errorf("selecting backend: %w", err)
	}
	slog.Info("generation backend selected", "backend", cfg.Coaching.Backend, "model", provider.ModelName())

	var contentStore content.Store
	if cfg.Content.DatabasePath != "" {
		store, err := content.OpenSQL(cfg.Content.DatabasePath)
		if err != nil {
			return fmt.Errorf("opening content store: %w", err)
		}
		defer store.Close()
		contentStore = store
	}

	template, err := instruction.Load(cfg.Coaching.PromptPath)
	if err != nil {
		return fmt.Errorf("loading prompt template: %w", err)
	}

	agents := session.NewMemoryStore(func(moduleType, sessionID string, ctx map[string]any) (agent.Agent, error) {
		return agent.New(moduleType, sessionID, ctx, provider)
	})
	chats := session.NewChatStore()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := server.New(addr, provider, agents, chats, contentStore, template)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("coach"),
		kong.Description("Socratic coaching dialogue engine."),
		kong.UsageOnError(),
	)
	if err := kctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
