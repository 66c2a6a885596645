package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arturoeanton/go-medqa-rag/internal/app"
	"github.com/arturoeanton/go-medqa-rag/internal/handler"
	"github.com/arturoeanton/go-medqa-rag/internal/mcp"
	"github.com/arturoeanton/go-medqa-rag/internal/middleware"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

var version = "dev"

func main() {
	if err := run(context.Background(), os.Args); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	var opts app.Options
	var warmup bool
	var flush func()

	cmd := &cli.Command{
		Name:    "medqa-server",
		Usage:   "Medical QA chatbot HTTP and MCP server",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "TOML config file; environment variables override it",
				Sources:     cli.EnvVars("MEDQA_CONFIG"),
				Destination: &opts.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Log level (debug, info, warn, error)",
				Destination: &opts.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "Log format (console, json)",
				Destination: &opts.LogFormat,
			},
			&cli.BoolFlag{
				Name:        "warmup",
				Usage:       "Load the embedding model before accepting requests",
				Sources:     cli.EnvVars("MEDQA_WARMUP"),
				Destination: &warmup,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, f, err := app.Bootstrap(opts, os.Stderr)
			if err != nil {
				return err
			}
			flush = f

			a, err := app.New(ctx, cfg)
			if err != nil {
				return goerr.Wrap(err, "failed to build application")
			}
			defer a.Close()

			if warmup {
				a.Warmup(ctx)
			}
			return serve(ctx, a)
		},
	}

	err := cmd.Run(ctx, args)
	if flush != nil {
		flush()
	}
	if err != nil {
		slog.Error("failed to run server", "error", err)
		return err
	}
	return nil
}

func serve(ctx context.Context, a *app.App) error {
	cfg := a.Config

	srv := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * cfg.CompletionTimeout,
	})

	srv.Use(recover.New())
	srv.Use(fiberlogger.New())
	srv.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
	}))
	srv.Use(middleware.AuditMiddleware(a.Audit))

	api := srv.Group("/api/v1")
	handler.NewSystemHandler(cfg.AppName, a.Chat, a.Retrieval).Register(api)
	handler.NewChatHandler(a.Chat).Register(api)
	handler.NewRetrieveHandler(a.Retrieval).Register(api)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MCPEnabled {
		mcpServer := mcp.NewServer(a.Chat, a.Retrieval, a.Audit, cfg.MCPPort)
		go func() {
			if err := mcpServer.Start(ctx); err != nil {
				slog.Error("MCP server failed", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Port, "version", version)
		if err := srv.Listen(":"+cfg.Port, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
			errCh <- goerr.Wrap(err, "http server stopped", goerr.V("port", cfg.Port))
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
			return goerr.Wrap(err, "failed to shutdown server gracefully")
		}
		return nil
	}
}
