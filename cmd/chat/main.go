package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/arturoeanton/go-medqa-rag/internal/app"
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
	var model string
	var noRAG bool
	var flush func()

	cmd := &cli.Command{
		Name:    "medqa-chat",
		Usage:   "Chat with the medical QA assistant from the terminal",
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
				Value:       "warn",
				Destination: &opts.LogLevel,
			},
			&cli.StringFlag{
				Name:        "model",
				Aliases:     []string{"m"},
				Usage:       "Completion model; defaults to the configured one",
				Destination: &model,
			},
			&cli.BoolFlag{
				Name:        "no-rag",
				Usage:       "Start with retrieval disabled",
				Destination: &noRAG,
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

			if model == "" {
				model = a.Chat.DefaultModel()
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			s := newSession(a.Chat, os.Stdout, model)
			s.useRAG = !noRAG
			s.banner(cfg.AppName)
			return s.loop(ctx, os.Stdin)
		},
	}

	err := cmd.Run(ctx, args)
	if flush != nil {
		flush()
	}
	if err != nil {
		slog.Error("chat failed", "error", err)
		return err
	}
	return nil
}
