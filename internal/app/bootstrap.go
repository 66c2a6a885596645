package app

import (
	"io"
	"log/slog"
	"time"

	"github.com/arturoeanton/go-medqa-rag/pkg/config"
	"github.com/arturoeanton/go-medqa-rag/pkg/logging"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
)

// Options are the command line overrides shared by the binaries.
type Options struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

// Bootstrap loads .env and configuration, installs the default logger and
// starts Sentry when a DSN is set. The returned func flushes Sentry.
func Bootstrap(opts Options, logOut io.Writer) (*config.Config, func(), error) {
	_ = godotenv.Load() // .env is optional

	cfg, err := config.LoadFile(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.LogFormat = opts.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, goerr.Wrap(err, "invalid configuration")
	}
	if err := logging.Setup(logOut, cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, nil, goerr.Wrap(err, "failed to configure logger")
	}

	flush := func() {}
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.SentryEnv,
		}); err != nil {
			return nil, nil, goerr.Wrap(err, "failed to initialize sentry")
		}
		flush = func() { sentry.Flush(2 * time.Second) }
		slog.Info("sentry enabled", "env", cfg.SentryEnv)
	}

	slog.Info("configuration loaded", cfg.LogAttrs()...)
	return cfg, flush, nil
}
