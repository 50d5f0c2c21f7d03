// Package main is the entry point for the poolwatch log watcher.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/poolwatch/poolwatch/internal/alert"
	"github.com/poolwatch/poolwatch/internal/audit"
	"github.com/poolwatch/poolwatch/internal/config"
	"github.com/poolwatch/poolwatch/internal/notify"
	"github.com/poolwatch/poolwatch/internal/watcher"
)

func main() {
	// Local .env can supply NGINX_LOG_FILE, SLACK_WEBHOOK_URL, etc.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	dryRun := flag.Bool("dry-run", false, "log alerts instead of sending them")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Logging is not configured yet; use a bare console logger.
		setupLogging("console", "info", *debug)
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	setupLogging(cfg.Monitoring.LogFormat, cfg.Monitoring.LogLevel, *debug)

	var auditLog alert.AuditLog
	if cfg.Audit.Path != "" {
		store, err := audit.Open(cfg.Audit.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open audit store")
		}
		defer store.Close()
		auditLog = store
		log.Info().Str("path", cfg.Audit.Path).Msg("alert audit trail enabled")
	}

	var notifier alert.Notifier
	switch {
	case *dryRun:
		log.Info().Msg("dry-run: alerts will be logged, not sent")
		notifier = notify.NewLogNotifier()
	case cfg.Notify.WebhookURL == "":
		log.Warn().Msg("no webhook configured, alerts will be logged only")
		notifier = notify.NewLogNotifier()
	default:
		notifier = notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.Timeout)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := watcher.New(cfg, notifier, auditLog)
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("watcher exited with error")
		os.Exit(1)
	}
}

// setupLogging configures the global zerolog logger. Format "console"
// forces pretty output, "json" forces JSON, and "" picks console only
// when stdout is a terminal.
func setupLogging(format, level string, debug bool) {
	if format == "console" || (format == "" && term.IsTerminal(int(os.Stdout.Fd()))) {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if debug {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
