package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"portway.dev/portway/internal/config"
	"portway.dev/portway/internal/inspect"
	"portway.dev/portway/internal/logging"
	"portway.dev/portway/internal/proxy"
)

func main() {
	logger := newLogger().With(logging.F("app", "portwayd"))

	fs := flag.NewFlagSet("portwayd", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "Configuration file path")
	keyAuth := fs.String("acme-key-auth", getenv("PORTWAY_ACME_KEY_AUTH", ""), "ACME HTTP-01 key identifier")
	_ = fs.Parse(os.Args[1:])

	cfg, found, err := config.Load(*configPath)
	if err != nil {
		fatal(logger, "load config", logging.F("path", *configPath), logging.F("err", err))
	}
	if !found {
		fatal(logger, "config not found", logging.F("path", *configPath))
	}
	if err := config.Validate(cfg); err != nil {
		fatal(logger, "invalid config", logging.F("err", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, err := proxy.Start(cfg, proxy.Options{
		ACMEKeyAuth: *keyAuth,
		Logger:      logger,
		Inspector:   inspect.NewStore(inspect.StoreConfig{}),
	})
	if err != nil {
		// Partial startups stay partial on purpose; release what did
		// start before exiting.
		group.Destroy()
		fatal(logger, "start listeners", logging.F("err", err))
	}

	group.OnPublicURL(func(localAddr, publicURL string) {
		fmt.Printf("%s -> %s\n", publicURL, localAddr)
	})

	if !cfg.ProxyEnabled() {
		logger.Info("reverse proxy disabled")
	}

	<-ctx.Done()

	logger.Info("shutting down")
	group.Destroy()
}

func newLogger() logging.Logger {
	level, _ := logging.ParseLevel(os.Getenv("PORTWAY_LOG_LEVEL"))
	format, _ := logging.ParseFormat(os.Getenv("PORTWAY_LOG_FORMAT"))

	return logging.New(logging.Options{
		Out:    os.Stderr,
		Level:  level,
		Format: format,
	})
}

func getenv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func fatal(logger logging.Logger, msg string, fields ...logging.Field) {
	if logger != nil {
		logger.Error(msg, fields...)
	} else {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(1)
}
