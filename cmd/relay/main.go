// Command relay serves the same-origin messages endpoint used by the
// anthropic vendor adapter. With -config the file is watched and relay
// settings are swapped without a restart.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ahrav/go-appraise/internal/llm/configuration"
	"github.com/ahrav/go-appraise/internal/logging"
	"github.com/ahrav/go-appraise/internal/relay"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to YAML config file (watched for changes)")
		envFile    = flag.String("env", ".env", "Path to .env file")
		addr       = flag.String("addr", "", "Listen address (overrides config)")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "relay: load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	var logger *logging.Logger
	var srv *relay.Server

	onChange := func(next *configuration.Config, err error) {
		if err != nil {
			logger.Error("config reload failed, keeping previous settings", "error", err)
			return
		}
		logger.SetLevel(next.Observability.LogLevel)
		srv.Update(next.Relay)
		logger.Info("relay config reloaded")
	}

	var (
		cfg *configuration.Config
		err error
	)
	if *configFile != "" {
		cfg, err = configuration.LoadAndWatch(*configFile, func(next *configuration.Config, err error) {
			if srv != nil {
				onChange(next, err)
			}
		})
	} else {
		cfg, err = configuration.Load("")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Relay.Addr = *addr
	}

	logger = logging.New(cfg.Observability, os.Stderr)
	slog.SetDefault(logger.Logger)

	srv = relay.NewServer(cfg.Relay, &http.Client{}, logger.Logger)
	if cfg.Relay.ServerAPIKey() == "" {
		logger.Warn("no server-held API key configured; callers must supply their own")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("relay listening", "addr", srv.Addr(), "path", cfg.Relay.Path, "upstream", cfg.Relay.UpstreamURL)
	if err := srv.Start(ctx); err != nil {
		logger.Error("relay stopped", "error", err)
		os.Exit(1)
	}
}
