// Command worker runs a Temporal worker hosting the durable appraisal
// workflow and its activities.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-appraise/internal/llm/configuration"
	"github.com/ahrav/go-appraise/internal/logging"
	"github.com/ahrav/go-appraise/internal/worker"
	"github.com/ahrav/go-appraise/pkg/events"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to YAML config file")
		envFile    = flag.String("env", ".env", "Path to .env file")
	)
	flag.Parse()

	if err := run(*configFile, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, envFile string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg, err := configuration.Load(configFile)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Observability, os.Stderr)
	slog.SetDefault(logger.Logger)

	stages, err := worker.InitializeStages(cfg, logger.Logger)
	if err != nil {
		return err
	}

	c, err := worker.Dial(cfg.Temporal, logger.Logger)
	if err != nil {
		return err
	}
	defer c.Close()

	w := sdkworker.New(c, cfg.Temporal.TaskQueue, sdkworker.Options{
		MaxConcurrentActivityExecutionSize: cfg.Concurrency,
	})
	worker.RegisterAll(w, stages, events.NewLogSink(logger.Logger))

	logger.Info("worker started", "task_queue", cfg.Temporal.TaskQueue, "vendor", cfg.Vendor)
	return w.Run(sdkworker.InterruptCh())
}
