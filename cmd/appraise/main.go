// Command appraise runs a guideline appraisal from the terminal: it extracts
// a document, runs the digest, domain and overall stages in order and writes
// the JSON report.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ahrav/go-appraise/internal/appraisal"
	"github.com/ahrav/go-appraise/internal/document"
	"github.com/ahrav/go-appraise/internal/domain"
	"github.com/ahrav/go-appraise/internal/llm"
	"github.com/ahrav/go-appraise/internal/llm/configuration"
	"github.com/ahrav/go-appraise/internal/llm/transport"
	"github.com/ahrav/go-appraise/internal/logging"
	"github.com/ahrav/go-appraise/internal/prompts"
	"github.com/ahrav/go-appraise/internal/report"
	"github.com/ahrav/go-appraise/pkg/events"
)

const toolName = "go-appraise"

type options struct {
	configFile string
	envFile    string
	vendor     string
	output     string
	check      bool
	step       bool
	document   string
}

func main() {
	var opts options
	flag.StringVar(&opts.configFile, "config", "", "Path to YAML config file")
	flag.StringVar(&opts.envFile, "env", ".env", "Path to .env file with API keys")
	flag.StringVar(&opts.vendor, "vendor", "", "Vendor override: gemini, openai or anthropic")
	flag.StringVar(&opts.output, "out", "appraisal.json", "Report output path")
	flag.BoolVar(&opts.check, "check", false, "Send a short text probe to the vendor and exit")
	flag.BoolVar(&opts.step, "step", false, "Wait for Enter before each stage")
	flag.Parse()
	opts.document = flag.Arg(0)

	if !opts.check && opts.document == "" {
		fmt.Fprintln(os.Stderr, "Usage: appraise [flags] <document.txt|document.json>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(opts, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "appraise: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, in io.Reader, out io.Writer) error {
	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", opts.envFile, err)
	}

	cfg, err := configuration.Load(opts.configFile)
	if err != nil {
		return err
	}
	if opts.vendor != "" {
		cfg.Vendor = strings.ToLower(opts.vendor)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger := logging.New(cfg.Observability, os.Stderr)
	slog.SetDefault(logger.Logger)

	client, err := llm.NewClient(cfg, llm.WithLogger(logger.Logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if opts.check {
		return check(ctx, client, cfg, out)
	}

	pack, err := prompts.Load(cfg.PromptPack)
	if err != nil {
		return err
	}
	stages, err := appraisal.NewStages(client, pack, cfg, logger.Logger)
	if err != nil {
		return err
	}

	pages, err := document.ExtractFile(ctx, opts.document)
	if err != nil {
		return err
	}

	orch := appraisal.NewOrchestrator(stages,
		appraisal.WithEventSink(events.NewLogSink(logger.Logger)),
		appraisal.WithConcurrency(cfg.Concurrency),
		appraisal.WithLogger(logger.Logger),
	)
	if err := orch.LoadDocument(pages); err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded %s: %d pages\n", filepath.Base(opts.document), orch.PageCount())

	// Ctrl-C cancels the running stage; the orchestrator records the failure.
	go func() {
		<-ctx.Done()
		if orch.Cancel() {
			fmt.Fprintln(out, "Cancelling the running stage...")
		}
	}()

	steps := []struct {
		label string
		run   func(context.Context) error
	}{
		{label: "Generate digest", run: orch.GenerateDigest},
		{label: "Evaluate domains", run: orch.EvaluateDomains},
		{label: "Assess overall quality", run: orch.AssessOverall},
	}

	input := bufio.NewReader(in)
	var stageErr error
	for _, s := range steps {
		if opts.step {
			fmt.Fprintf(out, "Press Enter to %s...", strings.ToLower(s.label))
			if _, err := input.ReadString('\n'); err != nil && !errors.Is(err, io.EOF) {
				return err
			}
		}
		fmt.Fprintf(out, "%s...\n", s.label)
		if stageErr = s.run(ctx); stageErr != nil {
			break
		}
	}

	printSummary(out, orch.Snapshot())

	vc, _ := cfg.ActiveVendor()
	doc := report.Build(orch.Snapshot(), report.Metadata{
		Instrument:        pack.Metadata.Instrument,
		PromptPackVersion: pack.Metadata.Version,
		Vendor:            cfg.Vendor,
		Model:             vc.Model,
		Source:            filepath.Base(opts.document),
		PageCount:         orch.PageCount(),
	}, time.Now())
	if err := report.WriteFile(opts.output, doc); err != nil {
		return err
	}
	fmt.Fprintf(out, "Report written to %s\n", opts.output)

	return stageErr
}

func check(ctx context.Context, client llm.Client, cfg *configuration.Config, out io.Writer) error {
	vendor, err := transport.ParseVendor(cfg.Vendor)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	text, err := client.GenerateText(ctx, &transport.Request{
		Vendor:      vendor,
		UserPrompt:  "Reply with the single word OK.",
		Temperature: 0,
		TopP:        1,
		MaxTokens:   16,
	})
	if err != nil {
		return fmt.Errorf("%s check failed: %w", cfg.Vendor, err)
	}
	fmt.Fprintf(out, "%s %s reachable: %s\n", toolName, cfg.Vendor, strings.TrimSpace(text))
	return nil
}

func printSummary(out io.Writer, snap domain.SessionSnapshot) {
	if len(snap.Domains) > 0 {
		ids := make([]int, 0, len(snap.Domains))
		for id := range snap.Domains {
			ids = append(ids, int(id))
		}
		sort.Ints(ids)
		fmt.Fprintln(out, "\nDomain scores:")
		for _, id := range ids {
			r := snap.Domains[domain.DomainID(id)]
			fmt.Fprintf(out, "  %d. %-26s %3d%%\n", id, r.Name, r.CalculatedScore)
		}
	}
	if o := snap.Overall; o != nil {
		fmt.Fprintf(out, "\nOverall quality: %d/7, recommend use: %s\n", o.QualityScore, o.Recommendation)
	}
}
