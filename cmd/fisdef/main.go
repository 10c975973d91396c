package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/rewired-gh/fisdef/internal/app"
	"github.com/rewired-gh/fisdef/internal/config"
	"github.com/rewired-gh/fisdef/internal/logger"
	"github.com/rewired-gh/fisdef/internal/metrics"
	"github.com/rewired-gh/fisdef/internal/telegram"
)

const usage = `Convert FISPACT-II inventories to decay radiation sources

Usage:
  fisdef [flags] <path> [idx]

Arguments:
  path   FISPACT-II JSON (or YAML) inventory
  idx    interval indices: "all" (default), "2", "0 2 5" or "1-3"

Examples:
  fisdef run.json                     print the interval summary
  fisdef run.json 1-3 -j -m           JSON and MCNP sources for intervals 1 to 3
  fisdef run.json -r beta-minus -t    beta decay tables for every interval
  fisdef run.json 0 -j --fetch        query the IAEA API instead of the dataset

Flags:
`

func main() {
	flags := pflag.NewFlagSet("fisdef", pflag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}

	flags.StringP("rad", "r", "gamma", "radiation type: alpha, beta-plus, beta-minus, gamma (includes X-rays), xray, electron")
	flags.StringP("sort", "s", "energy", "sort records by energy (e) or intensity (i)")
	flags.Bool("fetch", false, "query the IAEA LiveChart API rather than the offline dataset")
	flags.StringP("output", "o", "step", "output file prefix, the interval index is appended")
	flags.BoolP("text", "t", false, "write a text table")
	flags.BoolP("json", "j", false, "write a JSON file")
	flags.BoolP("mcnp", "m", false, "write MCNP source distribution cards")
	flags.IntP("id", "i", 100, "first MCNP distribution number")
	flags.String("sink", "fs", "output destination: fs or s3")
	flags.String("dataset", "", "offline decay dataset (SQLite)")
	flags.String("api", "", "IAEA API base URL")
	flags.String("metrics-file", "", "write run metrics in Prometheus text format")
	flags.String("log-level", "", "base log level before -v/-q")
	configPath := flags.String("config", "", "path to configuration file")
	verbose := flags.CountP("verbose", "v", "verbose logging (-v debug, -vv trace)")
	quiet := flags.BoolP("quiet", "q", false, "silence all log output")

	_ = flags.Parse(os.Args[1:])

	args := flags.Args()
	if len(args) < 1 {
		flags.Usage()
		os.Exit(2)
	}
	inventoryPath := args[0]
	indexSpec := strings.Join(args[1:], " ")

	// Load configuration
	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logging with level support
	level := logger.FromVerbosity(logger.ParseLevel(cfg.Logging.Level), *verbose, *quiet)
	logger.InitWithWriter(level, cfg.Logging.Format, os.Stderr)
	if *configPath != "" {
		logger.Debug("Configuration loaded from %s", *configPath)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, stopping...")
		cancel()
	}()

	if err := run(ctx, cfg, inventoryPath, indexSpec); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, inventoryPath, indexSpec string) error {
	var m *metrics.Metrics
	if cfg.Metrics.Textfile != "" {
		m = metrics.New()
		defer func() {
			if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				logger.Warn("%v", err)
			}
		}()
	}

	p, closeProvider, err := app.OpenProvider(cfg, m)
	if err != nil {
		return fmt.Errorf("failed to initialize decay data provider: %w", err)
	}
	defer func() {
		if err := closeProvider(); err != nil {
			logger.Error("Failed to close dataset: %v", err)
		}
	}()

	sink, err := app.OpenSink(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize output sink: %w", err)
	}

	notifier := app.OpenNotifier(cfg)

	start := time.Now()
	a := app.New(cfg, p, sink, m, os.Stdout)
	err = a.Run(ctx, inventoryPath, indexSpec)
	if cfg.AnyOutput() {
		app.Notify(notifier, telegram.Report{
			Command: "fisdef",
			Subject: inventoryPath,
			Counts:  a.Result().Counts(),
			Elapsed: time.Since(start),
			Err:     err,
		})
	}
	return err
}
