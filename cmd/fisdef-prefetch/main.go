package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/fisdef/internal/app"
	"github.com/rewired-gh/fisdef/internal/config"
	"github.com/rewired-gh/fisdef/internal/iaea"
	"github.com/rewired-gh/fisdef/internal/inventory"
	"github.com/rewired-gh/fisdef/internal/logger"
	"github.com/rewired-gh/fisdef/internal/metrics"
	"github.com/rewired-gh/fisdef/internal/models"
	"github.com/rewired-gh/fisdef/internal/provider"
	"github.com/rewired-gh/fisdef/internal/storage"
	"github.com/rewired-gh/fisdef/internal/telegram"
)

func main() {
	flags := pflag.NewFlagSet("fisdef-prefetch", pflag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "Populate the offline decay dataset from the IAEA LiveChart API")
		fmt.Fprintln(os.Stderr, "\nUsage:\n  fisdef-prefetch [flags] [inventory...]\n\nFlags:")
		flags.PrintDefaults()
	}

	nuclideList := flags.StringSliceP("nuclides", "n", nil, "nuclide names to fetch in addition to inventory nuclides, e.g. Co60,Nb93m")
	radList := flags.StringSliceP("rad-types", "r", nil, "radiation types to fetch (default all)")
	workers := flags.IntP("workers", "w", 4, "concurrent requests")
	exportPath := flags.String("export", "", "also write the dataset as JSON to this path")
	flags.String("dataset", "", "offline decay dataset (SQLite)")
	flags.String("api", "", "IAEA API base URL")
	flags.String("metrics-file", "", "write run metrics in Prometheus text format")
	configPath := flags.String("config", "", "path to configuration file")
	verbose := flags.CountP("verbose", "v", "verbose logging (-v debug, -vv trace)")
	quiet := flags.BoolP("quiet", "q", false, "silence all log output")

	_ = flags.Parse(os.Args[1:])

	// Load configuration
	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.InitWithWriter(logger.FromVerbosity(logger.ParseLevel(cfg.Logging.Level), *verbose, *quiet), cfg.Logging.Format, os.Stderr)

	nuclides, err := collectNuclides(flags.Args(), *nuclideList)
	if err != nil {
		logger.Fatal("%v", err)
	}
	if len(nuclides) == 0 {
		flags.Usage()
		os.Exit(2)
	}

	rads := models.AllRadTypes
	if len(*radList) > 0 {
		rads = nil
		for _, s := range *radList {
			r, err := models.ParseRadType(s)
			if err != nil {
				logger.Fatal("%v", err)
			}
			rads = append(rads, r)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, nuclides, rads, *workers, *exportPath); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

// collectNuclides gathers the ground states of every unstable inventory
// nuclide and every explicit name, sorted and without duplicates.
func collectNuclides(inventories, names []string) ([]models.Nuclide, error) {
	seen := make(map[string]models.Nuclide)
	add := func(name string) {
		n, err := models.ParseNuclide(name)
		if err != nil {
			logger.Debug("Skipping %q: %v", name, err)
			return
		}
		g := n.Ground()
		seen[g.Name()] = g
	}

	for _, path := range inventories {
		inv, err := inventory.ReadFile(path)
		if err != nil {
			return nil, err
		}
		for _, iv := range inv.Intervals {
			for _, e := range iv.UnstableNuclides() {
				add(e.Name)
			}
		}
	}
	for _, name := range names {
		add(strings.TrimSpace(name))
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	nuclides := make([]models.Nuclide, 0, len(keys))
	for _, k := range keys {
		nuclides = append(nuclides, seen[k])
	}
	return nuclides, nil
}

func run(ctx context.Context, cfg *config.Config, nuclides []models.Nuclide, rads []models.RadType, workers int, exportPath string) error {
	var m *metrics.Metrics
	if cfg.Metrics.Textfile != "" {
		m = metrics.New()
		defer func() {
			if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				logger.Warn("%v", err)
			}
		}()
	}

	notifier := app.OpenNotifier(cfg)

	ds, err := storage.Open(cfg.Provider.DatasetPath, app.DirPermissions)
	if err != nil {
		return err
	}
	defer ds.Close()

	client := iaea.NewClient(cfg.Provider.APIBaseURL, cfg.Provider.Timeout, cfg.Provider.MaxRetries, cfg.Provider.RetryDelayBase)
	p := provider.New(client, ds, m)

	logger.Info("Fetching %d nuclides x %d radiation types into %s", len(nuclides), len(rads), ds.Path())

	start := time.Now()
	var failed, fetched atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for _, n := range nuclides {
		for _, rad := range rads {
			g.Go(func() error {
				records, err := p.Lookup(gctx, n, rad, true)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					failed.Add(1)
					logger.Warn("Failed to fetch %s %s records: %v", n.Name(), rad, err)
					return nil
				}
				fetched.Add(int32(len(records)))
				logger.Debug("%-6s %-10s %d records", n.Name(), rad, len(records))
				return nil
			})
		}
	}
	err = g.Wait()
	if err == nil && exportPath != "" {
		if err = ds.Export(ctx, exportPath, app.FilePermissions, app.DirPermissions); err != nil {
			err = fmt.Errorf("failed to export dataset: %w", err)
		} else {
			logger.Info("Dataset exported to %s", exportPath)
		}
	}
	if n := failed.Load(); err == nil && n > 0 {
		err = fmt.Errorf("%d lookups failed", n)
	}

	app.Notify(notifier, telegram.Report{
		Command: "fisdef-prefetch",
		Subject: ds.Path(),
		Counts: []telegram.Count{
			{Label: "nuclides", Value: len(nuclides)},
			{Label: "radiation types", Value: len(rads)},
			{Label: "records fetched", Value: int(fetched.Load())},
			{Label: "failed lookups", Value: int(failed.Load())},
		},
		Elapsed: time.Since(start),
		Err:     err,
	})
	if err != nil {
		return err
	}
	logger.Info("Done")
	return nil
}
