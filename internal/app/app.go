// Package app runs a conversion: it reads an inventory, prints the interval
// summary and writes the requested outputs for every selected interval.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rewired-gh/fisdef/internal/builder"
	"github.com/rewired-gh/fisdef/internal/config"
	"github.com/rewired-gh/fisdef/internal/emit"
	"github.com/rewired-gh/fisdef/internal/interval"
	"github.com/rewired-gh/fisdef/internal/inventory"
	"github.com/rewired-gh/fisdef/internal/logger"
	"github.com/rewired-gh/fisdef/internal/metrics"
	"github.com/rewired-gh/fisdef/internal/models"
	"github.com/rewired-gh/fisdef/internal/output"
	"github.com/rewired-gh/fisdef/internal/resolver"
	"github.com/rewired-gh/fisdef/internal/telegram"
)

// App holds the collaborators of a run.
type App struct {
	cfg      *config.Config
	provider resolver.Provider
	sink     output.Sink
	metrics  *metrics.Metrics
	stdout   io.Writer
	result   Result
}

// Result counts what a run did.
type Result struct {
	Processed int
	Skipped   int
	Written   int
	Failed    int
}

// Counts returns the result as report lines.
func (r Result) Counts() []telegram.Count {
	return []telegram.Count{
		{Label: "intervals processed", Value: r.Processed},
		{Label: "intervals skipped", Value: r.Skipped},
		{Label: "outputs written", Value: r.Written},
		{Label: "outputs failed", Value: r.Failed},
	}
}

// New creates an App. cfg must already be validated. m may be nil.
func New(cfg *config.Config, provider resolver.Provider, sink output.Sink, m *metrics.Metrics, stdout io.Writer) *App {
	return &App{
		cfg:      cfg,
		provider: provider,
		sink:     sink,
		metrics:  m,
		stdout:   stdout,
	}
}

// Run converts the inventory at path. indexSpec selects the intervals using
// the interval package syntax. Output failures do not stop other outputs or
// intervals; they are joined into the returned error.
func (a *App) Run(ctx context.Context, path, indexSpec string) error {
	a.result = Result{}
	logger.Info("Reading FISPACT inventory")
	logger.Debug("%s", path)
	inv, err := inventory.ReadFile(path)
	if err != nil {
		return err
	}

	logger.Info("Table of FISPACT intervals")
	inventory.Summary(a.stdout, inv)

	if !a.cfg.AnyOutput() {
		logger.Debug("No outputs requested")
		return nil
	}

	logger.Info("Parsing user input to explicit interval indices")
	spec, err := interval.Parse(indexSpec)
	if err != nil {
		return err
	}
	logger.Trace("%d intervals found in file", len(inv.Intervals))
	indices, err := interval.Select(spec, len(inv.Intervals))
	if err != nil {
		return err
	}
	logger.Debug("Valid intervals: %v", indices)

	emitters := emit.ForKinds(a.cfg.Outputs(), a.cfg.Output.MCNPID)
	r := resolver.New(a.provider, a.cfg.RadType(), a.cfg.Data.Fetch)
	b := builder.New(r, a.cfg.SortProperty(), a.metrics)

	var errs []error
	for _, index := range indices {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.processInterval(ctx, b, inv.Intervals[index], index, emitters); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) processInterval(ctx context.Context, b *builder.Builder, iv inventory.Interval, index int, emitters []emit.Emitter) error {
	logger.Info("Generating sources from interval %d", index)
	sources := b.Build(ctx, iv.UnstableNuclides())
	if sources == nil {
		logger.Info("No relevant decay data found")
		a.metrics.Interval("skipped")
		a.result.Skipped++
		return nil
	}
	a.metrics.Interval("processed")
	a.result.Processed++

	var errs []error
	for _, e := range emitters {
		logger.Info("Writing %s output", e.Format())
		if err := a.write(ctx, e, sources, index); err != nil {
			logger.Error("Interval %d %s output: %v", index, e.Format(), err)
			a.metrics.Output(e.Format(), "error")
			a.result.Failed++
			errs = append(errs, fmt.Errorf("interval %d %s output: %w", index, e.Format(), err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) write(ctx context.Context, e emit.Emitter, sources []models.Source, index int) error {
	var buf bytes.Buffer
	if err := e.Emit(&buf, sources); err != nil {
		return err
	}

	path := output.Path(a.cfg.Output.Prefix, index, e.Extension())
	logger.Trace("Output path: %s", path)
	location, fallback, err := a.sink.Write(ctx, path, e.DefaultName(index), buf.Bytes())
	if err != nil {
		return err
	}

	if fallback {
		a.metrics.Output(e.Format(), "fallback")
	} else {
		a.metrics.Output(e.Format(), "ok")
	}
	a.result.Written++
	logger.Debug("Wrote %s", location)
	return nil
}

// Result returns the counts of the last Run.
func (a *App) Result() Result {
	return a.result
}
