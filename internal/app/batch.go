package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/chrissnell/actisum/internal/activity"
	"github.com/chrissnell/actisum/internal/batch"
	"github.com/chrissnell/actisum/internal/ingest"
	"github.com/chrissnell/actisum/internal/storage"
	"github.com/chrissnell/actisum/pkg/responseformat"
	"github.com/google/uuid"
)

// BatchReport describes a finished batch run
type BatchReport struct {
	RunID    uuid.UUID
	Subjects int
	Accepted int
	Rejected int
	// Unmatched lists subjects missing from the covariate table
	Unmatched []string
}

// Batch reads every subject from the configured input, processes them and
// writes the configured outputs. Rejected subjects do not fail the run.
func (a *App) Batch(ctx context.Context) (BatchReport, error) {
	var report BatchReport

	series, err := a.LoadSeries(ctx)
	if err != nil {
		return report, err
	}
	a.logger.Infof("loaded %d subjects", len(series))

	runner := batch.NewRunner(a.processor, a.cfg.Workers, a.logger)
	results, err := runner.Run(ctx, series)
	if err != nil {
		return report, err
	}

	report.Subjects = len(results)
	for _, r := range results {
		if r.Status == activity.StatusAccepted {
			report.Accepted++
		} else {
			report.Rejected++
		}
	}

	report.Unmatched, err = a.writeSummaries(results)
	if err != nil {
		return report, err
	}
	for _, id := range report.Unmatched {
		a.logger.Warnw("subject has no covariates", "subject", id)
	}

	if path := a.cfg.Output.Rejections; path != "" {
		if err := writeFile(path, func(w io.Writer) error {
			return responseformat.WriteCSV(w, responseformat.RejectionTable(results))
		}); err != nil {
			return report, fmt.Errorf("failed to write rejections: %w", err)
		}
	}

	report.RunID, err = a.persist(ctx, results)
	if err != nil {
		return report, err
	}
	return report, nil
}

// LoadSeries reads the configured input: a Postgres table when a DSN is set,
// otherwise a wide or long CSV file
func (a *App) LoadSeries(ctx context.Context) ([]activity.RawSeries, error) {
	in := a.cfg.Input

	if in.PostgresDSN != "" {
		src, err := ingest.NewPostgresSource(ctx, in.PostgresDSN, in.Table, a.logger)
		if err != nil {
			return nil, err
		}
		defer src.Close()
		return src.Load(ctx, nil)
	}

	if in.Path == "" {
		return nil, fmt.Errorf("no input configured: set input.path or input.postgres_dsn")
	}
	f, err := os.Open(in.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	var series []activity.RawSeries
	switch in.Format {
	case "", "wide":
		series, err = ingest.ReadWide(f, ingest.WideOptions{})
	case "long":
		series, err = ingest.ReadLong(f)
	default:
		return nil, fmt.Errorf("unsupported input format %q: use wide or long", in.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", in.Path, err)
	}
	return series, nil
}

func (a *App) writeSummaries(results []activity.Result) ([]string, error) {
	format := responseformat.CSV
	if a.cfg.Output.Format != "" {
		var err error
		if format, err = responseformat.ParseFormat(a.cfg.Output.Format); err != nil {
			return nil, err
		}
	}

	if format != responseformat.CSV {
		err := writeFile(a.cfg.Output.Path, func(w io.Writer) error {
			return responseformat.Encode(w, format, results)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to write summaries: %w", err)
		}
		return nil, nil
	}

	table := responseformat.SummaryTable(results, a.processor.Config())
	var unmatched []string
	if path := a.cfg.Input.Covariates; path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open covariates: %w", err)
		}
		cov, err := ingest.ReadCovariates(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if table, unmatched, err = ingest.MergeCovariates(table, cov); err != nil {
			return nil, err
		}
	}

	if err := writeFile(a.cfg.Output.Path, func(w io.Writer) error {
		return responseformat.WriteCSV(w, table)
	}); err != nil {
		return nil, fmt.Errorf("failed to write summaries: %w", err)
	}
	return unmatched, nil
}

// persist stores the run when a storage backend is configured
func (a *App) persist(ctx context.Context, results []activity.Result) (uuid.UUID, error) {
	store, err := storage.NewManager(ctx, a.cfg.Storage, a.logger)
	if err != nil {
		return uuid.Nil, err
	}
	defer store.Close()

	if !store.Enabled() {
		return uuid.Nil, nil
	}

	run, err := storage.NewRun(a.processor.Config())
	if err != nil {
		return uuid.Nil, err
	}
	if err := store.SaveRun(ctx, run, results); err != nil {
		return uuid.Nil, fmt.Errorf("failed to store run %s: %w", run.ID, err)
	}
	a.logger.Infof("stored run %s", run.ID)
	return run.ID, nil
}

// writeFile writes to path, or to standard output when path is empty or "-"
func writeFile(path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(os.Stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
