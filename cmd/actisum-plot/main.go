package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chrissnell/actisum/internal/activity"
	"github.com/chrissnell/actisum/internal/app"
	"github.com/chrissnell/actisum/internal/log"
	"github.com/chrissnell/actisum/internal/plot"
	"github.com/chrissnell/actisum/pkg/config"
)

func main() {
	var (
		cfgFile     = flag.String("config", "", "Path to a YAML or SQLite configuration (optional)")
		cfgBackend  = flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' or 'sqlite'")
		input       = flag.String("input", "", "Count table holding the subject (required unless -pg-dsn is set)")
		inputFormat = flag.String("input-format", "wide", "Input layout: wide or long")
		pgDSN       = flag.String("pg-dsn", "", "Read counts from PostgreSQL instead of a file")
		subject     = flag.String("subject", "", "Subject to plot (required)")
		output      = flag.String("output", "", "HTML file to write (default: <subject>.html)")
		start       = flag.String("start", "", "Wall-clock time of the first minute, RFC 3339 (optional)")
		debug       = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Parse()

	if *subject == "" || (*input == "" && *pgDSN == "") {
		fmt.Fprintf(os.Stderr, "Usage: %s -input <counts.csv> -subject <id>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfgData := &config.ConfigData{}
	if *cfgFile != "" {
		filename, _ := filepath.Abs(*cfgFile)
		provider, err := config.Open(*cfgBackend, filename)
		if err != nil {
			log.Fatalf("Failed to open configuration: %v", err)
		}
		cfgData, err = provider.LoadConfig()
		provider.Close()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	keep := true
	cfgData.Processing.KeepEpochs = &keep
	cfgData.Input = config.InputData{Path: *input, Format: *inputFormat, PostgresDSN: *pgDSN, Table: cfgData.Input.Table}

	opts := plot.TraceOptions{}
	if *start != "" {
		t, err := time.Parse(time.RFC3339, *start)
		if err != nil {
			log.Fatalf("Invalid -start: %v", err)
		}
		opts.Start = t
	}

	application, err := app.New(cfgData, log.GetSugaredLogger())
	if err != nil {
		log.Fatalf("%v", err)
	}
	opts.Cutpoints = application.Processor().Config().Cutpoints

	series, err := application.LoadSeries(context.Background())
	if err != nil {
		log.Fatalf("Failed to load input: %v", err)
	}

	found := false
	for _, s := range series {
		if s.SubjectID != *subject {
			continue
		}
		found = true
		result := application.Processor().Process(s)
		if result.Status == activity.StatusRejected {
			log.Fatalf("Subject %s was rejected: %s", *subject, result.Reason)
		}

		path := *output
		if path == "" {
			path = *subject + ".html"
		}
		f, err := os.Create(path)
		if err != nil {
			log.Fatalf("Failed to create %s: %v", path, err)
		}
		if err := plot.RenderTrace(f, result, opts); err != nil {
			f.Close()
			log.Fatalf("%v", err)
		}
		if err := f.Close(); err != nil {
			log.Fatalf("Failed to write %s: %v", path, err)
		}
		log.Infof("wrote %s", path)
	}
	if !found {
		log.Fatalf("Subject %s not found in the input", *subject)
	}
}
