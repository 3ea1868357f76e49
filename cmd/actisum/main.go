package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/chrissnell/actisum/internal/app"
	"github.com/chrissnell/actisum/internal/log"
	"github.com/chrissnell/actisum/pkg/config"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	cfgFile := flag.String("config", "", "Path to configuration source:\n\t\t\t  YAML: actisum.yaml\n\t\t\t  SQLite: actisum.db\n\t\t\t  Without one, the default processing settings are used")
	cfgBackend := flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' for YAML files, 'sqlite' for SQLite databases")
	input := flag.String("input", "", "Count table to process (overrides input.path)")
	inputFormat := flag.String("input-format", "", "Input layout: wide or long (overrides input.format)")
	pgDSN := flag.String("pg-dsn", "", "Read counts from PostgreSQL instead of a file (overrides input.postgres_dsn)")
	covariates := flag.String("covariates", "", "Covariate table merged into CSV summaries (overrides input.covariates)")
	output := flag.String("output", "", "Summary destination, '-' for standard output (overrides output.path)")
	outputFormat := flag.String("output-format", "", "Summary format: csv, json or msgpack (overrides output.format)")
	rejections := flag.String("rejections", "", "Write rejected subjects to this CSV file (overrides output.rejections)")
	workers := flag.Int("workers", -1, "Subjects processed concurrently; 0 uses every CPU (overrides workers)")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("actisum %s\n", version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfgData, err := loadConfig(*cfgFile, *cfgBackend)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	override(&cfgData.Input.Path, *input)
	override(&cfgData.Input.Format, *inputFormat)
	override(&cfgData.Input.PostgresDSN, *pgDSN)
	override(&cfgData.Input.Covariates, *covariates)
	override(&cfgData.Output.Path, *output)
	override(&cfgData.Output.Format, *outputFormat)
	override(&cfgData.Output.Rejections, *rejections)
	if *workers >= 0 {
		cfgData.Workers = *workers
	}

	application, err := app.New(cfgData, log.GetSugaredLogger())
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := application.Batch(ctx)
	if err != nil {
		log.Errorf("Batch failed: %v", err)
		os.Exit(1)
	}
	log.Infow("batch complete",
		"subjects", report.Subjects,
		"accepted", report.Accepted,
		"rejected", report.Rejected,
		"run", report.RunID)
}

func override(dst *string, flagValue string) {
	if flagValue != "" {
		*dst = flagValue
	}
}

func loadConfig(cfgFile, cfgBackend string) (*config.ConfigData, error) {
	if cfgFile == "" {
		return &config.ConfigData{}, nil
	}
	filename, _ := filepath.Abs(cfgFile)

	provider, err := config.Open(cfgBackend, filename)
	if err != nil {
		return nil, err
	}
	defer provider.Close()

	cfgData, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}

	return cfgData, nil
}
