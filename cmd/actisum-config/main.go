package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/chrissnell/actisum/internal/activity"
	"github.com/chrissnell/actisum/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file to convert")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite database file (required)")
		set        = flag.String("set", "", "Store one setting instead of converting: dotted key, e.g. processing.nonwear_window")
		value      = flag.String("value", "", "YAML value for -set")
		force      = flag.Bool("force", false, "Overwrite existing SQLite database")
		dryRun     = flag.Bool("dry-run", false, "Show what would be done without executing")
	)
	flag.Parse()

	if *sqliteFile == "" || (*yamlFile == "" && *set == "") {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s -sqlite <config.db> -set <key> -value <yaml>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *set != "" {
		if err := setOne(*sqliteFile, *set, *value); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Stored %s = %s\n", *set, *value)
		return
	}

	// Check if YAML file exists
	if _, err := os.Stat(*yamlFile); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: YAML file does not exist: %s\n", *yamlFile)
		os.Exit(1)
	}

	// Check if SQLite file already exists
	if _, err := os.Stat(*sqliteFile); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: SQLite file already exists: %s\n", *sqliteFile)
		fmt.Fprintf(os.Stderr, "Use -force to overwrite or choose a different filename\n")
		os.Exit(1)
	}

	fmt.Printf("Converting YAML configuration to SQLite...\n")
	fmt.Printf("  Source: %s\n", *yamlFile)
	fmt.Printf("  Target: %s\n", *sqliteFile)

	if *dryRun {
		fmt.Println("DRY RUN - No changes will be made")
	}

	// Load YAML configuration
	configData, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML configuration: %v\n", err)
		os.Exit(1)
	}

	if *dryRun {
		printConfigSummary(configData)
		fmt.Println("DRY RUN complete - no database created")
		return
	}

	// Remove existing SQLite file if force is specified
	if *force {
		if err := os.Remove(*sqliteFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error removing existing SQLite file: %v\n", err)
			os.Exit(1)
		}
	}

	if err := os.MkdirAll(filepath.Dir(*sqliteFile), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	provider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite database: %v\n", err)
		os.Exit(1)
	}
	defer provider.Close()

	fmt.Printf("  Inserting settings and %d bout rules...\n", len(configData.Processing.Bouts))
	if err := provider.SaveConfig(configData); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration into SQLite: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Conversion completed successfully!\n")
	fmt.Printf("You can now use the SQLite backend with: -config-backend sqlite -config %s\n", *sqliteFile)
}

func setOne(dbPath, key, value string) error {
	provider, err := config.NewSQLiteProvider(dbPath)
	if err != nil {
		return err
	}
	defer provider.Close()

	if err := provider.SetSetting(key, value); err != nil {
		return err
	}
	// reject settings that leave the stored configuration unreadable
	if _, err := provider.LoadConfig(); err != nil {
		return fmt.Errorf("%s was stored but the configuration no longer loads: %w", key, err)
	}
	return nil
}

func printConfigSummary(configData *config.ConfigData) {
	fmt.Println("\nProcessing Summary:")
	c, err := configData.Processing.ToActivityConfig()
	if err != nil {
		fmt.Printf("  Invalid: %v\n", err)
		return
	}
	p, err := activity.NewProcessor(c, nil)
	if err != nil {
		fmt.Printf("  Invalid: %v\n", err)
		return
	}
	c = p.Config()

	fmt.Printf("  Cutpoints: %v\n", c.Cutpoints)
	fmt.Printf("  Non-wear window: %d minutes, tolerance %d\n", c.NonwearWindow, c.NonwearTolerance)
	fmt.Printf("  Valid day: %d-%d wear minutes\n", c.WeartimeMinimum, c.WeartimeMaximum)
	fmt.Printf("  Output: %s\n", c.OutputGranularity)

	fmt.Printf("\nBout Rules (%d):\n", len(c.Bouts))
	for _, b := range c.Bouts {
		upper := "unbounded"
		if !math.IsInf(b.ToleranceUpperBound, 1) {
			upper = fmt.Sprintf("%.0f", b.ToleranceUpperBound)
		}
		fmt.Printf("  - %s: bands %d-%d, %d+ minutes, tolerance %d (%s)\n", b.Name, b.MinBand, b.MaxBand, b.MinLength, b.Tolerance, upper)
	}

	fmt.Printf("\nStorage Backends:\n")
	if configData.Storage.SQLite != nil {
		fmt.Printf("  - SQLite: %s\n", configData.Storage.SQLite.Path)
	}
	if configData.Storage.TimescaleDB != nil {
		fmt.Printf("  - TimescaleDB: %s\n", configData.Storage.TimescaleDB.ConnectionString)
	}
}
