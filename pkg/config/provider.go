package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/chrissnell/actisum/internal/activity"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetProcessing() (*ProcessingData, error)
	GetStorageConfig() (*StorageData, error)

	IsReadOnly() bool
	Close() error
}

// Open returns the provider for a backend name, "yaml" or "sqlite"
func Open(backend, path string) (ConfigProvider, error) {
	switch backend {
	case "yaml":
		return NewYAMLProvider(path), nil
	case "sqlite":
		p, err := NewSQLiteProvider(path)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", backend)
	}
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Processing ProcessingData `json:"processing" yaml:"processing"`
	Input      InputData      `json:"input,omitempty" yaml:"input,omitempty"`
	Output     OutputData     `json:"output,omitempty" yaml:"output,omitempty"`
	Storage    StorageData    `json:"storage,omitempty" yaml:"storage,omitempty"`
	Server     ServerData     `json:"server,omitempty" yaml:"server,omitempty"`
	// Workers bounds the number of subjects processed at once; 0 uses every CPU
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`
}

// ProcessingData holds the tunables of the summary pipeline. Unset fields keep
// the defaults of activity.DefaultConfig.
type ProcessingData struct {
	Cutpoints    []float64 `json:"cutpoints,omitempty" yaml:"cutpoints,omitempty"`
	BandNames    []string  `json:"band_names,omitempty" yaml:"band_names,omitempty"`
	ModerateBand *int      `json:"moderate_band,omitempty" yaml:"moderate_band,omitempty"`

	NonwearWindow              *int     `json:"nonwear_window,omitempty" yaml:"nonwear_window,omitempty"`
	NonwearTolerance           *int     `json:"nonwear_tolerance,omitempty" yaml:"nonwear_tolerance,omitempty"`
	NonwearToleranceUpperBound *float64 `json:"nonwear_tolerance_upper_bound,omitempty" yaml:"nonwear_tolerance_upper_bound,omitempty"`
	NonwearDaysDistinct        *bool    `json:"nonwear_days_distinct,omitempty" yaml:"nonwear_days_distinct,omitempty"`

	WeartimeMinimum *int `json:"weartime_minimum,omitempty" yaml:"weartime_minimum,omitempty"`
	WeartimeMaximum *int `json:"weartime_maximum,omitempty" yaml:"weartime_maximum,omitempty"`

	ActiveBoutLength *int           `json:"active_bout_length,omitempty" yaml:"active_bout_length,omitempty"`
	Bouts            []BoutRuleData `json:"bouts,omitempty" yaml:"bouts,omitempty"`

	ArtifactThreshold *int   `json:"artifact_threshold,omitempty" yaml:"artifact_threshold,omitempty"`
	ArtifactAction    string `json:"artifact_action,omitempty" yaml:"artifact_action,omitempty"`

	RequiredValidDays        *int `json:"required_valid_days,omitempty" yaml:"required_valid_days,omitempty"`
	RequiredValidWeekdays    *int `json:"required_valid_weekdays,omitempty" yaml:"required_valid_weekdays,omitempty"`
	RequiredValidWeekendDays *int `json:"required_valid_weekend_days,omitempty" yaml:"required_valid_weekend_days,omitempty"`

	DayLength         *int              `json:"day_length,omitempty" yaml:"day_length,omitempty"`
	OutputGranularity string            `json:"output_granularity,omitempty" yaml:"output_granularity,omitempty"`
	RollupReducers    map[string]string `json:"rollup_reducers,omitempty" yaml:"rollup_reducers,omitempty"`
	PeakWindows       []int             `json:"peak_windows,omitempty" yaml:"peak_windows,omitempty"`
	KeepEpochs        *bool             `json:"keep_epochs,omitempty" yaml:"keep_epochs,omitempty"`
}

// BoutRuleData is one entry of the bouts list. A missing upper bound means
// interruptions of any count are tolerated.
type BoutRuleData struct {
	Name                string   `json:"name" yaml:"name"`
	MinBand             int      `json:"min_band" yaml:"min_band"`
	MaxBand             int      `json:"max_band" yaml:"max_band"`
	MinLength           int      `json:"min_length" yaml:"min_length"`
	Tolerance           int      `json:"bout_tolerance" yaml:"bout_tolerance"`
	ToleranceUpperBound *float64 `json:"bout_tolerance_upper_bound,omitempty" yaml:"bout_tolerance_upper_bound,omitempty"`
}

// InputData describes where subject series are read from
type InputData struct {
	Path       string `json:"path,omitempty" yaml:"path,omitempty"`
	Format     string `json:"format,omitempty" yaml:"format,omitempty"`
	Covariates string `json:"covariates,omitempty" yaml:"covariates,omitempty"`
	// PostgresDSN switches ingestion to a database table
	PostgresDSN string `json:"postgres_dsn,omitempty" yaml:"postgres_dsn,omitempty"`
	Table       string `json:"table,omitempty" yaml:"table,omitempty"`
}

// OutputData describes where summaries are written
type OutputData struct {
	Path       string `json:"path,omitempty" yaml:"path,omitempty"`
	Format     string `json:"format,omitempty" yaml:"format,omitempty"`
	Rejections string `json:"rejections,omitempty" yaml:"rejections,omitempty"`
}

// StorageData holds the configuration for the summary storage backends
type StorageData struct {
	SQLite      *SQLiteData      `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty" yaml:"timescaledb,omitempty"`
}

type SQLiteData struct {
	Path string `json:"path" yaml:"path"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string" yaml:"connection_string"`
}

// ServerData configures the HTTP API
type ServerData struct {
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
	Cert       string `json:"cert,omitempty" yaml:"cert,omitempty"`
	Key        string `json:"key,omitempty" yaml:"key,omitempty"`
}

// ToActivityConfig overlays the configured values on the default processing
// configuration. Values that activity.Config reads as "derive this" are
// rejected when set explicitly; the rest is validated by activity.NewProcessor.
func (p ProcessingData) ToActivityConfig() (activity.Config, error) {
	problems := &activity.ConfigError{}
	if p.DayLength != nil && *p.DayLength <= 0 {
		problems.Problems = append(problems.Problems, fmt.Sprintf("day_length must be positive, got %d", *p.DayLength))
	}
	if p.ModerateBand != nil && *p.ModerateBand < 1 {
		problems.Problems = append(problems.Problems, fmt.Sprintf("moderate_band must be at least 1, got %d", *p.ModerateBand))
	}
	if len(problems.Problems) > 0 {
		return activity.Config{}, problems
	}

	c := activity.DefaultConfig()

	if len(p.Cutpoints) > 0 {
		c.Cutpoints = append([]float64(nil), p.Cutpoints...)
		// the default names and moderate band only fit the default cutpoints
		c.BandNames = nil
		c.ModerateBand = 0
	}
	if len(p.BandNames) > 0 {
		c.BandNames = append([]string(nil), p.BandNames...)
	}
	setInt(&c.ModerateBand, p.ModerateBand)

	setInt(&c.NonwearWindow, p.NonwearWindow)
	setInt(&c.NonwearTolerance, p.NonwearTolerance)
	if p.NonwearToleranceUpperBound != nil {
		c.NonwearToleranceUpperBound = *p.NonwearToleranceUpperBound
	}
	if p.NonwearDaysDistinct != nil {
		c.NonwearDaysDistinct = *p.NonwearDaysDistinct
	}

	if p.DayLength != nil {
		c.DayLength = *p.DayLength
		c.WeartimeMaximum = 0
	}
	setInt(&c.WeartimeMinimum, p.WeartimeMinimum)
	setInt(&c.WeartimeMaximum, p.WeartimeMaximum)

	setInt(&c.ActiveBoutLength, p.ActiveBoutLength)
	for _, b := range p.Bouts {
		rule := activity.BoutRule{
			Name:                strings.TrimSpace(b.Name),
			MinBand:             b.MinBand,
			MaxBand:             b.MaxBand,
			MinLength:           b.MinLength,
			Tolerance:           b.Tolerance,
			ToleranceUpperBound: math.Inf(1),
		}
		if b.ToleranceUpperBound != nil {
			rule.ToleranceUpperBound = *b.ToleranceUpperBound
		}
		c.Bouts = append(c.Bouts, rule)
	}

	setInt(&c.ArtifactThreshold, p.ArtifactThreshold)
	if p.ArtifactAction != "" {
		c.ArtifactAction = activity.ArtifactAction(strings.ToLower(p.ArtifactAction))
	}

	setInt(&c.RequiredValidDays, p.RequiredValidDays)
	setInt(&c.RequiredValidWeekdays, p.RequiredValidWeekdays)
	setInt(&c.RequiredValidWeekendDays, p.RequiredValidWeekendDays)

	if p.OutputGranularity != "" {
		c.OutputGranularity = activity.Granularity(strings.ToLower(p.OutputGranularity))
	}
	if len(p.RollupReducers) > 0 {
		c.RollupReducers = make(map[string]activity.Reducer, len(p.RollupReducers))
		for field, r := range p.RollupReducers {
			c.RollupReducers[field] = activity.Reducer(strings.ToLower(r))
		}
	}
	if p.PeakWindows != nil {
		c.PeakWindows = append([]int(nil), p.PeakWindows...)
	}
	if p.KeepEpochs != nil {
		c.KeepEpochs = *p.KeepEpochs
	}

	return c, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
