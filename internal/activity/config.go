package activity

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// DefaultDayLength is the number of minutes in a calendar day
const DefaultDayLength = 1440

// ArtifactAction selects how counts above the artifact threshold are handled
type ArtifactAction string

const (
	// ArtifactFlag keeps the count but excludes the minute from all totals
	ArtifactFlag ArtifactAction = "flag"
	// ArtifactMissing discards the count and treats the minute as missing
	ArtifactMissing ArtifactAction = "missing"
	// ArtifactReplace substitutes the mean of the nearest valid neighbours
	ArtifactReplace ArtifactAction = "replace"
)

// Granularity selects per-day records or a single per-subject rollup
type Granularity string

const (
	GranularityPerDay Granularity = "per_day"
	GranularityRollup Granularity = "rollup"
)

// Reducer combines one metric across a subject's valid days
type Reducer string

const (
	ReduceMean Reducer = "mean"
	ReduceSum  Reducer = "sum"
)

// BoutRule describes one family of bouts. A bout is a run of minutes whose band
// lies in [MinBand, MaxBand], lasting at least MinLength minutes, with at most
// Tolerance interrupting minutes, each no higher than ToleranceUpperBound counts.
type BoutRule struct {
	Name                string  `json:"name"`
	MinBand             int     `json:"min_band"`
	MaxBand             int     `json:"max_band"`
	MinLength           int     `json:"min_length"`
	Tolerance           int     `json:"tolerance"`
	ToleranceUpperBound float64 `json:"tolerance_upper_bound"`
}

// MarshalJSON writes an unbounded tolerance as null, which JSON can represent
func (r BoutRule) MarshalJSON() ([]byte, error) {
	type plain BoutRule
	out := struct {
		plain
		ToleranceUpperBound *float64 `json:"tolerance_upper_bound"`
	}{plain: plain(r)}
	if !math.IsInf(r.ToleranceUpperBound, 1) {
		v := r.ToleranceUpperBound
		out.ToleranceUpperBound = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a null or missing tolerance bound as unbounded
func (r *BoutRule) UnmarshalJSON(data []byte) error {
	type plain BoutRule
	in := struct {
		*plain
		ToleranceUpperBound *float64 `json:"tolerance_upper_bound"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.ToleranceUpperBound = math.Inf(1)
	if in.ToleranceUpperBound != nil {
		r.ToleranceUpperBound = *in.ToleranceUpperBound
	}
	return nil
}

// Config holds every tunable of the processing pipeline. It is validated once by
// NewProcessor and shared read-only by all subjects.
type Config struct {
	// Cutpoints are the ascending lower bounds of bands 1..k; band 0 starts at zero
	Cutpoints []float64 `json:"cutpoints"`
	// BandNames labels the k+1 bands; derived from the cutpoint count when empty
	BandNames []string `json:"band_names"`
	// ModerateBand is the first band counted as moderate-to-vigorous; 0 means k-1
	ModerateBand int `json:"moderate_band"`

	NonwearWindow              int     `json:"nonwear_window"`
	NonwearTolerance           int     `json:"nonwear_tolerance"`
	NonwearToleranceUpperBound float64 `json:"nonwear_tolerance_upper_bound"`
	NonwearDaysDistinct        bool    `json:"nonwear_days_distinct"`

	WeartimeMinimum int `json:"weartime_minimum"`
	WeartimeMaximum int `json:"weartime_maximum"`

	// ActiveBoutLength is the minimum length of the default active, MVPA and
	// vigorous bouts
	ActiveBoutLength int `json:"active_bout_length"`
	// Bouts overrides the default bout rules when non-empty
	Bouts []BoutRule `json:"bouts"`

	// ArtifactThreshold marks counts strictly above it as artifacts; <= 0 disables
	ArtifactThreshold int            `json:"artifact_threshold"`
	ArtifactAction    ArtifactAction `json:"artifact_action"`

	RequiredValidDays        int `json:"required_valid_days"`
	RequiredValidWeekdays    int `json:"required_valid_weekdays"`
	RequiredValidWeekendDays int `json:"required_valid_weekend_days"`

	DayLength         int                `json:"day_length"`
	OutputGranularity Granularity        `json:"output_granularity"`
	RollupReducers    map[string]Reducer `json:"rollup_reducers"`
	PeakWindows       []int              `json:"peak_windows"`

	// KeepEpochs attaches the full epoch sequence to each result, for plotting
	KeepEpochs bool `json:"keep_epochs"`
}

// DefaultConfig returns the commonly used adult count thresholds and
// wear-time rules for hip-worn devices at one-minute epochs
func DefaultConfig() Config {
	return Config{
		Cutpoints:                  []float64{100, 760, 2020, 5999},
		BandNames:                  []string{"sedentary", "light", "lifestyle", "moderate", "vigorous"},
		ModerateBand:               3,
		NonwearWindow:              60,
		NonwearTolerance:           2,
		NonwearToleranceUpperBound: 100,
		WeartimeMinimum:            600,
		WeartimeMaximum:            DefaultDayLength,
		ActiveBoutLength:           10,
		ArtifactThreshold:          25000,
		ArtifactAction:             ArtifactReplace,
		RequiredValidDays:          1,
		DayLength:                  DefaultDayLength,
		OutputGranularity:          GranularityPerDay,
		PeakWindows:                []int{1, 5, 10, 30},
	}
}

// DefaultBoutRules builds the sedentary, active, MVPA and vigorous rules for a
// band layout with the given number of cutpoints
func DefaultBoutRules(cutpoints, moderateBand, activeBoutLength int) []BoutRule {
	unbounded := math.Inf(1)
	return []BoutRule{
		{Name: "sedentary", MinBand: 0, MaxBand: 0, MinLength: 30, Tolerance: 1, ToleranceUpperBound: unbounded},
		{Name: "active", MinBand: 1, MaxBand: cutpoints, MinLength: activeBoutLength, Tolerance: 2, ToleranceUpperBound: unbounded},
		{Name: "mvpa", MinBand: moderateBand, MaxBand: cutpoints, MinLength: activeBoutLength, Tolerance: 2, ToleranceUpperBound: unbounded},
		{Name: "vigorous", MinBand: cutpoints, MaxBand: cutpoints, MinLength: activeBoutLength, Tolerance: 2, ToleranceUpperBound: unbounded},
	}
}

// withDerived fills in the values that depend on other settings
func (c Config) withDerived() Config {
	k := len(c.Cutpoints)
	if c.DayLength == 0 {
		c.DayLength = DefaultDayLength
	}
	if c.WeartimeMaximum == 0 {
		c.WeartimeMaximum = c.DayLength
	}
	if c.ModerateBand == 0 {
		c.ModerateBand = k - 1
		if c.ModerateBand < 1 {
			c.ModerateBand = k
		}
	}
	if len(c.BandNames) == 0 {
		c.BandNames = defaultBandNames(k)
	}
	if len(c.Bouts) == 0 && k > 0 {
		c.Bouts = DefaultBoutRules(k, c.ModerateBand, c.ActiveBoutLength)
	}
	if c.ArtifactAction == "" {
		c.ArtifactAction = ArtifactReplace
	}
	if c.OutputGranularity == "" {
		c.OutputGranularity = GranularityPerDay
	}
	return c
}

func defaultBandNames(k int) []string {
	switch k {
	case 3:
		return []string{"sedentary", "light", "moderate", "vigorous"}
	case 4:
		return []string{"sedentary", "light", "lifestyle", "moderate", "vigorous"}
	}
	names := make([]string, k+1)
	for i := range names {
		names[i] = fmt.Sprintf("band%d", i)
	}
	return names
}

// ConfigError lists every problem found in a configuration
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func (e *ConfigError) add(format string, args ...interface{}) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Validate checks the configuration after defaults have been derived
func (c Config) Validate() error {
	problems := &ConfigError{}

	if err := validateCutpoints(c.Cutpoints); err != nil {
		problems.add("%v", err)
	}
	k := len(c.Cutpoints)
	if len(c.BandNames) != k+1 {
		problems.add("band_names has %d entries, want %d", len(c.BandNames), k+1)
	}
	seen := make(map[string]bool)
	for _, n := range c.BandNames {
		if strings.TrimSpace(n) == "" {
			problems.add("band_names contains an empty name")
		}
		if seen[n] {
			problems.add("band name %q is repeated", n)
		}
		seen[n] = true
	}
	if k > 0 && (c.ModerateBand < 1 || c.ModerateBand > k) {
		problems.add("moderate_band %d outside 1..%d", c.ModerateBand, k)
	}

	if c.NonwearWindow <= 0 {
		problems.add("nonwear_window must be positive, got %d", c.NonwearWindow)
	}
	if c.NonwearTolerance < 0 {
		problems.add("nonwear_tolerance must not be negative, got %d", c.NonwearTolerance)
	}
	if c.NonwearToleranceUpperBound < 0 || math.IsNaN(c.NonwearToleranceUpperBound) {
		problems.add("nonwear_tolerance_upper_bound must not be negative")
	}
	if c.DayLength <= 0 {
		problems.add("day_length must be positive, got %d", c.DayLength)
	}
	if c.WeartimeMinimum < 0 {
		problems.add("weartime_minimum must not be negative, got %d", c.WeartimeMinimum)
	}
	if c.WeartimeMaximum < c.WeartimeMinimum {
		problems.add("weartime_maximum %d is below weartime_minimum %d", c.WeartimeMaximum, c.WeartimeMinimum)
	}
	if c.ActiveBoutLength <= 0 {
		problems.add("active_bout_length must be positive, got %d", c.ActiveBoutLength)
	}

	ruleNames := make(map[string]bool)
	for _, r := range c.Bouts {
		if r.Name == "" {
			problems.add("bout rule without a name")
		}
		if ruleNames[r.Name] {
			problems.add("bout rule %q is repeated", r.Name)
		}
		ruleNames[r.Name] = true
		if r.MinBand < 0 || r.MaxBand > k || r.MinBand > r.MaxBand {
			problems.add("bout rule %q band range [%d,%d] outside 0..%d", r.Name, r.MinBand, r.MaxBand, k)
		}
		if r.MinLength <= 0 {
			problems.add("bout rule %q min_length must be positive, got %d", r.Name, r.MinLength)
		}
		if r.Tolerance < 0 {
			problems.add("bout rule %q tolerance must not be negative", r.Name)
		}
		if r.ToleranceUpperBound < 0 || math.IsNaN(r.ToleranceUpperBound) {
			problems.add("bout rule %q tolerance_upper_bound must not be negative", r.Name)
		}
	}

	// band, bout and peak names share one metric namespace once lowercased
	produced := make(map[string]int)
	var names []string
	for _, n := range c.MetricNames() {
		if produced[n] == 0 {
			names = append(names, n)
		}
		produced[n]++
	}
	for _, n := range names {
		if produced[n] > 1 {
			problems.add("metric %s would be produced %d times; rename the colliding band, bout rule or peak window", n, produced[n])
		}
	}

	switch c.ArtifactAction {
	case ArtifactFlag, ArtifactMissing, ArtifactReplace:
	default:
		problems.add("unknown artifact_action %q", c.ArtifactAction)
	}
	switch c.OutputGranularity {
	case GranularityPerDay, GranularityRollup:
	default:
		problems.add("unknown output_granularity %q", c.OutputGranularity)
	}

	if c.RequiredValidDays < 0 || c.RequiredValidWeekdays < 0 || c.RequiredValidWeekendDays < 0 {
		problems.add("required valid day counts must not be negative")
	}

	for _, w := range c.PeakWindows {
		if w <= 0 {
			problems.add("peak window must be positive, got %d", w)
		}
	}

	if len(problems.Problems) == 0 {
		known := make(map[string]bool)
		for _, n := range c.MetricNames() {
			known[n] = true
		}
		for field, r := range c.RollupReducers {
			if !known[field] {
				problems.add("rollup_reducers names unknown field %q", field)
			}
			if r != ReduceMean && r != ReduceSum {
				problems.add("rollup_reducers[%s]: unknown reducer %q", field, r)
			}
		}
	}

	if len(problems.Problems) > 0 {
		return problems
	}
	return nil
}

// reducer returns the configured reducer of a metric, mean by default
func (c Config) reducer(field string) Reducer {
	if r, ok := c.RollupReducers[field]; ok {
		return r
	}
	return ReduceMean
}
