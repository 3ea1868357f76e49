// Package activity reduces minute-level wearable activity counts into per-day
// wear, intensity and bout summaries.
package activity

import "time"

// Weekday is a 1-based weekday code: 1=Sunday ... 7=Saturday
type Weekday int

const (
	Sunday Weekday = iota + 1
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// Valid reports whether w is a known weekday code
func (w Weekday) Valid() bool {
	return w >= Sunday && w <= Saturday
}

// IsWeekend reports whether w falls on Saturday or Sunday
func (w Weekday) IsWeekend() bool {
	return w == Sunday || w == Saturday
}

func (w Weekday) String() string {
	if !w.Valid() {
		return "Unknown"
	}
	return time.Weekday(w - 1).String()
}

// MinuteRecord is one minute of device output as delivered by ingestion
type MinuteRecord struct {
	Index   int     `json:"index"`
	Weekday Weekday `json:"weekday"`
	Count   int     `json:"count"`
}

// RawSeries is the complete minute-by-minute record of one subject
type RawSeries struct {
	SubjectID    string         `json:"subject_id"`
	StartWeekday Weekday        `json:"start_weekday"`
	Start        time.Time      `json:"start,omitempty"`
	Records      []MinuteRecord `json:"records"`
}

// NewRawSeries builds a contiguous series starting at index 1
func NewRawSeries(subjectID string, startWeekday Weekday, counts []int) RawSeries {
	records := make([]MinuteRecord, len(counts))
	for i, c := range counts {
		records[i] = MinuteRecord{
			Index:   i + 1,
			Weekday: WeekdayAt(i+1, startWeekday, DefaultDayLength),
			Count:   c,
		}
	}
	return RawSeries{
		SubjectID:    subjectID,
		StartWeekday: startWeekday,
		Records:      records,
	}
}

// Counts returns the raw count of every record, in order
func (s RawSeries) Counts() []int {
	counts := make([]int, len(s.Records))
	for i, r := range s.Records {
		counts[i] = r.Count
	}
	return counts
}

// BandMissing is the band of an epoch whose count was discarded as an artifact
const BandMissing = -1

// Epoch is the processing state of a single minute
type Epoch struct {
	Index     int     `json:"index"`
	Raw       int     `json:"raw"`
	Corrected float64 `json:"corrected"`
	Band      int     `json:"band"`
	Artifact  bool    `json:"artifact,omitempty"`
	Replaced  bool    `json:"replaced,omitempty"`
	Missing   bool    `json:"missing,omitempty"`
	Wear      bool    `json:"wear"`
}

// flagged reports an artifact that was kept as-is and must stay out of totals
func (e Epoch) flagged() bool {
	return e.Artifact && !e.Replaced && !e.Missing
}

// countable reports whether the epoch contributes to wear-time totals
func (e Epoch) countable() bool {
	return e.Wear && !e.Missing && !e.flagged()
}

// NonwearEpisode is an inclusive span of epoch offsets classified as non-wear
type NonwearEpisode struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Minutes returns the episode duration
func (n NonwearEpisode) Minutes() int {
	return n.End - n.Start + 1
}

// Bout is an inclusive span of epoch offsets satisfying a bout rule
type Bout struct {
	Rule  string `json:"rule"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Minutes returns the bout duration, tolerated interruptions included
func (b Bout) Minutes() int {
	return b.End - b.Start + 1
}

// DaySegment is a half-open [Start, End) slice of epoch offsets making up one day
type DaySegment struct {
	Day     int     `json:"day"`
	Weekday Weekday `json:"weekday"`
	Start   int     `json:"start"`
	End     int     `json:"end"`
	Partial bool    `json:"partial,omitempty"`
}

// Len returns the number of minutes in the segment
func (d DaySegment) Len() int {
	return d.End - d.Start
}

// BandMinutes is the wear time spent in one intensity band
type BandMinutes struct {
	Band    string `json:"band"`
	Minutes int    `json:"minutes"`
}

// BoutSummary totals the bouts of one rule within a day
type BoutSummary struct {
	Rule    string `json:"rule"`
	Count   int    `json:"count"`
	Minutes int    `json:"minutes"`
}

// PeakSummary is the highest mean count over a run of consecutive wear minutes
type PeakSummary struct {
	Window int     `json:"window"`
	Counts float64 `json:"counts"`
}

// SummaryRecord is one output row per subject-day
type SummaryRecord struct {
	SubjectID       string        `json:"subject_id"`
	Day             int           `json:"day"`
	Weekday         Weekday       `json:"weekday"`
	Date            *time.Time    `json:"date,omitempty"`
	Valid           bool          `json:"valid"`
	Minutes         int           `json:"minutes"`
	WearMinutes     int           `json:"wear_minutes"`
	ArtifactMinutes int           `json:"artifact_minutes"`
	RawCounts       float64       `json:"raw_counts"`
	Counts          float64       `json:"counts"`
	CPM             float64       `json:"cpm"`
	BandMinutes     []BandMinutes `json:"band_minutes"`
	Bouts           []BoutSummary `json:"bouts"`
	SedentaryBreaks int           `json:"sedentary_breaks"`
	Peaks           []PeakSummary `json:"peaks"`
}

// Metric is a named numeric field of a summary
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// RollupRecord reduces the valid days of one subject to a single row
type RollupRecord struct {
	SubjectID string   `json:"subject_id"`
	Days      int      `json:"days"`
	ValidDays int      `json:"valid_days"`
	Eligible  bool     `json:"eligible"`
	Metrics   []Metric `json:"metrics"`
}

// Eligibility is the subject-level valid-day gate
type Eligibility struct {
	ValidDays        int    `json:"valid_days"`
	ValidWeekdays    int    `json:"valid_weekdays"`
	ValidWeekendDays int    `json:"valid_weekend_days"`
	Eligible         bool   `json:"eligible"`
	Reason           string `json:"reason,omitempty"`
}

// Status is the outcome of processing one subject
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Result is everything produced for one subject
type Result struct {
	SubjectID   string           `json:"subject_id"`
	Status      Status           `json:"status"`
	Reason      string           `json:"reason,omitempty"`
	Days        []SummaryRecord  `json:"days,omitempty"`
	Rollup      *RollupRecord    `json:"rollup,omitempty"`
	Eligibility Eligibility      `json:"eligibility"`
	Episodes    []NonwearEpisode `json:"nonwear_episodes,omitempty"`
	Epochs      []Epoch          `json:"epochs,omitempty"`
}

// Rejected builds the result of a subject whose series could not be processed
func Rejected(subjectID string, reason string) Result {
	return Result{
		SubjectID: subjectID,
		Status:    StatusRejected,
		Reason:    reason,
	}
}
