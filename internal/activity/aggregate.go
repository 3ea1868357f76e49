package activity

import (
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summarize builds the record of one day from its epochs and bouts. bouts must be
// in the order of c.Bouts.
func Summarize(subjectID string, seg DaySegment, day []Epoch, bouts [][]Bout, start time.Time, c Config) SummaryRecord {
	rec := SummaryRecord{
		SubjectID:   subjectID,
		Day:         seg.Day,
		Weekday:     seg.Weekday,
		Minutes:     seg.Len(),
		BandMinutes: make([]BandMinutes, len(c.BandNames)),
		Bouts:       make([]BoutSummary, len(c.Bouts)),
		Peaks:       make([]PeakSummary, len(c.PeakWindows)),
	}
	if !start.IsZero() {
		d := start.Add(time.Duration(seg.Start) * time.Minute)
		rec.Date = &d
	}
	for i, name := range c.BandNames {
		rec.BandMinutes[i].Band = name
	}

	nonwear := 0
	counted := 0
	for i, e := range day {
		if e.Artifact {
			rec.ArtifactMinutes++
		}
		if !e.Wear {
			nonwear++
			continue
		}
		rec.RawCounts += float64(e.Raw)
		if !e.countable() {
			continue
		}
		counted++
		rec.Counts += e.Corrected
		rec.BandMinutes[e.Band].Minutes++
		if i > 0 && e.Band > 0 && day[i-1].countable() && day[i-1].Band == 0 {
			rec.SedentaryBreaks++
		}
	}
	rec.WearMinutes = seg.Len() - nonwear
	rec.Valid = ValidDay(rec.WearMinutes, c)
	if counted > 0 {
		rec.CPM = rec.Counts / float64(counted)
	}

	for i, rule := range c.Bouts {
		var ruleBouts []Bout
		if i < len(bouts) {
			ruleBouts = bouts[i]
		}
		rec.Bouts[i] = SummarizeBouts(rule.Name, ruleBouts)
	}
	for i, w := range c.PeakWindows {
		rec.Peaks[i] = PeakSummary{Window: w, Counts: peakMean(day, w)}
	}
	return rec
}

// peakMean returns the highest mean count over window consecutive countable
// minutes, or zero when the day has no such run
func peakMean(day []Epoch, window int) float64 {
	if window <= 0 || window > len(day) {
		return 0
	}
	var best, sum float64
	found := false
	excluded := 0
	for i, e := range day {
		if e.countable() {
			sum += e.Corrected
		} else {
			excluded++
		}
		if i >= window {
			old := day[i-window]
			if old.countable() {
				sum -= old.Corrected
			} else {
				excluded--
			}
		}
		if i >= window-1 && excluded == 0 {
			if mean := sum / float64(window); !found || mean > best {
				best = mean
				found = true
			}
		}
	}
	return best
}

// Metrics flattens the numeric fields of a record in a stable order
func (r SummaryRecord) Metrics() []Metric {
	m := []Metric{
		{Name: "minutes", Value: float64(r.Minutes)},
		{Name: "wear_minutes", Value: float64(r.WearMinutes)},
		{Name: "artifact_minutes", Value: float64(r.ArtifactMinutes)},
		{Name: "raw_counts", Value: r.RawCounts},
		{Name: "counts", Value: r.Counts},
		{Name: "cpm", Value: r.CPM},
	}
	for _, b := range r.BandMinutes {
		m = append(m, Metric{Name: metricName(b.Band) + "_minutes", Value: float64(b.Minutes)})
	}
	for _, b := range r.Bouts {
		m = append(m,
			Metric{Name: metricName(b.Rule) + "_bouts", Value: float64(b.Count)},
			Metric{Name: metricName(b.Rule) + "_bouted_minutes", Value: float64(b.Minutes)},
		)
	}
	m = append(m, Metric{Name: "sedentary_breaks", Value: float64(r.SedentaryBreaks)})
	for _, p := range r.Peaks {
		m = append(m, Metric{Name: fmt.Sprintf("max_%dmin_counts", p.Window), Value: p.Counts})
	}
	return m
}

func metricName(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// MetricNames lists the metric names every record produced under c carries
func (c Config) MetricNames() []string {
	shape := SummaryRecord{
		BandMinutes: make([]BandMinutes, len(c.BandNames)),
		Bouts:       make([]BoutSummary, len(c.Bouts)),
		Peaks:       make([]PeakSummary, len(c.PeakWindows)),
	}
	for i, n := range c.BandNames {
		shape.BandMinutes[i].Band = n
	}
	for i, b := range c.Bouts {
		shape.Bouts[i].Rule = b.Name
	}
	for i, w := range c.PeakWindows {
		shape.Peaks[i].Window = w
	}

	metrics := shape.Metrics()
	names := make([]string, len(metrics))
	for i, m := range metrics {
		names[i] = m.Name
	}
	return names
}

// Rollup reduces the valid days of a subject to one record, using the reducer
// configured for each metric. Invalid days never contribute.
func Rollup(subjectID string, days []SummaryRecord, eligibility Eligibility, c Config) RollupRecord {
	names := c.MetricNames()
	columns := make([][]float64, len(names))

	valid := 0
	for _, d := range days {
		if !d.Valid {
			continue
		}
		valid++
		values := make(map[string]float64, len(names))
		for _, m := range d.Metrics() {
			values[m.Name] = m.Value
		}
		for i, name := range names {
			columns[i] = append(columns[i], values[name])
		}
	}

	rec := RollupRecord{
		SubjectID: subjectID,
		Days:      len(days),
		ValidDays: valid,
		Eligible:  eligibility.Eligible,
		Metrics:   make([]Metric, len(names)),
	}
	for i, name := range names {
		rec.Metrics[i].Name = name
		if valid == 0 {
			continue
		}
		switch c.reducer(name) {
		case ReduceSum:
			rec.Metrics[i].Value = floats.Sum(columns[i])
		default:
			rec.Metrics[i].Value = stat.Mean(columns[i], nil)
		}
	}
	return rec
}
