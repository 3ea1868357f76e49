package responseformat

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/chrissnell/actisum/internal/activity"
)

// Table is a header plus rows of string cells
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of a header column, or -1
func (t Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// SummaryTable lays out accepted results with one column per metric. Per-day
// output has one row per subject-day, rollup output one row per subject.
// Rejected subjects are left out; see RejectionTable.
func SummaryTable(results []activity.Result, c activity.Config) Table {
	names := c.MetricNames()

	var t Table
	if c.OutputGranularity == activity.GranularityRollup {
		t.Header = append([]string{"subject_id", "days", "valid_days", "eligible"}, names...)
		for _, r := range results {
			if r.Status != activity.StatusAccepted || r.Rollup == nil {
				continue
			}
			row := []string{
				r.SubjectID,
				strconv.Itoa(r.Rollup.Days),
				strconv.Itoa(r.Rollup.ValidDays),
				strconv.FormatBool(r.Rollup.Eligible),
			}
			t.Rows = append(t.Rows, appendMetrics(row, r.Rollup.Metrics, names))
		}
		return t
	}

	t.Header = append([]string{"subject_id", "day", "weekday", "date", "valid", "eligible"}, names...)
	for _, r := range results {
		if r.Status != activity.StatusAccepted {
			continue
		}
		for _, d := range r.Days {
			date := ""
			if d.Date != nil {
				date = d.Date.Format(time.RFC3339)
			}
			row := []string{
				r.SubjectID,
				strconv.Itoa(d.Day),
				d.Weekday.String(),
				date,
				strconv.FormatBool(d.Valid),
				strconv.FormatBool(r.Eligibility.Eligible),
			}
			t.Rows = append(t.Rows, appendMetrics(row, d.Metrics(), names))
		}
	}
	return t
}

func appendMetrics(row []string, metrics []activity.Metric, names []string) []string {
	values := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		values[m.Name] = m.Value
	}
	for _, n := range names {
		row = append(row, strconv.FormatFloat(values[n], 'f', -1, 64))
	}
	return row
}

// RejectionTable lists every rejected subject with its reason
func RejectionTable(results []activity.Result) Table {
	t := Table{Header: []string{"subject_id", "reason"}}
	for _, r := range results {
		if r.Status == activity.StatusRejected {
			t.Rows = append(t.Rows, []string{r.SubjectID, r.Reason})
		}
	}
	return t
}

// WriteCSV writes the table with a header line
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}
	return nil
}
