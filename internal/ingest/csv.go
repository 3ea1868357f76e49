// Package ingest turns count tables into per-subject series.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/actisum/internal/activity"
)

// WideOptions controls ReadWide
type WideOptions struct {
	// Start is the wall-clock time of each subject's first minute, if known
	Start time.Time
}

// minuteRow is one observation of one subject, in input order
type minuteRow struct {
	subject string
	index   int
	weekday int
	count   int
}

// ReadWide splits a wide table into one series per subject. The header is
// index,weekday followed by one column per subject. A blank or NA cell means
// the subject has no observation on that row; a subject's series is its
// non-blank cells in row order. Series are returned in column order.
func ReadWide(r io.Reader, opts WideOptions) ([]activity.RawSeries, error) {
	cr := newReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	header = trimAll(header)
	if len(header) < 3 || !strings.EqualFold(header[0], "index") || !strings.EqualFold(header[1], "weekday") {
		return nil, fmt.Errorf("wide header must be index,weekday,<subject>..., got %q", strings.Join(header, ","))
	}

	subjects := header[2:]
	seen := make(map[string]bool, len(subjects))
	for _, s := range subjects {
		if s == "" {
			return nil, errors.New("wide header has an unnamed subject column")
		}
		if seen[s] {
			return nil, fmt.Errorf("subject %s appears twice in the header", s)
		}
		seen[s] = true
	}

	series := make([]activity.RawSeries, len(subjects))
	for i, s := range subjects {
		series[i] = activity.RawSeries{SubjectID: s, Start: opts.Start}
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) != len(header) {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", line, len(header), len(rec))
		}

		index, err := parseInt(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: index: %w", line, err)
		}
		weekday, err := parseInt(rec[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: weekday: %w", line, err)
		}

		for i, cell := range rec[2:] {
			if blank(cell) {
				continue
			}
			count, err := parseInt(cell)
			if err != nil {
				return nil, fmt.Errorf("line %d: subject %s: %w", line, subjects[i], err)
			}
			s := &series[i]
			if len(s.Records) == 0 {
				s.StartWeekday = activity.Weekday(weekday)
			}
			s.Records = append(s.Records, activity.MinuteRecord{
				Index:   index,
				Weekday: activity.Weekday(weekday),
				Count:   count,
			})
		}
	}

	return series, nil
}

// ReadLong reads a long table with the columns subject_id, index, weekday and
// count, in any order. Rows of one subject keep their file order; subjects are
// returned in order of first appearance.
func ReadLong(r io.Reader) ([]activity.RawSeries, error) {
	cr := newReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols, err := columnIndex(trimAll(header), "subject_id", "index", "weekday", "count")
	if err != nil {
		return nil, err
	}

	var rows []minuteRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row := minuteRow{subject: strings.TrimSpace(rec[cols[0]])}
		if row.subject == "" {
			return nil, fmt.Errorf("line %d: empty subject_id", line)
		}
		if row.index, err = parseInt(rec[cols[1]]); err != nil {
			return nil, fmt.Errorf("line %d: index: %w", line, err)
		}
		if row.weekday, err = parseInt(rec[cols[2]]); err != nil {
			return nil, fmt.Errorf("line %d: weekday: %w", line, err)
		}
		if blank(rec[cols[3]]) {
			continue
		}
		if row.count, err = parseInt(rec[cols[3]]); err != nil {
			return nil, fmt.Errorf("line %d: count: %w", line, err)
		}
		rows = append(rows, row)
	}

	return assemble(rows), nil
}

// assemble groups observations by subject, keeping first-appearance order
func assemble(rows []minuteRow) []activity.RawSeries {
	var series []activity.RawSeries
	position := make(map[string]int)
	for _, row := range rows {
		i, ok := position[row.subject]
		if !ok {
			i = len(series)
			position[row.subject] = i
			series = append(series, activity.RawSeries{
				SubjectID:    row.subject,
				StartWeekday: activity.Weekday(row.weekday),
			})
		}
		series[i].Records = append(series[i].Records, activity.MinuteRecord{
			Index:   row.index,
			Weekday: activity.Weekday(row.weekday),
			Count:   row.count,
		})
	}
	return series
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	return cr
}

// columnIndex finds the named columns, case-insensitively
func columnIndex(header []string, names ...string) ([]int, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		idx[i] = -1
		for j, h := range header {
			if strings.EqualFold(h, name) {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			return nil, fmt.Errorf("header is missing the %s column", name)
		}
	}
	return idx, nil
}

func trimAll(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = strings.TrimSpace(f)
	}
	return out
}

func blank(cell string) bool {
	cell = strings.TrimSpace(cell)
	return cell == "" || strings.EqualFold(cell, "NA")
}

// parseInt accepts integers and integral decimals such as 12.0
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int(f), nil
}
