package ingest

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chrissnell/actisum/pkg/responseformat"
)

// Covariates holds per-subject attributes such as age group or sex, keyed by
// subject id
type Covariates struct {
	Columns []string
	Rows    map[string][]string
}

// ReadCovariates reads a table whose first column is the subject id
func ReadCovariates(r io.Reader) (Covariates, error) {
	cr := newReader(r)

	header, err := cr.Read()
	if err != nil {
		return Covariates{}, fmt.Errorf("failed to read covariate header: %w", err)
	}
	header = trimAll(header)
	if len(header) < 2 {
		return Covariates{}, errors.New("covariate table needs a subject column and at least one covariate")
	}

	cov := Covariates{
		Columns: header[1:],
		Rows:    make(map[string][]string),
	}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Covariates{}, fmt.Errorf("line %d: %w", line, err)
		}
		id := strings.TrimSpace(rec[0])
		if _, dup := cov.Rows[id]; dup {
			return Covariates{}, fmt.Errorf("line %d: subject %s listed twice", line, id)
		}
		cov.Rows[id] = trimAll(rec[1:])
	}
	return cov, nil
}

// MergeCovariates appends the covariate columns to a summary table, matching
// rows on the subject_id column. Subjects without covariates get empty cells.
// It returns the merged table and the subjects that had no covariates.
func MergeCovariates(t responseformat.Table, cov Covariates) (responseformat.Table, []string, error) {
	col := t.Column("subject_id")
	if col < 0 {
		return t, nil, errors.New("summary table has no subject_id column")
	}

	merged := responseformat.Table{
		Header: append(append([]string(nil), t.Header...), cov.Columns...),
		Rows:   make([][]string, len(t.Rows)),
	}

	var unmatched []string
	reported := make(map[string]bool)
	empty := make([]string, len(cov.Columns))
	for i, row := range t.Rows {
		values, ok := cov.Rows[row[col]]
		if !ok {
			values = empty
			if !reported[row[col]] {
				reported[row[col]] = true
				unmatched = append(unmatched, row[col])
			}
		}
		merged.Rows[i] = append(append([]string(nil), row...), values...)
	}
	return merged, unmatched, nil
}
