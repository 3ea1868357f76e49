package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chrissnell/actisum/internal/activity"
)

// RunRow is a row of the runs table
type RunRow struct {
	ID           string    `gorm:"primaryKey;type:uuid"`
	StartedAt    time.Time `gorm:"not null"`
	ConfigDigest string    `gorm:"not null;index"`
	Config       string    `gorm:"type:jsonb;not null"`
	Subjects     int
	Rejected     int
}

func (RunRow) TableName() string { return "runs" }

// SubjectRow records the outcome of one subject in a run, rejections included
type SubjectRow struct {
	RunID            string `gorm:"primaryKey;type:uuid"`
	SubjectID        string `gorm:"primaryKey"`
	Status           string `gorm:"not null"`
	Reason           string
	Days             int
	ValidDays        int
	ValidWeekdays    int
	ValidWeekendDays int
	Eligible         bool
}

func (SubjectRow) TableName() string { return "subjects" }

// DayRow is one per-day summary
type DayRow struct {
	RunID       string `gorm:"primaryKey;type:uuid"`
	SubjectID   string `gorm:"primaryKey"`
	Day         int    `gorm:"primaryKey"`
	Weekday     int
	Date        *time.Time
	Valid       bool
	Minutes     int
	WearMinutes int
	Counts      float64
	CPM         float64 `gorm:"column:cpm"`
	// Metrics holds every metric as a JSON object keyed by metric name
	Metrics string `gorm:"type:jsonb"`
}

func (DayRow) TableName() string { return "day_summaries" }

// RollupRow is one per-subject rollup
type RollupRow struct {
	RunID     string `gorm:"primaryKey;type:uuid"`
	SubjectID string `gorm:"primaryKey"`
	Days      int
	ValidDays int
	Eligible  bool
	Metrics   string `gorm:"type:jsonb"`
}

func (RollupRow) TableName() string { return "rollups" }

// rowSet is a run flattened into table rows
type rowSet struct {
	run      RunRow
	subjects []SubjectRow
	days     []DayRow
	rollups  []RollupRow
}

func flatten(run Run, results []activity.Result) (rowSet, error) {
	config, err := json.Marshal(run.Config)
	if err != nil {
		return rowSet{}, fmt.Errorf("failed to encode configuration: %w", err)
	}

	rs := rowSet{
		run: RunRow{
			ID:           run.ID.String(),
			StartedAt:    run.StartedAt,
			ConfigDigest: run.Digest,
			Config:       string(config),
			Subjects:     len(results),
		},
	}

	for _, res := range results {
		e := res.Eligibility
		rs.subjects = append(rs.subjects, SubjectRow{
			RunID:            rs.run.ID,
			SubjectID:        res.SubjectID,
			Status:           string(res.Status),
			Reason:           res.Reason,
			Days:             len(res.Days),
			ValidDays:        e.ValidDays,
			ValidWeekdays:    e.ValidWeekdays,
			ValidWeekendDays: e.ValidWeekendDays,
			Eligible:         e.Eligible,
		})
		if res.Status == activity.StatusRejected {
			rs.run.Rejected++
			continue
		}

		for _, d := range res.Days {
			metrics, err := metricsJSON(d.Metrics())
			if err != nil {
				return rowSet{}, err
			}
			rs.days = append(rs.days, DayRow{
				RunID:       rs.run.ID,
				SubjectID:   res.SubjectID,
				Day:         d.Day,
				Weekday:     int(d.Weekday),
				Date:        d.Date,
				Valid:       d.Valid,
				Minutes:     d.Minutes,
				WearMinutes: d.WearMinutes,
				Counts:      d.Counts,
				CPM:         d.CPM,
				Metrics:     metrics,
			})
		}

		if r := res.Rollup; r != nil {
			rs.subjects[len(rs.subjects)-1].Days = r.Days
			metrics, err := metricsJSON(r.Metrics)
			if err != nil {
				return rowSet{}, err
			}
			rs.rollups = append(rs.rollups, RollupRow{
				RunID:     rs.run.ID,
				SubjectID: res.SubjectID,
				Days:      r.Days,
				ValidDays: r.ValidDays,
				Eligible:  r.Eligible,
				Metrics:   metrics,
			})
		}
	}
	return rs, nil
}

func metricsJSON(metrics []activity.Metric) (string, error) {
	m := make(map[string]float64, len(metrics))
	for _, metric := range metrics {
		m[metric.Name] = metric.Value
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode metrics: %w", err)
	}
	return string(b), nil
}
