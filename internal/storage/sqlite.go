package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/chrissnell/actisum/internal/activity"
	"github.com/chrissnell/actisum/internal/log"
	"github.com/chrissnell/actisum/pkg/migrate"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var sqliteMigrations embed.FS

// SQLiteStore keeps runs in a local SQLite file
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewSQLiteStore opens or creates the database at path
func NewSQLiteStore(path string, logger *zap.SugaredLogger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	migrations, err := migrate.FromFS(sqliteMigrations, "migrations")
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate.NewMigrator(db, migrations, logger).MigrateUp(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate summary schema: %w", err)
	}

	return &SQLiteStore{db: db, logger: log.OrNop(logger)}, nil
}

// SaveRun implements SummaryStore
func (s *SQLiteStore) SaveRun(ctx context.Context, run Run, results []activity.Result) error {
	rs, err := flatten(run, results)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	r := rs.run
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, config_digest, config, subjects, rejected) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt, r.ConfigDigest, r.Config, r.Subjects, r.Rejected); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, sr := range rs.subjects {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO subjects (run_id, subject_id, status, reason, days, valid_days, valid_weekdays, valid_weekend_days, eligible)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sr.RunID, sr.SubjectID, sr.Status, sr.Reason, sr.Days, sr.ValidDays, sr.ValidWeekdays, sr.ValidWeekendDays, sr.Eligible); err != nil {
			return fmt.Errorf("failed to insert subject %s: %w", sr.SubjectID, err)
		}
	}

	for _, d := range rs.days {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO day_summaries (run_id, subject_id, day, weekday, date, valid, minutes, wear_minutes, counts, cpm, metrics)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.RunID, d.SubjectID, d.Day, d.Weekday, d.Date, d.Valid, d.Minutes, d.WearMinutes, d.Counts, d.CPM, d.Metrics); err != nil {
			return fmt.Errorf("failed to insert day %d of %s: %w", d.Day, d.SubjectID, err)
		}
	}

	for _, ro := range rs.rollups {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rollups (run_id, subject_id, days, valid_days, eligible, metrics) VALUES (?, ?, ?, ?, ?, ?)`,
			ro.RunID, ro.SubjectID, ro.Days, ro.ValidDays, ro.Eligible, ro.Metrics); err != nil {
			return fmt.Errorf("failed to insert rollup of %s: %w", ro.SubjectID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	s.logger.Debugw("stored run", "run", r.ID, "subjects", r.Subjects, "days", len(rs.days), "rollups", len(rs.rollups))
	return nil
}

// Subjects returns the subject outcomes of a run, ordered by subject id
func (s *SQLiteStore) Subjects(ctx context.Context, runID string) ([]SubjectRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, subject_id, status, COALESCE(reason, ''), days, valid_days, valid_weekdays, valid_weekend_days, eligible
		FROM subjects WHERE run_id = ? ORDER BY subject_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subjects: %w", err)
	}
	defer rows.Close()

	var out []SubjectRow
	for rows.Next() {
		var r SubjectRow
		if err := rows.Scan(&r.RunID, &r.SubjectID, &r.Status, &r.Reason, &r.Days, &r.ValidDays,
			&r.ValidWeekdays, &r.ValidWeekendDays, &r.Eligible); err != nil {
			return nil, fmt.Errorf("failed to scan subject row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Days returns the per-day summaries of one subject in a run
func (s *SQLiteStore) Days(ctx context.Context, runID, subjectID string) ([]DayRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, subject_id, day, weekday, date, valid, minutes, wear_minutes, counts, cpm, metrics
		FROM day_summaries WHERE run_id = ? AND subject_id = ? ORDER BY day`, runID, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query day summaries: %w", err)
	}
	defer rows.Close()

	var out []DayRow
	for rows.Next() {
		var d DayRow
		var date sql.NullTime
		if err := rows.Scan(&d.RunID, &d.SubjectID, &d.Day, &d.Weekday, &date, &d.Valid, &d.Minutes,
			&d.WearMinutes, &d.Counts, &d.CPM, &d.Metrics); err != nil {
			return nil, fmt.Errorf("failed to scan day row: %w", err)
		}
		if date.Valid {
			t := date.Time
			d.Date = &t
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
