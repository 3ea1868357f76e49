package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chrissnell/actisum/internal/activity"
	"github.com/chrissnell/actisum/internal/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DefaultTable holds minute counts in long form:
// subject_id text, minute_index int, weekday int, count int
const DefaultTable = "activity_counts"

// PostgresSource loads subject series from a long-form counts table
type PostgresSource struct {
	pool   *pgxpool.Pool
	table  string
	logger *zap.SugaredLogger
}

// NewPostgresSource connects to the database and checks that it answers
func NewPostgresSource(ctx context.Context, connStr, table string, logger *zap.SugaredLogger) (*PostgresSource, error) {
	if table == "" {
		table = DefaultTable
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresSource{
		pool:   pool,
		table:  table,
		logger: log.OrNop(logger),
	}, nil
}

// loadQuery builds the select for the table, restricted to the given subjects
// when any are named
func loadQuery(table string, filtered bool) string {
	ident := pgx.Identifier(strings.Split(table, ".")).Sanitize()
	query := "SELECT subject_id, minute_index, weekday, count FROM " + ident
	if filtered {
		query += " WHERE subject_id = ANY($1)"
	}
	return query + " ORDER BY subject_id, minute_index"
}

// Load reads the series of the given subjects, or of every subject when none
// are named
func (s *PostgresSource) Load(ctx context.Context, subjects []string) ([]activity.RawSeries, error) {
	started := time.Now()

	var args []any
	if len(subjects) > 0 {
		args = append(args, subjects)
	}
	rows, err := s.pool.Query(ctx, loadQuery(s.table, len(subjects) > 0), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.table, err)
	}
	defer rows.Close()

	var minutes []minuteRow
	for rows.Next() {
		var m minuteRow
		if err := rows.Scan(&m.subject, &m.index, &m.weekday, &m.count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		minutes = append(minutes, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", s.table, err)
	}

	series := assemble(minutes)
	s.logger.Infof("loaded %d minutes for %d subjects from %s in %v",
		len(minutes), len(series), s.table, time.Since(started).Round(time.Millisecond))
	return series, nil
}

// Close releases the connection pool
func (s *PostgresSource) Close() {
	s.pool.Close()
}
