package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/chrissnell/actisum/internal/activity"
	"github.com/chrissnell/actisum/internal/log"
	"github.com/chrissnell/actisum/pkg/config"
	"go.uber.org/zap"
)

// Manager holds the active storage backends and fans every run out to them
type Manager struct {
	Engines []SummaryStore
	names   []string
	health  *HealthTracker
	logger  *zap.SugaredLogger
}

// NewManager creates a Manager populated with every configured backend. A
// configuration without storage yields a Manager with no engines.
func NewManager(ctx context.Context, c config.StorageData, logger *zap.SugaredLogger) (*Manager, error) {
	m := &Manager{
		health: NewHealthTracker(),
		logger: log.OrNop(logger),
	}

	if c.SQLite != nil && c.SQLite.Path != "" {
		s, err := NewSQLiteStore(c.SQLite.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("could not add SQLite storage backend: %w", err)
		}
		m.AddEngine("sqlite", s)
	}

	if c.TimescaleDB != nil && c.TimescaleDB.ConnectionString != "" {
		t, err := NewTimescaleDBStore(ctx, c.TimescaleDB.ConnectionString, logger)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("could not add TimescaleDB storage backend: %w", err)
		}
		m.AddEngine("timescaledb", t)
	}

	return m, nil
}

// AddEngine adds a backend under a name used for health reporting
func (m *Manager) AddEngine(name string, s SummaryStore) {
	m.Engines = append(m.Engines, s)
	m.names = append(m.names, name)
}

// Enabled reports whether any backend is configured
func (m *Manager) Enabled() bool {
	return len(m.Engines) > 0
}

// Health returns the outcome of the last write to each backend
func (m *Manager) Health() map[string]Health {
	return m.health.All()
}

// SaveRun stores the run in every backend. All backends are attempted; their
// errors are joined.
func (m *Manager) SaveRun(ctx context.Context, run Run, results []activity.Result) error {
	var errs []error
	for i, e := range m.Engines {
		err := e.SaveRun(ctx, run, results)
		m.health.Record(m.names[i], "run "+run.ID.String(), err)
		if err != nil {
			m.logger.Errorf("could not store run %s in %s: %v", run.ID, m.names[i], err)
			errs = append(errs, fmt.Errorf("%s: %w", m.names[i], err))
		}
	}
	if len(errs) == 0 && len(m.Engines) > 0 {
		m.logger.Infof("stored run %s (%d subjects) in %d backend(s)", run.ID, len(results), len(m.Engines))
	}
	return errors.Join(errs...)
}

// Close closes every backend
func (m *Manager) Close() error {
	var errs []error
	for _, e := range m.Engines {
		errs = append(errs, e.Close())
	}
	return errors.Join(errs...)
}
