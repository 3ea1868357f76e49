package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/chrissnell/actisum/internal/activity"
	"github.com/chrissnell/actisum/internal/log"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const insertBatchSize = 500

// TimescaleDBStore keeps runs in PostgreSQL or TimescaleDB through GORM
type TimescaleDBStore struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// CreateConnection opens a GORM connection whose logger writes through zap
func CreateConnection(connectionString string) (*gorm.DB, error) {
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Info("connecting to TimescaleDB...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		log.Warnf("unable to create a TimescaleDB connection: %v", err)
		return nil, err
	}
	return db, nil
}

// NewTimescaleDBStore connects and migrates the summary tables
func NewTimescaleDBStore(ctx context.Context, connectionString string, logger *zap.SugaredLogger) (*TimescaleDBStore, error) {
	db, err := CreateConnection(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TimescaleDB: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&RunRow{}, &SubjectRow{}, &DayRow{}, &RollupRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate summary tables: %w", err)
	}

	return &TimescaleDBStore{db: db, logger: log.OrNop(logger)}, nil
}

// SaveRun implements SummaryStore
func (t *TimescaleDBStore) SaveRun(ctx context.Context, run Run, results []activity.Result) error {
	rs, err := flatten(run, results)
	if err != nil {
		return err
	}

	err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rs.run).Error; err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}
		if len(rs.subjects) > 0 {
			if err := tx.CreateInBatches(rs.subjects, insertBatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert subjects: %w", err)
			}
		}
		if len(rs.days) > 0 {
			if err := tx.CreateInBatches(rs.days, insertBatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert day summaries: %w", err)
			}
		}
		if len(rs.rollups) > 0 {
			if err := tx.CreateInBatches(rs.rollups, insertBatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert rollups: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	t.logger.Debugw("stored run", "run", rs.run.ID, "subjects", rs.run.Subjects, "days", len(rs.days))
	return nil
}

// Close closes the underlying connection pool
func (t *TimescaleDBStore) Close() error {
	sqlDB, err := t.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
