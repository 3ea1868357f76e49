// Package storage persists processing runs and their summaries.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chrissnell/actisum/internal/activity"
	"github.com/google/uuid"
)

// SummaryStore is implemented by every storage backend
type SummaryStore interface {
	// SaveRun stores a run together with the results of all of its subjects,
	// atomically per backend
	SaveRun(ctx context.Context, run Run, results []activity.Result) error
	Close() error
}

// Run identifies one invocation of the pipeline over a set of subjects
type Run struct {
	ID        uuid.UUID       `json:"id"`
	StartedAt time.Time       `json:"started_at"`
	Digest    string          `json:"config_digest"`
	Config    activity.Config `json:"config"`
}

// NewRun stamps a new run with the configuration it was processed under. Runs
// with equal configurations share a digest.
func NewRun(c activity.Config) (Run, error) {
	encoded, err := json.Marshal(c)
	if err != nil {
		return Run{}, fmt.Errorf("failed to encode configuration: %w", err)
	}
	sum := sha256.Sum256(encoded)

	return Run{
		ID:        uuid.New(),
		StartedAt: time.Now().UTC(),
		Digest:    hex.EncodeToString(sum[:]),
		Config:    c,
	}, nil
}
