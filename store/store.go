// Package store persists harness evaluations so sweeps can be resumed and
// queried after the fact.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotInitialized is returned by stores used before Init.
var ErrNotInitialized = errors.New("store is not initialized")

// Evaluation is one scored headless run of a candidate configuration.
type Evaluation struct {
	RunID       string          `json:"run_id"`
	SweepID     string          `json:"sweep_id"`
	Label       string          `json:"label"`
	CreatedAt   time.Time       `json:"created_at"`
	ConfigYAML  string          `json:"config_yaml"`
	Diagnostics json.RawMessage `json:"diagnostics"`
	Score       float64         `json:"score"`
	Passed      bool            `json:"passed"`
	Notes       string          `json:"notes"`
}

// Store defines persistence operations for evaluations.
type Store interface {
	Init(ctx context.Context) error
	SaveEvaluation(ctx context.Context, ev Evaluation) error
	GetEvaluation(ctx context.Context, runID string) (Evaluation, bool, error)
	// ListEvaluations returns a sweep's evaluations, best score first.
	ListEvaluations(ctx context.Context, sweepID string) ([]Evaluation, error)
	Close() error
}

// New returns an uninitialized store of the given kind.
func New(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if sqlitePath == "" {
			return nil, errors.New("sqlite path is required")
		}
		return NewSQLiteStore(sqlitePath), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}
