// Package storage defines the failure index: a durable record of every
// divergence the harness has captured, for triage across runs.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrAlreadyExists is returned when a failure with the same ID was recorded.
var ErrAlreadyExists = errors.New("failure already recorded")

// Failure is one captured divergence or harness fault.
type Failure struct {
	ID    string
	RunID string
	// SeedHex is the battle seed in the form used by artifact file names.
	SeedHex      string
	Gen          int
	Mode         string
	Code         string
	Message      string
	InputPath    string
	PkmnPath     string
	ShowdownPath string
	CreatedAt    time.Time
}

// FailureStore persists failures.
type FailureStore interface {
	RecordFailure(ctx context.Context, f Failure) error
	ListFailures(ctx context.Context, limit int) ([]Failure, error)
	ListRunFailures(ctx context.Context, runID string) ([]Failure, error)
}
