// Package storage persists assessed readings and maintenance history.
package storage

import (
	"context"
	"errors"

	"plantwatch/internal/models"
)

// Storage errors
var (
	ErrNoReadings = errors.New("no readings for machine")
	ErrClosed     = errors.New("store is closed")
)

// Store persists readings per machine plus the maintenance log used by the
// recommendation context.
type Store interface {
	Insert(ctx context.Context, r *models.Reading) error
	Readings(ctx context.Context, machine string) ([]models.Reading, error)
	Latest(ctx context.Context, machine string) (*models.Reading, error)
	Clear(ctx context.Context, machine string) error

	RecordMaintenance(ctx context.Context, machine string, runtime float64) error
	// LastMaintenance returns the runtime recorded at the most recent
	// maintenance, or 0 when the machine has no maintenance history.
	LastMaintenance(ctx context.Context, machine string) (float64, error)

	Close() error
}
