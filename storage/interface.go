package storage

import (
	"context"
	"errors"
	"time"

	"github.com/johnwmail/npaste/models"
)

var (
	// ErrNotFound is returned when no record has the requested id
	ErrNotFound = errors.New("paste not found")
	// ErrUnavailable is returned by RecordView when the record exists but has
	// expired or used up its views
	ErrUnavailable = errors.New("paste unavailable")
	// ErrDuplicateID is returned by Create when the id is already taken
	ErrDuplicateID = errors.New("paste id already exists")
)

// DefaultTimeout bounds a single store call when none is configured
const DefaultTimeout = 10 * time.Second

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/johnwmail/npaste/storage PasteStore

// PasteStore defines the interface for paste storage backends
type PasteStore interface {
	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error

	// Create inserts a new record. The id must not exist yet; backends enforce
	// this atomically and return ErrDuplicateID.
	Create(ctx context.Context, paste *models.Paste) error

	// Get retrieves a record by id regardless of availability
	Get(ctx context.Context, id string) (*models.Paste, error)

	// Exists reports whether a record with id is stored
	Exists(ctx context.Context, id string) (bool, error)

	// List returns every stored record, newest first
	List(ctx context.Context) ([]*models.Paste, error)

	// Delete removes a record; ErrNotFound if absent
	Delete(ctx context.Context, id string) error

	// RecordView increments views_count by one if the record is available at
	// now, as a single atomic step, and returns the updated record.
	RecordView(ctx context.Context, id string, now time.Time) (*models.Paste, error)

	// PurgeExpired deletes records whose expires_at is before now
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)

	// Close releases the backend connection
	Close() error
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
