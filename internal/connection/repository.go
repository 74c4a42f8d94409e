package connection

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no record exists for a connection id.
var ErrNotFound = errors.New("connection record not found")

type Repository interface {
	// Get returns the record for a connection id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)
	// ListConnected returns all records whose stored status is "connected",
	// in database row order. Input for the startup resume sweep.
	ListConnected(ctx context.Context) ([]Record, error)
	// MirrorStatus writes the runtime status onto the record. Phone and
	// lastConnected are only overwritten when non-empty/non-nil.
	MirrorStatus(ctx context.Context, id, status, phone string) error
}
