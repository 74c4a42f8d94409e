package cache

import (
	"context"
	"time"
)

// Entry is the cached runtime status for a connection.
type Entry struct {
	Status    string    `json:"status"`
	Phone     string    `json:"phone,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StatusCache mirrors session runtime status so status reads survive a
// process restart until the resume sweep catches up.
type StatusCache interface {
	SetStatus(ctx context.Context, id string, entry Entry) error
	GetStatus(ctx context.Context, id string) (Entry, bool, error)
	Invalidate(ctx context.Context, id string) error
}
