package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is a whole-value persistence slot. Replace swaps the stored value
// atomically; a failed Replace leaves the previous value intact.
type Store[T any] interface {
	Load(ctx context.Context) (T, error)
	Replace(ctx context.Context, value T) error
}

// ObjectInfo describes one stored log blob.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// LogSource lists and fetches raw log blobs from an object store.
// Credentials are bound when the source is constructed.
type LogSource interface {
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)
}

// Finding is a high-risk classification reported to a Notifier.
type Finding struct {
	ID         uuid.UUID `json:"id"`
	Source     string    `json:"source"`
	EventName  string    `json:"event_name"`
	EventTime  string    `json:"event_time,omitempty"`
	SourceIP   string    `json:"source_ip,omitempty"`
	Risk       RiskLevel `json:"risk"`
	Reasons    []string  `json:"reasons"`
	Strategy   string    `json:"strategy"`
	DetectedAt time.Time `json:"detected_at"`
}

// Notifier delivers findings to an external channel.
type Notifier interface {
	Notify(ctx context.Context, findings []Finding) error
}
