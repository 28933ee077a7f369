package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Storage persists audit events. Implementations must be safe for concurrent use.
type Storage interface {
	Store(ctx context.Context, event Event) error
}

// Recorder receives lifecycle events for compliance logging.
// Recording is best-effort from the engine's point of view: a transition
// never fails because the audit trail is unavailable.
type Recorder interface {
	Record(ctx context.Context, eventType string, opts ...EventOption) error
}

type recorder struct {
	storage Storage
	clock   func() time.Time
}

// Option configures a Recorder.
type Option func(*recorder)

// WithAsyncBuffer decorates the storage with a buffered asynchronous writer
// of the given capacity. Events are dropped with a warning once the buffer
// is full rather than blocking the transition path.
func WithAsyncBuffer(size int) Option {
	return func(r *recorder) {
		if size > 0 {
			r.storage = newAsyncStorage(r.storage, size)
		}
	}
}

// WithClock overrides the timestamp source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(r *recorder) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewRecorder creates an audit recorder writing to the given storage.
// Panics on nil storage to fail fast during initialization.
func NewRecorder(storage Storage, opts ...Option) Recorder {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}

	r := &recorder{
		storage: storage,
		clock:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *recorder) Record(ctx context.Context, eventType string, opts ...EventOption) error {
	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: r.clock(),
	}
	for _, opt := range opts {
		opt(&event)
	}
	if err := event.Validate(); err != nil {
		return err
	}
	return r.storage.Store(ctx, event)
}

// NopRecorder discards all events. Used when no audit backend is configured.
func NopRecorder() Recorder {
	return nopRecorder{}
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, string, ...EventOption) error { return nil }
