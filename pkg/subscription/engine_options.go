package subscription

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/subkit/pkg/audit"
	"github.com/dmitrymomot/subkit/pkg/notification"
)

// EngineOption configures an Engine instance.
type EngineOption func(*Engine)

// WithClock overrides the engine's time source. Billing arithmetic is
// computed from this clock, which makes cycle math testable with fixed times.
func WithClock(clock Clock) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithAuditRecorder sets the recorder receiving lifecycle events.
// Defaults to a no-op recorder.
func WithAuditRecorder(recorder audit.Recorder) EngineOption {
	return func(e *Engine) {
		if recorder != nil {
			e.recorder = recorder
		}
	}
}

// WithNotifier sets the dispatcher informing users of lifecycle events.
// Defaults to a no-op dispatcher.
func WithNotifier(dispatcher notification.Dispatcher) EngineOption {
	return func(e *Engine) {
		if dispatcher != nil {
			e.notifier = dispatcher
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithChargeTimeout bounds a single payment gateway call. A charge that does
// not complete in time is treated as failed and not applied.
func WithChargeTimeout(timeout time.Duration) EngineOption {
	return func(e *Engine) {
		if timeout > 0 {
			e.chargeTimeout = timeout
		}
	}
}

// WithConflictRetries sets how many automatic reload-and-retry attempts
// sweeper-driven renewals make on a version conflict. User-driven calls
// never retry automatically; the conflict is surfaced to the caller.
func WithConflictRetries(n int) EngineOption {
	return func(e *Engine) {
		if n >= 0 {
			e.conflictRetries = n
		}
	}
}
