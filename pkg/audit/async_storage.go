package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// asyncStorage decorates a Storage with a bounded buffer and a background
// writer goroutine, keeping audit writes off the transition path. When the
// buffer is full events are dropped with a warning instead of blocking:
// losing an audit record is preferable to stalling a billing transition.
type asyncStorage struct {
	next   Storage
	buffer chan Event
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

const asyncStoreTimeout = 5 * time.Second

func newAsyncStorage(next Storage, size int) *asyncStorage {
	s := &asyncStorage{
		next:   next,
		buffer: make(chan Event, size),
		done:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.drain()

	return s
}

func (s *asyncStorage) Store(_ context.Context, event Event) error {
	select {
	case s.buffer <- event:
		return nil
	default:
		slog.Warn("audit buffer full, dropping event",
			slog.String("event_type", event.Type),
			slog.String("event_id", event.ID))
		return ErrBufferFull
	}
}

func (s *asyncStorage) drain() {
	defer s.wg.Done()
	for {
		select {
		case event := <-s.buffer:
			s.write(event)
		case <-s.done:
			// Flush whatever is still buffered before exiting.
			for {
				select {
				case event := <-s.buffer:
					s.write(event)
				default:
					return
				}
			}
		}
	}
}

func (s *asyncStorage) write(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), asyncStoreTimeout)
	defer cancel()
	if err := s.next.Store(ctx, event); err != nil {
		slog.Error("audit storage write failed",
			slog.String("event_type", event.Type),
			slog.String("event_id", event.ID),
			slog.Any("error", err))
	}
}

// Close stops the background writer after flushing buffered events.
func (s *asyncStorage) Close() {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}
