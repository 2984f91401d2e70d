// Package usage records billable user actions for quota accounting.
package usage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/buildkeeb/engine/internal/observability"
	"github.com/buildkeeb/engine/internal/storage"
)

// Recorded actions.
const (
	ActionRecommend = "recommend"
	ActionChat      = "chat"
	ActionTweak     = "tweak"
	ActionResearch  = "research"
)

// ErrBufferFull is reported when an event is dropped because the writer is
// behind.
var ErrBufferFull = errors.New("usage buffer full, event dropped")

// ErrClosed is reported for events recorded after Close.
var ErrClosed = errors.New("usage recorder closed")

// Period returns the quota period containing t, formatted YYYY-MM in UTC.
func Period(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Store persists usage events.
type Store interface {
	Create(ctx context.Context, event *storage.UsageEvent) error
}

// Recorder writes usage events in the background. Record never blocks and
// never fails the caller; write failures are delivered on Errors.
type Recorder struct {
	store        Store
	logger       *observability.Logger
	buffer       chan storage.UsageEvent
	errs         chan error
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewRecorder starts a recorder with the given buffer size.
func NewRecorder(store Store, bufferSize int, logger *observability.Logger) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	r := &Recorder{
		store:        store,
		logger:       observability.OrNop(logger),
		buffer:       make(chan storage.UsageEvent, bufferSize),
		errs:         make(chan error, bufferSize),
		writeTimeout: 5 * time.Second,
		done:         make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues one event.
func (r *Recorder) Record(userID, action, period string) {
	event := storage.UsageEvent{
		UserID:    userID,
		Action:    action,
		Period:    period,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.report(fmt.Errorf("%w: %s/%s", ErrClosed, userID, action))
		return
	}
	select {
	case r.buffer <- event:
	default:
		r.report(fmt.Errorf("%w: %s/%s", ErrBufferFull, userID, action))
	}
}

// Errors returns the channel write failures are delivered on. Errors are
// dropped when nobody drains it.
func (r *Recorder) Errors() <-chan error {
	return r.errs
}

// Close stops accepting events, flushes the buffer and waits for the writer.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	close(r.buffer)
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for event := range r.buffer {
		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		err := r.store.Create(ctx, &event)
		cancel()
		if err != nil {
			r.report(fmt.Errorf("record usage %s/%s: %w", event.UserID, event.Action, err))
			continue
		}
		r.logger.Debug().
			Str("user_id", event.UserID).
			Str("action", event.Action).
			Str("period", event.Period).
			Msg("Usage recorded")
	}
}

func (r *Recorder) report(err error) {
	select {
	case r.errs <- err:
	default:
		r.logger.Warn().Err(err).Msg("Usage error channel full")
	}
}

// Drain logs errors delivered on Errors until ctx is done. Run it in its own
// goroutine.
func (r *Recorder) Drain(ctx context.Context) {
	for {
		select {
		case err := <-r.errs:
			r.logger.Warn().Err(err).Msg("Usage recording failed")
		case <-ctx.Done():
			return
		}
	}
}
