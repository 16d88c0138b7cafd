// Package bus provides the in-process queue between the gateway event
// receiver and the inbound pipeline worker. Intake stays responsive while
// one worker processes events strictly in arrival order.
package bus

import (
	"log/slog"
	"sync"
	"time"

	"zapgate/internal/domain"
)

const publishTimeout = 10 * time.Second

// Queue is a buffered, single-consumer queue of inbound message events.
type Queue struct {
	events chan domain.MessageEvent
	mu     sync.RWMutex
	closed bool
	logger *slog.Logger
}

// New creates a Queue with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *Queue {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Queue{
		events: make(chan domain.MessageEvent, bufferSize),
		logger: logger,
	}
}

// Publish enqueues an event. Blocks up to 10 seconds when the queue is full
// instead of dropping immediately.
func (q *Queue) Publish(evt domain.MessageEvent) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.logger.Warn("attempted to publish to closed queue", "sender", evt.Sender)
		return
	}

	select {
	case q.events <- evt:
	default:
		q.logger.Warn("inbound queue full, waiting...", "sender", evt.Sender)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case q.events <- evt:
			q.logger.Info("event delivered after wait", "sender", evt.Sender)
		case <-timer.C:
			q.logger.Error("event dropped: queue full for 10s", "sender", evt.Sender)
		}
	}
}

// Events returns the consumer side of the queue. The channel is closed by
// Close, letting the worker drain and exit.
func (q *Queue) Events() <-chan domain.MessageEvent {
	return q.events
}

func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.events)
	}
}
