package inbound

import (
	"context"
	"log/slog"
	"time"

	"zapgate/internal/bus"
	"zapgate/internal/domain"
	"zapgate/internal/metrics"
)

// Per-event budget covering media download plus the webhook relay. One slow
// event must not starve the queue forever.
const eventTimeout = 60 * time.Second

// RelaySink delivers a payload to the webhook consumer, best-effort.
type RelaySink interface {
	Relay(ctx context.Context, payload *domain.RelayPayload)
}

// Pipeline consumes the inbound queue with a single worker, classifying and
// relaying each event to completion before taking the next one.
type Pipeline struct {
	queue      *bus.Queue
	classifier *Classifier
	sink       RelaySink
	logger     *slog.Logger
	done       chan struct{}
}

func NewPipeline(queue *bus.Queue, classifier *Classifier, sink RelaySink, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		queue:      queue,
		classifier: classifier,
		sink:       sink,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Run processes events until the queue is closed. In-flight relays are
// abandoned on context cancellation.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.done)

	for evt := range p.queue.Events() {
		metrics.InboundTotal.Inc()

		evtCtx, cancel := context.WithTimeout(ctx, eventTimeout)
		payload, ok := p.classifier.Classify(evtCtx, evt)
		if ok {
			p.sink.Relay(evtCtx, payload)
		}
		cancel()
	}
}

// Done is closed once the worker has drained the queue and exited.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}
