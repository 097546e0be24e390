package service

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/retracehq/retrace/internal/metrics"
	"github.com/retracehq/retrace/internal/models"
)

// EventSink receives serialized audit-created events (the WebSocket hub in
// production).
type EventSink interface {
	BroadcastEvent(eventType string, data json.RawMessage)
}

// auditCreatedEvent is the event name streamed to subscribers.
const auditCreatedEvent = "audit.created"

// EventPublisher buffers audit records and fans them out to the sink from a
// single worker goroutine, keeping broadcast work off the save path.
type EventPublisher struct {
	sink EventSink
	log  *logrus.Logger
	jobs chan *models.AuditRecord
}

// NewEventPublisher creates an EventPublisher with the given queue capacity.
func NewEventPublisher(sink EventSink, log *logrus.Logger, queueSize int) *EventPublisher {
	if queueSize <= 0 {
		queueSize = 1000
	}

	return &EventPublisher{
		sink: sink,
		log:  log,
		jobs: make(chan *models.AuditRecord, queueSize),
	}
}

// Enqueue adds an audit record to publish. Non-blocking; drops the event if
// the queue is full (subscribers resync via the audit query API).
func (p *EventPublisher) Enqueue(rec *models.AuditRecord) {
	select {
	case p.jobs <- rec:
		metrics.PublisherQueueDepth.Set(float64(len(p.jobs)))
	default:
		p.log.WithFields(logrus.Fields{
			"entity_type": rec.Auditable.Type,
			"entity_id":   rec.Auditable.ID,
		}).Warn("publisher queue full, dropping event")
	}
}

// Run publishes events until the context is cancelled, then drains the queue.
func (p *EventPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.drain()

			return
		case rec := <-p.jobs:
			p.publish(rec)
		}
	}
}

func (p *EventPublisher) drain() {
	for {
		select {
		case rec := <-p.jobs:
			p.publish(rec)
		default:
			return
		}
	}
}

func (p *EventPublisher) publish(rec *models.AuditRecord) {
	metrics.PublisherQueueDepth.Set(float64(len(p.jobs)))

	data, err := json.Marshal(rec)
	if err != nil {
		p.log.WithError(err).Warn("failed to marshal audit event")

		return
	}

	p.sink.BroadcastEvent(auditCreatedEvent, data)
}
