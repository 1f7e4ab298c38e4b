package service

import (
	"context"
	"sync"

	"github.com/anatraz/limsbridge/common/hl7"
	"github.com/anatraz/limsbridge/common/logger"
	"github.com/anatraz/limsbridge/common/metrics"
	"github.com/anatraz/limsbridge/common/queue"
)

// Processor drains ACKed inbound messages from the queue and dispatches them
// by staining classification. Messages are processed by a bounded worker
// pool; per-message failures are logged, never retried.
type Processor struct {
	queue    queue.Queue
	staining *StainingActions
	log      *logger.Logger
	metrics  *metrics.Metrics

	slots chan struct{}
	wg    sync.WaitGroup
}

// NewProcessor creates the inbound message processor. Metrics may be nil.
func NewProcessor(q queue.Queue, staining *StainingActions, workers int, log *logger.Logger, m *metrics.Metrics) *Processor {
	if workers < 1 {
		workers = 1
	}
	return &Processor{
		queue:    q,
		staining: staining,
		log:      log.WithComponent("hl7-processor"),
		metrics:  m,
		slots:    make(chan struct{}, workers),
	}
}

// Start subscribes to the inbound topic
func (p *Processor) Start(ctx context.Context) error {
	return p.queue.Subscribe(ctx, TopicInboundHL7, p.handle)
}

// Stop waits for in-flight messages to finish
func (p *Processor) Stop() {
	p.wg.Wait()
}

func (p *Processor) handle(ctx context.Context, key string, value []byte) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.slots }()

		if err := p.Dispatch(ctx, string(value)); err != nil {
			p.log.Error("message dispatch failed", "control_id", key, "error", err)
		}
	}()

	return nil
}

// Dispatch classifies one raw message and runs the matching staining action
func (p *Processor) Dispatch(ctx context.Context, raw string) error {
	msg := hl7.Parse(raw)
	kind := msg.Classify()

	if p.metrics != nil {
		p.metrics.MessagesHandled.WithLabelValues(string(kind)).Inc()
	}

	log := p.log.WithFields(map[string]any{
		"control_id": msg.ControlID(),
		"kind":       string(kind),
	})
	log.Info("dispatching inbound message")

	switch kind {
	case hl7.KindStainStart:
		return p.staining.Started(ctx, msg)
	case hl7.KindStainCancelled:
		return p.staining.Cancelled(ctx, msg)
	case hl7.KindStainComplete:
		return p.staining.Completed(ctx, msg)
	default:
		return p.staining.Rejected(ctx, msg)
	}
}
