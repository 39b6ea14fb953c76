package stream

import (
	"context"
	"sync/atomic"

	"plantwatch/internal/models"
)

// Noop discards readings. Used when Kafka is disabled so the worker pool and
// the rest of the pipeline run unchanged.
type Noop struct {
	dropped atomic.Uint64
}

func NewNoop() *Noop { return &Noop{} }

func (n *Noop) Publish(ctx context.Context, r *models.Reading) error {
	n.dropped.Add(1)
	return nil
}

func (n *Noop) PublishBatch(ctx context.Context, readings []*models.Reading) error {
	n.dropped.Add(uint64(len(readings)))
	return nil
}

func (n *Noop) Close() error { return nil }

func (n *Noop) Stats() Stats {
	return Stats{MessagesSent: n.dropped.Load()}
}

func (n *Noop) HealthCheck(ctx context.Context) error { return nil }
