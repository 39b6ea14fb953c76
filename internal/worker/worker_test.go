package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"plantwatch/internal/models"
	"plantwatch/internal/risk"
)

// mockPublisher is a mock implementation of Publisher for testing
type mockPublisher struct {
	published  atomic.Uint64
	batches    atomic.Uint64
	shouldFail bool
}

func (m *mockPublisher) Publish(ctx context.Context, r *models.Reading) error {
	if m.shouldFail {
		return context.DeadlineExceeded
	}
	m.published.Add(1)
	return nil
}

func (m *mockPublisher) PublishBatch(ctx context.Context, readings []*models.Reading) error {
	if m.shouldFail {
		return context.DeadlineExceeded
	}
	m.batches.Add(1)
	m.published.Add(uint64(len(readings)))
	return nil
}

func testReading() *models.Reading {
	return &models.Reading{
		Machine:   "cnc",
		Timestamp: time.Now(),
		Values:    map[string]float64{"temp": 90},
		Status:    risk.StatusWarning,
		Score:     20,
	}
}

func TestPoolProcessesReadings(t *testing.T) {
	ch := make(chan *models.Reading, 100)
	mock := &mockPublisher{}

	pool := NewPool(Config{
		Publisher:    mock,
		ReadingChan:  ch,
		Workers:      2,
		BatchSize:    10,
		BatchTimeout: 50 * time.Millisecond,
	})

	pool.Start()
	defer pool.Stop()

	const n = 25
	for i := 0; i < n; i++ {
		ch <- testReading()
	}

	deadline := time.After(2 * time.Second)
	for pool.Stats().Processed < n {
		select {
		case <-deadline:
			t.Fatalf("processed %d of %d before timeout", pool.Stats().Processed, n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	if got := mock.published.Load(); got != n {
		t.Errorf("published: got %d, want %d", got, n)
	}
}

func TestPoolFlushesOnStop(t *testing.T) {
	ch := make(chan *models.Reading, 100)
	mock := &mockPublisher{}

	pool := NewPool(Config{
		Publisher:    mock,
		ReadingChan:  ch,
		Workers:      1,
		BatchSize:    1000,
		BatchTimeout: time.Hour, // batch never fills, never times out
	})

	pool.Start()
	for i := 0; i < 5; i++ {
		ch <- testReading()
	}
	time.Sleep(100 * time.Millisecond)
	pool.Stop()

	if got := pool.Stats().Processed; got != 5 {
		t.Errorf("processed after stop: got %d, want 5 (flush on shutdown)", got)
	}
}

func TestPoolCountsFailures(t *testing.T) {
	ch := make(chan *models.Reading, 10)
	mock := &mockPublisher{shouldFail: true}

	pool := NewPool(Config{
		Publisher:    mock,
		ReadingChan:  ch,
		Workers:      1,
		BatchSize:    2,
		BatchTimeout: 20 * time.Millisecond,
	})

	pool.Start()
	ch <- testReading()
	ch <- testReading()
	time.Sleep(200 * time.Millisecond)
	pool.Stop()

	if got := pool.Stats().Failed; got != 2 {
		t.Errorf("failed: got %d, want 2", got)
	}
}
