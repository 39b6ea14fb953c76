// Package service wires the storage, monitoring, publishing, and transport
// layers together and owns their lifecycle.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"plantwatch/internal/config"
	"plantwatch/internal/efficiency"
	"plantwatch/internal/logger"
	"plantwatch/internal/machines"
	"plantwatch/internal/metrics"
	"plantwatch/internal/models"
	"plantwatch/internal/monitor"
	"plantwatch/internal/mqttingest"
	"plantwatch/internal/server"
	"plantwatch/internal/storage"
	"plantwatch/internal/stream"
	"plantwatch/internal/worker"
)

// publisher is the downstream reading sink. Both the Kafka producer and the
// no-op stand-in satisfy it.
type publisher interface {
	worker.Publisher
	Close() error
	Stats() stream.Stats
	HealthCheck(ctx context.Context) error
}

// Service is the top-level coordinator.
type Service struct {
	cfg *config.Config

	store       storage.Store
	manager     *monitor.Manager
	producer    publisher
	workerPool  *worker.Pool
	httpServer  *server.Server
	ingestor    *mqttingest.Ingestor
	readingChan chan *models.Reading

	wg sync.WaitGroup
}

// New constructs a Service from config.
func New(cfg *config.Config) *Service {
	return &Service{
		cfg:         cfg,
		readingChan: make(chan *models.Reading, 1000),
	}
}

// Run starts everything and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	log := logger.WithComponent("service")
	log.Info().Msg("service starting")

	profiles, err := s.loadProfiles()
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}

	if err := s.initStore(); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	if err := s.initProducer(); err != nil {
		return fmt.Errorf("init producer: %w", err)
	}

	s.workerPool = worker.NewPool(worker.Config{
		Publisher:    s.producer,
		ReadingChan:  s.readingChan,
		Workers:      s.cfg.Kafka.Producer.PoolSize,
		BatchSize:    s.cfg.Kafka.Producer.BatchSize,
		BatchTimeout: s.cfg.Kafka.Producer.BatchTimeout,
	})
	s.workerPool.Start()
	metrics.WorkerQueueCapacity.Set(float64(cap(s.readingChan)))

	s.manager = monitor.New(monitor.Config{
		Profiles: profiles,
		Store:    s.store,
		Out:      s.readingChan,
		Interval: s.cfg.Interval,
		Seed:     s.cfg.Seed,
	})

	s.httpServer = server.New(server.Config{
		Addr:      s.cfg.Addr,
		APIKey:    s.cfg.APIKey,
		Manager:   s.manager,
		Store:     s.store,
		Predictor: efficiency.NewPredictor(nil),
		Stats:     s.pipelineStats,
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Start(); err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}()

	if s.cfg.MQTT.Enabled {
		s.ingestor = mqttingest.New(mqttingest.Config{
			BrokerURL:   s.cfg.MQTT.BrokerURL,
			ClientID:    s.cfg.MQTT.ClientID,
			TopicPrefix: s.cfg.MQTT.TopicPrefix,
		}, s.manager)
		if err := s.ingestor.Start(); err != nil {
			log.Error().Err(err).Msg("mqtt ingest unavailable, continuing without it")
			s.ingestor = nil
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reportStats(ctx)
	}()

	log.Info().
		Int("machines", len(profiles)).
		Str("addr", s.cfg.Addr).
		Bool("kafka", s.cfg.Kafka.Enabled).
		Bool("mqtt", s.ingestor != nil).
		Msg("service started")

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")
	return s.shutdown()
}

// loadProfiles merges the builtin machine table with an optional profile
// file; file entries override builtins of the same name.
func (s *Service) loadProfiles() (map[string]machines.Profile, error) {
	profiles := machines.Builtin()
	if s.cfg.ProfileFile == "" {
		return profiles, nil
	}
	loaded, err := machines.LoadFile(s.cfg.ProfileFile)
	if err != nil {
		return nil, err
	}
	for name, p := range loaded {
		profiles[name] = p
	}
	return profiles, nil
}

func (s *Service) initStore() error {
	log := logger.WithComponent("service")
	switch s.cfg.StorageBackend {
	case "memory":
		s.store = storage.NewMemory()
		log.Info().Msg("using in-memory store")
	default:
		store, err := storage.NewSQLite(s.cfg.SQLitePath)
		if err != nil {
			return err
		}
		s.store = store
		log.Info().Str("path", s.cfg.SQLitePath).Msg("sqlite store opened")
	}
	return nil
}

func (s *Service) initProducer() error {
	log := logger.WithComponent("service")
	if !s.cfg.Kafka.Enabled {
		s.producer = stream.NewNoop()
		log.Info().Msg("stream publishing disabled")
		return nil
	}
	producer, err := stream.NewProducer(s.cfg.Kafka.Brokers, s.cfg.Kafka.Topic, s.cfg.Kafka.Producer)
	if err != nil {
		return err
	}
	s.producer = producer
	log.Info().
		Strs("brokers", s.cfg.Kafka.Brokers).
		Str("topic", s.cfg.Kafka.Topic).
		Msg("stream producer initialized")
	return nil
}

// pipelineStats feeds the /stats endpoint.
func (s *Service) pipelineStats() map[string]any {
	workerStats := s.workerPool.Stats()
	producerStats := s.producer.Stats()
	return map[string]any{
		"worker": map[string]any{
			"processed":  workerStats.Processed,
			"failed":     workerStats.Failed,
			"queue_size": len(s.readingChan),
			"queue_cap":  cap(s.readingChan),
		},
		"producer": map[string]any{
			"sent":          producerStats.MessagesSent,
			"failed":        producerStats.MessagesFailed,
			"bytes_written": producerStats.BytesWritten,
		},
	}
}

// reportStats periodically logs pipeline statistics.
func (s *Service) reportStats(ctx context.Context) {
	log := logger.WithComponent("service")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			workerStats := s.workerPool.Stats()
			producerStats := s.producer.Stats()

			metrics.WorkerQueueSize.Set(float64(len(s.readingChan)))

			log.Info().
				Uint64("worker_processed", workerStats.Processed).
				Uint64("worker_failed", workerStats.Failed).
				Uint64("producer_sent", producerStats.MessagesSent).
				Uint64("producer_failed", producerStats.MessagesFailed).
				Uint64("producer_bytes", producerStats.BytesWritten).
				Int("queue_size", len(s.readingChan)).
				Msg("pipeline stats")
		}
	}
}

// shutdown stops the layers in dependency order: transports first, then the
// monitoring loops, then the publish pipeline, and finally storage.
func (s *Service) shutdown() error {
	log := logger.WithComponent("service")
	log.Info().Msg("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.ingestor != nil {
		log.Info().Msg("stopping mqtt ingest")
		s.ingestor.Stop()
	}

	log.Info().Msg("stopping http server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("stopping monitoring loops")
	s.manager.StopAll()

	// No more producers of readings; drain the publish pipeline.
	log.Info().Msg("closing reading channel")
	close(s.readingChan)

	done := make(chan struct{})
	go func() {
		s.workerPool.Stop()
		close(done)
	}()
	select {
	case <-done:
		log.Info().Msg("workers stopped gracefully")
	case <-time.After(15 * time.Second):
		log.Warn().Msg("worker shutdown timeout, forcing exit")
	}

	log.Info().Msg("closing stream producer")
	if err := s.producer.Close(); err != nil {
		log.Error().Err(err).Msg("producer close error")
	}

	if err := s.store.Close(); err != nil {
		log.Error().Err(err).Msg("store close error")
	}

	s.wg.Wait()
	log.Info().Msg("service stopped")
	return nil
}
