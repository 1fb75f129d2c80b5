// Package audit emits structured admit/reject decision events to an
// external sink, off the request path.
package audit

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Decision classifies the outcome of one pipeline evaluation
type Decision string

const (
	DecisionAdmitted Decision = "admitted"
	DecisionRejected Decision = "rejected"
)

// Event is a single authentication pipeline decision
type Event struct {
	// TenantID is nil when the request never reached identification
	TenantID  *uuid.UUID
	Decision  Decision
	Reason    string
	Timestamp time.Time
	// Elevated marks security-relevant rejections (e.g. token replay)
	Elevated bool
}

// Sink receives decision events. Implementations must be safe for
// concurrent use from multiple workers.
type Sink interface {
	Write(event Event)
}

// ZapSink writes decision events as structured log lines
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a sink backed by the given logger
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

// Write implements Sink
func (s *ZapSink) Write(event Event) {
	fields := []zap.Field{
		zap.String("decision", string(event.Decision)),
		zap.String("reason", event.Reason),
		zap.Time("timestamp", event.Timestamp),
	}
	if event.TenantID != nil {
		fields = append(fields, zap.String("tenant_id", event.TenantID.String()))
	}
	if event.Elevated {
		s.logger.Warn("auth decision", fields...)
		return
	}
	s.logger.Info("auth decision", fields...)
}

// Service buffers decision events and drains them through background
// workers so emitting a decision never blocks a request.
type Service struct {
	sink        Sink
	logger      *zap.Logger
	eventChan   chan Event
	workerCount int
	wg          sync.WaitGroup
	started     bool
	mu          sync.Mutex
}

// Config holds configuration for the audit Service
type Config struct {
	BufferSize  int
	WorkerCount int
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  4096,
		WorkerCount: 2,
	}
}

// NewService creates a new audit Service
func NewService(sink Sink, logger *zap.Logger, cfg Config) *Service {
	return &Service{
		sink:        sink,
		logger:      logger,
		eventChan:   make(chan Event, cfg.BufferSize),
		workerCount: cfg.WorkerCount,
	}
}

// Start launches the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", cap(s.eventChan)))
	return nil
}

// Stop drains pending events and stops the workers, waiting up to timeout
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	s.started = false
	s.mu.Unlock()

	close(s.eventChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// Record enqueues a decision event. Events are dropped (and counted in the
// log) rather than blocking the request path when the buffer is full, and
// silently once the service has stopped: Stop closes eventChan, so sending
// past it would panic on the shutdown race.
func (s *Service) Record(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}

	select {
	case s.eventChan <- event:
	default:
		s.logger.Warn("audit buffer full, dropping decision event",
			zap.String("decision", string(event.Decision)),
			zap.String("reason", event.Reason))
	}
}

func (s *Service) worker() {
	defer s.wg.Done()
	for event := range s.eventChan {
		s.sink.Write(event)
	}
}
