package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"ttemp-link/internal/metrics"
)

// ProcessorConfig holds configuration for the analytics processor
type ProcessorConfig struct {
	WorkerCount     int           // Number of worker goroutines
	BufferSize      int           // Size of the job queue buffer
	RetryAttempts   int           // Number of attempts per click
	RetryDelay      time.Duration // Base delay between retries
	AttemptTimeout  time.Duration // Storage timeout of a single attempt
	ShutdownTimeout time.Duration // Time to wait for the queue to drain on Stop
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() ProcessorConfig {
	return ProcessorConfig{
		WorkerCount:     3,
		BufferSize:      1000,
		RetryAttempts:   3,
		RetryDelay:      500 * time.Millisecond,
		AttemptTimeout:  10 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// clickRecorder is the synchronous write path the workers retry against.
type clickRecorder interface {
	Record(ctx context.Context, data ClickData) error
}

// Processor records clicks asynchronously through a bounded queue and a worker pool,
// retrying failed writes with exponential backoff.
type Processor struct {
	config   ProcessorConfig
	recorder clickRecorder
	log      *zap.Logger
	jobQueue chan ClickData
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
}

var _ ClickSink = (*Processor)(nil)

// NewProcessor creates a new analytics processor
func NewProcessor(recorder clickRecorder, log *zap.Logger, config ProcessorConfig) *Processor {
	ctx, cancel := context.WithCancel(context.Background())

	if config.RetryAttempts < 1 {
		config.RetryAttempts = 1
	}
	if config.WorkerCount < 1 {
		config.WorkerCount = 1
	}

	return &Processor{
		config:   config,
		recorder: recorder,
		log:      log.With(zap.String("component", "analytics.processor")),
		jobQueue: make(chan ClickData, config.BufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing clicks
func (p *Processor) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("processor already started")
	}

	p.log.Info("starting analytics processor",
		zap.Int("workers", p.config.WorkerCount),
		zap.Int("buffer_size", p.config.BufferSize),
		zap.Int("retry_attempts", p.config.RetryAttempts),
	)

	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.started = true
	return nil
}

// Stop closes the queue and waits for the workers to drain it. Clicks still queued
// when the shutdown timeout expires are abandoned.
func (p *Processor) Stop() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return fmt.Errorf("processor not started")
	}
	p.started = false
	close(p.jobQueue)
	p.mu.Unlock()

	p.log.Info("stopping analytics processor", zap.Int("pending", len(p.jobQueue)))

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.log.Info("analytics processor stopped gracefully")
		return nil
	case <-time.After(p.config.ShutdownTimeout):
		p.cancel()
		p.log.Warn("analytics processor shutdown timeout reached", zap.Int("abandoned", len(p.jobQueue)))
		return fmt.Errorf("shutdown timeout reached")
	}
}

// Submit enqueues a click. A full queue drops the click rather than blocking the
// redirect.
func (p *Processor) Submit(_ context.Context, data ClickData) {
	if err := p.SubmitClick(data); err != nil {
		metrics.ClicksRecordedTotal.WithLabelValues("dropped").Inc()
		p.log.Error("dropping click", zap.String("slug", data.Slug), zap.Error(err))
	}
}

// SubmitClick submits a click for asynchronous processing
func (p *Processor) SubmitClick(data ClickData) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started {
		return fmt.Errorf("processor not started")
	}

	select {
	case p.jobQueue <- data:
		metrics.ClickQueueDepth.Set(float64(len(p.jobQueue)))
		return nil
	default:
		return fmt.Errorf("analytics queue is full (%d)", cap(p.jobQueue))
	}
}

// worker processes clicks until the queue is closed and drained
func (p *Processor) worker(workerID int) {
	defer p.wg.Done()

	log := p.log.With(zap.Int("worker_id", workerID))
	log.Debug("analytics worker started")

	for data := range p.jobQueue {
		metrics.ClickQueueDepth.Set(float64(len(p.jobQueue)))
		p.processClickWithRetry(log, data)
	}

	log.Debug("analytics worker stopped")
}

// processClickWithRetry records a single click with retry logic
func (p *Processor) processClickWithRetry(log *zap.Logger, data ClickData) {
	var lastErr error

	for attempt := 1; attempt <= p.config.RetryAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(p.ctx, p.attemptTimeout())
		err := p.recorder.Record(ctx, data)
		cancel()

		if err == nil {
			metrics.ClicksRecordedTotal.WithLabelValues("ok").Inc()
			if attempt > 1 {
				log.Info("click recording succeeded after retry",
					zap.String("slug", data.Slug),
					zap.Int("attempt", attempt),
				)
			}
			return
		}

		lastErr = err
		log.Warn("click recording failed",
			zap.String("slug", data.Slug),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.config.RetryAttempts),
			zap.Error(err),
		)

		if attempt == p.config.RetryAttempts {
			break
		}

		// Exponential backoff delay
		delay := p.config.RetryDelay * time.Duration(1<<(attempt-1))

		select {
		case <-time.After(delay):
		case <-p.ctx.Done():
			log.Info("worker shutdown during retry delay")
			return
		}
	}

	metrics.ClicksRecordedTotal.WithLabelValues("error").Inc()
	log.Error("click recording failed after all retries",
		zap.String("slug", data.Slug),
		zap.Int("attempts", p.config.RetryAttempts),
		zap.Error(lastErr),
	)
}

func (p *Processor) attemptTimeout() time.Duration {
	if p.config.AttemptTimeout > 0 {
		return p.config.AttemptTimeout
	}
	return 10 * time.Second
}

// GetStats returns processor statistics
func (p *Processor) GetStats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return map[string]interface{}{
		"started":        p.started,
		"queue_length":   len(p.jobQueue),
		"queue_capacity": cap(p.jobQueue),
		"worker_count":   p.config.WorkerCount,
		"retry_attempts": p.config.RetryAttempts,
	}
}
