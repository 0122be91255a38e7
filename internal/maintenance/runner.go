// Package maintenance runs periodic background jobs: rate limiter sweeps
// and expired-link purges.
package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a named task run every Interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Config holds retry and shutdown settings for the runner.
type Config struct {
	RetryAttempts   int           // attempts per tick, including the first
	RetryDelay      time.Duration // base delay, doubled after each failure
	ShutdownTimeout time.Duration // time to wait for running jobs on Stop
	RunTimeout      time.Duration // deadline of a single attempt
}

// DefaultConfig returns the runner defaults.
func DefaultConfig() Config {
	return Config{
		RetryAttempts:   3,
		RetryDelay:      time.Second,
		ShutdownTimeout: 30 * time.Second,
		RunTimeout:      time.Minute,
	}
}

// Runner drives a fixed set of jobs, one goroutine each.
type Runner struct {
	config Config
	jobs   []Job
	log    *zap.Logger

	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.RWMutex

	runs     map[string]int64
	failures map[string]int64
}

// NewRunner creates a runner for jobs. Jobs with a non-positive interval
// are ignored.
func NewRunner(log *zap.Logger, config Config, jobs ...Job) *Runner {
	if config.RetryAttempts < 1 {
		config.RetryAttempts = 1
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultConfig().RunTimeout
	}

	var active []Job
	for _, j := range jobs {
		if j.Interval > 0 && j.Run != nil {
			active = append(active, j)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		config:   config,
		jobs:     active,
		log:      log.Named("maintenance"),
		ctx:      ctx,
		cancel:   cancel,
		runs:     make(map[string]int64),
		failures: make(map[string]int64),
	}
}

// Start launches one goroutine per job.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("runner already started")
	}
	if r.ctx.Err() != nil {
		return fmt.Errorf("runner already stopped")
	}

	r.log.Info("starting maintenance runner",
		zap.Int("jobs", len(r.jobs)),
		zap.Int("retry_attempts", r.config.RetryAttempts),
	)

	for _, job := range r.jobs {
		r.wg.Add(1)
		go r.loop(job)
	}

	r.started = true
	return nil
}

// Stop cancels all jobs and waits for them to return.
func (r *Runner) Stop() error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return fmt.Errorf("runner not started")
	}
	r.started = false
	r.mu.Unlock()

	r.log.Info("stopping maintenance runner")
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Info("maintenance runner stopped gracefully")
		return nil
	case <-time.After(r.config.ShutdownTimeout):
		r.log.Warn("maintenance runner shutdown timeout reached")
		return fmt.Errorf("shutdown timeout reached")
	}
}

func (r *Runner) loop(job Job) {
	defer r.wg.Done()

	log := r.log.With(zap.String("job", job.Name))
	log.Info("maintenance job scheduled", zap.Duration("interval", job.Interval))

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.runWithRetry(log, job)
		case <-r.ctx.Done():
			log.Info("maintenance job stopped")
			return
		}
	}
}

// runWithRetry runs job once, retrying failures with exponential backoff.
func (r *Runner) runWithRetry(log *zap.Logger, job Job) {
	var lastErr error

	for attempt := 1; attempt <= r.config.RetryAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(r.ctx, r.config.RunTimeout)
		err := job.Run(ctx)
		cancel()

		if err == nil {
			if attempt > 1 {
				log.Info("maintenance job succeeded after retry", zap.Int("attempt", attempt))
			}
			r.record(job.Name, nil)
			return
		}

		lastErr = err
		log.Warn("maintenance job failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.config.RetryAttempts),
			zap.Error(err),
		)

		if attempt == r.config.RetryAttempts {
			break
		}

		delay := r.config.RetryDelay * time.Duration(1<<(attempt-1))
		select {
		case <-time.After(delay):
		case <-r.ctx.Done():
			log.Info("shutdown during retry delay")
			return
		}
	}

	log.Error("maintenance job failed after all retries",
		zap.Int("attempts", r.config.RetryAttempts),
		zap.Error(lastErr),
	)
	r.record(job.Name, lastErr)
}

func (r *Runner) record(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failures[name]++
		return
	}
	r.runs[name]++
}

// RunNow runs every job once, synchronously, without retries, each under
// RunTimeout. shrimp purge drives its purge job this way.
func (r *Runner) RunNow(ctx context.Context) error {
	for _, job := range r.jobs {
		runCtx, cancel := context.WithTimeout(ctx, r.config.RunTimeout)
		err := job.Run(runCtx)
		cancel()
		r.record(job.Name, err)
		if err != nil {
			return fmt.Errorf("%s: %w", job.Name, err)
		}
	}
	return nil
}

// GetStats returns per-job success and failure counts.
func (r *Runner) GetStats() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make(map[string]interface{}, len(r.jobs))
	for _, j := range r.jobs {
		jobs[j.Name] = map[string]int64{
			"runs":     r.runs[j.Name],
			"failures": r.failures[j.Name],
		}
	}
	return map[string]interface{}{
		"started":        r.started,
		"retry_attempts": r.config.RetryAttempts,
		"jobs":           jobs,
	}
}
