// Package sender queues outbound Telegram API calls and retries the
// transient failures, so handlers never block on the network and a
// flaky connection does not surface as a lost reply.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/ytmp3bot/core/logger"
	"github.com/m3rciful/ytmp3bot/core/telegram/netutil"
)

var (
	// ErrQueueClosed means Enqueue was called after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull means the queue is saturated and the job was rejected.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options tunes the dispatcher. Zero values turn into the defaults
// below.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the total time spent on one job, retries
	// included.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

func (j job) attrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return attrs
}

// Dispatcher runs queued Telegram calls on a fixed worker pool.
type Dispatcher struct {
	opts Options
	jobs chan job

	mu     sync.RWMutex
	closed bool

	once sync.Once
	wg   sync.WaitGroup
	errs atomic.Uint64
}

// NewDispatcher starts the worker pool immediately.
func NewDispatcher(opts Options) *Dispatcher {
	d := &Dispatcher{
		opts: opts.withDefaults(),
		jobs: make(chan job, opts.withDefaults().QueueSize),
	}
	d.wg.Add(d.opts.Workers)
	for i := 0; i < d.opts.Workers; i++ {
		go d.worker()
	}
	return d
}

// Enqueue schedules run for asynchronous execution. The closure must be
// idempotent when retries are enabled. The call never blocks: a full
// queue returns ErrQueueFull so the caller can send inline instead.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount reports how many jobs exhausted their retries.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs and waits until the queue is drained.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.process(j)
	}
}

func (d *Dispatcher) process(j job) {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	deadline, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	logger.Debug(ctx, "tg.sender", "send.start", j.attrs()...)

	attempts := d.opts.MaxRetries + 1
	var err error
	for attempt := 1; ; attempt++ {
		if err = deadline.Err(); err != nil {
			break
		}
		if err = j.run(); err == nil {
			if attempt > 1 {
				logger.Info(ctx, "tg.sender", "send.retry.success",
					append(j.attrs(),
						slog.Int("attempt", attempt),
						slog.Duration("elapsed", time.Since(start)),
					)...)
			}
			logger.Debug(ctx, "tg.sender", "send.success",
				append(j.attrs(), slog.Duration("elapsed", time.Since(start)))...)
			return
		}
		if attempt == attempts || !netutil.ShouldRetry(err) {
			break
		}

		delay := d.opts.RetryBackoff * time.Duration(attempt)
		if !sleepCtx(deadline, delay) {
			err = deadline.Err()
			break
		}
		logger.Debug(ctx, "tg.sender", "send.retry.backoff",
			append(j.attrs(),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)...)
	}

	d.errs.Add(1)
	logger.Error(ctx, "tg.sender", "send.fail",
		append(j.attrs(),
			slog.String("err", redactedError(err)),
			slog.String("err_code", Classify(err)),
			slog.Int("attempts", attempts),
			slog.Duration("elapsed", time.Since(start)),
		)...)
}

// sleepCtx waits for d unless ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
