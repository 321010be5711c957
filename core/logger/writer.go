package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// writeOp carries either a formatted line or a flush request through the
// writer's single channel. Flush ops have a nil line and a non-nil ack.
type writeOp struct {
	line []byte
	ack  chan<- error
}

var errWriterClosed = errors.New("logger: writer closed")

// fanWriter delivers log lines to every sink from one goroutine, so call
// sites never block on terminal or disk I/O beyond the queue handoff.
type fanWriter struct {
	ops      chan writeOp
	done     chan struct{}
	stopOnce sync.Once

	// sendMu serializes producers against Close so a send can never hit
	// a closed channel.
	sendMu sync.Mutex
	closed bool

	mu     sync.Mutex
	sinks  []*bufio.Writer
	failed error
}

func newFanWriter(targets []io.Writer, bufSize int) *fanWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	sinks := make([]*bufio.Writer, 0, len(targets))
	for _, t := range targets {
		if t == nil {
			continue
		}
		sinks = append(sinks, bufio.NewWriterSize(t, bufSize))
	}
	w := &fanWriter{
		ops:   make(chan writeOp, 256),
		done:  make(chan struct{}),
		sinks: sinks,
	}
	go w.run()
	return w
}

func (w *fanWriter) run() {
	for op := range w.ops {
		if op.ack != nil {
			op.ack <- w.flushSinks()
			continue
		}
		if len(op.line) == 0 {
			continue
		}
		if err := w.deliver(op.line); err != nil {
			w.fail(err)
		}
	}
	_ = w.flushSinks()
	close(w.done)
}

// Write queues one line for delivery. The slice is copied, so callers may
// reuse their buffers. When the queue is full the call blocks rather than
// dropping the line.
func (w *fanWriter) Write(p []byte) error {
	if err := w.firstErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	line := make([]byte, len(p))
	copy(line, p)

	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	if w.closed {
		return errWriterClosed
	}
	w.ops <- writeOp{line: line}
	return nil
}

// Flush blocks until everything queued so far has reached the sinks.
func (w *fanWriter) Flush() error {
	if err := w.firstErr(); err != nil {
		return err
	}
	ack := make(chan error, 1)

	w.sendMu.Lock()
	if w.closed {
		w.sendMu.Unlock()
		return errWriterClosed
	}
	w.ops <- writeOp{ack: ack}
	w.sendMu.Unlock()
	return <-ack
}

// Close drains the queue, flushes the sinks, and reports the first write
// error observed over the writer's lifetime. Writes arriving after Close
// get errWriterClosed instead of panicking on the closed channel.
func (w *fanWriter) Close() error {
	w.stopOnce.Do(func() {
		w.sendMu.Lock()
		w.closed = true
		close(w.ops)
		w.sendMu.Unlock()
	})
	<-w.done
	return w.firstErr()
}

func (w *fanWriter) deliver(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.sinks {
		if _, err := s.Write(line); err != nil {
			return err
		}
		if err := s.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *fanWriter) flushSinks() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, s := range w.sinks {
		if err := s.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *fanWriter) firstErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failed
}

func (w *fanWriter) fail(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed == nil {
		w.failed = err
	}
}
