// Package audit carries best-effort side effects off the request path.
// Submissions never block and never fail the caller; a full queue drops the
// record and counts the drop.
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"trust-service/internal/util"
)

// Record is one deferred side effect, typically a flag insert or an event
// publish captured as a closure.
type Record struct {
	Name string
	Run  func(ctx context.Context) error
}

// Recorder drains submitted records on a single background worker.
type Recorder struct {
	queue     chan Record
	dropped   atomic.Int64
	processed atomic.Int64

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewRecorder starts the worker. queueSize bounds the in-flight backlog.
func NewRecorder(queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 1024
	}
	r := &Recorder{
		queue: make(chan Record, queueSize),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for rec := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rec.Run(ctx); err != nil {
			util.Warn("audit record failed",
				util.String("record", rec.Name),
				util.ErrorField(err))
		}
		cancel()
		r.processed.Add(1)
	}
}

// Submit enqueues a record without blocking. A full queue drops the record.
func (r *Recorder) Submit(rec Record) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.dropped.Add(1)
		return
	}

	select {
	case r.queue <- rec:
	default:
		r.dropped.Add(1)
		util.Warn("audit queue full, dropping record",
			util.String("record", rec.Name))
	}
}

// Dropped returns how many records were discarded since startup.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Processed returns how many records the worker has finished.
func (r *Recorder) Processed() int64 {
	return r.processed.Load()
}

// Close drains outstanding records and stops the worker. Submissions after
// Close are counted as dropped.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
		r.wg.Wait()
	})
}
