package audit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_ProcessesSubmittedRecords(t *testing.T) {
	r := NewRecorder(16)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		r.Submit(Record{
			Name: "test",
			Run: func(ctx context.Context) error {
				ran.Add(1)
				return nil
			},
		})
	}

	r.Close()

	assert.Equal(t, int32(5), ran.Load())
	assert.Equal(t, int64(5), r.Processed())
	assert.Zero(t, r.Dropped())
}

func TestRecorder_FailuresDoNotStopTheWorker(t *testing.T) {
	r := NewRecorder(16)

	var ran atomic.Int32
	r.Submit(Record{Name: "failing", Run: func(ctx context.Context) error {
		ran.Add(1)
		return errors.New("backend down")
	}})
	r.Submit(Record{Name: "following", Run: func(ctx context.Context) error {
		ran.Add(1)
		return nil
	}})

	r.Close()

	assert.Equal(t, int32(2), ran.Load())
	assert.Equal(t, int64(2), r.Processed())
}

func TestRecorder_FullQueueDropsWithoutBlocking(t *testing.T) {
	r := NewRecorder(1)

	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(1)
	r.Submit(Record{Name: "blocker", Run: func(ctx context.Context) error {
		started.Done()
		<-release
		return nil
	}})
	started.Wait()

	// Worker is parked on the blocker; fill the single queue slot, then
	// overflow it.
	r.Submit(Record{Name: "queued", Run: func(ctx context.Context) error { return nil }})

	done := make(chan struct{})
	go func() {
		r.Submit(Record{Name: "overflow", Run: func(ctx context.Context) error { return nil }})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	assert.Equal(t, int64(1), r.Dropped())

	close(release)
	r.Close()
	assert.Equal(t, int64(2), r.Processed())
}

func TestRecorder_SubmitAfterCloseCountsAsDropped(t *testing.T) {
	r := NewRecorder(4)
	r.Close()

	r.Submit(Record{Name: "late", Run: func(ctx context.Context) error {
		t.Fatal("must not run after close")
		return nil
	}})

	assert.Equal(t, int64(1), r.Dropped())
}

func TestRecorder_CloseIsIdempotent(t *testing.T) {
	r := NewRecorder(4)
	r.Close()
	require.NotPanics(t, func() { r.Close() })
}
