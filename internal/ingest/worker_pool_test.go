package ingest

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewWorkerPool(t *testing.T) {
	pool := NewWorkerPool(4)
	if pool == nil {
		t.Fatal("Expected worker pool to be created")
	}
	if pool.workers != 4 {
		t.Errorf("Expected 4 workers, got %d", pool.workers)
	}
	if cap(pool.jobQueue) != 8 {
		t.Errorf("Expected queue capacity 8, got %d", cap(pool.jobQueue))
	}
}

func TestNewWorkerPool_ZeroWorkers(t *testing.T) {
	pool := NewWorkerPool(0)
	if pool.workers <= 0 {
		t.Errorf("Expected a positive default worker count, got %d", pool.workers)
	}
}

func TestWorkerPool_SubmitExecutes(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	defer pool.Close()

	done := make(chan struct{})
	pool.Submit(func() {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submitted job was never executed")
	}
}

func TestWorkerPool_StartIsIdempotent(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	pool.Start()
	defer pool.Close()

	done := make(chan struct{})
	pool.Submit(func() {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Job did not run after repeated Start calls")
	}
}

func TestWorkerPool_CloseDrainsQueuedJobs(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()

	var executed int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Submit(func() {
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt64(&executed, 1)
			})
		}()
	}
	wg.Wait()
	pool.Close()

	if got := atomic.LoadInt64(&executed); got != 20 {
		t.Errorf("Expected 20 jobs executed after Close, got %d", got)
	}
}

func TestWorkerPool_CloseIsIdempotent(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	pool.Close()
	pool.Close()
}
