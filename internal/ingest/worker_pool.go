package ingest

import (
	"runtime"
	"sync"
)

// WorkerPool bounds how many uploads are processed at once. Submit blocks
// once every worker is busy and the queue is full; that backpressure is what
// keeps a burst of connections from exhausting the process.
type WorkerPool struct {
	workers   int
	jobQueue  chan func()
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &WorkerPool{
		workers:  workers,
		jobQueue: make(chan func(), workers*2),
	}
}

// Start launches the workers. Calling it again is a no-op.
func (wp *WorkerPool) Start() {
	wp.startOnce.Do(func() {
		for i := 0; i < wp.workers; i++ {
			wp.wg.Add(1)
			go wp.worker()
		}
	})
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for job := range wp.jobQueue {
		job()
	}
}

// Submit queues a job, blocking while the pool is saturated. Submitting
// after Close panics, so callers must stop intake first.
func (wp *WorkerPool) Submit(job func()) {
	wp.jobQueue <- job
}

// Close stops intake and waits for every queued job to finish.
func (wp *WorkerPool) Close() {
	wp.closeOnce.Do(func() {
		close(wp.jobQueue)
	})
	wp.wg.Wait()
}
