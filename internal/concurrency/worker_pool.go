// Package concurrency provides the bounded worker pool shared across
// concurrent jobs. The pool caps peak CPU and memory use for image
// re-encoding regardless of how many jobs run at once.
package concurrency

import (
	"runtime"
	"sync"

	"smartpdf/internal/common"
)

// Pool is a fixed-size FIFO worker pool. Submitted tasks are admitted in
// order with no further priority guarantee.
type Pool struct {
	tasks     chan func()
	size      int
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewPool creates a pool with the given number of workers. A size of
// zero or less selects the CPU count, capped at the shared concurrency
// limit.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if size > common.MaxConcurrencyLimit {
		size = common.MaxConcurrencyLimit
	}

	p := &Pool{
		tasks: make(chan func(), size*2),
		size:  size,
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit queues a task for execution. Blocks while the admission queue
// is full, which backpressures callers instead of growing memory.
func (p *Pool) Submit(task func()) {
	p.tasks <- task
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Close stops accepting work and waits for in-flight tasks to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}
