package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestPoolRunsAllSubmittedTasks(t *testing.T) {
	pool := NewPool(4)
	defer pool.Close()

	var counter int64
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			atomic.AddInt64(&counter, 1)
		})
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("expected 100 tasks to run, got %d", counter)
	}
}

func TestPoolSizeDefaults(t *testing.T) {
	pool := NewPool(0)
	defer pool.Close()

	if pool.Size() <= 0 {
		t.Errorf("expected positive default size, got %d", pool.Size())
	}

	sized := NewPool(3)
	defer sized.Close()
	if sized.Size() != 3 {
		t.Errorf("expected size 3, got %d", sized.Size())
	}
}

func TestPoolCloseWaitsForTasks(t *testing.T) {
	pool := NewPool(2)

	var done int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			atomic.AddInt64(&done, 1)
		})
	}
	wg.Wait()
	pool.Close()

	if done != 10 {
		t.Errorf("expected 10 completed tasks before close returned, got %d", done)
	}
}
