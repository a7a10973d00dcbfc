// Package taskq runs background work on a single ordered queue.
package taskq

import "sync"

// Runner accepts work for background execution. Submit reports false if the
// runner is no longer accepting work.
type Runner interface {
	Submit(fn func()) bool
}

// Queue is a Runner backed by one worker goroutine. Tasks run in submission
// order and never concurrently with each other.
type Queue struct {
	mu      sync.Mutex
	wake    *sync.Cond
	tasks   []func()
	closed  bool
	stopped chan struct{}
}

func New() *Queue {
	q := &Queue{stopped: make(chan struct{})}
	q.wake = sync.NewCond(&q.mu)
	go q.run()
	return q
}

func (q *Queue) Submit(fn func()) bool {
	if fn == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, fn)
	q.wake.Signal()
	return true
}

// Close stops accepting work, runs any tasks already queued, then waits for
// the worker to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.stopped
		return
	}
	q.closed = true
	q.wake.Signal()
	q.mu.Unlock()
	<-q.stopped
}

func (q *Queue) run() {
	defer close(q.stopped)
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.wake.Wait()
		}
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		fn := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		fn()
	}
}

// SyncRunner runs submitted tasks inline on the caller's goroutine. Tests use
// it to make background scheduling deterministic.
type SyncRunner struct{}

func (SyncRunner) Submit(fn func()) bool {
	if fn == nil {
		return false
	}
	fn()
	return true
}

var (
	_ Runner = (*Queue)(nil)
	_ Runner = SyncRunner{}
)
