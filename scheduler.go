package goSession

import (
	"sync"
	"sync/atomic"
)

// Scheduler runs subscriber callbacks after the mutation that triggered them
// has returned. Schedule must not block and must not run task inline.
type Scheduler interface {
	Schedule(task func())
}

// Queue is a cooperative task queue for hosts that own their event loop.
// Tasks run in FIFO order when the host calls Flush.
type Queue struct {
	mu    sync.Mutex
	tasks []func()
}

// NewQueue creates an empty [Queue].
func NewQueue() *Queue {
	return &Queue{}
}

// Schedule appends task to the queue.
func (q *Queue) Schedule(task func()) {
	if q == nil || task == nil {
		return
	}
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
}

// Flush runs queued tasks until the queue is empty, including tasks scheduled
// by tasks run during this call. It returns the number of tasks run.
func (q *Queue) Flush() int {
	if q == nil {
		return 0
	}
	ran := 0
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return ran
		}
		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		task()
		ran++
	}
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Loop runs scheduled tasks one at a time on a dedicated goroutine. The queue
// is unbounded so Schedule never blocks, even when called from a task.
type Loop struct {
	mu        sync.Mutex
	tasks     []func()
	signal    chan struct{}
	done      chan struct{}
	idle      chan struct{}
	running   bool
	wg        sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewLoop starts a [Loop]. Call Close to stop it.
func NewLoop() *Loop {
	l := &Loop{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	l.wg.Add(1)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer l.wg.Done()
	for {
		select {
		case <-l.signal:
			l.drain()
		case <-l.done:
			l.drain()
			return
		}
	}
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.tasks) == 0 {
			l.running = false
			if l.idle != nil {
				close(l.idle)
				l.idle = nil
			}
			l.mu.Unlock()
			return
		}
		task := l.tasks[0]
		l.tasks[0] = nil
		l.tasks = l.tasks[1:]
		l.running = true
		l.mu.Unlock()

		task()
	}
}

// Schedule enqueues task. Tasks scheduled after Close are dropped.
func (l *Loop) Schedule(task func()) {
	if l == nil || task == nil || l.closed.Load() {
		return
	}
	l.mu.Lock()
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()

	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// Wait blocks until every task scheduled before the call has run. It must not
// be called from a task running on the loop.
func (l *Loop) Wait() {
	if l == nil {
		return
	}
	l.mu.Lock()
	if len(l.tasks) == 0 && !l.running {
		l.mu.Unlock()
		return
	}
	if l.idle == nil {
		l.idle = make(chan struct{})
	}
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
	case <-l.done:
		l.wg.Wait()
	}
}

// Close runs the remaining tasks and stops the loop goroutine.
func (l *Loop) Close() {
	if l == nil {
		return
	}
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.done)
		l.wg.Wait()
	})
}
