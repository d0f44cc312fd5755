package scheduler

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Handle cancels a scheduled task. Cancel is safe to call any number of times.
type Handle interface {
	Cancel()
}

// Scheduler creates repeating and one-shot tasks.
type Scheduler interface {
	Every(interval time.Duration, fn func()) Handle
	After(delay time.Duration, fn func()) Handle
}

// Timers is the wall-clock Scheduler. Callbacks are posted to the executor,
// and a callback posted before Cancel but run after it is skipped.
type Timers struct {
	exec Executor
}

// NewTimers returns a Scheduler that delivers callbacks through exec.
func NewTimers(exec Executor) *Timers {
	return &Timers{exec: exec}
}

type timerHandle struct {
	cancelled atomic.Bool
	stop      chan struct{}
	once      sync.Once
	timer     *time.Timer
}

func (h *timerHandle) Cancel() {
	h.cancelled.Store(true)
	h.once.Do(func() {
		if h.stop != nil {
			close(h.stop)
		}
		if h.timer != nil {
			h.timer.Stop()
		}
	})
}

func (h *timerHandle) guard(fn func()) func() {
	return func() {
		if h.cancelled.Load() {
			return
		}
		fn()
	}
}

// Every implements Scheduler.
func (t *Timers) Every(interval time.Duration, fn func()) Handle {
	h := &timerHandle{stop: make(chan struct{})}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				if !t.exec.Post(h.guard(fn)) {
					return
				}
			}
		}
	}()
	return h
}

// After implements Scheduler.
func (t *Timers) After(delay time.Duration, fn func()) Handle {
	h := &timerHandle{}
	h.timer = time.AfterFunc(delay, func() {
		t.exec.Post(h.guard(fn))
	})
	return h
}

// Manual is a deterministic Scheduler driven by Advance. Callbacks run on the
// goroutine calling Advance.
type Manual struct {
	now   time.Duration
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	due       time.Duration
	interval  time.Duration
	seq       int
	fn        func()
	cancelled bool
}

func (m *manualTask) Cancel() { m.cancelled = true }

// NewManual returns a Manual scheduler at time zero.
func NewManual() *Manual {
	return &Manual{}
}

// Every implements Scheduler.
func (m *Manual) Every(interval time.Duration, fn func()) Handle {
	return m.add(interval, interval, fn)
}

// After implements Scheduler.
func (m *Manual) After(delay time.Duration, fn func()) Handle {
	return m.add(delay, 0, fn)
}

func (m *Manual) add(delay, interval time.Duration, fn func()) *manualTask {
	m.seq++
	task := &manualTask{due: m.now + delay, interval: interval, seq: m.seq, fn: fn}
	m.tasks = append(m.tasks, task)
	return task
}

// Advance moves the clock forward by d, firing due tasks in time order.
func (m *Manual) Advance(d time.Duration) {
	target := m.now + d
	for {
		task := m.next(target)
		if task == nil {
			break
		}
		m.now = task.due
		if task.interval > 0 {
			task.due += task.interval
		} else {
			task.cancelled = true
		}
		task.fn()
	}
	m.now = target
}

// Elapsed returns the manual clock reading.
func (m *Manual) Elapsed() time.Duration {
	return m.now
}

// Pending counts live tasks.
func (m *Manual) Pending() int {
	m.compact()
	return len(m.tasks)
}

func (m *Manual) next(target time.Duration) *manualTask {
	m.compact()
	sort.SliceStable(m.tasks, func(i, j int) bool {
		if m.tasks[i].due != m.tasks[j].due {
			return m.tasks[i].due < m.tasks[j].due
		}
		return m.tasks[i].seq < m.tasks[j].seq
	})
	if len(m.tasks) == 0 || m.tasks[0].due > target {
		return nil
	}
	return m.tasks[0]
}

func (m *Manual) compact() {
	live := m.tasks[:0]
	for _, task := range m.tasks {
		if !task.cancelled {
			live = append(live, task)
		}
	}
	m.tasks = live
}
