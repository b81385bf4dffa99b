package app

import (
	"sync"
	"time"
)

// Task is a handle to a scheduled callback.
type Task interface {
	// Cancel stops the callback if it has not started yet. It reports whether
	// the call prevented it from running.
	Cancel() bool
}

// Scheduler runs callbacks after a delay.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) Task
}

// TimerScheduler schedules callbacks with time.AfterFunc.
type TimerScheduler struct{}

func (TimerScheduler) Schedule(delay time.Duration, fn func()) Task {
	return timerTask{time.AfterFunc(delay, fn)}
}

type timerTask struct{ t *time.Timer }

func (t timerTask) Cancel() bool { return t.t.Stop() }

// ManualScheduler holds callbacks until Fire is called. Useful in tests and
// for driving a controller step by step.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	s         *ManualScheduler
	delay     time.Duration
	fn        func()
	cancelled bool
	fired     bool
}

func (s *ManualScheduler) Schedule(delay time.Duration, fn func()) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTask{s: s, delay: delay, fn: fn}
	s.tasks = append(s.tasks, t)
	return t
}

func (t *manualTask) Cancel() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.fired || t.cancelled {
		return false
	}
	t.cancelled = true
	return true
}

// Pending returns the number of tasks that are neither fired nor cancelled.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.fired && !t.cancelled {
			n++
		}
	}
	return n
}

// Fire runs every pending task in scheduling order and returns how many ran.
// Cancelled tasks are skipped.
func (s *ManualScheduler) Fire() int {
	s.mu.Lock()
	var run []func()
	for _, t := range s.tasks {
		if !t.fired && !t.cancelled {
			t.fired = true
			run = append(run, t.fn)
		}
	}
	s.tasks = nil
	s.mu.Unlock()

	for _, fn := range run {
		fn()
	}
	return len(run)
}

// FireAll fires until nothing is pending, for callbacks that schedule more.
func (s *ManualScheduler) FireAll() int {
	total := 0
	for {
		n := s.Fire()
		if n == 0 {
			return total
		}
		total += n
	}
}

// FireCancelled runs tasks even if they were cancelled, the way a timer that
// already fired races a Cancel. It lets tests check fire-time guards.
func (s *ManualScheduler) FireCancelled() int {
	s.mu.Lock()
	var run []func()
	for _, t := range s.tasks {
		if !t.fired {
			t.fired = true
			run = append(run, t.fn)
		}
	}
	s.tasks = nil
	s.mu.Unlock()

	for _, fn := range run {
		fn()
	}
	return len(run)
}

// Delays returns the delays of pending tasks.
func (s *ManualScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Duration
	for _, t := range s.tasks {
		if !t.fired && !t.cancelled {
			out = append(out, t.delay)
		}
	}
	return out
}
