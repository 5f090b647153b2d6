// Package looptest provides a manually stepped core.Scheduler for tests.
package looptest

import (
	"sort"
	"sync"
	"time"

	"github.com/dkeye/voicemesh/internal/core"
)

// Epoch is the fake clock's starting time.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Scheduler queues posted work and Go jobs until the test steps it, and runs
// timers only when the fake clock is advanced.
type Scheduler struct {
	mu     sync.Mutex
	now    time.Time
	queue  []func()
	timers []*timer
	seq    int
}

type timer struct {
	at      time.Time
	seq     int
	fn      func()
	stopped bool
	fired   bool
	s       *Scheduler
}

func (t *timer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

func New() *Scheduler {
	return &Scheduler{now: Epoch}
}

var _ core.Scheduler = (*Scheduler)(nil)

func (s *Scheduler) Post(fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	s.mu.Unlock()
}

// Go defers work to a later step; done is posted after work runs.
func (s *Scheduler) Go(work func(), done func()) {
	s.Post(func() {
		work()
		if done != nil {
			s.Post(done)
		}
	})
}

func (s *Scheduler) AfterFunc(d time.Duration, fn func()) core.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &timer{at: s.now.Add(d), seq: s.seq, fn: fn, s: s}
	s.timers = append(s.timers, t)
	return t
}

func (s *Scheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending reports how many tasks are queued.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Step runs the oldest queued task and reports whether there was one.
func (s *Scheduler) Step() bool {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return false
	}
	fn := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()
	fn()
	return true
}

// Drain runs queued work until the queue is empty.
func (s *Scheduler) Drain() {
	for i := 0; s.Step(); i++ {
		if i > 100000 {
			panic("looptest: queue never drains")
		}
	}
}

// Advance moves the clock forward by d, firing due timers in order and
// draining the queue after each one.
func (s *Scheduler) Advance(d time.Duration) {
	s.Drain()
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()
	for {
		t := s.nextDue(target)
		if t == nil {
			break
		}
		t.fn()
		s.Drain()
	}
	s.mu.Lock()
	s.now = target
	s.mu.Unlock()
}

func (s *Scheduler) nextDue(target time.Time) *timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.timers[:0]
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	s.timers = live
	sort.Slice(live, func(i, j int) bool {
		if live[i].at.Equal(live[j].at) {
			return live[i].seq < live[j].seq
		}
		return live[i].at.Before(live[j].at)
	})
	if len(live) == 0 || live[0].at.After(target) {
		return nil
	}
	t := live[0]
	t.fired = true
	if t.at.After(s.now) {
		s.now = t.at
	}
	return t
}
