package core

import (
	"container/heap"
	"sync"
	"time"
)

// TimerWheel is the stack's single shared timer facility (spec.md §2 L1,
// §4.1): a min-heap of deadline-ordered, one-shot or periodic callbacks.
// Every protocol service that previously reached for its own
// *time.Timer - NMT's heartbeat producer, the heartbeat consumer's
// per-node timeout, TPDO's inhibit/event timers, RPDO's receive
// timeout, SDO's session timeout and blocking-wrapper waits - schedules
// through the Router's wheel instead, so that timer expiry and inbound
// frame dispatch are always serialized against each other the same way
// two frames on the same bus are: never concurrently.
type TimerWheel struct {
	mu     sync.Mutex
	heap   timerHeap
	nextID uint64
	wake   chan struct{}
	closed bool
	stop   chan struct{}
	onFire func(func())
}

type timerEntry struct {
	id       uint64
	deadline time.Time
	period   time.Duration
	seq      uint64
	cb       func()
	canceled bool
	index    int
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// NewTimerWheel creates a wheel and starts its background dispatcher
// goroutine. Callers generally reach it through Router.Timers rather
// than constructing one directly.
func NewTimerWheel() *TimerWheel {
	tw := &TimerWheel{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
	go tw.run()
	return tw
}

// SetDispatchLock installs fn as the serialization boundary every fired
// callback runs inside. Router wires this to the same mutex that guards
// Handle's walk over receivers, so a timer callback body and a frame
// handler body never execute on two goroutines at once - the single
// logical thread spec.md §5 requires.
func (tw *TimerWheel) SetDispatchLock(fn func(func())) {
	tw.mu.Lock()
	tw.onFire = fn
	tw.mu.Unlock()
}

// TimerHandle is the cancel/reset handle returned by Schedule and
// ScheduleEvery. A nil *TimerHandle is safe to call Stop/Reset on.
type TimerHandle struct {
	tw *TimerWheel
	id uint64
	cb func()
}

// Stop cancels the timer. It is idempotent and safe from inside the
// timer's own callback.
func (h *TimerHandle) Stop() {
	if h == nil || h.tw == nil {
		return
	}
	h.tw.cancel(h.id)
}

// Reset reschedules the timer to fire after d from now, reviving it if
// it had already fired (one-shot timers are removed from the wheel once
// they fire). This mirrors *time.Timer.Reset, so call sites that used a
// raw *time.Timer need no change beyond how the timer is constructed.
func (h *TimerHandle) Reset(d time.Duration) {
	if h == nil || h.tw == nil {
		return
	}
	h.id = h.tw.rearm(h.id, h.cb, d)
}

// Schedule registers cb to fire once after d elapses.
func (tw *TimerWheel) Schedule(d time.Duration, cb func()) *TimerHandle {
	return tw.schedule(d, 0, cb)
}

// ScheduleEvery registers cb to fire every period, first firing after
// one period (not immediately).
func (tw *TimerWheel) ScheduleEvery(period time.Duration, cb func()) *TimerHandle {
	return tw.schedule(period, period, cb)
}

func (tw *TimerWheel) schedule(d, period time.Duration, cb func()) *TimerHandle {
	tw.mu.Lock()
	tw.nextID++
	id := tw.nextID
	e := &timerEntry{id: id, deadline: time.Now().Add(d), period: period, seq: id, cb: cb}
	heap.Push(&tw.heap, e)
	tw.mu.Unlock()
	tw.poke()
	return &TimerHandle{tw: tw, id: id, cb: cb}
}

func (tw *TimerWheel) cancel(id uint64) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	for _, e := range tw.heap {
		if e.id == id {
			e.canceled = true
			return
		}
	}
}

// rearm updates the deadline of the entry still identified by id, or, if
// it already fired and was removed from the heap, pushes a fresh entry
// carrying the same callback and returns its new id.
func (tw *TimerWheel) rearm(id uint64, cb func(), d time.Duration) uint64 {
	tw.mu.Lock()
	for _, e := range tw.heap {
		if e.id == id {
			e.canceled = false
			e.deadline = time.Now().Add(d)
			heap.Fix(&tw.heap, e.index)
			tw.mu.Unlock()
			tw.poke()
			return id
		}
	}
	tw.nextID++
	newID := tw.nextID
	e := &timerEntry{id: newID, deadline: time.Now().Add(d), seq: newID, cb: cb}
	heap.Push(&tw.heap, e)
	tw.mu.Unlock()
	tw.poke()
	return newID
}

func (tw *TimerWheel) poke() {
	select {
	case tw.wake <- struct{}{}:
	default:
	}
}

// Step fires every entry whose deadline has passed as of now, without
// waiting on the background dispatcher. Embedders driving the stack from
// their own event loop can call Step directly; tests use it for
// deterministic, sleep-free timeout assertions.
func (tw *TimerWheel) Step(now time.Time) {
	for {
		tw.mu.Lock()
		if tw.heap.Len() == 0 || tw.heap[0].deadline.After(now) {
			tw.mu.Unlock()
			return
		}
		e := heap.Pop(&tw.heap).(*timerEntry)
		canceled := e.canceled
		if !canceled && e.period > 0 {
			next := &timerEntry{id: e.id, deadline: e.deadline.Add(e.period), period: e.period, seq: e.seq, cb: e.cb}
			heap.Push(&tw.heap, next)
		}
		onFire := tw.onFire
		tw.mu.Unlock()

		if canceled {
			continue
		}
		if onFire != nil {
			onFire(e.cb)
		} else {
			e.cb()
		}
	}
}

func (tw *TimerWheel) run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		tw.mu.Lock()
		var wait time.Duration
		if tw.heap.Len() == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(tw.heap[0].deadline)
			if wait < 0 {
				wait = 0
			}
		}
		tw.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-tw.stop:
			return
		case <-tw.wake:
			continue
		case <-timer.C:
			tw.Step(time.Now())
		}
	}
}

// Stop halts the wheel's background dispatcher. Already-scheduled
// entries are discarded; a callback in flight is allowed to finish.
func (tw *TimerWheel) Stop() {
	tw.mu.Lock()
	if tw.closed {
		tw.mu.Unlock()
		return
	}
	tw.closed = true
	tw.mu.Unlock()
	close(tw.stop)
}

// After returns a channel that receives the fire time once d elapses,
// the wheel-backed equivalent of time.After.
func (tw *TimerWheel) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	tw.Schedule(d, func() { ch <- time.Now() })
	return ch
}

// Sleep blocks the calling goroutine until d has elapsed, scheduled on
// the wheel rather than a bare time.Sleep, so that the stack's blocking
// convenience wrappers (pkg/sdo's ReadRaw/ReadAll/WriteRaw, the SDO
// server's idle backoff) wait on the same clock as every other timer.
func (tw *TimerWheel) Sleep(d time.Duration) {
	<-tw.After(d)
}
