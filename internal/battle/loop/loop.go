// Package loop provides the cooperative control loop that owns battle state.
//
// Nothing in the loop blocks: work is expressed as continuations that are
// posted, delayed, or subscribed to host frames. The host drives progress by
// calling Frame from its own update callback (a render tick, a websocket
// session ticker, or a headless fast-forward).
package loop

import (
	"container/heap"
	"errors"
	"time"
)

// ErrStalled indicates RunUntil ran out of scheduled work before its
// condition held.
var ErrStalled = errors.New("loop stalled with no scheduled work")

// ErrFrameLimit indicates RunUntil gave up after its frame budget.
var ErrFrameLimit = errors.New("loop frame limit reached")

// DefaultFrameInterval is the virtual frame length used when fast-forwarding
// through frame-driven waits.
const DefaultFrameInterval = 16 * time.Millisecond

// Loop is a single-threaded scheduler. It is not safe for concurrent use;
// all calls must come from the goroutine that drives Frame.
type Loop struct {
	now     time.Time
	posted  []func()
	timers  timerHeap
	seq     uint64
	frames  []frameSub
	running bool
}

type frameSub struct {
	id uint64
	fn func(time.Time)
}

// New returns a loop whose clock starts at start.
func New(start time.Time) *Loop {
	return &Loop{now: start}
}

// Now returns the loop clock as of the last frame.
func (l *Loop) Now() time.Time { return l.now }

// Post schedules fn to run during the current or next frame drain.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.posted = append(l.posted, fn)
}

// After schedules fn to run once the loop clock passes now+d.
func (l *Loop) After(d time.Duration, fn func()) *Timer {
	l.seq++
	t := &Timer{deadline: l.now.Add(d), seq: l.seq, fn: fn, index: -1}
	if fn == nil {
		t.stopped = true
		return t
	}
	heap.Push(&l.timers, t)
	return t
}

// OnFrame subscribes fn to every host frame until the returned cancel is called.
func (l *Loop) OnFrame(fn func(now time.Time)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	l.seq++
	id := l.seq
	l.frames = append(l.frames, frameSub{id: id, fn: fn})
	return func() {
		for i, sub := range l.frames {
			if sub.id == id {
				l.frames = append(l.frames[:i], l.frames[i+1:]...)
				return
			}
		}
	}
}

// Frame advances the clock to now and runs due timers, frame subscribers,
// and posted continuations until no more work is due. Nested calls are ignored.
func (l *Loop) Frame(now time.Time) {
	if l.running {
		return
	}
	l.running = true
	defer func() { l.running = false }()

	if now.After(l.now) {
		l.now = now
	}
	l.settle()

	subs := make([]frameSub, len(l.frames))
	copy(subs, l.frames)
	for _, sub := range subs {
		if !l.subscribed(sub.id) {
			continue
		}
		sub.fn(l.now)
		l.settle()
	}
}

// Advance runs one frame d after the current clock.
func (l *Loop) Advance(d time.Duration) {
	l.Frame(l.now.Add(d))
}

// Busy reports whether continuations or timers are scheduled.
func (l *Loop) Busy() bool {
	return len(l.posted) > 0 || l.timers.Len() > 0
}

// Listening reports whether any frame subscribers are registered.
func (l *Loop) Listening() bool {
	return len(l.frames) > 0
}

// NextDeadline returns the earliest pending timer deadline.
func (l *Loop) NextDeadline() (time.Time, bool) {
	if l.timers.Len() == 0 {
		return time.Time{}, false
	}
	return l.timers[0].deadline, true
}

// RunUntil fast-forwards virtual time until done reports true. Timers are
// jumped to directly; frame-driven waits advance by DefaultFrameInterval.
// It returns ErrStalled when nothing is scheduled and nobody is listening.
func (l *Loop) RunUntil(done func() bool, maxFrames int) error {
	l.Frame(l.now)
	for frames := 0; !done(); frames++ {
		if maxFrames > 0 && frames >= maxFrames {
			return ErrFrameLimit
		}
		switch {
		case len(l.posted) > 0:
			l.Frame(l.now)
		case l.timers.Len() > 0:
			next := l.timers[0].deadline
			if l.Listening() && next.Sub(l.now) > DefaultFrameInterval {
				next = l.now.Add(DefaultFrameInterval)
			}
			l.Frame(next)
		case l.Listening():
			l.Advance(DefaultFrameInterval)
		default:
			return ErrStalled
		}
	}
	return nil
}

func (l *Loop) settle() {
	for {
		progressed := false
		for l.timers.Len() > 0 && !l.timers[0].deadline.After(l.now) {
			t := heap.Pop(&l.timers).(*Timer)
			if t.stopped {
				continue
			}
			t.fired = true
			t.fn()
			progressed = true
		}
		for len(l.posted) > 0 {
			fn := l.posted[0]
			l.posted[0] = nil
			l.posted = l.posted[1:]
			fn()
			progressed = true
		}
		if !progressed {
			return
		}
	}
}

func (l *Loop) subscribed(id uint64) bool {
	for _, sub := range l.frames {
		if sub.id == id {
			return true
		}
	}
	return false
}

// Timer is a delayed continuation.
type Timer struct {
	deadline time.Time
	seq      uint64
	fn       func()
	index    int
	stopped  bool
	fired    bool
}

// Stop prevents the timer from firing. It reports whether the call stopped it.
func (t *Timer) Stop() bool {
	if t == nil || t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type timerHeap []*Timer

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
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
