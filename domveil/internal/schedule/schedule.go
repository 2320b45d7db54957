// Package schedule abstracts one-shot delayed callbacks so the single-threaded
// core can defer work (long-press reveal, selection-ended notice) without
// owning goroutines. The session supplies a Scheduler that re-enters its
// event loop; tests use Fake.
package schedule

import (
	"sort"
	"time"
)

// Timer is a pending callback.
type Timer interface {
	// Stop cancels the callback. It returns false if the callback already
	// ran or was stopped.
	Stop() bool
}

// Scheduler runs fn once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// Fake is a manually advanced Scheduler. Callbacks run synchronously inside
// Advance, in due order, on the caller's goroutine.
type Fake struct {
	now     time.Duration
	seq     int
	pending []*fakeTimer
}

type fakeTimer struct {
	f    *Fake
	due  time.Duration
	seq  int
	fn   func()
	done bool
}

func (t *fakeTimer) Stop() bool {
	if t.done {
		return false
	}
	t.done = true
	t.f.remove(t)
	return true
}

// AfterFunc implements Scheduler.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.seq++
	t := &fakeTimer{f: f, due: f.now + d, seq: f.seq, fn: fn}
	f.pending = append(f.pending, t)
	return t
}

// Advance moves the clock forward by d and runs every callback now due.
// Callbacks scheduled while advancing run too if they fall inside the window.
func (f *Fake) Advance(d time.Duration) int {
	end := f.now + d
	ran := 0
	for {
		sort.SliceStable(f.pending, func(i, j int) bool {
			if f.pending[i].due != f.pending[j].due {
				return f.pending[i].due < f.pending[j].due
			}
			return f.pending[i].seq < f.pending[j].seq
		})
		if len(f.pending) == 0 || f.pending[0].due > end {
			break
		}
		t := f.pending[0]
		f.pending = f.pending[1:]
		f.now = t.due
		t.done = true
		t.fn()
		ran++
	}
	f.now = end
	return ran
}

// Pending returns the number of callbacks not yet run or stopped.
func (f *Fake) Pending() int { return len(f.pending) }

func (f *Fake) remove(t *fakeTimer) {
	for i, p := range f.pending {
		if p == t {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return
		}
	}
}
