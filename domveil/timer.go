package domveil

import (
	"time"

	"github.com/hazyhaar/veil/domveil/internal/schedule"
)

// loopScheduler runs delayed callbacks on the session event loop.
type loopScheduler struct {
	s *Session
}

// loopTimer fields are only touched on the event loop; the runtime timer
// goroutine only posts.
type loopTimer struct {
	t       *time.Timer
	stopped bool
	fired   bool
}

func (l loopScheduler) AfterFunc(d time.Duration, fn func()) schedule.Timer {
	lt := &loopTimer{}
	lt.t = time.AfterFunc(d, func() {
		l.s.post(func() {
			// Stopped after the runtime timer fired but before this ran.
			if lt.stopped {
				return
			}
			lt.fired = true
			fn()
		})
	})
	return lt
}

func (lt *loopTimer) Stop() bool {
	if lt.stopped || lt.fired {
		return false
	}
	lt.stopped = true
	lt.t.Stop()
	return true
}
