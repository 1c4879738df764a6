package rtc

import (
	"sync"
	"time"
)

// SafeTimer is a re-armable timer that invokes its callback from a dedicated
// goroutine. Unlike a bare time.Timer it can be stopped and reset in any
// order without racing the callback delivery, and it can fire again after a
// Reset. Close releases the goroutine once the timer is no longer needed.
type SafeTimer struct {
	timer     *time.Timer
	mu        sync.Mutex
	active    bool
	callback  func()
	done      chan struct{}
	closeOnce sync.Once
}

// NewSafeTimer creates and starts a new SafeTimer with the given duration and
// callback.
func NewSafeTimer(duration time.Duration, cb func()) *SafeTimer {
	st := &SafeTimer{
		timer:    time.NewTimer(duration),
		active:   true,
		callback: cb,
		done:     make(chan struct{}),
	}
	go st.run()
	return st
}

func (st *SafeTimer) run() {
	for {
		select {
		case <-st.timer.C:
			st.mu.Lock()
			fire := st.active
			st.active = false
			st.mu.Unlock()
			if fire && st.callback != nil {
				st.callback()
			}
		case <-st.done:
			st.timer.Stop()
			return
		}
	}
}

// Stop disarms the timer and returns whether it was stopped before firing.
// The timer can be re-armed with Reset afterwards.
func (st *SafeTimer) Stop() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	stopped := st.timer.Stop()
	if !stopped && st.active {
		// Drain a fire the run loop has not consumed yet.
		select {
		case <-st.timer.C:
		default:
		}
	}
	st.active = false
	return stopped
}

// Reset re-arms the timer with a new duration, whether or not it has fired.
func (st *SafeTimer) Reset(duration time.Duration) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.timer.Stop() && st.active {
		select {
		case <-st.timer.C:
		default:
		}
	}
	st.timer.Reset(duration)
	st.active = true
}

// IsActive returns whether the timer is armed and has not fired yet.
func (st *SafeTimer) IsActive() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.active
}

// Close disarms the timer and terminates its goroutine. Idempotent.
func (st *SafeTimer) Close() {
	st.Stop()
	st.closeOnce.Do(func() {
		close(st.done)
	})
}
