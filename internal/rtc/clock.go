package rtc

import (
	"sync"
	"time"
)

// Unix epoch offset to NTP epoch (Jan 1 1900), in seconds.
const ntpEpochOffsetSeconds = 2208988800

// Clock supplies the local wall time and the local NTP time. It is passed
// explicitly to every component that needs time so tests can substitute a
// simulated clock.
type Clock interface {
	// TimeMs returns the local time in milliseconds.
	TimeMs() int64
	// NtpTimeMs returns the current time in the NTP domain, in milliseconds.
	NtpTimeMs() int64
}

type systemClock struct{}

// SystemClock is the Clock backed by the operating system time.
var SystemClock Clock = systemClock{}

func (systemClock) TimeMs() int64 {
	return time.Now().UnixMilli()
}

func (systemClock) NtpTimeMs() int64 {
	return time.Now().UnixMilli() + ntpEpochOffsetSeconds*1000
}

// SimulatedClock is a manually advanced Clock for tests.
type SimulatedClock struct {
	mu    sync.Mutex
	nowMs int64
}

func NewSimulatedClock(startMs int64) *SimulatedClock {
	return &SimulatedClock{nowMs: startMs}
}

func (c *SimulatedClock) TimeMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowMs
}

func (c *SimulatedClock) NtpTimeMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowMs + ntpEpochOffsetSeconds*1000
}

func (c *SimulatedClock) AdvanceTimeMs(deltaMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nowMs += deltaMs
}
