package rtc

// interFrameDelay measures how much longer a frame took to arrive than its
// RTP timestamp difference says it should have. One sample per extracted
// superframe feeds the jitter estimator.
type interFrameDelay struct {
	haveSample      bool
	prevWallClockMs int64
	prevTimestamp   uint32
}

// CalculateDelay returns the delay sample for a frame with the given RTP
// timestamp received at nowMs. The first frame yields a zero sample. Frames
// whose timestamp moved backwards are rejected.
func (d *interFrameDelay) CalculateDelay(timestamp uint32, nowMs int64) (int64, bool) {
	if !d.haveSample {
		d.haveSample = true
		d.prevWallClockMs = nowMs
		d.prevTimestamp = timestamp
		return 0, true
	}

	if !AheadOf(timestamp, d.prevTimestamp) {
		return 0, false
	}

	// 90 kHz RTP clock, rounded to the closest millisecond.
	diff := ForwardDiff(d.prevTimestamp, timestamp)
	expectedMs := (int64(diff) + 45) / 90

	delayMs := (nowMs - d.prevWallClockMs) - expectedMs

	d.prevWallClockMs = nowMs
	d.prevTimestamp = timestamp

	return delayMs, true
}

func (d *interFrameDelay) Reset() {
	d.haveSample = false
	d.prevWallClockMs = 0
	d.prevTimestamp = 0
}
