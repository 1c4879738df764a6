package rtc

import "time"

// ProtectionMode selects the active loss-recovery mechanism, which changes
// how the jitter estimate treats retransmission delay.
type ProtectionMode int

const (
	ProtectionNone ProtectionMode = iota
	ProtectionNack
	ProtectionNackFEC
)

// TimingInfo is the aggregate delay snapshot relayed to the statistics
// callback on every extraction.
type TimingInfo struct {
	MaxDecodeMs       int
	CurrentDelayMs    int
	TargetDelayMs     int
	JitterBufferMs    int
	MinPlayoutDelayMs int
	RenderDelayMs     int
}

// Timing is the render timing oracle. Given a frame timestamp it answers when
// the frame should be rendered and how long extraction may wait for it. It is
// an external collaborator, consumed in-process only.
type Timing interface {
	// IncomingTimestamp feeds the arrival of a frame that was not delayed by
	// retransmission into the delay estimation.
	IncomingTimestamp(rtpTimestamp uint32, receiveTimeMs int64)
	// RenderTimeMs returns the local render deadline for a frame timestamp.
	RenderTimeMs(rtpTimestamp uint32, nowMs int64) int64
	// MaxWaitingTimeMs returns how long the extractor may keep waiting for
	// the frame scheduled at renderTimeMs. May be negative when overdue.
	MaxWaitingTimeMs(renderTimeMs, nowMs int64) int64
	// SetJitterDelay sets the jitter buffer contribution to the target delay.
	SetJitterDelay(delayMs int64)
	UpdateCurrentDelay(renderTimeMs, nowMs int64)
	// StopDecodeTimer records a finished decode of the given duration.
	StopDecodeTimer(decodeTimeMs, nowMs int64)
	SetTimingFrameInfo(info TimingFrameInfo)
	GetTimingFrameInfo() (TimingFrameInfo, bool)
	TargetVideoDelayMs() int64
	// Timings reports the aggregate delays, false when not yet meaningful.
	Timings() (TimingInfo, bool)
	Reset()
}

// JitterEstimator tracks inter-frame delay variance. It is fed one sample per
// extracted superframe and consulted for the jitter buffer delay.
type JitterEstimator interface {
	// UpdateEstimate folds in one frame delay sample.
	UpdateEstimate(frameDelayMs int64, frameSizeBytes int)
	// FrameNacked tells the estimator a frame was delayed by retransmission.
	// Under ProtectionNack the estimate may then grow to include the RTT.
	FrameNacked()
	// GetJitterEstimateMs returns the current jitter delay. rttMultiplier is
	// 0 when retransmission delay must not be counted (FEC recovers losses)
	// and 1 when it must.
	GetJitterEstimateMs(rttMultiplier float64) int64
	UpdateRtt(rtt time.Duration)
	Reset()
}
