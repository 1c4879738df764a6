package rtc

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// DecoderFrameMemoryLength is the number of decode submissions that may be in
// flight before the oldest one's metadata is overwritten. An overwritten
// frame's completion is dropped instead of letting the bookkeeping grow with
// a backlogged decoder.
const DecoderFrameMemoryLength = 10

// ErrDecoderNoOutput is returned by a Decoder that consumed the frame without
// producing output. The in-flight slot is released and no frame is delivered.
var ErrDecoderNoOutput = errors.New("decoder produced no output")

// Decoder is the external decoder implementation. Completions are reported
// asynchronously through the DecodedFrameCallback registered with it, possibly
// from a decoder-owned goroutine.
type Decoder interface {
	Decode(frame *EncodedFrame, renderTimeMs int64) error
	ImplementationName() string
}

// ReceiveCallback receives finished frames. It must be registered during
// setup, before any decode submission; replacing it concurrently with
// delivery is not supported.
type ReceiveCallback interface {
	OnFrameToRender(frame *DecodedFrame, qp int, decodeTimeMs int64, contentType VideoContentType)
	OnDecoderImplementationName(name string)
}

// FrameInfo is the decode-submission record correlated back to the frame on
// completion. It is owned exclusively by the DecodedFrameCallback between Map
// and Pop.
type FrameInfo struct {
	DecodeStartTimeMs int64
	RenderTimeMs      int64
	Rotation          VideoRotation
	Timing            VideoTiming
	NtpTimeMs         int64
	ColorSpace        *ColorSpace
	PacketInfos       []PacketInfo
	ContentType       VideoContentType
}

// DecodedFrameCallback correlates decoder completions with the metadata
// recorded at submission and reconciles sender timestamps into the local
// clock domain. It keeps its own lock: Decoded may run on a decoder-owned
// goroutine and must never contend with the frame buffer.
type DecodedFrameCallback struct {
	clock  Clock
	timing Timing
	logger *logrus.Entry

	mu           sync.Mutex
	timestampMap *timestampMap

	receiveCallback ReceiveCallback

	// Local minus NTP clock offset, computed once so all sender timestamps
	// shift by the same amount.
	ntpOffsetMs int64
}

type DecodedFrameCallbackOption func(*DecodedFrameCallback)

func WithRingSize(size int) DecodedFrameCallbackOption {
	return func(c *DecodedFrameCallback) {
		if size > 0 {
			c.timestampMap = newTimestampMap(size)
		}
	}
}

func NewDecodedFrameCallback(clock Clock, timing Timing, options ...DecodedFrameCallbackOption) *DecodedFrameCallback {
	c := &DecodedFrameCallback{
		clock:        clock,
		timing:       timing,
		logger:       logrus.WithField("component", "DecodedFrameCallback"),
		timestampMap: newTimestampMap(DecoderFrameMemoryLength),
		ntpOffsetMs:  clock.NtpTimeMs() - clock.TimeMs(),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// SetReceiveCallback registers the consumer of finished frames. Must happen
// before the first decode submission.
func (c *DecodedFrameCallback) SetReceiveCallback(callback ReceiveCallback) {
	c.receiveCallback = callback
}

// ringSize is the number of submissions the callback can keep in flight; the
// decoder sizes its own record ring to match so both evict in lockstep.
func (c *DecodedFrameCallback) ringSize() int {
	return len(c.timestampMap.slots)
}

// Map records the in-flight metadata for a submitted timestamp.
func (c *DecodedFrameCallback) Map(timestamp uint32, info *FrameInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timestampMap.Add(timestamp, info)
}

// Pop releases the in-flight slot for timestamp without delivering a frame,
// used when the decoder failed or produced no output. Returns false when the
// timestamp was not mapped.
func (c *DecodedFrameCallback) Pop(timestamp uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timestampMap.Pop(timestamp) != nil
}

// Decoded correlates a completed frame with its submission record, corrects
// its timing metadata and delivers it to the receive callback. decodeTimeMs
// and qp are -1 when the decoder did not report them. A frame whose record
// was evicted is dropped; that signals a decoder backlog, not a logic error.
func (c *DecodedFrameCallback) Decoded(frame *DecodedFrame, decodeTimeMs int64, qp int) {
	c.mu.Lock()
	info := c.timestampMap.Pop(frame.Timestamp)
	c.mu.Unlock()

	if info == nil {
		c.logger.WithField("timestamp", frame.Timestamp).
			Warn("too many frames backed up in the decoder, dropping frame")
		return
	}

	frame.NtpTimeMs = info.NtpTimeMs
	if info.ColorSpace != nil {
		frame.ColorSpace = info.ColorSpace
	}
	frame.PacketInfos = info.PacketInfos
	frame.Rotation = info.Rotation

	nowMs := c.clock.TimeMs()
	if decodeTimeMs < 0 {
		decodeTimeMs = nowMs - info.DecodeStartTimeMs
	}
	c.timing.StopDecodeTimer(decodeTimeMs, nowMs)

	c.timing.SetTimingFrameInfo(c.buildTimingFrameInfo(frame, info, nowMs))

	frame.RenderTimeMs = info.RenderTimeMs
	c.receiveCallback.OnFrameToRender(frame, qp, decodeTimeMs, info.ContentType)
}

// buildTimingFrameInfo assembles the consolidated timing record. Sender-side
// timestamps arrive in the sender NTP domain and are shifted into local time
// by the startup offset; when the sender clock is not yet synchronized all
// sender fields are additionally shifted to non-positive values, keeping
// their relative order while flagging the absolute times as unknown. Local
// fields are recorded unshifted.
func (c *DecodedFrameCallback) buildTimingFrameInfo(frame *DecodedFrame, info *FrameInfo, nowMs int64) TimingFrameInfo {
	timingInfo := TimingFrameInfo{
		Flags:           info.Timing.Flags,
		RtpTimestamp:    frame.Timestamp,
		DecodeStartMs:   info.DecodeStartTimeMs,
		DecodeFinishMs:  nowMs,
		RenderTimeMs:    info.RenderTimeMs,
		ReceiveStartMs:  info.Timing.ReceiveStartMs,
		ReceiveFinishMs: info.Timing.ReceiveFinishMs,
	}

	if info.Timing.Flags == TimingFlagsInvalid {
		return timingInfo
	}

	captureTimeMs := frame.NtpTimeMs - c.ntpOffsetMs
	encodeStartMs := info.Timing.EncodeStartMs - c.ntpOffsetMs
	encodeFinishMs := info.Timing.EncodeFinishMs - c.ntpOffsetMs
	packetizationFinishMs := info.Timing.PacketizationFinishMs - c.ntpOffsetMs
	pacerExitMs := info.Timing.PacerExitMs - c.ntpOffsetMs
	networkTimestampMs := info.Timing.NetworkTimestampMs - c.ntpOffsetMs
	network2TimestampMs := info.Timing.Network2TimestampMs - c.ntpOffsetMs

	var senderDeltaMs int64
	if frame.NtpTimeMs < 0 {
		senderDeltaMs = max64(captureTimeMs, encodeStartMs, encodeFinishMs,
			packetizationFinishMs, pacerExitMs, networkTimestampMs,
			network2TimestampMs) + 1
	}

	timingInfo.CaptureTimeMs = captureTimeMs - senderDeltaMs
	timingInfo.EncodeStartMs = encodeStartMs - senderDeltaMs
	timingInfo.EncodeFinishMs = encodeFinishMs - senderDeltaMs
	timingInfo.PacketizationFinishMs = packetizationFinishMs - senderDeltaMs
	timingInfo.PacerExitMs = pacerExitMs - senderDeltaMs
	timingInfo.NetworkTimestampMs = networkTimestampMs - senderDeltaMs
	timingInfo.Network2TimestampMs = network2TimestampMs - senderDeltaMs

	return timingInfo
}

func max64(first int64, rest ...int64) int64 {
	result := first
	for _, v := range rest {
		if v > result {
			result = v
		}
	}
	return result
}

// GenericDecoder wraps a Decoder with the in-flight bookkeeping: every
// submission records a FrameInfo in the ring and maps it by timestamp, a
// failed or output-less decode releases the slot again.
type GenericDecoder struct {
	decoder  Decoder
	callback *DecodedFrameCallback
	logger   *logrus.Entry

	frameInfos       []FrameInfo
	nextFrameInfoIdx int

	// Content type is only reliable on key frames, so delta frames inherit
	// the type recorded at the most recent key frame submission.
	lastKeyframeContentType VideoContentType

	reportedImplName bool
}

func NewGenericDecoder(decoder Decoder, callback *DecodedFrameCallback) *GenericDecoder {
	return &GenericDecoder{
		decoder:    decoder,
		callback:   callback,
		frameInfos: make([]FrameInfo, callback.ringSize()),
		logger:     logrus.WithField("component", "GenericDecoder"),
	}
}

// Decode submits frame to the decoder at nowMs. The in-flight record is
// mapped before the decoder runs so an asynchronous completion can always
// find it.
func (d *GenericDecoder) Decode(frame *EncodedFrame, nowMs int64) error {
	info := &d.frameInfos[d.nextFrameInfoIdx]
	info.DecodeStartTimeMs = nowMs
	info.RenderTimeMs = frame.RenderTimeMs
	info.Rotation = frame.Rotation
	info.Timing = frame.Timing
	info.NtpTimeMs = frame.NtpTimeMs
	info.ColorSpace = frame.ColorSpace
	info.PacketInfos = frame.PacketInfos

	if frame.IsKeyFrame() {
		info.ContentType = frame.ContentType
		d.lastKeyframeContentType = frame.ContentType
	} else {
		info.ContentType = d.lastKeyframeContentType
	}

	d.callback.Map(frame.Timestamp, info)
	d.nextFrameInfoIdx = (d.nextFrameInfoIdx + 1) % len(d.frameInfos)

	err := d.decoder.Decode(frame, frame.RenderTimeMs)

	if !d.reportedImplName {
		d.callback.receiveCallback.OnDecoderImplementationName(d.decoder.ImplementationName())
		d.reportedImplName = true
	}

	if err != nil {
		d.callback.Pop(frame.Timestamp)
		if errors.Is(err, ErrDecoderNoOutput) {
			return nil
		}
		d.logger.WithFields(logrus.Fields{
			"timestamp": frame.Timestamp,
		}).WithError(err).Warn("failed to decode frame")
		return err
	}
	return nil
}
