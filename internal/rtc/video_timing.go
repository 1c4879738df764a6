package rtc

// Timing flags carried in the video timing extension.
const (
	TimingFlagsNotTriggered     uint8 = 0
	TimingFlagsTriggeredByTimer uint8 = 1 << 0
	TimingFlagsTriggeredBySize  uint8 = 1 << 1
	TimingFlagsInvalid          uint8 = 0xFF
)

// VideoTiming holds the sender-side pipeline timestamps of one frame. The
// sender fields are expressed in the sender NTP domain until the timing
// reconciler shifts them into local time. Only valid when Flags is not
// TimingFlagsInvalid.
type VideoTiming struct {
	Flags uint8

	EncodeStartMs         int64
	EncodeFinishMs        int64
	PacketizationFinishMs int64
	PacerExitMs           int64
	NetworkTimestampMs    int64
	Network2TimestampMs   int64

	// Receive side, local domain.
	ReceiveStartMs  int64
	ReceiveFinishMs int64
}

// TimingFrameInfo is the consolidated timing record emitted once per decoded
// frame. Sender fields have been converted to the local clock domain; a
// non-positive capture time flags an unsynchronized sender clock whose fields
// are only relatively ordered.
type TimingFrameInfo struct {
	RtpTimestamp uint32
	Flags        uint8

	CaptureTimeMs         int64
	EncodeStartMs         int64
	EncodeFinishMs        int64
	PacketizationFinishMs int64
	PacerExitMs           int64
	NetworkTimestampMs    int64
	Network2TimestampMs   int64

	ReceiveStartMs  int64
	ReceiveFinishMs int64
	DecodeStartMs   int64
	DecodeFinishMs  int64
	RenderTimeMs    int64
}
