package rtc

// MaxFrameReferences is the maximum number of inter-frame dependencies a
// single encoded frame may carry.
const MaxFrameReferences = 5

type FrameType int

const (
	VideoFrameKey FrameType = iota
	VideoFrameDelta
)

func (t FrameType) String() string {
	if t == VideoFrameKey {
		return "key"
	}
	return "delta"
}

// VideoContentType is only reliably signalled on key frames.
type VideoContentType uint8

const (
	ContentTypeUnspecified VideoContentType = 0
	ContentTypeScreenshare VideoContentType = 1
)

type VideoRotation int

const (
	VideoRotation0   VideoRotation = 0
	VideoRotation90  VideoRotation = 90
	VideoRotation180 VideoRotation = 180
	VideoRotation270 VideoRotation = 270
)

// ColorSpace describes the color primaries, transfer and matrix of a frame.
// It is carried through the pipeline untouched.
type ColorSpace struct {
	Primaries uint8
	Transfer  uint8
	Matrix    uint8
	Range     uint8
}

// FrameID identifies one encoded frame. All spatial layers of a superframe
// share the picture id. Picture id ordering wraps, see AheadOf.
type FrameID struct {
	PictureID    uint16
	SpatialLayer int
}

// less orders FrameIDs by wrap-aware picture id first, spatial layer second.
func (id FrameID) less(other FrameID) bool {
	if id.PictureID == other.PictureID {
		return id.SpatialLayer < other.SpatialLayer
	}
	return IsSeqLowerThan(id.PictureID, other.PictureID)
}

func (id FrameID) lessOrEqual(other FrameID) bool {
	return id == other || id.less(other)
}

// EncodedFrame is one encodable unit as handed over by the depacketizer,
// possibly one spatial layer of a multi-layer superframe.
type EncodedFrame struct {
	ID FrameID

	// References holds the picture ids this frame depends on.
	References    [MaxFrameReferences]uint16
	NumReferences int
	// InterLayerPredicted marks a dependency on the same-picture, lower
	// spatial layer frame.
	InterLayerPredicted bool
	// LastSpatialLayer marks the layer whose arrival completes a superframe.
	LastSpatialLayer bool

	FrameType FrameType
	Payload   []byte

	// Timestamp is the RTP-domain media timestamp.
	Timestamp uint32
	// RenderTimeMs is the local render deadline, -1 until assigned.
	RenderTimeMs int64
	// ReceiveTimeMs is when the last packet of this frame arrived.
	ReceiveTimeMs int64
	// NtpTimeMs is the sender capture time in the sender NTP domain, or a
	// negative value while the sender clock estimate is not settled.
	NtpTimeMs int64

	Rotation    VideoRotation
	ContentType VideoContentType
	ColorSpace  *ColorSpace
	PacketInfos []PacketInfo
	Timing      VideoTiming

	// DelayedByRetransmission is set when at least one packet of this frame
	// was recovered through retransmission.
	DelayedByRetransmission bool

	// spatialLayerSizes records the per-layer payload sizes of a combined
	// superframe, indexed by spatial layer.
	spatialLayerSizes map[int]int
}

func (f *EncodedFrame) IsKeyFrame() bool {
	return f.FrameType == VideoFrameKey
}

// Size returns the payload size in bytes, summed over all combined layers.
func (f *EncodedFrame) Size() int {
	return len(f.Payload)
}

// SpatialLayerFrameSize returns the payload size contributed by one spatial
// layer of a combined superframe. For an uncombined frame only its own layer
// is known.
func (f *EncodedFrame) SpatialLayerFrameSize(spatialLayer int) (int, bool) {
	if f.spatialLayerSizes != nil {
		size, ok := f.spatialLayerSizes[spatialLayer]
		return size, ok
	}
	if spatialLayer == f.ID.SpatialLayer {
		return len(f.Payload), true
	}
	return 0, false
}

func (f *EncodedFrame) setSpatialLayerFrameSize(spatialLayer, size int) {
	if f.spatialLayerSizes == nil {
		f.spatialLayerSizes = make(map[int]int)
	}
	f.spatialLayerSizes[spatialLayer] = size
}

// DecodedFrame is the decoder output enriched with the metadata recorded at
// decode submission.
type DecodedFrame struct {
	Timestamp    uint32
	NtpTimeMs    int64
	RenderTimeMs int64
	Rotation     VideoRotation
	ColorSpace   *ColorSpace
	PacketInfos  []PacketInfo
}
