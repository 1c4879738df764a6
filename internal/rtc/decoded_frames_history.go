package rtc

import (
	"github.com/136060150/webrtc/internal/pkg/set"
)

// DefaultDecodedHistorySize bounds how far behind the newest decoded picture
// id the history remembers decoded frames. A reference older than this window
// that was never decoded makes the referring frame undecodable.
const DefaultDecodedHistorySize = 1 << 13

// decodedFramesHistory remembers which picture ids have been handed off for
// decoding. Extraction permanently marks ids here so later frames referencing
// them stay decodable even when the caller discards the frame itself.
type decodedFramesHistory struct {
	historySize uint16
	decoded     *set.Set[uint16]

	lastDecodedFrame          *FrameID
	lastDecodedFrameTimestamp uint32
}

func newDecodedFramesHistory(historySize uint16) *decodedFramesHistory {
	return &decodedFramesHistory{
		historySize: historySize,
		decoded: set.NewFunc(func(a, b uint16) bool {
			return IsSeqLowerThan(a, b)
		}),
	}
}

func (h *decodedFramesHistory) InsertDecoded(id FrameID, timestamp uint32) {
	h.decoded.Add(id.PictureID)
	h.decoded.DeleteLessThan(id.PictureID - h.historySize)

	idCopy := id
	h.lastDecodedFrame = &idCopy
	h.lastDecodedFrameTimestamp = timestamp
}

// WasDecoded reports whether any layer of the picture id was decoded. Ids
// older than the history window are reported as not decoded.
func (h *decodedFramesHistory) WasDecoded(id FrameID) bool {
	return h.decoded.Contains(id.PictureID)
}

func (h *decodedFramesHistory) LastDecodedFrame() *FrameID {
	return h.lastDecodedFrame
}

func (h *decodedFramesHistory) LastDecodedFrameTimestamp() (uint32, bool) {
	if h.lastDecodedFrame == nil {
		return 0, false
	}
	return h.lastDecodedFrameTimestamp, true
}

func (h *decodedFramesHistory) Clear() {
	h.decoded.Clear()
	h.lastDecodedFrame = nil
	h.lastDecodedFrameTimestamp = 0
}
