package rtc

import (
	"github.com/pion/rtp"
)

// PacketInfo records the provenance of one RTP packet that contributed to an
// encoded frame. The frame buffer and decoder pass it through unchanged so
// the renderer can correlate output frames back to the wire.
type PacketInfo struct {
	Ssrc           uint32
	SequenceNumber uint16
	RtpTimestamp   uint32
	Csrcs          []uint32
	ReceiveTimeMs  int64
}

// NewPacketInfo captures the provenance of packet as received at receiveTimeMs.
func NewPacketInfo(packet *rtp.Packet, receiveTimeMs int64) PacketInfo {
	csrcs := make([]uint32, len(packet.CSRC))
	copy(csrcs, packet.CSRC)

	return PacketInfo{
		Ssrc:           packet.SSRC,
		SequenceNumber: packet.SequenceNumber,
		RtpTimestamp:   packet.Timestamp,
		Csrcs:          csrcs,
		ReceiveTimeMs:  receiveTimeMs,
	}
}
