package rtc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodedFramesHistory(t *testing.T) {
	t.Run("empty history", func(t *testing.T) {
		h := newDecodedFramesHistory(DefaultDecodedHistorySize)

		assert.Nil(t, h.LastDecodedFrame())
		_, ok := h.LastDecodedFrameTimestamp()
		assert.False(t, ok)
		assert.False(t, h.WasDecoded(FrameID{PictureID: 1}))
	})

	t.Run("tracks decoded frames", func(t *testing.T) {
		h := newDecodedFramesHistory(DefaultDecodedHistorySize)

		h.InsertDecoded(FrameID{PictureID: 100}, 90000)
		h.InsertDecoded(FrameID{PictureID: 102}, 93000)

		assert.True(t, h.WasDecoded(FrameID{PictureID: 100}))
		assert.True(t, h.WasDecoded(FrameID{PictureID: 102}))
		assert.False(t, h.WasDecoded(FrameID{PictureID: 101}))

		last := h.LastDecodedFrame()
		require.NotNil(t, last)
		assert.Equal(t, uint16(102), last.PictureID)
		timestamp, ok := h.LastDecodedFrameTimestamp()
		require.True(t, ok)
		assert.Equal(t, uint32(93000), timestamp)
	})

	t.Run("all layers share the picture id", func(t *testing.T) {
		h := newDecodedFramesHistory(DefaultDecodedHistorySize)

		h.InsertDecoded(FrameID{PictureID: 10, SpatialLayer: 0}, 90000)
		h.InsertDecoded(FrameID{PictureID: 10, SpatialLayer: 1}, 90000)

		assert.True(t, h.WasDecoded(FrameID{PictureID: 10, SpatialLayer: 1}))
		last := h.LastDecodedFrame()
		require.NotNil(t, last)
		assert.Equal(t, 1, last.SpatialLayer)
	})

	t.Run("forgets frames outside the window", func(t *testing.T) {
		h := newDecodedFramesHistory(100)

		h.InsertDecoded(FrameID{PictureID: 1}, 90000)
		h.InsertDecoded(FrameID{PictureID: 2}, 93000)
		h.InsertDecoded(FrameID{PictureID: 150}, 96000)

		assert.False(t, h.WasDecoded(FrameID{PictureID: 1}))
		assert.False(t, h.WasDecoded(FrameID{PictureID: 2}))
		assert.True(t, h.WasDecoded(FrameID{PictureID: 150}))
	})

	t.Run("handles picture id wrap", func(t *testing.T) {
		h := newDecodedFramesHistory(100)

		h.InsertDecoded(FrameID{PictureID: 65530}, 90000)
		h.InsertDecoded(FrameID{PictureID: 3}, 93000)

		assert.True(t, h.WasDecoded(FrameID{PictureID: 65530}))
		assert.True(t, h.WasDecoded(FrameID{PictureID: 3}))

		last := h.LastDecodedFrame()
		require.NotNil(t, last)
		assert.Equal(t, uint16(3), last.PictureID)
	})

	t.Run("clear", func(t *testing.T) {
		h := newDecodedFramesHistory(DefaultDecodedHistorySize)

		h.InsertDecoded(FrameID{PictureID: 5}, 90000)
		h.Clear()

		assert.Nil(t, h.LastDecodedFrame())
		assert.False(t, h.WasDecoded(FrameID{PictureID: 5}))
	})
}
