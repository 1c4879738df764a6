package rtc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterFrameDelay(t *testing.T) {
	t.Run("first frame yields zero", func(t *testing.T) {
		var d interFrameDelay

		delayMs, ok := d.CalculateDelay(90000, 1000)
		require.True(t, ok)
		assert.Zero(t, delayMs)
	})

	t.Run("baseline at wall clock zero is kept", func(t *testing.T) {
		var d interFrameDelay

		d.CalculateDelay(90000, 0)
		delayMs, ok := d.CalculateDelay(90000+33*90, 50)
		require.True(t, ok)
		assert.EqualValues(t, 17, delayMs)
	})

	t.Run("on time frame yields zero", func(t *testing.T) {
		var d interFrameDelay

		d.CalculateDelay(90000, 1000)
		// 33 ms of media, 33 ms of wall clock.
		delayMs, ok := d.CalculateDelay(90000+33*90, 1033)
		require.True(t, ok)
		assert.Zero(t, delayMs)
	})

	t.Run("late frame yields positive delay", func(t *testing.T) {
		var d interFrameDelay

		d.CalculateDelay(90000, 1000)
		delayMs, ok := d.CalculateDelay(90000+33*90, 1050)
		require.True(t, ok)
		assert.EqualValues(t, 17, delayMs)
	})

	t.Run("early frame yields negative delay", func(t *testing.T) {
		var d interFrameDelay

		d.CalculateDelay(90000, 1000)
		delayMs, ok := d.CalculateDelay(90000+33*90, 1020)
		require.True(t, ok)
		assert.EqualValues(t, -13, delayMs)
	})

	t.Run("rejects backwards timestamp", func(t *testing.T) {
		var d interFrameDelay

		d.CalculateDelay(90000, 1000)
		_, ok := d.CalculateDelay(90000-3000, 1033)
		assert.False(t, ok)

		// The rejected frame does not shift the baseline.
		delayMs, ok := d.CalculateDelay(90000+33*90, 1033)
		require.True(t, ok)
		assert.Zero(t, delayMs)
	})

	t.Run("handles timestamp wrap", func(t *testing.T) {
		var d interFrameDelay

		d.CalculateDelay(4294967295-1500, 1000)
		delayMs, ok := d.CalculateDelay(1500, 1033)
		require.True(t, ok)
		assert.Zero(t, delayMs)
	})

	t.Run("reset forgets the baseline", func(t *testing.T) {
		var d interFrameDelay

		d.CalculateDelay(90000, 1000)
		d.Reset()

		delayMs, ok := d.CalculateDelay(90000+33*90, 5000)
		require.True(t, ok)
		assert.Zero(t, delayMs)
	})
}
