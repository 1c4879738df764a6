package rtc

// RateCalculator computes a windowed rate over a ring of time buckets. The
// frame buffer uses one instance scaled to bits per second for the incoming
// bitrate and one scaled to items per second for the incoming frame rate.
type RateCalculator struct {
	windowSizeMs        uint64
	scale               float64 // Scale in which the rate is represented.
	windowItems         int
	itemSizeMs          uint64 // windowSizeMs / windowItems.
	buffer              []bufferItem
	newestItemStartTime uint64
	newestItemIndex     int
	oldestItemStartTime uint64
	oldestItemIndex     int
	totalCount          uint64
	lastRate            uint32
	lastTime            uint64
}

type bufferItem struct {
	count uint64
	time  uint64
}

func NewRateCalculator(windowSizeMs uint64, scale float64, windowItems int) *RateCalculator {
	itemSizeMs := windowSizeMs / uint64(windowItems)
	if itemSizeMs < 1 {
		itemSizeMs = 1
	}

	return &RateCalculator{
		windowSizeMs:    windowSizeMs,
		scale:           scale,
		windowItems:     windowItems,
		itemSizeMs:      itemSizeMs,
		buffer:          make([]bufferItem, windowItems),
		newestItemIndex: -1,
		oldestItemIndex: -1,
	}
}

func (r *RateCalculator) Update(size, nowMs uint64) {
	// Ignore too old data. Should never happen.
	if nowMs < r.oldestItemStartTime {
		return
	}

	r.removeOldData(nowMs)

	// If the elapsed time from the newest item start time is greater than the
	// item size (in milliseconds), increase the item index.
	if r.newestItemIndex < 0 || nowMs-r.newestItemStartTime >= r.itemSizeMs {
		r.newestItemIndex++
		r.newestItemStartTime = nowMs

		if r.newestItemIndex >= r.windowItems {
			r.newestItemIndex = 0
		}

		// Ensure the newest item index doesn't overlap with the oldest one.
		if r.newestItemIndex == r.oldestItemIndex && r.oldestItemIndex != -1 {
			panic("newest index overlaps with the oldest one")
		}

		item := &r.buffer[r.newestItemIndex]
		item.count = size
		item.time = nowMs
	} else {
		item := &r.buffer[r.newestItemIndex]
		item.count += size
	}

	if r.oldestItemIndex < 0 {
		r.oldestItemIndex = r.newestItemIndex
		r.oldestItemStartTime = nowMs
	}

	r.totalCount += size

	// Reset lastRate and lastTime so GetRate() will calculate rate again even
	// if called with same now in the same loop iteration.
	r.lastRate = 0
	r.lastTime = 0
}

func (r *RateCalculator) GetRate(nowMs uint64) uint32 {
	if nowMs == r.lastTime {
		return r.lastRate
	}

	r.removeOldData(nowMs)

	scale := r.scale / float64(r.windowSizeMs)

	r.lastTime = nowMs
	r.lastRate = uint32(float64(r.totalCount)*scale + 0.5)

	return r.lastRate
}

func (r *RateCalculator) removeOldData(nowMs uint64) {
	// No item set.
	if r.newestItemIndex < 0 || r.oldestItemIndex < 0 {
		return
	}

	newOldestTime := nowMs - r.windowSizeMs

	// Oldest item already removed.
	if newOldestTime < r.oldestItemStartTime {
		return
	}

	// A whole window size time has elapsed since last entry. Reset the buffer.
	if newOldestTime >= r.newestItemStartTime {
		r.reset()
		return
	}

	for newOldestTime >= r.oldestItemStartTime {
		oldestItem := &r.buffer[r.oldestItemIndex]
		r.totalCount -= oldestItem.count
		oldestItem.count = 0
		oldestItem.time = 0

		if r.oldestItemIndex++; r.oldestItemIndex >= r.windowItems {
			r.oldestItemIndex = 0
		}
		newOldestItem := r.buffer[r.oldestItemIndex]
		r.oldestItemStartTime = newOldestItem.time
	}
}

func (r *RateCalculator) reset() {
	clear(r.buffer)
	r.newestItemIndex = -1
	r.oldestItemIndex = -1
	r.totalCount = 0
}
