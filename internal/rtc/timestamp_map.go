package rtc

// timestampMap correlates decode submissions with completions. It is a fixed
// ring of slots plus an index from RTP timestamp to slot: when all slots are
// occupied the oldest mapping is overwritten, so a completion for an evicted
// timestamp misses. Capacity eviction bounds the in-flight bookkeeping
// instead of growing with a backlogged decoder.
type timestampMap struct {
	slots   []timestampSlot
	index   map[uint32]int
	nextIdx int
}

type timestampSlot struct {
	timestamp uint32
	info      *FrameInfo
}

func newTimestampMap(capacity int) *timestampMap {
	return &timestampMap{
		slots: make([]timestampSlot, capacity),
		index: make(map[uint32]int, capacity),
	}
}

// Add maps timestamp to info in the next ring slot, evicting the slot's
// previous mapping if the decoder never completed it.
func (m *timestampMap) Add(timestamp uint32, info *FrameInfo) {
	slot := &m.slots[m.nextIdx]
	if slot.info != nil {
		delete(m.index, slot.timestamp)
	}
	// A remap of a live timestamp keeps only the newest slot reachable.
	if prevIdx, ok := m.index[timestamp]; ok {
		m.slots[prevIdx].info = nil
	}

	slot.timestamp = timestamp
	slot.info = info
	m.index[timestamp] = m.nextIdx
	m.nextIdx = (m.nextIdx + 1) % len(m.slots)
}

// Pop removes and returns the mapping for timestamp, or nil when it was never
// mapped or already evicted by overwrite.
func (m *timestampMap) Pop(timestamp uint32) *FrameInfo {
	idx, ok := m.index[timestamp]
	if !ok {
		return nil
	}
	info := m.slots[idx].info
	m.slots[idx].info = nil
	delete(m.index, timestamp)
	return info
}

func (m *timestampMap) Len() int {
	return len(m.index)
}
