package rtc

import (
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/sirupsen/logrus"
)

const (
	// MaxFramesBuffered is the hard capacity of the frame buffer. Once
	// exceeded only a key frame is admitted, which clears and reseeds the
	// whole buffer.
	MaxFramesBuffered = 600

	// maxAllowedFrameDelayMs is how far past its render time a frame may be
	// and still be preferred over a newer decodable frame.
	maxAllowedFrameDelayMs = 5

	// maxVideoDelayMs guards against nonsensical render times caused by
	// stream restarts or broken RTP timestamps.
	maxVideoDelayMs = 10000

	logNonDecodedIntervalMs = 5000

	rateWindowSizeMs = 1000
)

type ReturnReason int

const (
	FrameFound ReturnReason = iota
	Timeout
	Stopped
)

func (r ReturnReason) String() string {
	switch r {
	case FrameFound:
		return "found"
	case Timeout:
		return "timeout"
	default:
		return "stopped"
	}
}

// StatsCallback is notified about completed frames and aggregate timing
// updates. The values are sourced from the timing oracle and merely relayed.
type StatsCallback interface {
	OnCompleteFrame(isKeyframe bool, sizeBytes int, contentType VideoContentType)
	OnFrameBufferTimingsUpdated(info TimingInfo)
	OnTimingFrameInfoUpdated(info TimingFrameInfo)
	OnIncomingRateUpdated(framerateFps, bitrateBps uint32)
}

type frameEntry struct {
	id    FrameID
	frame *EncodedFrame

	// dependentFrames are back-edges to buffered frames waiting on this one.
	dependentFrames      []FrameID
	numMissingContinuous int
	numMissingDecodable  int
	continuous           bool
}

type FrameBufferOption func(*FrameBuffer)

func WithStatsCallback(cb StatsCallback) FrameBufferOption {
	return func(b *FrameBuffer) {
		b.statsCallback = cb
	}
}

func WithMaxBufferSize(size int) FrameBufferOption {
	return func(b *FrameBuffer) {
		b.maxBufferSize = size
	}
}

// WithDecodedHistorySize tunes how far behind the newest decoded picture id a
// reference may point before the referring frame is rejected as stale.
func WithDecodedHistorySize(size uint16) FrameBufferOption {
	return func(b *FrameBuffer) {
		b.history = newDecodedFramesHistory(size)
	}
}

// FrameBuffer buffers encoded frames until they are continuous and due, then
// hands them to the decode loop in dependency order. Insertion and extraction
// run on different goroutines; all state is guarded by a single mutex and a
// blocked NextFrame is woken by inserts and by Stop.
type FrameBuffer struct {
	clock           Clock
	jitterEstimator JitterEstimator
	timing          Timing
	statsCallback   StatsCallback
	logger          *logrus.Entry

	mu                  sync.Mutex
	frames              *btree.BTreeG[*frameEntry]
	framesToDecode      []*frameEntry
	history             *decodedFramesHistory
	lastContinuousFrame *FrameID
	interFrameDelay     interFrameDelay
	protectionMode      ProtectionMode
	keyframeRequired    bool
	latestReturnTimeMs  int64
	lastLogNonDecodedMs int64
	maxBufferSize       int
	stopped             bool

	bitrateCounter   *RateCalculator
	framerateCounter *RateCalculator

	newContinuousFrame chan struct{}
	stopCh             chan struct{}
}

func NewFrameBuffer(clock Clock, jitterEstimator JitterEstimator, timing Timing, options ...FrameBufferOption) *FrameBuffer {
	b := &FrameBuffer{
		clock:               clock,
		jitterEstimator:     jitterEstimator,
		timing:              timing,
		logger:              logrus.WithField("component", "FrameBuffer"),
		history:             newDecodedFramesHistory(DefaultDecodedHistorySize),
		protectionMode:      ProtectionNack,
		maxBufferSize:       MaxFramesBuffered,
		lastLogNonDecodedMs: -logNonDecodedIntervalMs,
		bitrateCounter:      NewRateCalculator(rateWindowSizeMs, 8000, 100),
		framerateCounter:    NewRateCalculator(rateWindowSizeMs, 1000, 100),
		newContinuousFrame:  make(chan struct{}, 1),
		stopCh:              make(chan struct{}),
	}
	b.frames = btree.NewG(2, func(lhs, rhs *frameEntry) bool {
		return lhs.id.less(rhs.id)
	})
	for _, option := range options {
		option(b)
	}
	return b
}

// InsertFrame buffers frame and returns the picture id of the last continuous
// frame, or -1 when no frame is continuous yet. Frames with invalid or stale
// references, duplicates and overflow rejects leave the buffer untouched;
// under loss and reordering those are expected steady-state outcomes.
func (b *FrameBuffer) InsertFrame(frame *EncodedFrame) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := frame.ID
	lastContinuousPictureID := int64(-1)
	if b.lastContinuousFrame != nil {
		lastContinuousPictureID = int64(b.lastContinuousFrame.PictureID)
	}

	if !validReferences(frame) {
		b.logger.WithFields(logrus.Fields{
			"pictureId":    id.PictureID,
			"spatialLayer": id.SpatialLayer,
		}).Warn("frame has invalid references, dropping")
		return lastContinuousPictureID
	}

	if b.frames.Len() >= b.maxBufferSize {
		if frame.IsKeyFrame() {
			b.logger.WithField("pictureId", id.PictureID).
				Warn("buffer full, clearing buffer and inserting keyframe")
			b.clearFramesAndHistory()
			lastContinuousPictureID = -1
		} else {
			b.logger.WithField("pictureId", id.PictureID).
				Warn("buffer full, dropping frame")
			return lastContinuousPictureID
		}
	}

	if lastDecoded := b.history.LastDecodedFrame(); lastDecoded != nil && id.lessOrEqual(*lastDecoded) {
		lastDecodedTimestamp, _ := b.history.LastDecodedFrameTimestamp()
		if AheadOf(frame.Timestamp, lastDecodedTimestamp) && frame.IsKeyFrame() {
			// The picture id jumped backwards while the media timestamp moved
			// on, most likely an encoder restart. A key frame lets us restart
			// decoding from scratch.
			b.logger.WithField("pictureId", id.PictureID).
				Warn("jump in picture id detected, clearing buffer")
			b.clearFramesAndHistory()
			lastContinuousPictureID = -1
		} else {
			b.logger.WithFields(logrus.Fields{
				"pictureId":    id.PictureID,
				"spatialLayer": id.SpatialLayer,
			}).Warn("frame arrived after its decode point, dropping")
			return lastContinuousPictureID
		}
	}

	// A frame that is simultaneously below the oldest and above the newest
	// buffered id means the picture id made a jump of more than half the
	// wrap interval, making the order ambiguous.
	if b.frames.Len() > 0 {
		oldest, _ := b.frames.Min()
		newest, _ := b.frames.Max()
		if id.less(oldest.id) && newest.id.less(id) {
			b.logger.WithField("pictureId", id.PictureID).
				Warn("jump in picture id detected, clearing buffer")
			b.clearFramesAndHistory()
			lastContinuousPictureID = -1
		}
	}

	entry := b.getOrCreateEntry(id)
	if entry.frame != nil {
		b.logger.WithFields(logrus.Fields{
			"pictureId":    id.PictureID,
			"spatialLayer": id.SpatialLayer,
		}).Debug("duplicate frame, dropping")
		return lastContinuousPictureID
	}

	if !b.updateFrameInfoWithIncomingFrame(frame, entry) {
		return lastContinuousPictureID
	}

	if !frame.DelayedByRetransmission {
		b.timing.IncomingTimestamp(frame.Timestamp, frame.ReceiveTimeMs)
	}

	if frame.LastSpatialLayer {
		nowMs := uint64(b.clock.TimeMs())
		b.bitrateCounter.Update(uint64(frame.Size()), nowMs)
		b.framerateCounter.Update(1, nowMs)
		if b.statsCallback != nil {
			b.statsCallback.OnCompleteFrame(frame.IsKeyFrame(), frame.Size(), frame.ContentType)
			b.statsCallback.OnIncomingRateUpdated(
				b.framerateCounter.GetRate(nowMs), b.bitrateCounter.GetRate(nowMs))
		}
	}

	entry.frame = frame

	if entry.numMissingContinuous == 0 {
		entry.continuous = true
		b.propagateContinuity(entry)
		lastContinuousPictureID = int64(b.lastContinuousFrame.PictureID)

		// A better frame to return might now exist, wake NextFrame.
		select {
		case b.newContinuousFrame <- struct{}{}:
		default:
		}
	}

	return lastContinuousPictureID
}

// NextFrame blocks until the next continuous frame is due, a new insertion
// changes the schedule, maxWait elapses or Stop is called. With
// keyframeRequired only key frames are eligible; skipped delta frames are
// dropped from the buffer on extraction.
func (b *FrameBuffer) NextFrame(maxWait time.Duration, keyframeRequired bool) (*EncodedFrame, ReturnReason) {
	latestReturnTimeMs := b.clock.TimeMs() + maxWait.Milliseconds()

	for {
		nowMs := b.clock.TimeMs()

		b.mu.Lock()
		if b.stopped {
			b.mu.Unlock()
			return nil, Stopped
		}
		// Drain a pending wakeup so only insertions after this scan count.
		select {
		case <-b.newContinuousFrame:
		default:
		}
		b.keyframeRequired = keyframeRequired
		b.latestReturnTimeMs = latestReturnTimeMs
		waitMs := b.findNextFrame(nowMs)
		b.mu.Unlock()

		if waitMs <= 0 {
			break
		}

		timer := time.NewTimer(time.Duration(waitMs) * time.Millisecond)
		select {
		case <-b.newContinuousFrame:
			timer.Stop()
			continue
		case <-b.stopCh:
			timer.Stop()
			return nil, Stopped
		case <-timer.C:
		}
		break
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return nil, Stopped
	}
	if len(b.framesToDecode) > 0 {
		return b.getNextFrame(), FrameFound
	}
	return nil, Timeout
}

// UpdateRtt feeds a round-trip time sample to the jitter estimation.
func (b *FrameBuffer) UpdateRtt(rtt time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jitterEstimator.UpdateRtt(rtt)
}

// SetProtectionMode selects how retransmission delay folds into the jitter
// estimate. Under NackFEC losses are recovered without retransmission so the
// estimate is computed from arrival jitter alone.
func (b *FrameBuffer) SetProtectionMode(mode ProtectionMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.protectionMode = mode
}

// Stop wakes all waiters with Stopped. It is idempotent and terminal: every
// subsequent NextFrame returns Stopped immediately.
func (b *FrameBuffer) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopped = true
	close(b.stopCh)
}

// Clear drops all buffered frames and the decoded history.
func (b *FrameBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearFramesAndHistory()
}

func validReferences(frame *EncodedFrame) bool {
	for i := 0; i < frame.NumReferences; i++ {
		// A reference must point strictly backwards.
		if AheadOrAt(frame.References[i], frame.ID.PictureID) {
			return false
		}
		for j := i + 1; j < frame.NumReferences; j++ {
			if frame.References[i] == frame.References[j] {
				return false
			}
		}
	}
	return !frame.InterLayerPredicted || frame.ID.SpatialLayer > 0
}

func (b *FrameBuffer) getOrCreateEntry(id FrameID) *frameEntry {
	if entry, ok := b.frames.Get(&frameEntry{id: id}); ok {
		return entry
	}
	entry := &frameEntry{id: id}
	b.frames.ReplaceOrInsert(entry)
	return entry
}

func (b *FrameBuffer) getEntry(id FrameID) (*frameEntry, bool) {
	return b.frames.Get(&frameEntry{id: id})
}

// updateFrameInfoWithIncomingFrame counts how many dependencies the frame is
// missing to become continuous and decodable, and registers back-edges so the
// counts can be decremented as dependencies are fulfilled. Returns false when
// the frame depends on a frame older than the last decoded one that was never
// decoded, meaning it can never become decodable.
func (b *FrameBuffer) updateFrameInfoWithIncomingFrame(frame *EncodedFrame, entry *frameEntry) bool {
	lastDecoded := b.history.LastDecodedFrame()

	type dependency struct {
		id         FrameID
		continuous bool
	}
	var unfulfilled []dependency

	for i := 0; i < frame.NumReferences; i++ {
		refID := FrameID{PictureID: frame.References[i], SpatialLayer: frame.ID.SpatialLayer}
		if lastDecoded != nil && refID.lessOrEqual(*lastDecoded) {
			if !b.history.WasDecoded(refID) {
				nowMs := b.clock.TimeMs()
				if b.lastLogNonDecodedMs+logNonDecodedIntervalMs < nowMs {
					b.logger.WithFields(logrus.Fields{
						"pictureId":    frame.ID.PictureID,
						"spatialLayer": frame.ID.SpatialLayer,
					}).Warn("frame depends on a non-decoded frame older than the last decoded frame, dropping")
					b.lastLogNonDecodedMs = nowMs
				}
				return false
			}
			continue
		}
		refContinuous := false
		if refEntry, ok := b.getEntry(refID); ok {
			refContinuous = refEntry.continuous
		}
		unfulfilled = append(unfulfilled, dependency{id: refID, continuous: refContinuous})
	}

	if frame.InterLayerPredicted {
		refID := FrameID{PictureID: frame.ID.PictureID, SpatialLayer: frame.ID.SpatialLayer - 1}
		lowerLayerDecoded := lastDecoded != nil && *lastDecoded == refID
		lowerLayerContinuous := lowerLayerDecoded
		if !lowerLayerContinuous {
			if refEntry, ok := b.getEntry(refID); ok {
				lowerLayerContinuous = refEntry.continuous
			}
		}
		if !lowerLayerContinuous || !lowerLayerDecoded {
			unfulfilled = append(unfulfilled, dependency{id: refID, continuous: lowerLayerContinuous})
		}
	}

	entry.numMissingContinuous = len(unfulfilled)
	entry.numMissingDecodable = len(unfulfilled)

	for _, dep := range unfulfilled {
		if dep.continuous {
			entry.numMissingContinuous--
		}
		depEntry := b.getOrCreateEntry(dep.id)
		depEntry.dependentFrames = append(depEntry.dependentFrames, entry.id)
	}

	return true
}

// propagateContinuity walks the dependents of a newly continuous frame and
// marks every frame whose dependencies are now all continuous. Continuity is
// monotonic, it never reverts.
func (b *FrameBuffer) propagateContinuity(start *frameEntry) {
	queue := []*frameEntry{start}

	for len(queue) > 0 {
		entry := queue[0]
		queue = queue[1:]

		if b.lastContinuousFrame == nil || b.lastContinuousFrame.less(entry.id) {
			id := entry.id
			b.lastContinuousFrame = &id
		}

		for _, depID := range entry.dependentFrames {
			depEntry, ok := b.getEntry(depID)
			if !ok {
				continue
			}
			depEntry.numMissingContinuous--
			if depEntry.numMissingContinuous == 0 && depEntry.frame != nil && !depEntry.continuous {
				depEntry.continuous = true
				queue = append(queue, depEntry)
			}
		}
	}
}

func (b *FrameBuffer) propagateDecodability(entry *frameEntry) {
	for _, depID := range entry.dependentFrames {
		if depEntry, ok := b.getEntry(depID); ok {
			depEntry.numMissingDecodable--
		}
	}
}

// findNextFrame selects the next superframe to hand off and returns how many
// milliseconds the caller should wait for it, bounded by the extraction
// deadline. The selected frames stay in framesToDecode so a frame past its
// render time is still returned when nothing newer is decodable without it.
func (b *FrameBuffer) findNextFrame(nowMs int64) int64 {
	waitMs := b.latestReturnTimeMs - nowMs
	b.framesToDecode = nil

	entries := b.continuousEntries()
	for i, entry := range entries {
		if !entry.continuous || entry.numMissingDecodable > 0 || entry.frame == nil {
			continue
		}
		frame := entry.frame

		if b.keyframeRequired && !frame.IsKeyFrame() {
			continue
		}

		// Never feed the decoder a timestamp behind the last decoded one.
		if lastDecodedTimestamp, ok := b.history.LastDecodedFrameTimestamp(); ok &&
			AheadOf(lastDecodedTimestamp, frame.Timestamp) {
			continue
		}

		// Only ever return all parts of a superframe together.
		superframe := []*frameEntry{entry}
		lastLayerCompleted := frame.LastSpatialLayer
		for j := i + 1; j < len(entries) && !lastLayerCompleted; j++ {
			next := entries[j]
			if next.id.PictureID != entry.id.PictureID || !next.continuous {
				break
			}
			// The next layer may have one undecoded reference, the lower
			// layer of its own superframe.
			allowedUndecodedRefs := 0
			if next.frame != nil && next.frame.InterLayerPredicted {
				allowedUndecodedRefs = 1
			}
			if next.frame == nil || next.numMissingDecodable > allowedUndecodedRefs {
				break
			}
			if next.frame.Timestamp != frame.Timestamp {
				b.logger.WithField("pictureId", entry.id.PictureID).
					Warn("frames in a superframe have different timestamps, skipping")
				break
			}
			superframe = append(superframe, next)
			lastLayerCompleted = next.frame.LastSpatialLayer
		}
		if !lastLayerCompleted {
			continue
		}

		b.framesToDecode = superframe

		if frame.RenderTimeMs == -1 {
			frame.RenderTimeMs = b.timing.RenderTimeMs(frame.Timestamp, nowMs)
		}
		waitMs = b.timing.MaxWaitingTimeMs(frame.RenderTimeMs, nowMs)

		// Prefer a newer decodable frame over one that is already well past
		// its render time; keep this one selected in case none exists.
		if waitMs < -maxAllowedFrameDelayMs {
			continue
		}

		break
	}

	if remaining := b.latestReturnTimeMs - nowMs; waitMs > remaining {
		waitMs = remaining
	}
	if waitMs < 0 {
		waitMs = 0
	}
	return waitMs
}

// continuousEntries returns the buffered entries in decode order, cut off
// after the last continuous frame.
func (b *FrameBuffer) continuousEntries() []*frameEntry {
	if b.lastContinuousFrame == nil {
		return nil
	}
	entries := make([]*frameEntry, 0, b.frames.Len())
	b.frames.Ascend(func(entry *frameEntry) bool {
		if !entry.id.lessOrEqual(*b.lastContinuousFrame) {
			// Layers above the last continuous frame still matter for
			// superframe gathering.
			if entry.id.PictureID != b.lastContinuousFrame.PictureID {
				return false
			}
		}
		entries = append(entries, entry)
		return true
	})
	return entries
}

// getNextFrame extracts the selected superframe, updates the decoded history
// and the jitter estimate, and drops every older undecoded frame.
func (b *FrameBuffer) getNextFrame() *EncodedFrame {
	nowMs := b.clock.TimeMs()
	framesOut := make([]*EncodedFrame, 0, len(b.framesToDecode))

	firstFrame := b.framesToDecode[0].frame
	renderTimeMs := firstFrame.RenderTimeMs
	receiveTimeMs := firstFrame.ReceiveTimeMs

	if b.hasBadRenderTiming(renderTimeMs, nowMs) {
		b.jitterEstimator.Reset()
		b.timing.Reset()
		renderTimeMs = b.timing.RenderTimeMs(firstFrame.Timestamp, nowMs)
	}

	delayedByRetransmission := false
	superframeSize := 0

	for _, entry := range b.framesToDecode {
		frame := entry.frame
		entry.frame = nil

		frame.RenderTimeMs = renderTimeMs

		delayedByRetransmission = delayedByRetransmission || frame.DelayedByRetransmission
		if frame.ReceiveTimeMs > receiveTimeMs {
			receiveTimeMs = frame.ReceiveTimeMs
		}
		superframeSize += frame.Size()

		b.propagateDecodability(entry)
		b.history.InsertDecoded(entry.id, frame.Timestamp)

		// Drop the decoded frame and every older frame it leapfrogged.
		b.eraseUpToAndIncluding(entry.id)

		framesOut = append(framesOut, frame)
	}

	if !delayedByRetransmission {
		if frameDelayMs, ok := b.interFrameDelay.CalculateDelay(firstFrame.Timestamp, receiveTimeMs); ok {
			b.jitterEstimator.UpdateEstimate(frameDelayMs, superframeSize)
		}
		rttMult := 1.0
		if b.protectionMode == ProtectionNackFEC {
			rttMult = 0.0
		}
		b.timing.SetJitterDelay(b.jitterEstimator.GetJitterEstimateMs(rttMult))
		b.timing.UpdateCurrentDelay(renderTimeMs, nowMs)
	} else {
		b.jitterEstimator.FrameNacked()
	}

	b.updateTimingsForStats()
	b.framesToDecode = nil

	if len(framesOut) == 1 {
		return framesOut[0]
	}
	return combineFrames(framesOut)
}

func (b *FrameBuffer) eraseUpToAndIncluding(id FrameID) {
	for {
		oldest, ok := b.frames.Min()
		if !ok || !oldest.id.lessOrEqual(id) {
			return
		}
		b.frames.DeleteMin()
	}
}

func (b *FrameBuffer) hasBadRenderTiming(renderTimeMs, nowMs int64) bool {
	if renderTimeMs < 0 {
		return true
	}
	delta := renderTimeMs - nowMs
	if delta < -maxVideoDelayMs || delta > maxVideoDelayMs {
		b.logger.WithField("renderTimeMs", renderTimeMs).
			Warn("frame render time is out of bounds, resetting timing")
		return true
	}
	if b.timing.TargetVideoDelayMs() > maxVideoDelayMs {
		b.logger.Warn("target video delay is too high, resetting timing")
		return true
	}
	return false
}

func (b *FrameBuffer) updateTimingsForStats() {
	if b.statsCallback == nil {
		return
	}
	if info, ok := b.timing.Timings(); ok {
		b.statsCallback.OnFrameBufferTimingsUpdated(info)
	}
	if info, ok := b.timing.GetTimingFrameInfo(); ok {
		b.statsCallback.OnTimingFrameInfoUpdated(info)
	}
}

func (b *FrameBuffer) clearFramesAndHistory() {
	b.frames.Clear(false)
	b.framesToDecode = nil
	b.lastContinuousFrame = nil
	b.history.Clear()
}

// combineFrames merges the layers of one superframe into a single logical
// output: payloads concatenated in layer order, the reported layer index is
// the last layer's, and the remaining metadata comes from the base layer.
func combineFrames(frames []*EncodedFrame) *EncodedFrame {
	first := frames[0]
	last := frames[len(frames)-1]

	totalSize := 0
	for _, frame := range frames {
		totalSize += frame.Size()
	}

	combined := *first
	combined.ID.SpatialLayer = last.ID.SpatialLayer
	combined.LastSpatialLayer = last.LastSpatialLayer
	combined.Payload = make([]byte, 0, totalSize)
	combined.PacketInfos = nil
	combined.spatialLayerSizes = nil

	for _, frame := range frames {
		combined.Payload = append(combined.Payload, frame.Payload...)
		combined.setSpatialLayerFrameSize(frame.ID.SpatialLayer, frame.Size())
		combined.PacketInfos = append(combined.PacketInfos, frame.PacketInfos...)
	}

	return &combined
}
