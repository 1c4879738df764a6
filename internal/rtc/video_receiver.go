package rtc

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// maxWaitForFrame bounds one extraction attempt in steady state.
	maxWaitForFrame = 3000 * time.Millisecond
	// maxWaitForKeyFrame bounds one extraction attempt while recovering, so
	// repeated key frame requests go out quickly under sustained loss.
	maxWaitForKeyFrame = 200 * time.Millisecond
)

// VideoReceiver drives the decode loop: it pulls the next due frame from the
// frame buffer, submits it to the decoder and falls back to key-frame-only
// extraction with recovery requests after sustained loss or a decode failure.
type VideoReceiver struct {
	clock           Clock
	buffer          *FrameBuffer
	decoder         *GenericDecoder
	keyFrameManager *KeyFrameRequestManager
	ssrc            uint32
	logger          *logrus.Entry

	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewVideoReceiver(clock Clock, buffer *FrameBuffer, decoder *GenericDecoder, keyFrameManager *KeyFrameRequestManager, ssrc uint32) *VideoReceiver {
	return &VideoReceiver{
		clock:           clock,
		buffer:          buffer,
		decoder:         decoder,
		keyFrameManager: keyFrameManager,
		ssrc:            ssrc,
		logger:          logrus.WithField("component", "VideoReceiver"),
	}
}

// Start launches the decode loop. Decoding begins at the first key frame.
func (r *VideoReceiver) Start() {
	r.wg.Add(1)
	go r.decodeLoop()
}

// Stop terminates the decode loop, unblocking a pending extraction, and waits
// for it to exit. Idempotent.
func (r *VideoReceiver) Stop() {
	r.stopOnce.Do(func() {
		r.buffer.Stop()
		r.wg.Wait()
		r.keyFrameManager.Stop()
	})
}

func (r *VideoReceiver) decodeLoop() {
	defer r.wg.Done()

	keyframeRequired := true
	for {
		maxWait := maxWaitForFrame
		if keyframeRequired {
			maxWait = maxWaitForKeyFrame
		}

		frame, reason := r.buffer.NextFrame(maxWait, keyframeRequired)
		switch reason {
		case Stopped:
			return

		case Timeout:
			r.logger.WithField("keyframeRequired", keyframeRequired).
				Debug("no decodable frame within wait budget")
			if keyframeRequired {
				r.keyFrameManager.KeyFrameNeeded(r.ssrc)
			}

		case FrameFound:
			if frame.IsKeyFrame() {
				keyframeRequired = false
				r.keyFrameManager.KeyFrameReceived(r.ssrc)
			}
			if err := r.decoder.Decode(frame, r.clock.TimeMs()); err != nil {
				r.logger.WithError(err).Warn("decode failed, requesting key frame")
				keyframeRequired = true
				r.keyFrameManager.ForceKeyFrameNeeded(r.ssrc)
			}
		}
	}
}
