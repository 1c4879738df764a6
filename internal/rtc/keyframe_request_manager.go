package rtc

import (
	"time"

	"github.com/zhangyunhao116/skipmap"
)

// KeyFrameRetransmissionWaitTime is how long a requested key frame may take
// to arrive before the request is repeated once.
const KeyFrameRetransmissionWaitTime = 1000 * time.Millisecond

type PendingKeyFrameInfoListener interface {
	OnKeyFrameRequestTimeout(pendingKeyFrameInfo *PendingKeyFrameInfo)
}

type KeyFrameRequestDelayerListener interface {
	OnKeyFrameDelayTimeout(keyFrameRequestDelayer *KeyFrameRequestDelayer)
}

type KeyFrameRequestManagerListener interface {
	OnKeyFrameNeeded(keyFrameRequestManager *KeyFrameRequestManager, ssrc uint32)
}

// PendingKeyFrameInfo tracks one outstanding key frame request and re-fires
// once if the key frame does not arrive within the retransmission wait.
type PendingKeyFrameInfo struct {
	listener       PendingKeyFrameInfoListener
	ssrc           uint32
	timer          *SafeTimer
	timerDuration  time.Duration
	retryOnTimeout bool
	retried        bool
}

func NewPendingKeyFrameInfo(listener PendingKeyFrameInfoListener, ssrc uint32, timeout time.Duration) *PendingKeyFrameInfo {
	pkfi := &PendingKeyFrameInfo{
		listener:       listener,
		ssrc:           ssrc,
		timerDuration:  timeout,
		retryOnTimeout: true,
	}
	pkfi.timer = NewSafeTimer(timeout, func() {
		pkfi.listener.OnKeyFrameRequestTimeout(pkfi)
	})
	return pkfi
}

func (pkfi *PendingKeyFrameInfo) GetSsrc() uint32 {
	return pkfi.ssrc
}

func (pkfi *PendingKeyFrameInfo) SetRetryOnTimeout(retry bool) {
	pkfi.retryOnTimeout = retry
}

func (pkfi *PendingKeyFrameInfo) GetRetryOnTimeout() bool {
	return pkfi.retryOnTimeout
}

func (pkfi *PendingKeyFrameInfo) SetRetried(retried bool) {
	pkfi.retried = retried
}

func (pkfi *PendingKeyFrameInfo) GetRetried() bool {
	return pkfi.retried
}

func (pkfi *PendingKeyFrameInfo) Restart() {
	pkfi.timer.Reset(pkfi.timerDuration)
}

func (pkfi *PendingKeyFrameInfo) Stop() {
	pkfi.timer.Close()
}

// KeyFrameRequestDelayer postpones key frame requests for one ssrc so a burst
// of triggers collapses into a single request once the delay expires.
type KeyFrameRequestDelayer struct {
	listener          KeyFrameRequestDelayerListener
	ssrc              uint32
	timer             *SafeTimer
	keyFrameRequested bool
}

func NewKeyFrameRequestDelayer(listener KeyFrameRequestDelayerListener, ssrc uint32, delay time.Duration) *KeyFrameRequestDelayer {
	kfrd := &KeyFrameRequestDelayer{
		listener: listener,
		ssrc:     ssrc,
	}
	kfrd.timer = NewSafeTimer(delay, func() {
		kfrd.listener.OnKeyFrameDelayTimeout(kfrd)
	})
	return kfrd
}

func (kfrd *KeyFrameRequestDelayer) GetSsrc() uint32 {
	return kfrd.ssrc
}

func (kfrd *KeyFrameRequestDelayer) GetKeyFrameRequested() bool {
	return kfrd.keyFrameRequested
}

func (kfrd *KeyFrameRequestDelayer) SetKeyFrameRequested(flag bool) {
	kfrd.keyFrameRequested = flag
}

func (kfrd *KeyFrameRequestDelayer) Stop() {
	kfrd.timer.Close()
}

// KeyFrameRequestManager tracks per-ssrc pending key frame requests. The
// receive loop asks it for a recovery key frame after sustained loss; the
// listener performs the actual PLI/FIR signalling.
type KeyFrameRequestManager struct {
	listener                      KeyFrameRequestManagerListener
	keyFrameRequestDelay          time.Duration
	keyFrameRetransmissionWait    time.Duration
	mapSsrcPendingKeyFrameInfo    *skipmap.Uint32Map[*PendingKeyFrameInfo]
	mapSsrcKeyFrameRequestDelayer *skipmap.Uint32Map[*KeyFrameRequestDelayer]
}

func NewKeyFrameRequestManager(listener KeyFrameRequestManagerListener, keyFrameRequestDelay time.Duration, options ...func(*KeyFrameRequestManager)) *KeyFrameRequestManager {
	km := &KeyFrameRequestManager{
		listener:                      listener,
		keyFrameRequestDelay:          keyFrameRequestDelay,
		keyFrameRetransmissionWait:    KeyFrameRetransmissionWaitTime,
		mapSsrcPendingKeyFrameInfo:    skipmap.NewUint32[*PendingKeyFrameInfo](),
		mapSsrcKeyFrameRequestDelayer: skipmap.NewUint32[*KeyFrameRequestDelayer](),
	}
	for _, option := range options {
		option(km)
	}
	return km
}

func (kfrm *KeyFrameRequestManager) KeyFrameNeeded(ssrc uint32) {
	if kfrm.keyFrameRequestDelay > 0 {
		if kfrd, found := kfrm.mapSsrcKeyFrameRequestDelayer.Load(ssrc); found {
			// A delayer is running, flag the request and wait it out.
			kfrd.SetKeyFrameRequested(true)
			return
		}
		kfrm.mapSsrcKeyFrameRequestDelayer.Store(ssrc, NewKeyFrameRequestDelayer(kfrm, ssrc, kfrm.keyFrameRequestDelay))
	}

	if pkfi, found := kfrm.mapSsrcPendingKeyFrameInfo.Load(ssrc); found {
		// Re-request the key frame if not received on time.
		pkfi.SetRetryOnTimeout(true)
		return
	}

	kfrm.mapSsrcPendingKeyFrameInfo.Store(ssrc, NewPendingKeyFrameInfo(kfrm, ssrc, kfrm.keyFrameRetransmissionWait))
	kfrm.listener.OnKeyFrameNeeded(kfrm, ssrc)
}

func (kfrm *KeyFrameRequestManager) ForceKeyFrameNeeded(ssrc uint32) {
	if kfrm.keyFrameRequestDelay > 0 {
		if kfrd, found := kfrm.mapSsrcKeyFrameRequestDelayer.LoadAndDelete(ssrc); found {
			kfrd.Stop()
		}
		kfrm.mapSsrcKeyFrameRequestDelayer.Store(ssrc, NewKeyFrameRequestDelayer(kfrm, ssrc, kfrm.keyFrameRequestDelay))
	}

	if pkfi, found := kfrm.mapSsrcPendingKeyFrameInfo.Load(ssrc); found {
		pkfi.SetRetryOnTimeout(true)
		pkfi.SetRetried(false)
		pkfi.Restart()
	} else {
		kfrm.mapSsrcPendingKeyFrameInfo.Store(ssrc, NewPendingKeyFrameInfo(kfrm, ssrc, kfrm.keyFrameRetransmissionWait))
	}

	kfrm.listener.OnKeyFrameNeeded(kfrm, ssrc)
}

func (kfrm *KeyFrameRequestManager) KeyFrameReceived(ssrc uint32) {
	if pkfi, found := kfrm.mapSsrcPendingKeyFrameInfo.LoadAndDelete(ssrc); found {
		pkfi.Stop()
	}
}

func (kfrm *KeyFrameRequestManager) OnKeyFrameRequestTimeout(pkfi *PendingKeyFrameInfo) {
	pkfi, found := kfrm.mapSsrcPendingKeyFrameInfo.Load(pkfi.GetSsrc())
	if !found {
		return
	}

	if !pkfi.GetRetryOnTimeout() || pkfi.GetRetried() {
		pkfi.Stop()
		kfrm.mapSsrcPendingKeyFrameInfo.Delete(pkfi.GetSsrc())
		return
	}

	// Best effort in case the PLI/FIR was lost. Retry at most once per
	// pending request, even if a delayed request re-arms it meanwhile.
	pkfi.SetRetried(true)
	pkfi.Restart()
	kfrm.listener.OnKeyFrameNeeded(kfrm, pkfi.GetSsrc())
}

func (kfrm *KeyFrameRequestManager) OnKeyFrameDelayTimeout(kfrd *KeyFrameRequestDelayer) {
	kfrd, found := kfrm.mapSsrcKeyFrameRequestDelayer.LoadAndDelete(kfrd.GetSsrc())
	if !found {
		return
	}

	ssrc := kfrd.GetSsrc()
	keyFrameRequested := kfrd.GetKeyFrameRequested()

	kfrd.Stop()

	// Ask for a new key frame as normal if needed.
	if keyFrameRequested {
		kfrm.KeyFrameNeeded(ssrc)
	}
}

func (kfrm *KeyFrameRequestManager) Stop() {
	kfrm.mapSsrcPendingKeyFrameInfo.Range(func(key uint32, value *PendingKeyFrameInfo) bool {
		value.Stop()
		return true
	})
	kfrm.mapSsrcKeyFrameRequestDelayer.Range(func(key uint32, value *KeyFrameRequestDelayer) bool {
		value.Stop()
		return true
	})
}
