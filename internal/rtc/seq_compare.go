package rtc

import (
	"github.com/136060150/webrtc/internal/util"
	"golang.org/x/exp/constraints"
)

// Picture ids and RTP timestamps are fixed-width wrapping counters, so all
// ordering decisions go through these helpers instead of plain comparisons.

func IsSeqLowerThan[T constraints.Unsigned](lhs, rhs T, max ...T) bool {
	var maxValue T
	if len(max) > 0 {
		maxValue = max[0]
	} else {
		maxValue = util.MaxOf[T]()
	}

	return ((rhs > lhs) && (rhs-lhs <= maxValue/2)) ||
		((lhs > rhs) && (lhs-rhs > maxValue/2))
}

func IsSeqHigherThan[T constraints.Unsigned](lhs, rhs T, max ...T) bool {
	var maxValue T
	if len(max) > 0 {
		maxValue = max[0]
	} else {
		maxValue = util.MaxOf[T]()
	}

	return ((lhs > rhs) && (lhs-rhs <= maxValue/2)) ||
		((rhs > lhs) && (rhs-lhs > maxValue/2))
}

// AheadOf reports whether lhs is strictly newer than rhs.
func AheadOf[T constraints.Unsigned](lhs, rhs T) bool {
	return IsSeqHigherThan(lhs, rhs)
}

// AheadOrAt reports whether lhs is newer than or equal to rhs.
func AheadOrAt[T constraints.Unsigned](lhs, rhs T) bool {
	return lhs == rhs || IsSeqHigherThan(lhs, rhs)
}

// ForwardDiff returns the wrap-aware distance from lhs forward to rhs.
func ForwardDiff[T constraints.Unsigned](lhs, rhs T) T {
	return rhs - lhs
}

// MinDiff returns the smallest wrap-aware distance between lhs and rhs.
func MinDiff[T constraints.Unsigned](lhs, rhs T) T {
	diff := lhs - rhs
	if AheadOf(rhs, lhs) {
		diff = rhs - lhs
	}
	return diff
}
