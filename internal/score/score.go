// Package score turns answer events into points. The decay function is pure;
// the service around it persists the effect and publishes score updates.
package score

import (
	"github.com/shopspring/decimal"
)

const (
	maxPoints   = 1000
	decayPerSec = 100
	decayWindow = 10.0
)

// Points computes the score for one answer: a wrong answer is worth nothing,
// a correct one decays linearly from 1000 at t=0 to 0 at t=10s and stays 0
// beyond. Elapsed time below zero (clock skew) counts as zero, so the result
// is never negative.
func Points(correct bool, elapsedSeconds float64) int64 {
	if !correct {
		return 0
	}

	// The comparison is written to also route NaN into the clamp.
	if !(elapsedSeconds >= 0) {
		elapsedSeconds = 0
	}
	if elapsedSeconds >= decayWindow {
		return 0
	}

	return decimal.NewFromInt(maxPoints).
		Sub(decimal.NewFromFloat(elapsedSeconds).Mul(decimal.NewFromInt(decayPerSec))).
		Round(0).
		IntPart()
}
