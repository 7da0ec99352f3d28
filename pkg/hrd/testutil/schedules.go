// Package testutil provides synthetic frame-size sequences for testing the
// hrd package.
//
// Note: This package imports hrd, so tests inside package hrd cannot use it.
// Those tests build their schedules inline; property tests live in the
// external hrd_test package.
package testutil

import (
	"math/rand"

	"github.com/martinpickett/Plex-Tools/pkg/hrd"
)

// Uniform generates count frames of identical size.
func Uniform(count int, size int64) []int64 {
	sizes := make([]int64, count)
	for i := range sizes {
		sizes[i] = size
	}
	return sizes
}

// GOP generates a closed-GOP pattern: one intra frame of iSize bits every
// gopLen frames, predicted frames of pSize bits in between.
//
// Parameters:
//   - count: Number of frames to generate
//   - gopLen: Distance between intra frames (1 means all intra)
//   - iSize: Intra frame size in bits
//   - pSize: Predicted frame size in bits
func GOP(count, gopLen int, iSize, pSize int64) []int64 {
	if gopLen < 1 {
		gopLen = 1
	}
	sizes := make([]int64, count)
	for i := range sizes {
		if i%gopLen == 0 {
			sizes[i] = iSize
		} else {
			sizes[i] = pSize
		}
	}
	return sizes
}

// Ramp generates frames whose size grows linearly from first to last.
// Useful for streams whose complexity builds up, where the buffer peak lands
// late in the schedule.
func Ramp(count int, first, last int64) []int64 {
	sizes := make([]int64, count)
	if count == 1 {
		sizes[0] = first
		return sizes
	}
	step := float64(last-first) / float64(count-1)
	for i := range sizes {
		sizes[i] = first + int64(step*float64(i))
	}
	return sizes
}

// SceneCut generates steady frames of base bits with a burst of burstLen
// frames of burst bits starting at frame at. Models a hard cut into a
// high-motion scene.
func SceneCut(count int, base int64, at, burstLen int, burst int64) []int64 {
	sizes := Uniform(count, base)
	for i := at; i < at+burstLen && i < count; i++ {
		sizes[i] = burst
	}
	return sizes
}

// Random generates count frames with sizes drawn uniformly from [lo, hi]
// using a fixed seed, so the sequence is reproducible.
func Random(seed int64, count int, lo, hi int64) []int64 {
	rng := rand.New(rand.NewSource(seed))
	sizes := make([]int64, count)
	for i := range sizes {
		sizes[i] = lo + rng.Int63n(hi-lo+1)
	}
	return sizes
}

// Schedule builds an hrd.Schedule from sizes and panics on invalid input.
// Intended for tests with known-good parameters.
func Schedule(sizes []int64, fps, delay float64) *hrd.Schedule {
	s, err := hrd.NewSchedule(sizes, fps, delay)
	if err != nil {
		panic(err)
	}
	return s
}
