package hrd

import "math"

// UnitBase is the decimal multiplier between bits, kilobits and megabits.
const UnitBase = 1000

// BitsPerNominalMegabyte converts a nominal Plex buffer size in megabytes
// into bits. Plex does not use 8,000,000 or 8,388,608 bits per megabyte for
// its client buffer settings; this is the value the required-bitrate table
// has always been computed with.
const BitsPerNominalMegabyte = 7_200_000

// PlexBufferSizesMB are the nominal client buffer sizes offered by Plex,
// in megabytes.
var PlexBufferSizesMB = []int{5, 10, 25, 50, 75, 100, 250, 500}

// MenuTargets returns the Plex buffer menu converted to bits, in menu order.
func MenuTargets() []int64 {
	targets := make([]int64, len(PlexBufferSizesMB))
	for i, mb := range PlexBufferSizesMB {
		targets[i] = int64(mb) * BitsPerNominalMegabyte
	}
	return targets
}

// KilobitsToBits converts kilobits (or kb/s) to bits (or b/s).
func KilobitsToBits(kb float64) float64 {
	return kb * UnitBase
}

// BitsToKilobits converts bits (or b/s) to kilobits (or kb/s).
func BitsToKilobits(bits float64) float64 {
	return bits / UnitBase
}

// BitsToMegabytes converts bits to decimal megabytes.
func BitsToMegabytes(bits int64) float64 {
	return float64(bits) / (8 * UnitBase * UnitBase)
}

// CeilKbps rounds a rate in b/s up to whole kb/s.
func CeilKbps(rate float64) int64 {
	return int64(math.Ceil(rate / UnitBase))
}
