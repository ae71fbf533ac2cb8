package gate

import (
	"math"
	"strconv"
)

// Occupancy is the binary slot state derived from the proximity feature
type Occupancy uint8

const (
	Vacant   Occupancy = 0
	Occupied Occupancy = 1
)

// String renders the wire form, "0" or "1"
func (o Occupancy) String() string {
	return strconv.Itoa(int(o))
}

// DetermineOccupancy returns Occupied iff rawDistanceMM < thresholdMM.
// Comparison follows IEEE semantics, so a NaN distance is Vacant; callers
// that must not flip on sensor dropouts check ValidDistance first.
func DetermineOccupancy(rawDistanceMM, thresholdMM float64) Occupancy {
	if rawDistanceMM < thresholdMM {
		return Occupied
	}
	return Vacant
}

// ValidDistance reports whether a reading is a usable number
func ValidDistance(rawDistanceMM float64) bool {
	return !math.IsNaN(rawDistanceMM)
}
