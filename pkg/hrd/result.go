package hrd

import "strconv"

// Result is the outcome of one simulation: either the peak buffer occupancy
// in bits, or Infeasible when the channel cannot deliver the first frame by
// its removal deadline.
//
// The zero value is Infeasible. Use Bits to read the occupancy so that both
// outcomes are handled:
//
//	if bits, ok := res.Bits(); ok {
//	    fmt.Printf("peak buffer: %d bits\n", bits)
//	} else {
//	    fmt.Println("infeasible")
//	}
type Result struct {
	bits     int64
	feasible bool
}

// Infeasible is the result of a schedule that cannot start in time.
var Infeasible = Result{}

// Occupancy returns a feasible result with the given peak occupancy in bits.
func Occupancy(bits int64) Result {
	return Result{bits: bits, feasible: true}
}

// Bits returns the peak occupancy and true, or 0 and false when infeasible.
func (r Result) Bits() (int64, bool) {
	return r.bits, r.feasible
}

// Feasible reports whether the result carries an occupancy.
func (r Result) Feasible() bool {
	return r.feasible
}

// Fits reports whether the result is feasible with an occupancy of at most
// buffer bits.
func (r Result) Fits(buffer int64) bool {
	return r.feasible && r.bits <= buffer
}

// String returns the occupancy in bits or "Infeasible".
func (r Result) String() string {
	if !r.feasible {
		return "Infeasible"
	}
	return strconv.FormatInt(r.bits, 10) + " bits"
}
