package hrd

import "sync"

// scratch holds the per-call working set of one simulation: removal times,
// corrected arrival windows and the signed timeline. A scratch is owned by a
// single Simulate call between getScratch and putScratch.
type scratch struct {
	removal  []float64
	start    []float64
	end      []float64
	timeline []int64
}

// scratchPool is a sync.Pool for reusing simulation buffers.
// The rate solver runs tens of simulations over the same schedule, so reuse
// keeps the search from allocating four slices per iteration.
var scratchPool = sync.Pool{
	New: func() any {
		return &scratch{}
	},
}

// getScratch retrieves a scratch sized for n frames.
// The timeline is empty; the float slices have length n with stale contents.
func getScratch(n int) *scratch {
	sc := scratchPool.Get().(*scratch)
	sc.removal = resize(sc.removal, n)
	sc.start = resize(sc.start, n)
	sc.end = resize(sc.end, n)
	if cap(sc.timeline) < 3*n {
		sc.timeline = make([]int64, 0, 3*n)
	}
	sc.timeline = sc.timeline[:0]
	return sc
}

// putScratch returns a scratch to the pool.
func putScratch(sc *scratch) {
	sc.timeline = sc.timeline[:0]
	scratchPool.Put(sc)
}

func resize(buf []float64, n int) []float64 {
	if cap(buf) < n {
		return make([]float64, n)
	}
	return buf[:n]
}
