package kernel

import (
	"math"
	"strconv"
)

// unreached is the neutral value of BFS (and CC), math.MaxUint64, so it
// compares greater than any finite candidate without a sentinel branch. SSSP
// does not use it: its float64 cells hold +Inf instead.
const unreached uint64 = math.MaxUint64

// BFS implements Kernel[uint64]: vertex values are hop-count distances from
// cfg.SourceID, stored directly as uint64 (no bit-cast needed, unlike
// PageRank's float64 cells).
type BFS struct{}

func NewBFS() *BFS { return &BFS{} }

func (k *BFS) Name() string { return "bfs" }

func (k *BFS) NeedActiveSource() bool { return true }

func (k *BFS) Neutral() uint64 { return unreached }

func (k *BFS) InitVertices(current []uint64, cfg Config) {
	for i := range current {
		current[i] = unreached
	}
	if cfg.SourceID < uint64(len(current)) {
		current[cfg.SourceID] = 0
	}
}

func (k *BFS) PullGather(srcVal uint64, tgtAccum *uint64, srcID, tgtID uint64, srcDeg, tgtDeg Degree, weight float32, activeTgtNext func(uint64), cfg Config) {
	if srcVal == unreached {
		return
	}
	candidate := srcVal + 1
	if candidate < *tgtAccum {
		*tgtAccum = candidate
		if activeTgtNext != nil {
			activeTgtNext(tgtID)
		}
	}
}

func (k *BFS) Gather(dst *uint64, follower uint64) {
	if follower < *dst {
		*dst = follower
	}
}

func (k *BFS) Reduce(next uint64, incoming uint64, id uint64, deg Degree, cfg Config) (uint64, bool) {
	if incoming < next {
		return incoming, true
	}
	return next, false
}

func (k *BFS) Apply(next uint64, id uint64, deg Degree, cfg Config, iteration int) uint64 {
	return next
}

func (k *BFS) ResetVertices(cfg Config, iteration int) bool { return true }

func (k *BFS) ResetVerticesTileProcessor(tgtCurrent uint64, tgtGlobalID uint64, cfg Config) uint64 {
	return tgtCurrent
}

func (k *BFS) PreProcessingPerRound(cfg Config, nextIteration int) {}

// FormatValue renders a hop-count distance, or "unreached" for vertices the
// source never reached rather than math.MaxUint64's raw digits.
func (k *BFS) FormatValue(v uint64) string {
	if v == unreached {
		return "unreached"
	}
	return strconv.FormatUint(v, 10)
}
