package kernel

import (
	"math"
	"strconv"
)

// SSSP implements Kernel[uint64] for single-source shortest paths: vertex
// values are float64 distances bit-cast into the uint64 cell, same
// convention as PageRank, since both kernels need fractional arithmetic.
type SSSP struct{}

func NewSSSP() *SSSP { return &SSSP{} }

func (k *SSSP) Name() string { return "sssp" }

func (k *SSSP) NeedActiveSource() bool { return true }

var posInf = math.Inf(1)

func (k *SSSP) Neutral() uint64 { return U64(posInf) }

func (k *SSSP) InitVertices(current []uint64, cfg Config) {
	for i := range current {
		current[i] = U64(posInf)
	}
	if cfg.SourceID < uint64(len(current)) {
		current[cfg.SourceID] = U64(0)
	}
}

func (k *SSSP) PullGather(srcVal uint64, tgtAccum *uint64, srcID, tgtID uint64, srcDeg, tgtDeg Degree, weight float32, activeTgtNext func(uint64), cfg Config) {
	d := F64(srcVal)
	if math.IsInf(d, 1) {
		return
	}
	w := float64(weight)
	if w <= 0 {
		w = 1.0
	}
	candidate := d + w
	if candidate < F64(*tgtAccum) {
		*tgtAccum = U64(candidate)
		if activeTgtNext != nil {
			activeTgtNext(tgtID)
		}
	}
}

func (k *SSSP) Gather(dst *uint64, follower uint64) {
	if F64(follower) < F64(*dst) {
		*dst = follower
	}
}

func (k *SSSP) Reduce(next uint64, incoming uint64, id uint64, deg Degree, cfg Config) (uint64, bool) {
	if F64(incoming) < F64(next) {
		return incoming, true
	}
	return next, false
}

func (k *SSSP) Apply(next uint64, id uint64, deg Degree, cfg Config, iteration int) uint64 {
	return next
}

func (k *SSSP) ResetVertices(cfg Config, iteration int) bool { return true }

func (k *SSSP) ResetVerticesTileProcessor(tgtCurrent uint64, tgtGlobalID uint64, cfg Config) uint64 {
	return tgtCurrent
}

func (k *SSSP) PreProcessingPerRound(cfg Config, nextIteration int) {}

// FormatValue decodes the bit-cast float64 distance, rendering +Inf as
// "unreached" rather than its bit pattern's raw digits.
func (k *SSSP) FormatValue(v uint64) string {
	d := F64(v)
	if math.IsInf(d, 1) {
		return "unreached"
	}
	return strconv.FormatFloat(d, 'g', -1, 64)
}
