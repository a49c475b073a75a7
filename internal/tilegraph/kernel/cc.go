package kernel

import "strconv"

// CC implements Kernel[uint64] for connected components via label
// propagation: each vertex starts labeled with its own global id and adopts
// the minimum label seen across its neighborhood until convergence.
type CC struct{}

func NewCC() *CC { return &CC{} }

func (k *CC) Name() string { return "cc" }

func (k *CC) NeedActiveSource() bool { return false }

func (k *CC) Neutral() uint64 { return unreached }

func (k *CC) InitVertices(current []uint64, cfg Config) {
	for i := range current {
		current[i] = uint64(i)
	}
}

func (k *CC) PullGather(srcVal uint64, tgtAccum *uint64, srcID, tgtID uint64, srcDeg, tgtDeg Degree, weight float32, activeTgtNext func(uint64), cfg Config) {
	if srcVal < *tgtAccum {
		*tgtAccum = srcVal
		if activeTgtNext != nil {
			activeTgtNext(tgtID)
		}
	}
}

func (k *CC) Gather(dst *uint64, follower uint64) {
	if follower < *dst {
		*dst = follower
	}
}

func (k *CC) Reduce(next uint64, incoming uint64, id uint64, deg Degree, cfg Config) (uint64, bool) {
	if incoming < next {
		return incoming, true
	}
	return next, false
}

func (k *CC) Apply(next uint64, id uint64, deg Degree, cfg Config, iteration int) uint64 {
	return next
}

func (k *CC) ResetVertices(cfg Config, iteration int) bool { return true }

func (k *CC) ResetVerticesTileProcessor(tgtCurrent uint64, tgtGlobalID uint64, cfg Config) uint64 {
	return tgtCurrent
}

func (k *CC) PreProcessingPerRound(cfg Config, nextIteration int) {}

// FormatValue renders a component label (every vertex starts labeled with
// its own id, so unreached should never actually surface here).
func (k *CC) FormatValue(v uint64) string {
	if v == unreached {
		return "unreached"
	}
	return strconv.FormatUint(v, 10)
}
