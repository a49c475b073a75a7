package tilegraph

import "github.com/sslab-gatech/tile-graph/internal/tilegraph/kernel"

// VertexApplier invokes the kernel's apply step over its assigned stripe of
// vertex ids once all reducers have finished the current iteration (spec
// §4.7). It does not synchronise with its peers itself: Runtime.runAppliers
// runs every stripe's applier and waits for all of them.
type VertexApplier struct {
	kernel   kernel.Kernel[uint64]
	cfg      kernel.Config
	vertices *VertexState
	start    int
	end      int
}

// NewVertexApplier constructs an applier responsible for vertex ids in
// [start, end).
func NewVertexApplier(kern kernel.Kernel[uint64], cfg kernel.Config, vertices *VertexState, start, end int) *VertexApplier {
	return &VertexApplier{kernel: kern, cfg: cfg, vertices: vertices, start: start, end: end}
}

// Apply runs the kernel's Apply over this applier's stripe for the given
// iteration number.
func (a *VertexApplier) Apply(iteration int) {
	for id := a.start; id < a.end; id++ {
		gid := uint64(id)
		a.vertices.Next[gid] = a.kernel.Apply(a.vertices.Next[gid], gid, a.vertices.Degrees[gid], a.cfg, iteration)
	}
}

// ApplierStripes splits [0, count) into n contiguous stripes for n appliers.
func ApplierStripes(count, n int) [][2]int {
	if n < 1 {
		n = 1
	}
	stripes := make([][2]int, n)
	base := count / n
	rem := count % n
	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		stripes[i] = [2]int{start, start + size}
		start += size
	}
	return stripes
}
