package tilegraph

import "github.com/sslab-gatech/tile-graph/internal/tilegraph/kernel"

// GlobalReducer merges incoming ProcessedIndexBlocks (ReducerGlobalReducer
// mode only) into the global next-state array and active-next bitmap (spec
// §4.6). It drains its input queue until the shutdown sentinel.
type GlobalReducer struct {
	kernel   kernel.Kernel[uint64]
	cfg      kernel.Config
	vertices *VertexState
	in       *Queue[*ProcessedIndexBlock]
}

// NewGlobalReducer constructs a GlobalReducer reading from in.
func NewGlobalReducer(kern kernel.Kernel[uint64], cfg kernel.Config, vertices *VertexState, in *Queue[*ProcessedIndexBlock]) *GlobalReducer {
	return &GlobalReducer{kernel: kern, cfg: cfg, vertices: vertices, in: in}
}

// Run drains the input queue, folding every (global_id, value) pair into
// next[] via kernel.Reduce and setting active_next on change, until it
// observes the shutdown sentinel (spec §4.6's "on shutdown: drains input;
// emits no output").
func (g *GlobalReducer) Run() {
	for {
		pib, ok := g.in.Recv()
		if !ok || pib.Shutdown {
			return
		}
		for i, gid := range pib.GlobalIDs {
			next, changed := g.kernel.Reduce(g.vertices.Next[gid], pib.Values[i], gid, g.vertices.Degrees[gid], g.cfg)
			g.vertices.Next[gid] = next
			if changed {
				g.vertices.ActiveNext.Set(int(gid))
			}
		}
	}
}
