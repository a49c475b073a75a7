// Package kernel defines the capability-trait interface algorithm
// implementations satisfy, and the four concrete kernels (pagerank, bfs, cc,
// sssp) selected by the engine's --algorithm flag.
//
// The kernel is chosen once at startup by Lookup, and the pipeline holds it
// as a Kernel[uint64] interface value: every kernel call, including the
// per-edge PullGather in the inner loop, is a dynamic interface call. The
// pipeline is not specialised per kernel at compile time.
package kernel

// Degree holds the in/out degree pair stored per vertex.
type Degree struct {
	In  uint32
	Out uint32
}

// Config carries algorithm parameters resolved from CLI flags (e.g. a BFS/SSSP
// source vertex, PageRank's damping factor). Kernels read the fields they
// need directly.
type Config struct {
	Algorithm   string
	SourceID    uint64
	Damping     float64
	VertexCount uint64
}

// Kernel is the per-algorithm capability trait. V is the vertex value type;
// it must be small and copyable since it is read and written by value across
// the pipeline's hot path.
type Kernel[V any] interface {
	// Name returns the --algorithm value this kernel implements.
	Name() string

	// NeedActiveSource reports whether TileProcessor should skip edges whose
	// source vertex is not active in the current iteration.
	NeedActiveSource() bool

	// Neutral returns the value a vertex holds before any edge has touched it.
	Neutral() V

	// InitVertices populates current[] before iteration 0.
	InitVertices(current []V, cfg Config)

	// PullGather reads the source value and accumulates into the private
	// target accumulator, optionally touching active-next and degrees.
	// weight is 1.0 for unweighted graphs.
	PullGather(srcVal V, tgtAccum *V, srcID, tgtID uint64, srcDeg, tgtDeg Degree, weight float32, activeTgtNext func(uint64), cfg Config)

	// Gather combines a follower's partial accumulator into the leader's.
	Gather(dst *V, follower V)

	// Reduce merges an incoming per-tile partial value into the global next
	// slot, returning the merged value and whether the vertex should be
	// marked active for the next iteration.
	Reduce(next V, incoming V, id uint64, deg Degree, cfg Config) (V, bool)

	// Apply finalizes next[id] once all reduction for the iteration is done.
	Apply(next V, id uint64, deg Degree, cfg Config, iteration int) V

	// ResetVertices is called once per iteration boundary; it returns whether
	// current/next (and active bitmaps) should be swapped.
	ResetVertices(cfg Config, iteration int) bool

	// ResetVerticesTileProcessor initializes a tile-local target accumulator
	// before the edge stripe loop runs. PageRank starts accumulators at the
	// neutral element (sum from zero); BFS/CC/SSSP start them at the target's
	// own current value (propagate-the-minimum kernels read their own prior
	// state as part of the reduction).
	ResetVerticesTileProcessor(tgtCurrent V, tgtGlobalID uint64, cfg Config) V

	// PreProcessingPerRound runs after the iteration counter advances and
	// before the next round's fetch begins.
	PreProcessingPerRound(cfg Config, nextIteration int)

	// FormatValue renders a vertex cell for --log output (spec §6): each
	// kernel knows whether its cell is a plain integer, a bit-cast float, or
	// an "unreached" sentinel, none of which a bare %d prints sensibly.
	FormatValue(v V) string
}

// Unimplemented is returned by Lookup for algorithm names this core does not
// carry a kernel for (spmv, tc, bp) — named but unimplemented, matching how
// the original treats algorithms it has not built: a configuration error, not
// a panic.
type Unimplemented struct {
	Algorithm string
}

func (e *Unimplemented) Error() string {
	return "kernel: algorithm " + e.Algorithm + " is not implemented"
}
