package tilegraph

import (
	"math"

	"github.com/sslab-gatech/tile-graph/internal/tilegraph/kernel"
	"github.com/sslab-gatech/tile-graph/pkg/utils"
)

// VertexDomainConfig carries the run-level parameters VertexDomain needs to
// orchestrate iterations (spec §4.9 and its tile_break_point formula).
type VertexDomainConfig struct {
	MaxIterations       int
	UseSelective        bool
	TotalTiles          int
	CountTileProcessors int
	HostTilesBufferCap  int64 // host_tiles_rb_size, bytes
	MinTileBreakPoint   int
	Logger              utils.Logger
}

// VertexDomain owns global vertex state, the iteration counter, and the
// termination decision; it is the single "distinguished serial thread" spec
// §4.9 assigns round-boundary bookkeeping to (swap, tile_break_point
// recomputation, shutdown). Engine goroutines run concurrently under a
// Runtime-managed WaitGroup rather than a literal pthread_barrier, since a
// round's fan-out/fan-in is already expressed by RunRound's own blocking
// queues; VertexDomain only needs to run once per round, after every engine's
// RunRound call has returned.
type VertexDomain struct {
	kernel   kernel.Kernel[uint64]
	cfg      kernel.Config
	vertices *VertexState
	domCfg   VertexDomainConfig
	rate     *RateTracker

	iteration        int
	countActiveTiles int
	tileBreakPoint   int
	timer            *utils.Timer
	roundPhase       *utils.PhaseTimer
	done             bool
}

// NewVertexDomain constructs a VertexDomain. rate is the run's shared
// smoothed processing-rate tracker, fed by TileProcessors' sampled tiles
// (spec §4.9 step 6).
func NewVertexDomain(kern kernel.Kernel[uint64], cfg kernel.Config, vertices *VertexState, domCfg VertexDomainConfig, rate *RateTracker) *VertexDomain {
	if domCfg.Logger == nil {
		domCfg.Logger = &utils.NullLogger{}
	}
	d := &VertexDomain{
		kernel:           kern,
		cfg:              cfg,
		vertices:         vertices,
		domCfg:           domCfg,
		rate:             rate,
		countActiveTiles: domCfg.TotalTiles,
		tileBreakPoint:   domCfg.MinTileBreakPoint,
		timer:            utils.NewTimer("vertex-domain", utils.WithLogger(domCfg.Logger)),
	}
	kern.InitVertices(vertices.Current, cfg)
	return d
}

// Iteration returns the current iteration number (0-based).
func (d *VertexDomain) Iteration() int { return d.iteration }

// Done reports whether the termination check has fired.
func (d *VertexDomain) Done() bool { return d.done }

// UseSelectiveScheduling reports whether EdgeProcessors should consult their
// IndexReader before a full tile load this round.
func (d *VertexDomain) UseSelectiveScheduling() bool { return d.domCfg.UseSelective }

// TileBreakPoint returns the current adaptive edges-per-partition threshold,
// read once per dispatched tile by VertexFetcher (spec §4.9 step 6).
func (d *VertexDomain) TileBreakPoint() int { return d.tileBreakPoint }

// BeginRound marks the start of a new round's timer. The timer is reset each
// round rather than accumulating phases across the whole run, since EndRound
// only logs the most recent round's duration.
func (d *VertexDomain) BeginRound() {
	d.timer.Reset()
	d.roundPhase = d.timer.Start("round")
}

// EndRound runs the full per-iteration round-boundary sequence (spec §4.9
// steps 1-9): stop the timer, apply the kernel's swap veto, clear changed,
// fold per-engine active-tile counts into count_active_tiles, recompute
// tile_break_point, check termination, and run the kernel's
// pre-processing-per-round hook. processedTiles is the sum, across all
// EdgeProcessors, of RunRound's returned processed-tile count this round.
func (d *VertexDomain) EndRound(processedTiles int) {
	elapsed := d.roundPhase.Stop()
	d.domCfg.Logger.Info("round complete", "iteration", d.iteration, "duration", elapsed.String())

	if d.kernel.ResetVertices(d.cfg, d.iteration) {
		d.vertices.Swap()
	}
	d.vertices.Changed.ClearAll()

	if d.domCfg.UseSelective {
		d.countActiveTiles = processedTiles
	} else {
		d.countActiveTiles = d.domCfg.TotalTiles
	}

	d.recomputeTileBreakPoint()

	switch {
	case d.iteration+1 >= d.domCfg.MaxIterations:
		d.done = true
	case d.domCfg.UseSelective && d.countActiveTiles == 0:
		d.done = true
	case !d.domCfg.UseSelective && needsActiveVertexTermination(d.kernel.Name()) && d.vertices.ActiveCurrent.Count() == 0:
		d.done = true
	}

	d.kernel.PreProcessingPerRound(d.cfg, d.iteration+1)
	d.iteration++
}

// needsActiveVertexTermination reports whether an algorithm's non-selective
// termination rule is "stop once no vertex is active" (bfs/cc; spec §4.9
// step 7), as opposed to running the full max_iterations budget (pagerank,
// sssp with no selective scheduling).
func needsActiveVertexTermination(algorithm string) bool {
	return algorithm == "bfs" || algorithm == "cc"
}

// recomputeTileBreakPoint implements spec §4.9 step 6's adaptive formula.
func (d *VertexDomain) recomputeTileBreakPoint() {
	maxTileSize := int64(8) * MaxVerticesPerTile // sizeof(uint64) * MAX_VERTICES_PER_TILE
	minCountTiles := int(math.Ceil(float64(d.domCfg.HostTilesBufferCap) / float64(maxTileSize)))
	if minCountTiles < 1 {
		minCountTiles = 1
	}

	if d.countActiveTiles < minCountTiles/2 {
		d.tileBreakPoint = d.domCfg.MinTileBreakPoint
		return
	}

	processors := d.domCfg.CountTileProcessors
	if processors < 2 {
		// a single tile processor has no "keep everyone busy" constraint to
		// balance against; fall back to the configured floor.
		d.tileBreakPoint = d.domCfg.MinTileBreakPoint
		return
	}

	rate := d.rate.Rate()
	tMin := float64(MaxVerticesPerTile) / rate
	tMax := tMin * float64(minCountTiles-1) / float64(processors-1)
	bp := int(math.Round(tMax * rate))
	if bp < d.domCfg.MinTileBreakPoint {
		bp = d.domCfg.MinTileBreakPoint
	}
	d.tileBreakPoint = bp
}
