package tilegraph

import (
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sslab-gatech/tile-graph/internal/tilegraph/kernel"
	"github.com/sslab-gatech/tile-graph/pkg/collections"
)

// DefaultEdgesStripeSize is the per-worker stripe width used to interleave a tile
// partition's edges across a TileProcessor's leader and its followers (spec
// §4.4); overridable via EngineConfig for benchmarking.
const DefaultEdgesStripeSize = 64

// TileProcessor executes the per-edge kernel over one tile partition's edge
// range, striping the range across 1+F worker goroutines that mirror the
// source's leader-plus-follower thread group (spec §4.4).
type TileProcessor struct {
	kernel     kernel.Kernel[uint64]
	cfg        kernel.Config
	vertices   *VertexState
	mode       TileProcessorMode
	followers  int
	stripeSize int
	table      *OffsetTable
	out        *Queue[*ProcessedBlock]
	rate       *RateTracker
}

// NewTileProcessor constructs a TileProcessor. followers is F in spec §4.4
// (total worker count is 1+F); table is the engine's tile offset table used
// for the leader-install / refcount-release protocol. rate may be nil if
// timing samples should be discarded.
func NewTileProcessor(kern kernel.Kernel[uint64], cfg kernel.Config, vertices *VertexState, mode TileProcessorMode, followers, stripeSize int, table *OffsetTable, out *Queue[*ProcessedBlock], rate *RateTracker) *TileProcessor {
	if stripeSize < 1 {
		stripeSize = DefaultEdgesStripeSize
	}
	return &TileProcessor{
		kernel: kern, cfg: cfg, vertices: vertices, mode: mode,
		followers: followers, stripeSize: stripeSize, table: table, out: out, rate: rate,
	}
}

// Process handles one PartitionJob: on the leader partition it installs the
// shared TileBlock into the offset table (spec §4.4's leader-coordination
// protocol); all partitions then execute their edge stripe and emit a
// ProcessedBlock downstream.
func (p *TileProcessor) Process(job *PartitionJob, bundle *Bundle, localID int) {
	entry := p.table.Entry(localID)

	if job.Block.Shutdown {
		p.out.Send(&ProcessedBlock{MagicIdentifier: job.Block.MagicIdentifier, Shutdown: true})
		return
	}

	if job.PartitionID == 0 {
		entry.Install(job.Block, bundle)
	} else {
		for entry.Load() == nil {
			runtime.Gosched() // acquire-spin for the leader's release-published pointer (spec §5)
		}
	}

	block := job.Block
	start, end := partitionEdgeRange(block.CountEdges, block.NumTilePartition, job.PartitionID)

	var tgtValues []uint64
	var activeTgt *collections.Bitset
	if p.mode == TileProcessorActive {
		sampleStart := time.Now()
		tgtValues, activeTgt = p.runStripes(block, start, end)
		if block.SampleExecution && p.rate != nil {
			p.rate.Observe(block.CountVertexTgt, time.Since(sampleStart))
		}
	} else {
		tgtValues = make([]uint64, block.CountVertexTgt)
		activeTgt = collections.NewBitset(block.CountVertexTgt)
	}

	if entry.ReleaseFetch() {
		// last partition to release the shared payload; in a streaming
		// deployment this would return the ring-buffer slot to its pool.
	}
	if entry.ReleaseProcess() {
		// last partition to finish; bundle release (if any) already fired
		// inside ReleaseProcess.
	}

	p.out.Send(&ProcessedBlock{
		BlockID:             block.BlockID,
		CountTgtVertexBlock: block.CountVertexTgt,
		ActiveSrc:           block.ActiveSrc,
		ActiveTgt:           activeTgt,
		TgtValues:           tgtValues,
		MagicIdentifier:     block.MagicIdentifier,
	})
}

// runStripes assigns edges to 1+followers workers per spec §4.4's stripe
// formula, runs each worker's pull_gather loop over its private accumulator,
// then merges every worker's output into one array via kernel.Gather.
func (p *TileProcessor) runStripes(block *TileBlock, start, end int) ([]uint64, *collections.Bitset) {
	workers := 1 + p.followers
	partials := make([][]uint64, workers)
	bufs := make([]*[]uint64, workers)
	actives := make([]*collections.Bitset, workers)

	var g errgroup.Group
	for k := 0; k < workers; k++ {
		worker := k
		g.Go(func() error {
			local, buf := p.initLocal(block)
			activeLocal := collections.NewBitset(block.CountVertexTgt)
			p.processStripe(block, start, end, worker, workers, local, activeLocal)
			partials[worker] = local
			bufs[worker] = buf
			actives[worker] = activeLocal
			return nil
		})
	}
	g.Wait()

	merged := partials[0]
	mergedActive := actives[0]
	for k := 1; k < workers; k++ {
		for i := range merged {
			p.kernel.Gather(&merged[i], partials[k][i])
		}
		mergedActive.Or(actives[k])
		// follower k's accumulator is fully folded into merged now; the
		// leader's (bufs[0]) is returned downstream as ProcessedBlock's
		// TgtValues and stays outside the pool's reuse cycle.
		collections.PutUint64Slice(bufs[k])
	}
	return merged, mergedActive
}

// initLocal borrows a []uint64 accumulator from the shared slice pool
// (one per worker per tile partition per round) and sizes it to the tile's
// target-vertex count, then seeds it via the kernel's per-round reset hook.
// It returns the pool handle alongside the sized slice so the caller can
// return it once the stripe's values are folded into the merged output.
func (p *TileProcessor) initLocal(block *TileBlock) ([]uint64, *[]uint64) {
	buf := collections.GetUint64Slice()
	local := *buf
	if cap(local) < block.CountVertexTgt {
		local = make([]uint64, block.CountVertexTgt)
	} else {
		local = local[:block.CountVertexTgt]
	}
	for i := range local {
		var current uint64
		globalID := uint64(0)
		if i < len(block.TgtIndex) {
			globalID = block.TgtIndex[i]
			if int(globalID) < len(p.vertices.Current) {
				current = p.vertices.Current[globalID]
			}
		}
		local[i] = p.kernel.ResetVerticesTileProcessor(current, globalID, p.cfg)
	}
	*buf = local
	return local, buf
}

func (p *TileProcessor) processStripe(block *TileBlock, start, end, worker, workers int, local []uint64, activeLocal *collections.Bitset) {
	S := p.stripeSize
	needActive := p.kernel.NeedActiveSource()

	for base := start + worker*S; base < end; base += workers * S {
		stripeEnd := base + S
		if stripeEnd > end {
			stripeEnd = end
		}
		for i := base; i < stripeEnd; i++ {
			srcLocal := int(block.SrcIDs[i])
			if needActive && (block.ActiveSrc == nil || !block.ActiveSrc.Test(srcLocal)) {
				continue
			}
			var tgtLocal int
			if block.Encoding == EncodingRLE {
				tgtLocal = int(TargetAt(block.TgtRLE, i))
			} else {
				tgtLocal = int(block.TgtIDs[i])
			}
			if srcLocal >= len(block.SrcIndex) || tgtLocal >= len(block.TgtIndex) {
				continue
			}
			srcGlobal := block.SrcIndex[srcLocal]
			tgtGlobal := block.TgtIndex[tgtLocal]
			var srcDeg, tgtDeg Degree
			if srcLocal < len(block.SrcDegrees) {
				srcDeg = block.SrcDegrees[srcLocal]
			}
			if tgtLocal < len(block.TgtDegrees) {
				tgtDeg = block.TgtDegrees[tgtLocal]
			}
			weight := float32(1.0)
			p.kernel.PullGather(block.SrcValues[srcLocal], &local[tgtLocal], srcGlobal, tgtGlobal, srcDeg, tgtDeg, weight, func(uint64) {
				activeLocal.Set(tgtLocal)
			}, p.cfg)
		}
	}
}

// partitionEdgeRange splits [0, countEdges) into numPartitions contiguous
// ranges, assigning the remainder to the earliest partitions.
func partitionEdgeRange(countEdges, numPartitions, partitionID int) (start, end int) {
	if numPartitions < 1 {
		numPartitions = 1
	}
	base := countEdges / numPartitions
	rem := countEdges % numPartitions
	start = partitionID * base
	if partitionID < rem {
		start += partitionID
	} else {
		start += rem
	}
	size := base
	if partitionID < rem {
		size++
	}
	return start, start + size
}
