package tilegraph

import (
	"context"
	"math/rand"

	"github.com/sslab-gatech/tile-graph/pkg/collections"
)

// PartitionJob is one unit of TileProcessor work: a shared TileBlock payload
// plus which of its NumTilePartition stripes this job covers (spec §4.3
// step 6 — "the same TileBlock pointer [is] enqueued" per partition).
type PartitionJob struct {
	Block       *TileBlock
	PartitionID int
}

// VertexFetcher materializes a TileBlock from a decoded tile plus the
// current global vertex state, then enqueues one PartitionJob per tile
// partition (spec §4.3).
type VertexFetcher struct {
	vertices       *VertexState
	mode           LocalFetcherMode
	globalFetcher  RemoteFetcher // only used in FetcherGlobalFetcher mode
	sampleThreshold float64
	tileBreakPoint  func() int
	jobs           *Queue[*PartitionJob]
	dispatched     int64
}

// NewVertexFetcher constructs a VertexFetcher over vertices, publishing
// partition jobs to jobs. tileBreakPoint is called once per tile to read the
// VertexDomain's current adaptive threshold (spec §4.9 step 6).
func NewVertexFetcher(vertices *VertexState, mode LocalFetcherMode, gf RemoteFetcher, sampleThreshold float64, tileBreakPoint func() int, jobs *Queue[*PartitionJob]) *VertexFetcher {
	return &VertexFetcher{
		vertices:        vertices,
		mode:            mode,
		globalFetcher:   gf,
		sampleThreshold: sampleThreshold,
		tileBreakPoint:  tileBreakPoint,
		jobs:            jobs,
	}
}

// Dispatched returns the running count of tiles this fetcher has dispatched,
// the "tile-dispatch performance counter" of spec §4.3 step 7.
func (f *VertexFetcher) Dispatched() int64 { return f.dispatched }

// Dispatch converts one fetched tile into its partition jobs and enqueues
// them. numTilePartition is computed from the current tile-break-point.
func (f *VertexFetcher) Dispatch(ctx context.Context, ft *FetchedTile) error {
	tile := ft.Tile
	edgeCount := tile.Edges.CountEdges()

	breakPoint := f.tileBreakPoint()
	if breakPoint < 1 {
		breakPoint = 1
	}
	numPartitions := (edgeCount + breakPoint - 1) / breakPoint
	if numPartitions < 1 {
		numPartitions = 1
	}

	activeSrc := collections.NewBitset(len(tile.Index.SrcIDs))
	srcValues := make([]uint64, len(tile.Index.SrcIDs))
	srcDegrees := make([]Degree, len(tile.Index.SrcIDs))
	for i, gid := range tile.Index.SrcIDs {
		if f.vertices.ActiveCurrent.Test(int(gid)) {
			activeSrc.Set(i)
		}
		srcValues[i] = f.fetchValue(ctx, gid)
		if int(gid) < len(f.vertices.Degrees) {
			srcDegrees[i] = f.vertices.Degrees[gid]
		}
	}
	tgtDegrees := make([]Degree, len(tile.Index.TgtIDs))
	for i, gid := range tile.Index.TgtIDs {
		if int(gid) < len(f.vertices.Degrees) {
			tgtDegrees[i] = f.vertices.Degrees[gid]
		}
	}

	block := &TileBlock{
		BlockID:          ft.BlockID,
		NumTilePartition: numPartitions,
		TilePartitionID:  0,
		MagicIdentifier:  MagicIdentifier,
		SampleExecution:  rand.Float64() < f.sampleThreshold,

		ActiveSrc:  activeSrc,
		ActiveTgt:  collections.NewBitset(len(tile.Index.TgtIDs)),
		SrcDegrees: srcDegrees,
		TgtDegrees: tgtDegrees,
		SrcValues:  srcValues,

		CountVertexSrc: int(tile.Stat.CountVertexSrc),
		CountVertexTgt: int(tile.Stat.CountVertexTgt),
		CountEdges:     edgeCount,

		SrcIDs:   tile.Edges.Src,
		TgtIDs:   tile.Edges.TgtList,
		TgtRLE:   tile.Edges.TgtRuns,
		Encoding: encodingOf(tile.Edges.UseRLE),

		SrcIndex: tile.Index.SrcIDs,
		TgtIndex: tile.Index.TgtIDs,
	}

	for p := 0; p < numPartitions; p++ {
		f.jobs.Send(&PartitionJob{Block: block, PartitionID: p})
	}
	f.dispatched++
	return nil
}

// Shutdown enqueues a shutdown-flagged job per the configured follower count
// so every TileProcessor in the pool observes the sentinel.
func (f *VertexFetcher) Shutdown(partitions int) {
	block := &TileBlock{MagicIdentifier: MagicIdentifier, Shutdown: true, NumTilePartition: partitions}
	for p := 0; p < partitions; p++ {
		f.jobs.Send(&PartitionJob{Block: block, PartitionID: p})
	}
	f.jobs.Close()
}

func (f *VertexFetcher) fetchValue(ctx context.Context, globalID uint64) uint64 {
	switch f.mode {
	case FetcherConstantValue:
		return 0
	case FetcherFake:
		return globalID
	case FetcherGlobalFetcher:
		if f.globalFetcher != nil {
			return f.globalFetcher.Fetch(ctx, globalID)
		}
		fallthrough
	default: // FetcherDirectAccess
		if int(globalID) < len(f.vertices.Current) {
			return f.vertices.Current[globalID]
		}
		return 0
	}
}

func encodingOf(useRLE bool) EdgeEncoding {
	if useRLE {
		return EncodingRLE
	}
	return EncodingList
}
