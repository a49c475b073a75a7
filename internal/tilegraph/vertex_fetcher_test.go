package tilegraph

import (
	"context"
	"testing"

	"github.com/sslab-gatech/tile-graph/internal/tilegraph/onfile"
)

func fakeFetchedTile(blockID uint64, countEdges int, srcIDs, tgtIDs []uint64) *FetchedTile {
	return &FetchedTile{
		LocalID: 0,
		BlockID: blockID,
		Tile: &RawTile{
			Stat:  &onfile.TileStat{BlockID: blockID, CountEdges: uint32(countEdges), CountVertexSrc: uint16(len(srcIDs)), CountVertexTgt: uint16(len(tgtIDs))},
			Edges: &onfile.EdgeBlock{Src: make([]uint16, countEdges), TgtList: make([]uint16, countEdges)},
			Index: &onfile.TileIndex{BlockID: blockID, SrcIDs: srcIDs, TgtIDs: tgtIDs},
		},
	}
}

func TestVertexFetcher_DispatchPartitionsByBreakPoint(t *testing.T) {
	vertices := NewVertexState(2)
	jobs := NewQueue[*PartitionJob](16)
	fetcher := NewVertexFetcher(vertices, FetcherDirectAccess, nil, 0, func() int { return 2 }, jobs)

	ft := fakeFetchedTile(0, 5, []uint64{0}, []uint64{1})
	if err := fetcher.Dispatch(context.Background(), ft); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	fetcher.Shutdown(3)

	var partitionIDs []int
	for {
		job, ok := jobs.Recv()
		if !ok {
			break
		}
		if job.Block.Shutdown {
			continue
		}
		partitionIDs = append(partitionIDs, job.PartitionID)
	}

	if len(partitionIDs) != 3 {
		t.Fatalf("got %d partition jobs, want 3 (ceil(5/2))", len(partitionIDs))
	}
	for i, pid := range partitionIDs {
		if pid != i {
			t.Fatalf("partition job %d has PartitionID %d, want %d", i, pid, i)
		}
	}
	if fetcher.Dispatched() != 1 {
		t.Fatalf("Dispatched() = %d, want 1", fetcher.Dispatched())
	}
}

func TestVertexFetcher_DirectAccessReadsCurrentState(t *testing.T) {
	vertices := NewVertexState(2)
	vertices.Current[0] = 42
	jobs := NewQueue[*PartitionJob](4)
	fetcher := NewVertexFetcher(vertices, FetcherDirectAccess, nil, 0, func() int { return 64 }, jobs)

	ft := fakeFetchedTile(0, 1, []uint64{0}, []uint64{1})
	if err := fetcher.Dispatch(context.Background(), ft); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	job, _ := jobs.Recv()
	if got := job.Block.SrcValues[0]; got != 42 {
		t.Fatalf("SrcValues[0] = %d, want 42", got)
	}
}

func TestVertexFetcher_ConstantValueModeIgnoresState(t *testing.T) {
	vertices := NewVertexState(2)
	vertices.Current[0] = 42
	jobs := NewQueue[*PartitionJob](4)
	fetcher := NewVertexFetcher(vertices, FetcherConstantValue, nil, 0, func() int { return 64 }, jobs)

	ft := fakeFetchedTile(0, 1, []uint64{0}, []uint64{1})
	if err := fetcher.Dispatch(context.Background(), ft); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	job, _ := jobs.Recv()
	if got := job.Block.SrcValues[0]; got != 0 {
		t.Fatalf("SrcValues[0] = %d, want 0 under FetcherConstantValue", got)
	}
}

func TestVertexFetcher_FakeModeEchoesGlobalID(t *testing.T) {
	vertices := NewVertexState(2)
	jobs := NewQueue[*PartitionJob](4)
	fetcher := NewVertexFetcher(vertices, FetcherFake, nil, 0, func() int { return 64 }, jobs)

	ft := fakeFetchedTile(0, 1, []uint64{1}, []uint64{0})
	if err := fetcher.Dispatch(context.Background(), ft); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	job, _ := jobs.Recv()
	if got := job.Block.SrcValues[0]; got != 1 {
		t.Fatalf("SrcValues[0] = %d, want the echoed global id 1", got)
	}
}

func TestVertexFetcher_GlobalFetcherModeFallsBackToDirectAccessWhenNil(t *testing.T) {
	vertices := NewVertexState(2)
	vertices.Current[0] = 7
	jobs := NewQueue[*PartitionJob](4)
	fetcher := NewVertexFetcher(vertices, FetcherGlobalFetcher, nil, 0, func() int { return 64 }, jobs)

	ft := fakeFetchedTile(0, 1, []uint64{0}, []uint64{1})
	if err := fetcher.Dispatch(context.Background(), ft); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	job, _ := jobs.Recv()
	if got := job.Block.SrcValues[0]; got != 7 {
		t.Fatalf("SrcValues[0] = %d, want 7 (direct-access fallback)", got)
	}
}

func TestVertexFetcher_GlobalFetcherModeUsesRemoteFetcher(t *testing.T) {
	vertices := NewVertexState(2)
	jobs := NewQueue[*PartitionJob](4)
	gf := NewGlobalFetcher(NewVertexState(2), GlobalFetcherActive)
	gf.vertices.Current[0] = 99
	fetcher := NewVertexFetcher(vertices, FetcherGlobalFetcher, gf, 0, func() int { return 64 }, jobs)

	ft := fakeFetchedTile(0, 1, []uint64{0}, []uint64{1})
	if err := fetcher.Dispatch(context.Background(), ft); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	job, _ := jobs.Recv()
	if got := job.Block.SrcValues[0]; got != 99 {
		t.Fatalf("SrcValues[0] = %d, want 99 from the RemoteFetcher", got)
	}
}

func TestGlobalFetcher_ConstantValueMode(t *testing.T) {
	vertices := NewVertexState(2)
	vertices.Current[0] = 55
	gf := NewGlobalFetcher(vertices, GlobalFetcherConstantValue)
	if got := gf.Fetch(context.Background(), 0); got != 0 {
		t.Fatalf("Fetch() = %d, want 0 under GlobalFetcherConstantValue", got)
	}
}

func TestGlobalFetcher_FetchBatch(t *testing.T) {
	vertices := NewVertexState(3)
	vertices.Current[0], vertices.Current[1], vertices.Current[2] = 1, 2, 3
	gf := NewGlobalFetcher(vertices, GlobalFetcherActive)

	got := gf.FetchBatch(context.Background(), []uint64{2, 0, 1})
	want := []uint64{3, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("FetchBatch()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
